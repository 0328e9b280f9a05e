// Package bfeservice implements C7: the buyer front-end orchestrator that
// decrypts a buyer's share of the auction, fetches trusted bidding signals,
// calls the bidding reactor over gRPC, and re-encrypts the response
// (spec.md §4.7).
package bfeservice

import (
	"context"
	"time"

	"github.com/cloudx-io/auctiontee/biddingservice"
	"github.com/cloudx-io/auctiontee/core"
)

// GetBidsRawRequest is the decrypted GetBids input for one buyer.
type GetBidsRawRequest struct {
	BuyerInput           core.BuyerInput
	AuctionSignals       string
	BuyerSignals         string
	PublisherName        string
	Seller               string
	EnableDebugReporting bool
	FeatureFlags         biddingservice.FeatureFlags

	// RequireBiddingSignals mirrors the "config flag" in spec.md §4.7 step 3:
	// when true, a KV failure aborts the call instead of degrading to an
	// empty-signals GenerateBids call.
	RequireBiddingSignals bool

	BiddingSignalsTimeoutMS int
	BiddingTimeoutMS        int
}

// GetBidsRawResponse is the BFE orchestrator's output (spec.md §4.7 point 4).
type GetBidsRawResponse struct {
	Bids []core.AdWithBid
}

// BiddingCaller is the gRPC-shaped boundary to the Bidding service. The
// bidding reactor itself satisfies this signature directly; a real gRPC
// client stub implementing the same method wires in without changing the
// orchestrator.
type BiddingCaller interface {
	GenerateBids(ctx context.Context, req *biddingservice.GenerateBidsRawRequest) (*biddingservice.GenerateBidsRawResponse, error)
}

// SignalsFetcher is the KV-client-shaped boundary used for the bidding
// signals fetch, satisfied by *kvclient.Client.
type SignalsFetcher interface {
	FetchKeys(ctx context.Context, timeout time.Duration, keys []string) ([]byte, error)
}
