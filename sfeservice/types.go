// Package sfeservice implements C8: the seller front-end orchestrator — the
// hardest component in the system. It owns decrypt/decode/validate, fans a
// GetBids call out to every buyer named in the auction config, collates
// surviving bids behind a single mutex, fetches scoring signals, invokes the
// auction reactor once, and re-encrypts the result (spec.md §4.8).
package sfeservice

import (
	"context"
	"time"

	"github.com/cloudx-io/auctiontee/auctionservice"
	"github.com/cloudx-io/auctiontee/bfeservice"
	"github.com/cloudx-io/auctiontee/envelope"
)

// ReactorState names the SFE state machine's states, New through Done
// (spec.md §4.8). It exists for observability only.
type ReactorState int

const (
	StateNew ReactorState = iota
	StateDecrypted
	StateFanOut
	StateCollated
	StateScored
	StateChaffEncoded
	StateErrorEncoded
	StateEncoded
	StatePadded
	StateDone
)

// ClientType distinguishes the browser (CBOR) and app (protobuf) request
// shapes, carried by which ciphertext field the request set (spec.md §6).
type ClientType int

const (
	ClientBrowser ClientType = iota
	ClientApp
)

// AuctionConfig is the ad-server-supplied, plaintext portion of SelectAd
// (spec.md §6's `auction_config`).
type AuctionConfig struct {
	Seller                          string
	BuyerList                       []string
	SellerSignals                   string
	AuctionSignals                  string
	PerBuyerSignals                 map[string]string
	EnableReportResultURLGeneration bool
	EnableReportWinURLGeneration    bool
}

// SelectAdRawRequest is SFE's SelectAd input: the plaintext auction_config
// plus exactly one of the two ciphertext fields (spec.md §6).
type SelectAdRawRequest struct {
	AuctionConfig               AuctionConfig
	ProtectedAuctionCiphertext  []byte
	ProtectedAudienceCiphertext []byte
	KeyID                       envelope.KeyID

	BuyerTimeoutMS         int
	ScoringSignalsTimeoutMS int
}

// SelectAdRawResponse carries the sealed, padded AuctionResult ciphertext —
// the only thing that ever crosses back to the client (spec.md §6).
type SelectAdRawResponse struct {
	AuctionResultCiphertext []byte
}

// buyerStatus is the per-buyer outcome tracked during Collation (spec.md
// §4.8's "shared counter").
type buyerStatus int

const (
	statusSuccess buyerStatus = iota
	statusEmptyResponse
	statusError
	statusSkipped
)

// BuyerCaller is the gRPC-shaped boundary to one buyer's BFE, stubbed and
// cached by origin by the real transport layer (spec.md §4.8 "per-buyer
// gRPC stub cache").
type BuyerCaller interface {
	GetBids(ctx context.Context, buyerOrigin string, req *bfeservice.GetBidsRawRequest) (*bfeservice.GetBidsRawResponse, error)
}

// AuctionCaller is the gRPC-shaped boundary to the seller's Auction service.
type AuctionCaller interface {
	ScoreAds(ctx context.Context, req *auctionservice.ScoreAdsRawRequest) (*auctionservice.ScoreAdsRawResponse, error)
}

// ScoringSignalsFetcher is the seller KV client boundary used for the
// scoring-signals fetch.
type ScoringSignalsFetcher interface {
	FetchKeys(ctx context.Context, timeout time.Duration, keys []string) ([]byte, error)
}
