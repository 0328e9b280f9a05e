package bfeservice

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/golang/glog"

	"github.com/cloudx-io/auctiontee/biddingservice"
	"github.com/cloudx-io/auctiontee/core"
)

const defaultSignalsTimeout = 500 * time.Millisecond

// Orchestrator drives one buyer's GetBids call (spec.md §4.7).
type Orchestrator struct {
	bidding BiddingCaller
	signals SignalsFetcher
}

// New builds an Orchestrator bound to a Bidding gRPC caller and the buyer
// KV client used for the bidding-signals fetch.
func New(bidding BiddingCaller, signals SignalsFetcher) *Orchestrator {
	return &Orchestrator{bidding: bidding, signals: signals}
}

// GetBids implements C7's decrypt-already-done request/response shape: the
// grpctransport envelope wrapper around this orchestrator owns C1
// decrypt/encrypt (spec.md §4.7 steps 1 and 4); this orchestrates the KV
// fetch and the Bidding call in between.
func (o *Orchestrator) GetBids(ctx context.Context, req *GetBidsRawRequest) (*GetBidsRawResponse, error) {
	keys := biddingSignalsKeys(req.BuyerInput)

	signalsTimeout := time.Duration(req.BiddingSignalsTimeoutMS) * time.Millisecond
	if signalsTimeout <= 0 {
		signalsTimeout = defaultSignalsTimeout
	}

	biddingSignals, err := o.fetchBiddingSignals(ctx, keys, signalsTimeout)
	if err != nil {
		if req.RequireBiddingSignals {
			return nil, fmt.Errorf("bfeservice: bidding signals required but fetch failed: %w", err)
		}
		glog.Warningf("bfeservice: bidding signals fetch failed, degrading to empty signals: %v", err)
		biddingSignals = json.RawMessage(`{}`)
	}

	bidReq := &biddingservice.GenerateBidsRawRequest{
		InterestGroupsForBidding: req.BuyerInput.InterestGroups,
		AuctionSignals:           req.AuctionSignals,
		BuyerSignals:             req.BuyerSignals,
		BiddingSignals:           biddingSignals,
		PublisherName:            req.PublisherName,
		Seller:                   req.Seller,
		EnableDebugReporting:     req.EnableDebugReporting,
		FeatureFlags:             req.FeatureFlags,
		TimeoutMS:                req.BiddingTimeoutMS,
	}

	bidResp, err := o.bidding.GenerateBids(ctx, bidReq)
	if err != nil {
		return nil, fmt.Errorf("bfeservice: GenerateBids: %w", err)
	}

	return &GetBidsRawResponse{Bids: bidResp.Bids}, nil
}

// fetchBiddingSignals issues the KV call; a cancelled ctx propagates into the
// HTTP request per spec.md §4.7's cancellation semantics (signalled, not
// awaited, by the caller that owns ctx).
func (o *Orchestrator) fetchBiddingSignals(ctx context.Context, keys []string, timeout time.Duration) (json.RawMessage, error) {
	if len(keys) == 0 {
		return json.RawMessage(`{}`), nil
	}
	body, err := o.signals.FetchKeys(ctx, timeout, keys)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

// biddingSignalsKeys unions bidding_signals_keys across every interest group
// in the buyer input, deduplicated and sorted for a stable KV URL.
func biddingSignalsKeys(input core.BuyerInput) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, ig := range input.InterestGroups {
		for _, k := range ig.BiddingSignalsKeys {
			if k == "" || seen[k] {
				continue
			}
			seen[k] = true
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
