package biddingservice

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/golang/glog"

	"github.com/cloudx-io/auctiontee/core"
	"github.com/cloudx-io/auctiontee/dispatch"
	"github.com/cloudx-io/auctiontee/wrapper"
)

// ErrNoAds is returned when a GenerateBidsRawRequest carries no interest
// groups to bid for — a fatal InvalidArgument(no_ads) per spec.md §4.5.
var ErrNoAds = fmt.Errorf("biddingservice: no interest groups to bid for")

// ErrNoTrustedSignals is returned when the request's trusted bidding
// signals blob is empty — InvalidArgument(no_trusted_signals).
var ErrNoTrustedSignals = fmt.Errorf("biddingservice: no trusted bidding signals")

// Reactor drives the generateBid dispatch for one buyer's request.
type Reactor struct {
	pool             *dispatch.Pool
	defaultTimeoutMS int
}

// NewReactor builds a reactor bound to a process-wide dispatch pool.
func NewReactor(pool *dispatch.Pool, defaultTimeoutMS int) *Reactor {
	return &Reactor{pool: pool, defaultTimeoutMS: defaultTimeoutMS}
}

// GenerateBids implements C5: one dispatch per interest group, parsed into
// AdWithBid, with the bid-drop rule applied (spec.md §4.5).
func (r *Reactor) GenerateBids(ctx context.Context, req *GenerateBidsRawRequest) (*GenerateBidsRawResponse, error) {
	if len(req.InterestGroupsForBidding) == 0 {
		return nil, ErrNoAds
	}
	if len(req.BiddingSignals) == 0 {
		return nil, ErrNoTrustedSignals
	}

	var signalsByKey map[string]json.RawMessage
	if err := json.Unmarshal(req.BiddingSignals, &signalsByKey); err != nil {
		return nil, fmt.Errorf("biddingservice: parse bidding_signals: %w", err)
	}

	timeoutMS := req.TimeoutMS
	if timeoutMS <= 0 {
		timeoutMS = r.defaultTimeoutMS
	}

	featureFlagsJSON := wrapper.FeatureFlagJSON(req.FeatureFlags.EnableLogging, req.FeatureFlags.EnableDebugURLGeneration)

	requests := make([]dispatch.DispatchRequest, 0, len(req.InterestGroupsForBidding))
	igs := make([]core.InterestGroup, 0, len(req.InterestGroupsForBidding))
	igIndices := make([]int, 0, len(req.InterestGroupsForBidding))
	for origIndex, ig := range req.InterestGroupsForBidding {
		igJSON, err := json.Marshal(ig)
		if err != nil {
			glog.Warningf("biddingservice: marshal interest group %q: %v", ig.Name, err)
			continue
		}

		trustedSignalsForIG := trustedSignalsSubset(signalsByKey, ig.BiddingSignalsKeys)
		if len(trustedSignalsForIG) == 0 {
			glog.Warningf("biddingservice: interest group %q has no trusted bidding signals", ig.Name)
		}
		trustedSignalsJSON, err := json.Marshal(trustedSignalsForIG)
		if err != nil {
			glog.Warningf("biddingservice: marshal trusted signals for %q: %v", ig.Name, err)
			trustedSignalsJSON = []byte("{}")
		}

		deviceSignalsJSON := "{}"

		requests = append(requests, dispatch.DispatchRequest{
			ID:            ig.Name,
			EntryFunction: wrapper.GenerateBidEntryFunction,
			TimeoutMS:     timeoutMS,
			Args: []interface{}{
				jsonRaw(igJSON),
				req.AuctionSignals,
				req.BuyerSignals,
				jsonRaw(trustedSignalsJSON),
				jsonRaw([]byte(deviceSignalsJSON)),
				jsonRaw([]byte(featureFlagsJSON)),
			},
		})
		igs = append(igs, ig)
		igIndices = append(igIndices, origIndex)
	}

	results := r.pool.BatchExecute(ctx, requests)

	resp := &GenerateBidsRawResponse{Logs: make(map[string]IGDebugLog, len(results))}
	for i, res := range results {
		ig := igs[i]

		if res.Err != nil {
			glog.Warningf("biddingservice: dispatch failed for interest group %q: %v", ig.Name, res.Err)
			continue
		}

		var wire dispatchJSResponse
		if err := dispatch.DecodeValue(res.Value, &wire); err != nil {
			glog.Warningf("biddingservice: decode dispatch result for %q: %v", ig.Name, err)
			continue
		}

		resp.Logs[ig.Name] = IGDebugLog{Logs: wire.Logs, Errors: wire.Errors, Warnings: wire.Warnings}

		if len(wire.Response) == 0 {
			continue
		}

		var bidWire generateBidResponseWire
		if err := dispatch.DecodeValue(wire.Response, &bidWire); err != nil {
			glog.Warningf("biddingservice: parse generateBid response for %q: %v", ig.Name, err)
			continue
		}

		bid := core.AdWithBid{
			Render:                bidWire.Render,
			Bid:                   bidWire.Bid,
			BidCurrency:           bidWire.BidCurrency,
			Ad:                    bidWire.Ad,
			AdComponents:          bidWire.AdComponents,
			AdCost:                bidWire.AdCost,
			ModelingSignals:       bidWire.ModelingSignals,
			AllowComponentAuction: bidWire.AllowComponentAuction,
			InterestGroupName:     ig.Name,
			InterestGroupIndex:    igIndices[i],
		}
		if bidWire.DebugReportUrls != nil {
			bid.DebugReportUrls = &core.DebugReportUrls{
				AuctionDebugWinURL:  bidWire.DebugReportUrls.AuctionDebugWinURL,
				AuctionDebugLossURL: bidWire.DebugReportUrls.AuctionDebugLossURL,
			}
		}

		kept, ok := keepBid(bid)
		if !ok {
			continue
		}

		resp.Bids = append(resp.Bids, kept)
	}

	return resp, nil
}

// keepBid applies spec.md §4.5 point 4: a non-positive bid or empty render
// is dropped unless debug URLs exist, in which case it is retained with
// bid=0 purely so the debug URLs still reach scoring — a debug-only entry
// never carries its original (possibly negative) bid value into scoring or
// HighestScoringOtherBid's decimal sum.
func keepBid(bid core.AdWithBid) (core.AdWithBid, bool) {
	if bid.Bid > 0 && bid.Render != "" {
		return bid, true
	}
	if bid.DebugReportUrls == nil {
		return bid, false
	}
	bid.Bid = 0
	return bid, true
}

func trustedSignalsSubset(all map[string]json.RawMessage, keys []string) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(keys))
	for _, k := range keys {
		if v, ok := all[k]; ok {
			out[k] = v
		}
	}
	return out
}

// jsonRaw lets a pre-marshaled JSON blob pass through dispatch.DispatchRequest
// args as a parsed JS value rather than a doubly-escaped JSON string: goja's
// ToValue on a json.RawMessage falls back to treating it as []byte, so route
// it through json.Unmarshal into a generic interface{} first.
func jsonRaw(raw []byte) interface{} {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return map[string]interface{}{}
	}
	return v
}
