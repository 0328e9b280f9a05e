package auctionservice

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/golang/glog"

	"github.com/cloudx-io/auctiontee/core"
	"github.com/cloudx-io/auctiontee/dispatch"
	"github.com/cloudx-io/auctiontee/reporting"
	"github.com/cloudx-io/auctiontee/wrapper"
)

// ErrNoAdsToScore is returned when ad_bids is empty — InvalidArgument(no_ads_to_score).
var ErrNoAdsToScore = fmt.Errorf("auctionservice: no ads to score")

// ErrNoTrustedScoringSignals is returned when scoring_signals is empty —
// InvalidArgument(no_trusted_scoring_signals).
var ErrNoTrustedScoringSignals = fmt.Errorf("auctionservice: no trusted scoring signals")

// Reactor drives the scoreAd/reportResult/reportWin dispatch for one seller
// auction (spec.md §4.6).
type Reactor struct {
	pool             *dispatch.Pool
	reportSender     *reporting.Sender
	defaultTimeoutMS int
}

// NewReactor builds a reactor bound to a process-wide dispatch pool and a
// debug-report HTTP sender.
func NewReactor(pool *dispatch.Pool, reportSender *reporting.Sender, defaultTimeoutMS int) *Reactor {
	return &Reactor{pool: pool, reportSender: reportSender, defaultTimeoutMS: defaultTimeoutMS}
}

// ScoreAds implements C6.
func (r *Reactor) ScoreAds(ctx context.Context, req *ScoreAdsRawRequest) (*ScoreAdsRawResponse, error) {
	if len(req.AdBids) == 0 {
		return nil, ErrNoAdsToScore
	}
	if len(req.ScoringSignals) == 0 {
		return nil, ErrNoTrustedScoringSignals
	}

	var scoringSignals interface{}
	if err := json.Unmarshal(req.ScoringSignals, &scoringSignals); err != nil {
		return nil, fmt.Errorf("auctionservice: parse scoring_signals: %w", err)
	}

	timeoutMS := req.TimeoutMS
	if timeoutMS <= 0 {
		timeoutMS = r.defaultTimeoutMS
	}

	auctionConfig := map[string]interface{}{
		"auctionSignals": jsonOrString(req.AuctionSignals),
		"sellerSignals":  jsonOrString(req.SellerSignals),
		"seller":         req.Seller,
	}
	featureFlags := map[string]interface{}{
		"enable_logging":              req.EnableDebugReporting,
		"enable_debug_url_generation": req.EnableDebugReporting,
	}

	requests := make([]dispatch.DispatchRequest, len(req.AdBids))
	for i, bid := range req.AdBids {
		browserSignals := map[string]interface{}{
			"topWindowHostname": req.PublisherHostname,
			"adComponents":      bid.AdComponents,
			"bidCurrency":       bid.BidCurrency,
		}
		requests[i] = dispatch.DispatchRequest{
			ID:            fmt.Sprintf("bid-%d", i),
			EntryFunction: wrapper.ScoreAdEntryFunction,
			TimeoutMS:     timeoutMS,
			Args: []interface{}{
				bid.Ad,
				bid.Bid,
				auctionConfig,
				scoringSignals,
				browserSignals,
				map[string]interface{}{},
				featureFlags,
			},
		}
	}

	results := r.pool.BatchExecute(ctx, requests)

	candidates := make([]core.ScoredCandidate, len(req.AdBids))
	for i, bid := range req.AdBids {
		candidates[i] = scoreCandidate(bid, results[i])
	}

	winner := core.SelectWinner(candidates)
	if winner == -1 {
		r.fireLosingDebugURLs(candidates, -1, 0, "")
		return &ScoreAdsRawResponse{Result: &core.AuctionResult{IsChaff: true}}, nil
	}

	otherOwner, otherSum := core.HighestScoringOtherBid(candidates, winner)
	if otherOwner != "" {
		candidates[winner].Score.IGOwnerHighestOtherBidsMap = map[string]float64{otherOwner: otherSum}
	}

	result := &core.AuctionResult{
		AdRenderURL:         candidates[winner].Bid.Render,
		Bid:                 candidates[winner].Bid.Bid,
		BidCurrency:         candidates[winner].Bid.BidCurrency,
		Score:               candidates[winner].Score.Desirability,
		InterestGroupName:   candidates[winner].Bid.InterestGroupName,
		InterestGroupOwner:  candidates[winner].Bid.InterestGroupOwner,
		AdComponents:        candidates[winner].Bid.AdComponents,
	}

	if req.EnableReportResultURLGeneration {
		winReporting := r.dispatchReporting(ctx, req, candidates, winner, otherOwner, otherSum, timeoutMS)
		result.WinReportingUrls = winReporting
	}

	r.fireLosingDebugURLs(candidates, winner, otherSum, otherOwner)

	return &ScoreAdsRawResponse{Result: result}, nil
}

func scoreCandidate(bid core.AdWithBid, res dispatch.DispatchResult) core.ScoredCandidate {
	c := core.ScoredCandidate{Bid: bid}
	c.Score.Render = bid.Render
	c.Score.BuyerBid = bid.Bid
	c.Score.InterestGroupName = bid.InterestGroupName
	c.Score.InterestGroupOwner = bid.InterestGroupOwner
	c.Score.InterestGroupIndex = bid.InterestGroupIndex
	c.Score.AdComponents = bid.AdComponents

	if res.Err != nil {
		glog.Warningf("auctionservice: scoreAd dispatch failed: %v", res.Err)
		c.Rejected = true
		c.Score.AdRejectionReason = core.RejectionNotAvailable
		return c
	}

	var wire dispatchJSResponse
	if err := dispatch.DecodeValue(res.Value, &wire); err != nil {
		glog.Warningf("auctionservice: decode scoreAd dispatch result: %v", err)
		c.Rejected = true
		c.Score.AdRejectionReason = core.RejectionNotAvailable
		return c
	}

	var scored scoreAdResponseWire
	switch v := wire.Response.(type) {
	case float64:
		scored.Desirability = v
	case int64:
		scored.Desirability = float64(v)
	case map[string]interface{}:
		if err := dispatch.DecodeValue(v, &scored); err != nil {
			glog.Warningf("auctionservice: parse scoreAd response: %v", err)
			c.Rejected = true
			c.Score.AdRejectionReason = core.RejectionNotAvailable
			return c
		}
	default:
		c.Rejected = true
		c.Score.AdRejectionReason = core.RejectionNotAvailable
		return c
	}

	c.Score.Desirability = scored.Desirability
	c.Score.AllowComponentAuction = scored.AllowComponentAuction
	if scored.DebugReportUrls != nil {
		c.Score.DebugReportUrls = &core.DebugReportUrls{
			AuctionDebugWinURL:  scored.DebugReportUrls.AuctionDebugWinURL,
			AuctionDebugLossURL: scored.DebugReportUrls.AuctionDebugLossURL,
		}
	}

	if scored.Desirability <= 0 {
		c.Rejected = true
		if scored.RejectReason != "" && core.ValidRejectionReasons[scored.RejectReason] {
			c.Score.AdRejectionReason = scored.RejectReason
		} else {
			c.Score.AdRejectionReason = core.RejectionNotAvailable
		}
	}

	return c
}

func (r *Reactor) dispatchReporting(ctx context.Context, req *ScoreAdsRawRequest, candidates []core.ScoredCandidate, winner int, otherOwner string, otherSum float64, timeoutMS int) *core.WinReportingUrls {
	winningBid := candidates[winner]

	buyerReportingMetadata := map[string]interface{}{
		"enableReportWinUrlGeneration": req.EnableReportWinURLGeneration,
		"buyerOrigin":                 winningBid.Bid.InterestGroupOwner,
		"interestGroupName":           winningBid.Bid.InterestGroupName,
		"madeHighestScoringOtherBid":  otherOwner == winningBid.Bid.InterestGroupOwner,
		"perBuyerSignals":             jsonOrString(req.PerBuyerSignals[winningBid.Bid.InterestGroupOwner]),
	}

	results := r.pool.BatchExecute(ctx, []dispatch.DispatchRequest{{
		ID:            "reporting",
		EntryFunction: wrapper.ReportingEntryFunction,
		TimeoutMS:     timeoutMS,
		Args: []interface{}{
			map[string]interface{}{"auctionSignals": jsonOrString(req.AuctionSignals), "seller": req.Seller},
			map[string]interface{}{"desirability": winningBid.Score.Desirability},
			map[string]interface{}{},
			req.EnableDebugReporting,
			buyerReportingMetadata,
		},
	}})

	if len(results) == 0 || results[0].Err != nil {
		if len(results) > 0 {
			glog.Warningf("auctionservice: reporting dispatch failed: %v", results[0].Err)
		}
		return nil
	}

	var reportingResult reportingEntryResponseWire
	if err := dispatch.DecodeValue(results[0].Value, &reportingResult); err != nil {
		glog.Warningf("auctionservice: decode reporting dispatch result: %v", err)
		return nil
	}

	return &core.WinReportingUrls{
		SellerReportingUrls: core.ReportingUrls{
			ReportingURL:             reportingResult.ReportResultResponse.ReportResultURL,
			InteractionReportingUrls: reportingResult.ReportResultResponse.InteractionReportingUrls,
		},
		BuyerReportingUrls: core.ReportingUrls{
			ReportingURL:             reportingResult.ReportWinResponse.ReportWinURL,
			InteractionReportingUrls: reportingResult.ReportWinResponse.InteractionReportingUrls,
		},
	}
}

// fireLosingDebugURLs substitutes placeholders into every non-winning
// candidate's debug URLs and sends them via detached best-effort HTTP GET
// (spec.md §4.6 point 7).
func (r *Reactor) fireLosingDebugURLs(candidates []core.ScoredCandidate, winner int, otherBidSum float64, otherBidOwner string) {
	var winningBid float64
	if winner >= 0 {
		winningBid = candidates[winner].Bid.Bid
	}

	for i, c := range candidates {
		if i == winner || c.Score.DebugReportUrls == nil {
			continue
		}

		placeholder := reporting.DebugReportingPlaceholder{
			WinningBid:                 winningBid,
			MadeWinningBid:             false,
			HighestScoringOtherBid:     otherBidSum,
			MadeHighestScoringOtherBid: c.Bid.InterestGroupOwner == otherBidOwner,
			RejectionReason:            c.Score.AdRejectionReason,
		}

		if url := c.Score.DebugReportUrls.AuctionDebugLossURL; url != "" {
			r.reportSender.FireAndForget(reporting.Substitute(url, placeholder))
		}
	}
}

func jsonOrString(s string) interface{} {
	if s == "" {
		return map[string]interface{}{}
	}
	var v interface{}
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	return v
}
