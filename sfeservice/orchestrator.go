package sfeservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/cloudx-io/auctiontee/auctioncbor"
	"github.com/cloudx-io/auctiontee/auctionservice"
	"github.com/cloudx-io/auctiontee/bfeservice"
	"github.com/cloudx-io/auctiontee/core"
	"github.com/cloudx-io/auctiontee/envelope"
	"github.com/cloudx-io/auctiontee/metrics"
	"github.com/cloudx-io/auctiontee/reporting"
)

const (
	defaultBuyerTimeout          = 1000 * time.Millisecond
	defaultScoringSignalsTimeout = 500 * time.Millisecond
)

// Errors surfaced as plain gRPC status by the transport layer: ad-server
// config problems and true fan-out/auction failures never travel inside the
// encrypted envelope (spec.md §7).
var (
	ErrMissingCiphertext    = errors.New("sfeservice: neither protected_auction_ciphertext nor protected_audience_ciphertext set")
	ErrInvalidAuctionConfig = errors.New("sfeservice: invalid auction_config")
	ErrCancelled            = errors.New("sfeservice: request cancelled")
	ErrAllBuyersFailed      = errors.New("sfeservice: every buyer failed")
	ErrAuctionFailed        = errors.New("sfeservice: auction call failed")
)

// Orchestrator drives one SelectAd call end to end: decode, validate, fan
// out to buyers, collate, fetch scoring signals, score, and re-encrypt
// (spec.md §4.8, the hardest component in the system).
type Orchestrator struct {
	keyCache            *envelope.Cache
	buyers              BuyerCaller
	auction             AuctionCaller
	scoringSignals      ScoringSignalsFetcher
	reportSender        *reporting.Sender
	consentedDebugToken string
}

// New builds an Orchestrator from its collaborators. reportSender may be
// nil in tests that don't exercise debug reporting. consentedDebugToken is
// the server-side secret P8 compares a request's ConsentedDebugConfig.Token
// against (spec.md §4.10, CONSENTED_DEBUG_TOKEN); empty disables the gate
// entirely, matching metrics.New's "serverToken != \"\"" check.
func New(keyCache *envelope.Cache, buyers BuyerCaller, auction AuctionCaller, scoringSignals ScoringSignalsFetcher, reportSender *reporting.Sender, consentedDebugToken string) *Orchestrator {
	return &Orchestrator{
		keyCache:            keyCache,
		buyers:              buyers,
		auction:             auction,
		scoringSignals:      scoringSignals,
		reportSender:        reportSender,
		consentedDebugToken: consentedDebugToken,
	}
}

// buyerResult is one buyer's outcome from the fan-out step, tracked in the
// shared "count-down-to-zero" collation map (spec.md §4.8 Collation).
type buyerResult struct {
	origin string
	status buyerStatus
	bids   []core.AdWithBid
}

// SelectAd implements C8's New → ... → Done state machine (spec.md §4.8).
func (o *Orchestrator) SelectAd(ctx context.Context, req *SelectAdRawRequest) (*SelectAdRawResponse, error) {
	// New: ad-server-visible auction_config validation happens before any
	// decrypt attempt and is never returned inside the encrypted envelope.
	if err := validateAuctionConfig(&req.AuctionConfig); err != nil {
		return nil, err
	}

	ciphertext, clientType := selectCiphertext(req)
	if len(ciphertext) == 0 {
		return nil, ErrMissingCiphertext
	}

	payload, reqCtx, err := envelope.DecodeRequest(o.keyCache, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("sfeservice: decrypt request: %w", err)
	}
	// Decrypted.

	acc := auctioncbor.NewAccumulator(false)
	input := decodeAuctionInput(payload, clientType, acc)
	if acc.HasIssues() {
		return o.encodeResult(reqCtx, clientType, &core.AuctionResult{
			Error: &core.ClientError{Code: core.ClientSideErrorCode, Message: acc.JoinMessages(auctioncbor.ClientVisible)},
		})
	}

	var consentedToken string
	if input.ConsentedDebugConfig != nil {
		consentedToken = input.ConsentedDebugConfig.Token
	}
	cm := metrics.New(input.GenerationID, consentedToken, o.consentedDebugToken)
	ctx = metrics.WithContextMap(ctx, cm)
	if metrics.ShouldLogVerbose(ctx) {
		glog.Infof("sfeservice: consented debug request generation_id=%s adtech_debug_id=%s buyers=%v",
			cm.GenerationID, cm.AdtechDebugID, req.AuctionConfig.BuyerList)
	}

	// Per-buyer decode failures are collected on their own accumulator and
	// never gate the abort decision by themselves (spec.md §4.8: "errors are
	// collected but do not abort") — only the case where every buyer's input
	// failed to decode or came back interest-group-empty does.
	buyerAcc := auctioncbor.NewAccumulator(false)
	buyerInputsByOrigin := decodeBuyerInputs(input, buyerAcc)
	if len(buyerInputsByOrigin) == 0 {
		buyerAcc.Add(auctioncbor.ClientVisible, core.ClientSideErrorCode, "buyer_input",
			"no usable buyer input with at least one interest group")
		return o.encodeResult(reqCtx, clientType, &core.AuctionResult{
			Error: &core.ClientError{Code: core.ClientSideErrorCode, Message: buyerAcc.JoinMessages(auctioncbor.ClientVisible)},
		})
	}

	// FanOut.
	outcomes := o.fanOut(ctx, req, input, buyerInputsByOrigin)

	// Collated.
	if ctx.Err() != nil {
		return nil, ErrCancelled
	}

	fannedOut, failed := 0, 0
	bidsByOwner := make(map[string][]core.AdWithBid, len(outcomes))
	for _, oc := range outcomes {
		if oc.status == statusSkipped {
			continue
		}
		fannedOut++
		if oc.status == statusError {
			failed++
			continue
		}
		if len(oc.bids) > 0 {
			bidsByOwner[oc.origin] = oc.bids
		}
	}

	if fannedOut > 0 && failed == fannedOut {
		return nil, ErrAllBuyersFailed
	}

	biddingGroups := core.BuildBiddingGroups(bidsByOwner)

	// Every surviving bid — including zero-bid entries retained purely to
	// carry debug URLs to scoring (spec.md §4.5 point 4) — is a scoring
	// candidate. Only a strictly positive bid decides chaff vs. Scored.
	var candidates []core.AdWithBid
	hasPositiveBid := false
	for _, bids := range bidsByOwner {
		candidates = append(candidates, bids...)
		for _, b := range bids {
			if b.Bid > 0 {
				hasPositiveBid = true
			}
		}
	}

	if !hasPositiveBid {
		return o.encodeResult(reqCtx, clientType, &core.AuctionResult{IsChaff: true, BiddingGroups: biddingGroups})
	}

	// Scored.
	scoringSignals := o.fetchScoringSignals(ctx, req, candidates)

	scoreResp, err := o.auction.ScoreAds(ctx, &auctionservice.ScoreAdsRawRequest{
		AdBids:                           candidates,
		AuctionSignals:                   req.AuctionConfig.AuctionSignals,
		SellerSignals:                    req.AuctionConfig.SellerSignals,
		ScoringSignals:                   scoringSignals,
		PublisherHostname:                input.PublisherName,
		EnableDebugReporting:             input.EnableDebugReporting,
		PerBuyerSignals:                  req.AuctionConfig.PerBuyerSignals,
		Seller:                           req.AuctionConfig.Seller,
		EnableReportResultURLGeneration:  req.AuctionConfig.EnableReportResultURLGeneration,
		EnableReportWinURLGeneration:     req.AuctionConfig.EnableReportWinURLGeneration,
	})
	if err != nil {
		glog.Errorf("sfeservice: ScoreAds failed: %v", err)
		return nil, fmt.Errorf("%w: %v", ErrAuctionFailed, err)
	}

	result := scoreResp.Result
	result.BiddingGroups = biddingGroups

	// Encoded, Padded (inside encodeResult) -> Done.
	return o.encodeResult(reqCtx, clientType, result)
}

// fanOut issues GetBids to every buyer in auction_config.buyer_list that has
// a matching decoded BuyerInput, in parallel, and blocks until every one has
// reported (spec.md §4.8 Fan-out/Collation). The outcomes map is written to
// only through mu, and never read until wg.Wait returns, matching §4.8's
// concurrency guarantee.
func (o *Orchestrator) fanOut(ctx context.Context, req *SelectAdRawRequest, input *core.ProtectedAuctionInput, buyerInputs map[string]*core.BuyerInput) map[string]buyerResult {
	buyerTimeout := time.Duration(req.BuyerTimeoutMS) * time.Millisecond
	if buyerTimeout <= 0 {
		buyerTimeout = defaultBuyerTimeout
	}

	outcomes := make(map[string]buyerResult, len(req.AuctionConfig.BuyerList))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, origin := range req.AuctionConfig.BuyerList {
		bi, ok := buyerInputs[origin]
		if !ok {
			mu.Lock()
			outcomes[origin] = buyerResult{origin: origin, status: statusSkipped}
			mu.Unlock()
			continue
		}

		wg.Add(1)
		go func(origin string, bi *core.BuyerInput) {
			defer wg.Done()

			buyerCtx, cancel := context.WithTimeout(ctx, buyerTimeout)
			defer cancel()

			resp, err := o.buyers.GetBids(buyerCtx, origin, &bfeservice.GetBidsRawRequest{
				BuyerInput:           *bi,
				AuctionSignals:       req.AuctionConfig.AuctionSignals,
				BuyerSignals:         req.AuctionConfig.PerBuyerSignals[origin],
				PublisherName:        input.PublisherName,
				Seller:               req.AuctionConfig.Seller,
				EnableDebugReporting: input.EnableDebugReporting,
			})

			result := buyerResult{origin: origin}
			switch {
			case errors.Is(err, ErrNoBuyerStub):
				result.status = statusSkipped
			case err != nil:
				glog.Warningf("sfeservice: GetBids failed for buyer %s: %v", origin, err)
				result.status = statusError
			case len(resp.Bids) == 0:
				result.status = statusEmptyResponse
			default:
				result.status = statusSuccess
				result.bids = stampOwner(resp.Bids, origin)
			}

			mu.Lock()
			outcomes[origin] = result
			mu.Unlock()
		}(origin, bi)
	}

	wg.Wait()
	return outcomes
}

// stampOwner sets InterestGroupOwner to origin on a copy of each bid. The
// SFE is the only place this can be trusted to happen: it alone knows which
// buyer origin a GetBids response came from, never from client-supplied
// data (spec.md §3 invariant).
func stampOwner(bids []core.AdWithBid, origin string) []core.AdWithBid {
	out := make([]core.AdWithBid, len(bids))
	for i, b := range bids {
		b.InterestGroupOwner = origin
		out[i] = b
	}
	return out
}

// fetchScoringSignals unions every surviving bid's render URL (and
// component render URLs), fetches them from the seller KV client, and
// degrades to empty signals on failure so the auction call still proceeds
// (spec.md §4.8 Scoring-signals fetch, §7 KVFailure).
func (o *Orchestrator) fetchScoringSignals(ctx context.Context, req *SelectAdRawRequest, bids []core.AdWithBid) json.RawMessage {
	empty := json.RawMessage(`{}`)

	keys := renderURLKeys(bids)
	if len(keys) == 0 || o.scoringSignals == nil {
		return empty
	}

	timeout := time.Duration(req.ScoringSignalsTimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = defaultScoringSignalsTimeout
	}

	body, err := o.scoringSignals.FetchKeys(ctx, timeout, keys)
	if err != nil {
		glog.Warningf("sfeservice: scoring signals fetch failed, degrading to empty signals: %v", err)
		return empty
	}
	return json.RawMessage(body)
}

func renderURLKeys(bids []core.AdWithBid) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, b := range bids {
		if b.Render != "" && !seen[b.Render] {
			seen[b.Render] = true
			keys = append(keys, b.Render)
		}
		for _, c := range b.AdComponents {
			if c != "" && !seen[c] {
				seen[c] = true
				keys = append(keys, c)
			}
		}
	}
	sort.Strings(keys)
	return keys
}

// encodeResult CBOR-encodes, frames+gzips, pads, and AEAD-seals result —
// the Encoded -> Padded -> Done leg of the state machine that every return
// path (winner, chaff, client-visible error) funnels through, so P3's
// padding invariant always holds regardless of outcome.
func (o *Orchestrator) encodeResult(reqCtx *envelope.RequestContext, _ ClientType, result *core.AuctionResult) (*SelectAdRawResponse, error) {
	raw, err := auctioncbor.EncodeAuctionResult(result)
	if err != nil {
		return nil, fmt.Errorf("sfeservice: encode auction result: %w", err)
	}

	ciphertext, err := envelope.EncodeResponse(reqCtx, raw, envelope.CompressionGzip)
	if err != nil {
		return nil, fmt.Errorf("sfeservice: seal response: %w", err)
	}

	return &SelectAdRawResponse{AuctionResultCiphertext: ciphertext}, nil
}

func selectCiphertext(req *SelectAdRawRequest) ([]byte, ClientType) {
	if len(req.ProtectedAuctionCiphertext) > 0 {
		return req.ProtectedAuctionCiphertext, ClientBrowser
	}
	return req.ProtectedAudienceCiphertext, ClientApp
}

// validateAuctionConfig checks the ad-server-visible fields of
// auction_config: an empty seller, buyer_list, auction_signals or
// seller_signals is an ErrInvalidAuctionConfig. The seller is only checked
// for being non-empty; it is not compared against the deployment's own
// seller origin.
func validateAuctionConfig(cfg *AuctionConfig) error {
	switch {
	case cfg.Seller == "":
		return fmt.Errorf("%w: seller is required", ErrInvalidAuctionConfig)
	case len(cfg.BuyerList) == 0:
		return fmt.Errorf("%w: buyer_list must not be empty", ErrInvalidAuctionConfig)
	case cfg.AuctionSignals == "":
		return fmt.Errorf("%w: auction_signals must not be empty", ErrInvalidAuctionConfig)
	case cfg.SellerSignals == "":
		return fmt.Errorf("%w: seller_signals must not be empty", ErrInvalidAuctionConfig)
	}
	return nil
}
