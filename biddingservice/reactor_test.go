package biddingservice

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/peterldowns/testy/check"

	"github.com/cloudx-io/auctiontee/core"
	"github.com/cloudx-io/auctiontee/dispatch"
	"github.com/cloudx-io/auctiontee/wrapper"
)

func newTestReactor(t *testing.T, adtechJS string) *Reactor {
	t.Helper()
	pool, err := dispatch.Init(dispatch.Config{NumWorkers: 2, QueueLen: 8})
	check.NoError(t, err)
	t.Cleanup(pool.Stop)

	check.NoError(t, pool.LoadSync(1, wrapper.BuyerWrappedCode(adtechJS)))
	return NewReactor(pool, 200)
}

const bidHighGenerateBid = `
function generateBid(ig, auctionSignals, buyerSignals, trustedSignals, deviceSignals) {
  return {render: "https://ad.example/" + ig.name, bid: 2.5, adComponents: []};
}
`

func TestGenerateBids_HappyPath(t *testing.T) {
	r := newTestReactor(t, bidHighGenerateBid)

	signals, _ := json.Marshal(map[string]interface{}{"key-1": map[string]interface{}{"v": 1}})

	resp, err := r.GenerateBids(context.Background(), &GenerateBidsRawRequest{
		InterestGroupsForBidding: []core.InterestGroup{
			{Name: "ig-1", BiddingSignalsKeys: []string{"key-1"}},
		},
		AuctionSignals: "{}",
		BuyerSignals:   "{}",
		BiddingSignals: signals,
	})
	check.NoError(t, err)
	check.Equal(t, 1, len(resp.Bids))
	check.Equal(t, "https://ad.example/ig-1", resp.Bids[0].Render)
	check.Equal(t, 2.5, resp.Bids[0].Bid)
	check.Equal(t, "ig-1", resp.Bids[0].InterestGroupName)
}

func TestGenerateBids_NoInterestGroups(t *testing.T) {
	r := newTestReactor(t, bidHighGenerateBid)
	_, err := r.GenerateBids(context.Background(), &GenerateBidsRawRequest{
		BiddingSignals: json.RawMessage(`{}`),
	})
	check.Error(t, err)
}

func TestGenerateBids_NoTrustedSignals(t *testing.T) {
	r := newTestReactor(t, bidHighGenerateBid)
	_, err := r.GenerateBids(context.Background(), &GenerateBidsRawRequest{
		InterestGroupsForBidding: []core.InterestGroup{{Name: "ig-1"}},
	})
	check.Error(t, err)
}

const dropZeroBidGenerateBid = `
function generateBid(ig) {
  return {render: "", bid: 0};
}
`

func TestGenerateBids_DropsZeroBidWithoutDebugUrls(t *testing.T) {
	r := newTestReactor(t, dropZeroBidGenerateBid)

	signals, _ := json.Marshal(map[string]interface{}{})
	resp, err := r.GenerateBids(context.Background(), &GenerateBidsRawRequest{
		InterestGroupsForBidding: []core.InterestGroup{{Name: "ig-1"}},
		AuctionSignals:           "{}",
		BuyerSignals:             "{}",
		BiddingSignals:           signals,
	})
	check.NoError(t, err)
	check.Equal(t, 0, len(resp.Bids))
}

const zeroBidWithDebugURLsGenerateBid = `
function generateBid(ig) {
  forDebuggingOnly.reportAdAuctionWin("https://track.example/win");
  return {render: "", bid: 0};
}
`

func TestGenerateBids_RetainsZeroBidWithDebugUrls(t *testing.T) {
	r := newTestReactor(t, zeroBidWithDebugURLsGenerateBid)

	signals, _ := json.Marshal(map[string]interface{}{})
	resp, err := r.GenerateBids(context.Background(), &GenerateBidsRawRequest{
		InterestGroupsForBidding: []core.InterestGroup{{Name: "ig-1"}},
		AuctionSignals:           "{}",
		BuyerSignals:             "{}",
		BiddingSignals:           signals,
		FeatureFlags:             FeatureFlags{EnableDebugURLGeneration: true},
	})
	check.NoError(t, err)
	check.Equal(t, 1, len(resp.Bids))
	check.Equal(t, float64(0), resp.Bids[0].Bid)
	check.Equal(t, "https://track.example/win", resp.Bids[0].DebugReportUrls.AuctionDebugWinURL)
}

const negativeBidWithDebugURLsGenerateBid = `
function generateBid(ig) {
  forDebuggingOnly.reportAdAuctionLoss("https://track.example/loss");
  return {render: "", bid: -5};
}
`

// A debug-only entry never carries its original bid value forward — a
// negative bid must not reach scoring's decimal sum.
func TestGenerateBids_ZeroesNegativeBidRetainedForDebugUrls(t *testing.T) {
	r := newTestReactor(t, negativeBidWithDebugURLsGenerateBid)

	signals, _ := json.Marshal(map[string]interface{}{})
	resp, err := r.GenerateBids(context.Background(), &GenerateBidsRawRequest{
		InterestGroupsForBidding: []core.InterestGroup{{Name: "ig-1"}},
		AuctionSignals:           "{}",
		BuyerSignals:             "{}",
		BiddingSignals:           signals,
		FeatureFlags:             FeatureFlags{EnableDebugURLGeneration: true},
	})
	check.NoError(t, err)
	check.Equal(t, 1, len(resp.Bids))
	check.Equal(t, float64(0), resp.Bids[0].Bid)
}

const throwingGenerateBid = `
function generateBid(ig) {
  throw new Error("boom");
}
`

func TestGenerateBids_OneBadIGDoesNotFailWholeRequest(t *testing.T) {
	r := newTestReactor(t, throwingGenerateBid)

	signals, _ := json.Marshal(map[string]interface{}{})
	resp, err := r.GenerateBids(context.Background(), &GenerateBidsRawRequest{
		InterestGroupsForBidding: []core.InterestGroup{{Name: "ig-1"}},
		AuctionSignals:           "{}",
		BuyerSignals:             "{}",
		BiddingSignals:           signals,
		FeatureFlags:             FeatureFlags{EnableLogging: true},
	})
	check.NoError(t, err)
	check.Equal(t, 0, len(resp.Bids))
}
