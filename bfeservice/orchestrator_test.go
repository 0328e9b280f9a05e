package bfeservice

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/peterldowns/testy/check"

	"github.com/cloudx-io/auctiontee/biddingservice"
	"github.com/cloudx-io/auctiontee/core"
)

type fakeBidding struct {
	req  *biddingservice.GenerateBidsRawRequest
	resp *biddingservice.GenerateBidsRawResponse
	err  error
}

func (f *fakeBidding) GenerateBids(ctx context.Context, req *biddingservice.GenerateBidsRawRequest) (*biddingservice.GenerateBidsRawResponse, error) {
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

type fakeSignals struct {
	body []byte
	err  error
	gotKeys []string
}

func (f *fakeSignals) FetchKeys(ctx context.Context, timeout time.Duration, keys []string) ([]byte, error) {
	f.gotKeys = keys
	if f.err != nil {
		return nil, f.err
	}
	return f.body, nil
}

func buyerInput() core.BuyerInput {
	return core.BuyerInput{
		InterestGroups: []core.InterestGroup{
			{Name: "ig-1", AdRenderIds: []string{"r1"}, BiddingSignalsKeys: []string{"r1", "shared"}},
			{Name: "ig-2", AdRenderIds: []string{"r2"}, BiddingSignalsKeys: []string{"r2", "shared"}},
		},
	}
}

func TestGetBids_FetchesSignalsAndCallsBidding(t *testing.T) {
	signals := &fakeSignals{body: []byte(`{"r1":[1]}`)}
	bidding := &fakeBidding{resp: &biddingservice.GenerateBidsRawResponse{
		Bids: []core.AdWithBid{{Render: "r1", Bid: 5}},
	}}

	o := New(bidding, signals)
	resp, err := o.GetBids(context.Background(), &GetBidsRawRequest{
		BuyerInput:     buyerInput(),
		AuctionSignals: "{}",
		BuyerSignals:   "{}",
	})

	check.NoError(t, err)
	check.Equal(t, 1, len(resp.Bids))
	check.Equal(t, []string{"r1", "r2", "shared"}, signals.gotKeys)
	check.Equal(t, json.RawMessage(`{"r1":[1]}`), bidding.req.BiddingSignals)
}

func TestGetBids_SignalsFailureDegradesToEmpty(t *testing.T) {
	signals := &fakeSignals{err: errors.New("kv unavailable")}
	bidding := &fakeBidding{resp: &biddingservice.GenerateBidsRawResponse{}}

	o := New(bidding, signals)
	_, err := o.GetBids(context.Background(), &GetBidsRawRequest{BuyerInput: buyerInput()})

	check.NoError(t, err)
	check.Equal(t, json.RawMessage(`{}`), bidding.req.BiddingSignals)
}

func TestGetBids_RequiredSignalsFailurePropagates(t *testing.T) {
	signals := &fakeSignals{err: errors.New("kv unavailable")}
	bidding := &fakeBidding{resp: &biddingservice.GenerateBidsRawResponse{}}

	o := New(bidding, signals)
	_, err := o.GetBids(context.Background(), &GetBidsRawRequest{
		BuyerInput:            buyerInput(),
		RequireBiddingSignals: true,
	})

	check.Error(t, err)
}

func TestGetBids_BiddingFailurePropagates(t *testing.T) {
	signals := &fakeSignals{body: []byte(`{}`)}
	bidding := &fakeBidding{err: errors.New("bidding unreachable")}

	o := New(bidding, signals)
	_, err := o.GetBids(context.Background(), &GetBidsRawRequest{BuyerInput: buyerInput()})

	check.Error(t, err)
}
