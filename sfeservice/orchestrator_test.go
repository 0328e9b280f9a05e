package sfeservice

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/peterldowns/testy/check"

	"github.com/cloudx-io/auctiontee/auctioncbor"
	"github.com/cloudx-io/auctiontee/auctionservice"
	"github.com/cloudx-io/auctiontee/bfeservice"
	"github.com/cloudx-io/auctiontee/core"
	"github.com/cloudx-io/auctiontee/envelope"
	"github.com/cloudx-io/auctiontee/metrics"
)

type staticFetcher struct {
	keys map[envelope.KeyID]*envelope.PrivateKey
}

func (f *staticFetcher) FetchPrivateKey(_ context.Context, id envelope.KeyID) (*envelope.PrivateKey, error) {
	k, ok := f.keys[id]
	if !ok {
		return nil, envelope.ErrUnknownKeyID
	}
	return k, nil
}

func newTestCache(t *testing.T, id envelope.KeyID) (*envelope.Cache, *envelope.PublicKey) {
	t.Helper()
	priv, pub, err := envelope.GenerateKeyPair(id)
	check.NoError(t, err)

	cache, err := envelope.NewCache(&staticFetcher{keys: map[envelope.KeyID]*envelope.PrivateKey{id: priv}})
	check.NoError(t, err)
	check.NoError(t, cache.Put(priv))

	return cache, pub
}

func sealedRequest(t *testing.T, pub *envelope.PublicKey, input *core.ProtectedAuctionInput) []byte {
	t.Helper()
	raw, err := auctioncbor.EncodeProtectedAuctionInput(input)
	check.NoError(t, err)

	ciphertext, _, err := envelope.EncodeRequest(pub, raw, envelope.CompressionNone)
	check.NoError(t, err)
	return ciphertext
}

func buyerInputCiphertext(t *testing.T, igs ...core.InterestGroup) []byte {
	t.Helper()
	compressed, err := auctioncbor.EncodeBuyerInput(&core.BuyerInput{InterestGroups: igs})
	check.NoError(t, err)
	return compressed
}

func decodeResult(t *testing.T, cache *envelope.Cache, ciphertext, respCiphertext []byte) *core.AuctionResult {
	t.Helper()
	_, reqCtx, err := envelope.DecodeRequest(cache, ciphertext)
	check.NoError(t, err)

	plaintext, err := envelope.DecodeResponse(reqCtx, respCiphertext)
	check.NoError(t, err)

	result, err := auctioncbor.DecodeAuctionResult(plaintext)
	check.NoError(t, err)
	return result
}

type fakeBuyers struct {
	bids map[string]*bfeservice.GetBidsRawResponse
	errs map[string]error
}

func (f *fakeBuyers) GetBids(_ context.Context, origin string, _ *bfeservice.GetBidsRawRequest) (*bfeservice.GetBidsRawResponse, error) {
	if err, ok := f.errs[origin]; ok {
		return nil, err
	}
	if resp, ok := f.bids[origin]; ok {
		return resp, nil
	}
	return nil, ErrNoBuyerStub
}

type fakeAuction struct {
	resp   *auctionservice.ScoreAdsRawResponse
	err    error
	req    *auctionservice.ScoreAdsRawRequest
	gotCtx context.Context
}

func (f *fakeAuction) ScoreAds(ctx context.Context, req *auctionservice.ScoreAdsRawRequest) (*auctionservice.ScoreAdsRawResponse, error) {
	f.req = req
	f.gotCtx = ctx
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

type fakeScoringSignals struct {
	body []byte
	err  error
}

func (f *fakeScoringSignals) FetchKeys(_ context.Context, _ time.Duration, _ []string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.body, nil
}

func baseAuctionConfig() AuctionConfig {
	return AuctionConfig{
		Seller:          "seller.example",
		BuyerList:       []string{"buyer-a.example"},
		SellerSignals:   "{}",
		AuctionSignals:  "{}",
	}
}

// S1 — happy path, one buyer, one IG.
func TestSelectAd_HappyPath(t *testing.T) {
	cache, pub := newTestCache(t, 1)

	input := &core.ProtectedAuctionInput{
		GenerationID:  "gen-1",
		PublisherName: "pub.example",
		BuyerInputCiphertext: map[string][]byte{
			"buyer-a.example": buyerInputCiphertext(t, core.InterestGroup{Name: "ig-1", AdRenderIds: []string{"r1"}}),
		},
	}
	ciphertext := sealedRequest(t, pub, input)

	buyers := &fakeBuyers{bids: map[string]*bfeservice.GetBidsRawResponse{
		"buyer-a.example": {Bids: []core.AdWithBid{{Render: "r1", Bid: 5, InterestGroupName: "ig-1", InterestGroupIndex: 0}}},
	}}
	auction := &fakeAuction{resp: &auctionservice.ScoreAdsRawResponse{Result: &core.AuctionResult{
		AdRenderURL: "r1", Bid: 5, Score: 2, InterestGroupOwner: "buyer-a.example", InterestGroupName: "ig-1",
	}}}

	orch := New(cache, buyers, auction, &fakeScoringSignals{body: []byte(`{"r1":[1]}`)}, nil, "")

	resp, err := orch.SelectAd(context.Background(), &SelectAdRawRequest{
		AuctionConfig:              baseAuctionConfig(),
		ProtectedAuctionCiphertext: ciphertext,
	})
	check.NoError(t, err)

	result := decodeResult(t, cache, ciphertext, resp.AuctionResultCiphertext)
	check.Equal(t, false, result.IsChaff)
	check.Equal(t, "r1", result.AdRenderURL)
	check.Equal(t, float64(5), result.Bid)
	check.Equal(t, []int32{0}, []int32(result.BiddingGroups["buyer-a.example"]))
	check.Equal(t, true, auction.req != nil)
	check.Equal(t, 1, len(auction.req.AdBids))
}

// S2 — chaff: generateBid returns bid=0.
func TestSelectAd_Chaff(t *testing.T) {
	cache, pub := newTestCache(t, 2)

	input := &core.ProtectedAuctionInput{
		GenerationID:  "gen-2",
		PublisherName: "pub.example",
		BuyerInputCiphertext: map[string][]byte{
			"buyer-a.example": buyerInputCiphertext(t, core.InterestGroup{Name: "ig-1", AdRenderIds: []string{"r1"}}),
		},
	}
	ciphertext := sealedRequest(t, pub, input)

	buyers := &fakeBuyers{bids: map[string]*bfeservice.GetBidsRawResponse{
		"buyer-a.example": {Bids: []core.AdWithBid{{Render: "r1", Bid: 0, InterestGroupName: "ig-1", InterestGroupIndex: 0}}},
	}}
	auction := &fakeAuction{}

	orch := New(cache, buyers, auction, &fakeScoringSignals{}, nil, "")

	resp, err := orch.SelectAd(context.Background(), &SelectAdRawRequest{
		AuctionConfig:              baseAuctionConfig(),
		ProtectedAuctionCiphertext: ciphertext,
	})
	check.NoError(t, err)

	result := decodeResult(t, cache, ciphertext, resp.AuctionResultCiphertext)
	check.Equal(t, true, result.IsChaff)
	check.Equal(t, 0, len(result.BiddingGroups))
	check.Equal(t, true, result.Error == nil)
	// A zero-bid, non-positive candidate never reaches the auction call.
	check.Equal(t, true, auction.req == nil)
}

// S5 — malformed CBOR: both generation_id and publisher_name have the
// wrong type. Expected: encrypted error response naming both fields.
func TestSelectAd_MalformedInput_ReturnsClientVisibleError(t *testing.T) {
	cache, pub := newTestCache(t, 3)

	// Bypass the typed encoder so both a bytes-instead-of-string
	// generation_id and an int-instead-of-string publisher_name land in
	// the wire bytes, matching scenario S5.
	badMap := map[string]interface{}{
		"generationId":  []byte{0x01, 0x02},
		"publisherName": 42,
		"buyerInput":    map[string][]byte{},
	}
	raw, err := cbor.Marshal(badMap)
	check.NoError(t, err)

	ciphertext, _, err := envelope.EncodeRequest(pub, raw, envelope.CompressionNone)
	check.NoError(t, err)

	orch := New(cache, &fakeBuyers{}, &fakeAuction{}, &fakeScoringSignals{}, nil, "")

	resp, err := orch.SelectAd(context.Background(), &SelectAdRawRequest{
		AuctionConfig:              baseAuctionConfig(),
		ProtectedAuctionCiphertext: ciphertext,
	})
	check.NoError(t, err)

	result := decodeResult(t, cache, ciphertext, resp.AuctionResultCiphertext)
	check.Equal(t, true, result.Error != nil)
	check.Equal(t, int32(400), result.Error.Code)
	check.Equal(t, true, containsAll(result.Error.Message, "generation_id", "publisher_name"))
}

// One buyer's BuyerInput fails to gunzip/decode; another buyer's decodes
// fine. The auction proceeds on the survivor rather than discarding the
// whole request (spec.md §4.8: per-buyer decompression errors "are
// collected but do not abort").
func TestSelectAd_OneBuyerInputUndecodable_OthersStillRun(t *testing.T) {
	cache, pub := newTestCache(t, 9)

	input := &core.ProtectedAuctionInput{
		GenerationID:  "gen-9",
		PublisherName: "pub.example",
		BuyerInputCiphertext: map[string][]byte{
			"buyer-a.example": buyerInputCiphertext(t, core.InterestGroup{Name: "ig-a", AdRenderIds: []string{"ra"}}),
			"buyer-b.example": []byte("not gzip, not cbor"),
		},
	}
	ciphertext := sealedRequest(t, pub, input)

	buyers := &fakeBuyers{bids: map[string]*bfeservice.GetBidsRawResponse{
		"buyer-a.example": {Bids: []core.AdWithBid{{Render: "ra", Bid: 3, InterestGroupName: "ig-a", InterestGroupIndex: 0}}},
	}}
	auction := &fakeAuction{resp: &auctionservice.ScoreAdsRawResponse{Result: &core.AuctionResult{
		AdRenderURL: "ra", Bid: 3, Score: 1, InterestGroupOwner: "buyer-a.example",
	}}}

	cfg := baseAuctionConfig()
	cfg.BuyerList = []string{"buyer-a.example", "buyer-b.example"}

	orch := New(cache, buyers, auction, &fakeScoringSignals{}, nil, "")

	resp, err := orch.SelectAd(context.Background(), &SelectAdRawRequest{
		AuctionConfig:              cfg,
		ProtectedAuctionCiphertext: ciphertext,
	})
	check.NoError(t, err)

	result := decodeResult(t, cache, ciphertext, resp.AuctionResultCiphertext)
	check.Equal(t, true, result.Error == nil)
	check.Equal(t, false, result.IsChaff)
	check.Equal(t, "ra", result.AdRenderURL)
}

// S6 — one buyer times out (reported as an error by the caller), another
// succeeds. Auction proceeds with the survivor's bid only.
func TestSelectAd_PartialBuyerFailure(t *testing.T) {
	cache, pub := newTestCache(t, 4)

	input := &core.ProtectedAuctionInput{
		GenerationID:  "gen-6",
		PublisherName: "pub.example",
		BuyerInputCiphertext: map[string][]byte{
			"buyer-a.example": buyerInputCiphertext(t, core.InterestGroup{Name: "ig-a", AdRenderIds: []string{"ra"}}),
			"buyer-b.example": buyerInputCiphertext(t, core.InterestGroup{Name: "ig-b", AdRenderIds: []string{"rb"}}),
		},
	}
	ciphertext := sealedRequest(t, pub, input)

	buyers := &fakeBuyers{
		bids: map[string]*bfeservice.GetBidsRawResponse{
			"buyer-a.example": {Bids: []core.AdWithBid{{Render: "ra", Bid: 3, InterestGroupName: "ig-a", InterestGroupIndex: 0}}},
		},
		errs: map[string]error{
			"buyer-b.example": errors.New("deadline exceeded"),
		},
	}
	auction := &fakeAuction{resp: &auctionservice.ScoreAdsRawResponse{Result: &core.AuctionResult{
		AdRenderURL: "ra", Bid: 3, Score: 1, InterestGroupOwner: "buyer-a.example",
	}}}

	cfg := baseAuctionConfig()
	cfg.BuyerList = []string{"buyer-a.example", "buyer-b.example"}

	orch := New(cache, buyers, auction, &fakeScoringSignals{}, nil, "")

	resp, err := orch.SelectAd(context.Background(), &SelectAdRawRequest{
		AuctionConfig:              cfg,
		ProtectedAuctionCiphertext: ciphertext,
	})
	check.NoError(t, err)

	result := decodeResult(t, cache, ciphertext, resp.AuctionResultCiphertext)
	check.Equal(t, false, result.IsChaff)
	check.Equal(t, "ra", result.AdRenderURL)
	check.Equal(t, 1, len(auction.req.AdBids))
	_, hasB := result.BiddingGroups["buyer-b.example"]
	check.Equal(t, false, hasB)
}

// P7: if every buyer fails, SFE returns an error rather than deadlocking.
func TestSelectAd_AllBuyersFail(t *testing.T) {
	cache, pub := newTestCache(t, 5)

	input := &core.ProtectedAuctionInput{
		GenerationID:  "gen-7",
		PublisherName: "pub.example",
		BuyerInputCiphertext: map[string][]byte{
			"buyer-a.example": buyerInputCiphertext(t, core.InterestGroup{Name: "ig-a", AdRenderIds: []string{"ra"}}),
		},
	}
	ciphertext := sealedRequest(t, pub, input)

	buyers := &fakeBuyers{errs: map[string]error{"buyer-a.example": errors.New("unreachable")}}

	orch := New(cache, buyers, &fakeAuction{}, &fakeScoringSignals{}, nil, "")

	_, err := orch.SelectAd(context.Background(), &SelectAdRawRequest{
		AuctionConfig:              baseAuctionConfig(),
		ProtectedAuctionCiphertext: ciphertext,
	})
	check.Error(t, err)
	check.Equal(t, true, errors.Is(err, ErrAllBuyersFailed))
}

func TestSelectAd_InvalidAuctionConfig(t *testing.T) {
	cache, _ := newTestCache(t, 6)
	orch := New(cache, &fakeBuyers{}, &fakeAuction{}, &fakeScoringSignals{}, nil, "")

	cfg := baseAuctionConfig()
	cfg.BuyerList = nil

	_, err := orch.SelectAd(context.Background(), &SelectAdRawRequest{AuctionConfig: cfg})
	check.Error(t, err)
	check.Equal(t, true, errors.Is(err, ErrInvalidAuctionConfig))
}

// P8: a request whose ConsentedDebugConfig.Token exactly matches the
// server's consentedDebugToken attaches a Consented ContextMap that flows
// through to every downstream call, including the Auction RPC.
func TestSelectAd_ConsentedDebugToken_MatchesServerSecret(t *testing.T) {
	cache, pub := newTestCache(t, 7)

	input := &core.ProtectedAuctionInput{
		GenerationID:  "gen-7",
		PublisherName: "pub.example",
		BuyerInputCiphertext: map[string][]byte{
			"buyer-a.example": buyerInputCiphertext(t, core.InterestGroup{Name: "ig-1", AdRenderIds: []string{"r1"}}),
		},
		ConsentedDebugConfig: &core.ConsentedDebugConfig{IsConsented: true, Token: "shared-secret"},
	}
	ciphertext := sealedRequest(t, pub, input)

	buyers := &fakeBuyers{bids: map[string]*bfeservice.GetBidsRawResponse{
		"buyer-a.example": {Bids: []core.AdWithBid{{Render: "r1", Bid: 5, InterestGroupName: "ig-1", InterestGroupIndex: 0}}},
	}}
	auction := &fakeAuction{resp: &auctionservice.ScoreAdsRawResponse{Result: &core.AuctionResult{
		AdRenderURL: "r1", Bid: 5, Score: 2, InterestGroupOwner: "buyer-a.example", InterestGroupName: "ig-1",
	}}}

	orch := New(cache, buyers, auction, &fakeScoringSignals{}, nil, "shared-secret")

	_, err := orch.SelectAd(context.Background(), &SelectAdRawRequest{
		AuctionConfig:              baseAuctionConfig(),
		ProtectedAuctionCiphertext: ciphertext,
	})
	check.NoError(t, err)

	check.Equal(t, true, auction.gotCtx != nil)
	cm := metrics.FromContext(auction.gotCtx)
	check.Equal(t, true, cm != nil)
	check.Equal(t, true, cm.Consented)
	check.Equal(t, "gen-7", cm.GenerationID)
}

// A mismatched token never sets Consented, even though the request still
// proceeds normally.
func TestSelectAd_ConsentedDebugToken_Mismatch(t *testing.T) {
	cache, pub := newTestCache(t, 8)

	input := &core.ProtectedAuctionInput{
		GenerationID:  "gen-8",
		PublisherName: "pub.example",
		BuyerInputCiphertext: map[string][]byte{
			"buyer-a.example": buyerInputCiphertext(t, core.InterestGroup{Name: "ig-1", AdRenderIds: []string{"r1"}}),
		},
		ConsentedDebugConfig: &core.ConsentedDebugConfig{IsConsented: true, Token: "wrong-token"},
	}
	ciphertext := sealedRequest(t, pub, input)

	buyers := &fakeBuyers{bids: map[string]*bfeservice.GetBidsRawResponse{
		"buyer-a.example": {Bids: []core.AdWithBid{{Render: "r1", Bid: 5, InterestGroupName: "ig-1", InterestGroupIndex: 0}}},
	}}
	auction := &fakeAuction{resp: &auctionservice.ScoreAdsRawResponse{Result: &core.AuctionResult{
		AdRenderURL: "r1", Bid: 5, Score: 2, InterestGroupOwner: "buyer-a.example", InterestGroupName: "ig-1",
	}}}

	orch := New(cache, buyers, auction, &fakeScoringSignals{}, nil, "shared-secret")

	_, err := orch.SelectAd(context.Background(), &SelectAdRawRequest{
		AuctionConfig:              baseAuctionConfig(),
		ProtectedAuctionCiphertext: ciphertext,
	})
	check.NoError(t, err)

	cm := metrics.FromContext(auction.gotCtx)
	check.Equal(t, true, cm != nil)
	check.Equal(t, false, cm.Consented)
}

func containsAll(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if !jsonContains(s, sub) {
			return false
		}
	}
	return true
}

func jsonContains(haystack, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}
