package grpctransport

import (
	"context"
	"testing"

	"github.com/peterldowns/testy/check"

	"github.com/cloudx-io/auctiontee/bfeservice"
	"github.com/cloudx-io/auctiontee/core"
	"github.com/cloudx-io/auctiontee/envelope"
)

type fakeBFEServer struct {
	req  *bfeservice.GetBidsRawRequest
	resp *bfeservice.GetBidsRawResponse
}

func (f *fakeBFEServer) GetBids(_ context.Context, req *bfeservice.GetBidsRawRequest) (*bfeservice.GetBidsRawResponse, error) {
	f.req = req
	return f.resp, nil
}

// Every backend hop (BFE, Bidding, Auction) opens its own C1 envelope
// rather than trusting a plaintext caller: sealWireRequest/openWireRequest
// on the way in and sealWireResponse/openWireResponse on the way out must
// round-trip the same way sfeservice's own decrypt/encrypt does.
func TestBFEEnvelopeServer_DecryptCallEncryptRoundTrip(t *testing.T) {
	priv, pub, err := envelope.GenerateKeyPair(7)
	check.NoError(t, err)

	cache, err := envelope.NewCache(nil)
	check.NoError(t, err)
	check.NoError(t, cache.Put(priv))

	inner := &fakeBFEServer{resp: &bfeservice.GetBidsRawResponse{
		Bids: []core.AdWithBid{{Render: "r1", Bid: 3}},
	}}
	server := &bfeEnvelopeServer{inner: inner, cache: cache}

	req := &bfeservice.GetBidsRawRequest{PublisherName: "pub.example", Seller: "seller.example"}
	wireReq, reqCtx, err := sealWireRequest(pub, req)
	check.NoError(t, err)

	wireResp, err := server.GetBids(context.Background(), wireReq)
	check.NoError(t, err)

	check.Equal(t, "pub.example", inner.req.PublisherName)

	resp := new(bfeservice.GetBidsRawResponse)
	check.NoError(t, openWireResponse(reqCtx, wireResp, resp))
	check.Equal(t, 1, len(resp.Bids))
	check.Equal(t, "r1", resp.Bids[0].Render)
}

// A WireRequest sealed under the wrong recipient key must fail to decrypt
// rather than silently falling through to plaintext.
func TestBFEEnvelopeServer_WrongKey_Fails(t *testing.T) {
	priv, _, err := envelope.GenerateKeyPair(8)
	check.NoError(t, err)
	_, otherPub, err := envelope.GenerateKeyPair(9)
	check.NoError(t, err)

	cache, err := envelope.NewCache(nil)
	check.NoError(t, err)
	check.NoError(t, cache.Put(priv))

	server := &bfeEnvelopeServer{inner: &fakeBFEServer{}, cache: cache}

	wireReq, _, err := sealWireRequest(otherPub, &bfeservice.GetBidsRawRequest{})
	check.NoError(t, err)

	_, err = server.GetBids(context.Background(), wireReq)
	check.Error(t, err)
}
