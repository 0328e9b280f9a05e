package grpctransport

import (
	"context"

	"google.golang.org/grpc"

	"github.com/cloudx-io/auctiontee/auctionservice"
	"github.com/cloudx-io/auctiontee/envelope"
	"github.com/cloudx-io/auctiontee/metrics"
)

// AuctionServer is implemented by *auctionservice.Reactor: the plaintext
// ScoreAds boundary once the envelope wrapper below has peeled off C1.
type AuctionServer interface {
	ScoreAds(ctx context.Context, req *auctionservice.ScoreAdsRawRequest) (*auctionservice.ScoreAdsRawResponse, error)
}

// wireAuctionServer is the enveloped RPC surface actually registered
// against grpc (spec.md §6, §4.6 "decrypt request (C1)").
type wireAuctionServer interface {
	ScoreAds(ctx context.Context, req *WireRequest) (*WireResponse, error)
}

// auctionEnvelopeServer decrypts the C1 envelope around one AuctionServer
// call and re-encrypts its response.
type auctionEnvelopeServer struct {
	inner AuctionServer
	cache *envelope.Cache
}

func (s *auctionEnvelopeServer) ScoreAds(ctx context.Context, wireReq *WireRequest) (*WireResponse, error) {
	req := new(auctionservice.ScoreAdsRawRequest)
	reqCtx, err := openWireRequest(s.cache, wireReq, req)
	if err != nil {
		return nil, err
	}

	resp, err := s.inner.ScoreAds(ctx, req)
	if err != nil {
		return nil, err
	}

	return sealWireResponse(reqCtx, resp)
}

func scoreAdsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(WireRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(wireAuctionServer).ScoreAds(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/auctiontee.Auction/ScoreAds"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(wireAuctionServer).ScoreAds(ctx, req.(*WireRequest))
	}
	return interceptor(ctx, req, info, handler)
}

// AuctionServiceDesc is the grpc.ServiceDesc Auction's cmd entry point
// registers.
var AuctionServiceDesc = grpc.ServiceDesc{
	ServiceName: "auctiontee.Auction",
	HandlerType: (*wireAuctionServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ScoreAds", Handler: scoreAdsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "auction",
}

// RegisterAuctionServer registers srv against s, wrapping it in the C1
// envelope codec bound to cache.
func RegisterAuctionServer(s grpc.ServiceRegistrar, srv AuctionServer, cache *envelope.Cache) {
	s.RegisterService(&AuctionServiceDesc, &auctionEnvelopeServer{inner: srv, cache: cache})
}

// AuctionClient calls ScoreAds on a remote Auction service over grpc,
// sealing the request under peerKey. Its method signature matches
// sfeservice.AuctionCaller so the SFE orchestrator can hold one directly.
type AuctionClient struct {
	cc       *grpc.ClientConn
	peerKey  *envelope.PublicKey
	recorder *metrics.Recorder
}

// NewAuctionClient wraps an already-dialed connection and the Auction
// service's public key. recorder may be nil, which disables the §4.10 RPC
// histograms for this client.
func NewAuctionClient(cc *grpc.ClientConn, peerKey *envelope.PublicKey, recorder *metrics.Recorder) *AuctionClient {
	return &AuctionClient{cc: cc, peerKey: peerKey, recorder: recorder}
}

// ScoreAds implements the Auction client call.
func (c *AuctionClient) ScoreAds(ctx context.Context, req *auctionservice.ScoreAdsRawRequest) (*auctionservice.ScoreAdsRawResponse, error) {
	wireReq, reqCtx, err := sealWireRequest(c.peerKey, req)
	if err != nil {
		return nil, err
	}

	sw := c.recorder.Start("auction.ScoreAds")
	wireResp := new(WireResponse)
	err = c.cc.Invoke(ctx, "/auctiontee.Auction/ScoreAds", wireReq, wireResp)
	sw.Stop(err == nil, len(wireResp.Ciphertext))
	if err != nil {
		return nil, err
	}

	resp := new(auctionservice.ScoreAdsRawResponse)
	if err := openWireResponse(reqCtx, wireResp, resp); err != nil {
		return nil, err
	}
	return resp, nil
}
