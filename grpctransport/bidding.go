package grpctransport

import (
	"context"

	"google.golang.org/grpc"

	"github.com/cloudx-io/auctiontee/biddingservice"
	"github.com/cloudx-io/auctiontee/envelope"
	"github.com/cloudx-io/auctiontee/metrics"
)

// BiddingServer is implemented by *biddingservice.Reactor: the plaintext
// GenerateBids boundary once the envelope wrapper below has peeled off C1.
type BiddingServer interface {
	GenerateBids(ctx context.Context, req *biddingservice.GenerateBidsRawRequest) (*biddingservice.GenerateBidsRawResponse, error)
}

// wireBiddingServer is the enveloped RPC surface actually registered
// against grpc (spec.md §6, §4.5 "decrypt request (C1)").
type wireBiddingServer interface {
	GenerateBids(ctx context.Context, req *WireRequest) (*WireResponse, error)
}

// biddingEnvelopeServer decrypts the C1 envelope around one BiddingServer
// call and re-encrypts its response.
type biddingEnvelopeServer struct {
	inner BiddingServer
	cache *envelope.Cache
}

func (s *biddingEnvelopeServer) GenerateBids(ctx context.Context, wireReq *WireRequest) (*WireResponse, error) {
	req := new(biddingservice.GenerateBidsRawRequest)
	reqCtx, err := openWireRequest(s.cache, wireReq, req)
	if err != nil {
		return nil, err
	}

	resp, err := s.inner.GenerateBids(ctx, req)
	if err != nil {
		return nil, err
	}

	return sealWireResponse(reqCtx, resp)
}

func generateBidsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(WireRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(wireBiddingServer).GenerateBids(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/auctiontee.Bidding/GenerateBids"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(wireBiddingServer).GenerateBids(ctx, req.(*WireRequest))
	}
	return interceptor(ctx, req, info, handler)
}

// BiddingServiceDesc is the grpc.ServiceDesc Bidding's cmd entry point
// registers.
var BiddingServiceDesc = grpc.ServiceDesc{
	ServiceName: "auctiontee.Bidding",
	HandlerType: (*wireBiddingServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GenerateBids", Handler: generateBidsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "bidding",
}

// RegisterBiddingServer registers srv against s, wrapping it in the C1
// envelope codec bound to cache.
func RegisterBiddingServer(s grpc.ServiceRegistrar, srv BiddingServer, cache *envelope.Cache) {
	s.RegisterService(&BiddingServiceDesc, &biddingEnvelopeServer{inner: srv, cache: cache})
}

// BiddingClient calls GenerateBids on a remote Bidding service over grpc,
// sealing the request under peerKey. Its method signature matches
// bfeservice.BiddingCaller so the BFE orchestrator can hold one directly.
type BiddingClient struct {
	cc       *grpc.ClientConn
	peerKey  *envelope.PublicKey
	recorder *metrics.Recorder
}

// NewBiddingClient wraps an already-dialed connection and the Bidding
// service's public key. recorder may be nil, which disables the §4.10 RPC
// histograms for this client.
func NewBiddingClient(cc *grpc.ClientConn, peerKey *envelope.PublicKey, recorder *metrics.Recorder) *BiddingClient {
	return &BiddingClient{cc: cc, peerKey: peerKey, recorder: recorder}
}

// GenerateBids implements the Bidding client call.
func (c *BiddingClient) GenerateBids(ctx context.Context, req *biddingservice.GenerateBidsRawRequest) (*biddingservice.GenerateBidsRawResponse, error) {
	wireReq, reqCtx, err := sealWireRequest(c.peerKey, req)
	if err != nil {
		return nil, err
	}

	sw := c.recorder.Start("bidding.GenerateBids")
	wireResp := new(WireResponse)
	err = c.cc.Invoke(ctx, "/auctiontee.Bidding/GenerateBids", wireReq, wireResp)
	sw.Stop(err == nil, len(wireResp.Ciphertext))
	if err != nil {
		return nil, err
	}

	resp := new(biddingservice.GenerateBidsRawResponse)
	if err := openWireResponse(reqCtx, wireResp, resp); err != nil {
		return nil, err
	}
	return resp, nil
}
