package grpctransport

import (
	"context"

	"google.golang.org/grpc"

	"github.com/cloudx-io/auctiontee/bfeservice"
	"github.com/cloudx-io/auctiontee/envelope"
	"github.com/cloudx-io/auctiontee/metrics"
)

// BFEServer is implemented by *bfeservice.Orchestrator: the plaintext
// GetBids boundary once the envelope wrapper below has peeled off C1.
type BFEServer interface {
	GetBids(ctx context.Context, req *bfeservice.GetBidsRawRequest) (*bfeservice.GetBidsRawResponse, error)
}

// wireBFEServer is the enveloped RPC surface actually registered against
// grpc: {key_id, request_ciphertext} in, {response_ciphertext} out
// (spec.md §6, §4.7 steps 1 and 4).
type wireBFEServer interface {
	GetBids(ctx context.Context, req *WireRequest) (*WireResponse, error)
}

// bfeEnvelopeServer decrypts the C1 envelope around one BFEServer call and
// re-encrypts its response, so the domain orchestrator never touches key
// material directly.
type bfeEnvelopeServer struct {
	inner BFEServer
	cache *envelope.Cache
}

func (s *bfeEnvelopeServer) GetBids(ctx context.Context, wireReq *WireRequest) (*WireResponse, error) {
	req := new(bfeservice.GetBidsRawRequest)
	reqCtx, err := openWireRequest(s.cache, wireReq, req)
	if err != nil {
		return nil, err
	}

	resp, err := s.inner.GetBids(ctx, req)
	if err != nil {
		return nil, err
	}

	return sealWireResponse(reqCtx, resp)
}

func getBidsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(WireRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(wireBFEServer).GetBids(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/auctiontee.BFE/GetBids"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(wireBFEServer).GetBids(ctx, req.(*WireRequest))
	}
	return interceptor(ctx, req, info, handler)
}

// BFEServiceDesc is the grpc.ServiceDesc BFE's cmd entry point registers.
var BFEServiceDesc = grpc.ServiceDesc{
	ServiceName: "auctiontee.BFE",
	HandlerType: (*wireBFEServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetBids", Handler: getBidsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "bfe",
}

// RegisterBFEServer registers srv against s, wrapping it in the C1 envelope
// codec bound to cache — cache holds the private key this BFE instance's
// coordinator granted it.
func RegisterBFEServer(s grpc.ServiceRegistrar, srv BFEServer, cache *envelope.Cache) {
	s.RegisterService(&BFEServiceDesc, &bfeEnvelopeServer{inner: srv, cache: cache})
}

// BFEClient calls GetBids on one buyer's BFE over grpc, sealing the request
// under peerKey and decrypting the response under the key schedule it
// derives at seal time. Its method signature matches sfeservice.BuyerStub
// so the SFE orchestrator's per-buyer registry can hold these directly.
type BFEClient struct {
	cc       *grpc.ClientConn
	peerKey  *envelope.PublicKey
	recorder *metrics.Recorder
}

// NewBFEClient wraps an already-dialed connection to one buyer's BFE and the
// public key requests to it must be sealed under. recorder may be nil, which
// disables the §4.10 RPC histograms for this client.
func NewBFEClient(cc *grpc.ClientConn, peerKey *envelope.PublicKey, recorder *metrics.Recorder) *BFEClient {
	return &BFEClient{cc: cc, peerKey: peerKey, recorder: recorder}
}

// GetBids implements the BFE client call.
func (c *BFEClient) GetBids(ctx context.Context, req *bfeservice.GetBidsRawRequest) (*bfeservice.GetBidsRawResponse, error) {
	wireReq, reqCtx, err := sealWireRequest(c.peerKey, req)
	if err != nil {
		return nil, err
	}

	sw := c.recorder.Start("bfe.GetBids")
	wireResp := new(WireResponse)
	err = c.cc.Invoke(ctx, "/auctiontee.BFE/GetBids", wireReq, wireResp)
	sw.Stop(err == nil, len(wireResp.Ciphertext))
	if err != nil {
		return nil, err
	}

	resp := new(bfeservice.GetBidsRawResponse)
	if err := openWireResponse(reqCtx, wireResp, resp); err != nil {
		return nil, err
	}
	return resp, nil
}
