package grpctransport

import (
	"context"

	"google.golang.org/grpc"

	"github.com/cloudx-io/auctiontee/sfeservice"
)

// SFEServer is implemented by *sfeservice.Orchestrator.
type SFEServer interface {
	SelectAd(ctx context.Context, req *sfeservice.SelectAdRawRequest) (*sfeservice.SelectAdRawResponse, error)
}

func selectAdHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(sfeservice.SelectAdRawRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SFEServer).SelectAd(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/auctiontee.SFE/SelectAd"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SFEServer).SelectAd(ctx, req.(*sfeservice.SelectAdRawRequest))
	}
	return interceptor(ctx, req, info, handler)
}

// SFEServiceDesc is the grpc.ServiceDesc SFE's cmd entry point registers.
var SFEServiceDesc = grpc.ServiceDesc{
	ServiceName: "auctiontee.SFE",
	HandlerType: (*SFEServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SelectAd", Handler: selectAdHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "sfe",
}

// RegisterSFEServer registers srv against s.
func RegisterSFEServer(s grpc.ServiceRegistrar, srv SFEServer) {
	s.RegisterService(&SFEServiceDesc, srv)
}

// SFEClient calls SelectAd on a remote SFE over grpc.
type SFEClient struct {
	cc *grpc.ClientConn
}

// NewSFEClient wraps an already-dialed connection.
func NewSFEClient(cc *grpc.ClientConn) *SFEClient {
	return &SFEClient{cc: cc}
}

// SelectAd implements the SFE client call.
func (c *SFEClient) SelectAd(ctx context.Context, req *sfeservice.SelectAdRawRequest) (*sfeservice.SelectAdRawResponse, error) {
	resp := new(sfeservice.SelectAdRawResponse)
	if err := c.cc.Invoke(ctx, "/auctiontee.SFE/SelectAd", req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}
