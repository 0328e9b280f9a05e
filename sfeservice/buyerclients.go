package sfeservice

import (
	"context"
	"fmt"

	"github.com/cloudx-io/auctiontee/bfeservice"
)

// ErrNoBuyerStub is returned by BuyerClientRegistry.GetBids when no stub was
// registered for the requested origin. The fan-out step treats this the
// same as a missing BuyerInput: the buyer is skipped, not counted as a
// failure (spec.md §4.8 "buyers without a stub ... are counted as skipped").
var ErrNoBuyerStub = fmt.Errorf("sfeservice: no buyer stub registered for origin")

// BuyerStub is the gRPC-shaped boundary to one buyer's BFE. In production
// this is satisfied by grpctransport.BFEClient (see cmd/sfe); nothing here
// depends on that type.
type BuyerStub interface {
	GetBids(ctx context.Context, req *bfeservice.GetBidsRawRequest) (*bfeservice.GetBidsRawResponse, error)
}

// BuyerClientRegistry is the per-buyer gRPC stub cache named in spec.md
// §4.8: "Each buyer has its own gRPC stub cached by origin." The registry
// is read-only after process startup finishes registering every buyer in
// the deployment's origin list (spec.md §5 "the stub registry is read-only
// after init"), so GetBids itself takes no lock.
type BuyerClientRegistry struct {
	stubs map[string]BuyerStub
}

// NewBuyerClientRegistry builds an empty registry. Call Register once per
// buyer origin during process startup, before any SelectAd call can reach
// it.
func NewBuyerClientRegistry() *BuyerClientRegistry {
	return &BuyerClientRegistry{stubs: make(map[string]BuyerStub)}
}

// Register installs stub as the client for origin.
func (r *BuyerClientRegistry) Register(origin string, stub BuyerStub) {
	r.stubs[origin] = stub
}

// GetBids implements the sfeservice.BuyerCaller boundary the orchestrator
// fans out through.
func (r *BuyerClientRegistry) GetBids(ctx context.Context, buyerOrigin string, req *bfeservice.GetBidsRawRequest) (*bfeservice.GetBidsRawResponse, error) {
	stub, ok := r.stubs[buyerOrigin]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrNoBuyerStub, buyerOrigin)
	}
	return stub.GetBids(ctx, req)
}
