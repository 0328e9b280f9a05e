// Package metrics implements C10: per-request correlation IDs, the
// consented-debug gate, and the cross-service RPC duration/byte-size/success
// histograms every hop emits (spec.md §4.10), grounded on
// prebid-prebid-server's metrics.Metrics engine shape.
package metrics

import (
	"context"

	"github.com/google/uuid"
)

// ContextMap is the per-request correlation bundle named in spec.md §4.10:
// generation_id, adtech_debug_id, and whether this single request opted
// into verbose logging via a token match against the server secret.
type ContextMap struct {
	GenerationID  string
	AdtechDebugID string
	Consented     bool
}

// New builds a ContextMap for one request. AdtechDebugID is always a fresh
// UUID; callers cannot supply their own. consentedToken is compared against
// serverToken to decide the Consented gate (P8).
func New(generationID, consentedToken, serverToken string) *ContextMap {
	return &ContextMap{
		GenerationID:  generationID,
		AdtechDebugID: uuid.NewString(),
		Consented:     serverToken != "" && consentedToken == serverToken,
	}
}

type contextMapKey struct{}

// WithContextMap attaches cm to ctx so downstream calls (KV fetch,
// cross-service RPC, dispatcher batch) can recover the same correlation IDs
// without threading them through every function signature.
func WithContextMap(ctx context.Context, cm *ContextMap) context.Context {
	return context.WithValue(ctx, contextMapKey{}, cm)
}

// FromContext recovers the ContextMap attached by WithContextMap, or nil if
// none was ever attached (a caller outside the request path, or a test).
func FromContext(ctx context.Context) *ContextMap {
	cm, _ := ctx.Value(contextMapKey{}).(*ContextMap)
	return cm
}

// ShouldLogVerbose implements P8: verbose logs are emitted iff this
// request's context is present and consented.
func ShouldLogVerbose(ctx context.Context) bool {
	cm := FromContext(ctx)
	return cm != nil && cm.Consented
}
