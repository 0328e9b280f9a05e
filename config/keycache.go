package config

import (
	"context"
	"time"

	"github.com/golang/glog"

	"github.com/cloudx-io/auctiontee/envelope"
	"github.com/cloudx-io/auctiontee/keyfetcher"
)

const keyRefreshInterval = 10 * time.Minute

// BuildKeyCache builds the process-wide envelope.Cache every one of the
// four services starts with: when encryption is disabled it's an empty
// cache (DecodeRequest then fails closed on any real ciphertext, which is
// the point in a deliberately-plaintext deployment); otherwise it fetches
// every configured coordinator's KeyID over vsock, all from the first
// coordinator's ContextID/Port (the endpoints of later entries are not
// used), and refreshes every tracked key every keyRefreshInterval (a fixed
// 10 minutes, not read from configuration; there is no cache TTL)
// (spec.md §5 "Shared resources").
func (e EnvelopeConfig) BuildKeyCache(ctx context.Context) (*envelope.Cache, error) {
	if !e.EnableEncryption {
		return envelope.NewCache(nil)
	}

	knownPCRs, err := keyfetcher.LoadPCRSets(e.PCRAllowlistPath)
	if err != nil {
		return nil, err
	}
	attester, err := keyfetcher.NewNSMAttester()
	if err != nil {
		return nil, err
	}

	fetcher := &keyfetcher.VsockFetcher{Attester: attester, KnownPCRs: knownPCRs, Timeout: 2 * time.Second}
	if len(e.Coordinators) > 0 {
		fetcher.ContextID = e.Coordinators[0].ContextID
		fetcher.Port = e.Coordinators[0].Port
	}

	cache, err := envelope.NewCache(fetcher)
	if err != nil {
		return nil, err
	}
	for _, coord := range e.Coordinators {
		if err := cache.Refresh(ctx, envelope.KeyID(coord.KeyID)); err != nil {
			glog.Warningf("initial key fetch failed for key %d: %v", coord.KeyID, err)
		}
	}
	cache.StartRefreshLoop(ctx, keyRefreshInterval)
	return cache, nil
}
