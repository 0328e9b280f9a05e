package main

import (
	"fmt"

	"google.golang.org/grpc"

	"github.com/cloudx-io/auctiontee/config"
	"github.com/cloudx-io/auctiontee/grpctransport"
	"github.com/cloudx-io/auctiontee/metrics"
	"github.com/cloudx-io/auctiontee/sfeservice"
)

// buildBuyerRegistry dials every buyer named in cfg.Origins.BuyerGRPCTargets
// once at startup and registers the resulting stub by origin, per spec.md
// §4.8's "per-buyer gRPC stub cache". The returned closer drains every
// connection on shutdown.
func buildBuyerRegistry(cfg *config.Configuration, recorder *metrics.Recorder) (*sfeservice.BuyerClientRegistry, func(), error) {
	registry := sfeservice.NewBuyerClientRegistry()
	var conns []*grpc.ClientConn

	for origin, target := range cfg.Origins.BuyerGRPCTargets {
		peerKey, err := cfg.Origins.BuyerPublicKeys[origin].PublicKey()
		if err != nil {
			for _, c := range conns {
				_ = c.Close()
			}
			return nil, nil, fmt.Errorf("decode public key for buyer %s: %w", origin, err)
		}

		conn, err := grpctransport.Dial(target)
		if err != nil {
			for _, c := range conns {
				_ = c.Close()
			}
			return nil, nil, fmt.Errorf("dial buyer %s at %s: %w", origin, target, err)
		}
		conns = append(conns, conn)
		registry.Register(origin, grpctransport.NewBFEClient(conn, peerKey, recorder))
	}

	closeAll := func() {
		for _, c := range conns {
			_ = c.Close()
		}
	}
	return registry, closeAll, nil
}

func addr(cfg *config.Configuration) string {
	return fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
}
