package main

import (
	"fmt"

	"github.com/cloudx-io/auctiontee/biddingservice"
	"github.com/cloudx-io/auctiontee/config"
	"github.com/cloudx-io/auctiontee/dispatch"
)

func newReactor(pool *dispatch.Pool, cfg *config.Configuration) *biddingservice.Reactor {
	return biddingservice.NewReactor(pool, cfg.Timeout.GenerateBidMs)
}

func addr(cfg *config.Configuration) string {
	return fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
}
