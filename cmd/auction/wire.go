package main

import (
	"fmt"

	"github.com/cloudx-io/auctiontee/auctionservice"
	"github.com/cloudx-io/auctiontee/config"
	"github.com/cloudx-io/auctiontee/dispatch"
	"github.com/cloudx-io/auctiontee/reporting"
)

func newReactor(pool *dispatch.Pool, reportSender *reporting.Sender, cfg *config.Configuration) *auctionservice.Reactor {
	return auctionservice.NewReactor(pool, reportSender, cfg.Timeout.ScoreAdsRpcMs)
}

func addr(cfg *config.Configuration) string {
	return fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
}
