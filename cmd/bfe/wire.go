package main

import (
	"fmt"

	"github.com/cloudx-io/auctiontee/config"
)

func addr(cfg *config.Configuration) string {
	return fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
}
