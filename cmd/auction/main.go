// Command auction runs the Auction service (C6): a ScoreAds gRPC endpoint
// backed by a JS dispatch pool executing seller-authored scoreAd code, plus
// fire-and-forget debug/win reporting.
package main

import (
	"context"
	"flag"
	"net"
	"os"
	"time"

	"github.com/golang/glog"
	"github.com/spf13/viper"
	"google.golang.org/grpc"

	"github.com/cloudx-io/auctiontee/config"
	"github.com/cloudx-io/auctiontee/dispatch"
	"github.com/cloudx-io/auctiontee/grpctransport"
	"github.com/cloudx-io/auctiontee/reporting"
)

func main() {
	flag.Parse()
	defer glog.Flush()

	v := viper.New()
	config.SetupViper(v, "auction")
	cfg, err := config.New(v)
	if err != nil {
		glog.Exitf("load config: %v", err)
	}

	pool, err := dispatch.Init(dispatch.Config{
		NumWorkers: cfg.Dispatch.NumWorkers,
		QueueLen:   cfg.Dispatch.WorkerQueueLen,
	})
	if err != nil {
		glog.Exitf("start dispatch pool: %v", err)
	}
	defer pool.Stop()

	if blobPath := v.GetString("adtech_code_blob_path"); blobPath != "" {
		blob, err := os.ReadFile(blobPath)
		if err != nil {
			glog.Exitf("read adtech code blob: %v", err)
		}
		if err := pool.LoadSync(1, string(blob)); err != nil {
			glog.Exitf("load adtech code blob: %v", err)
		}
	}

	keyCache, err := cfg.Envelope.BuildKeyCache(context.Background())
	if err != nil {
		glog.Exitf("build key cache: %v", err)
	}

	reportSender := reporting.NewSender(5 * time.Second)
	reactor := newReactor(pool, reportSender, cfg)

	lis, err := net.Listen("tcp", addr(cfg))
	if err != nil {
		glog.Exitf("listen on %s: %v", addr(cfg), err)
	}

	server := grpc.NewServer(grpctransport.ServerOptions()...)
	grpctransport.RegisterAuctionServer(server, reactor, keyCache)

	glog.Infof("auction: serving ScoreAds on %s", addr(cfg))
	if err := server.Serve(lis); err != nil {
		glog.Exitf("serve: %v", err)
	}
}
