// Command bfe runs the Buyer Front End (C7): a GetBids gRPC endpoint that
// fetches bidding signals from the buyer's KV service and forwards to the
// Bidding service.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"

	"github.com/golang/glog"
	"github.com/spf13/viper"
	"google.golang.org/grpc"

	"github.com/cloudx-io/auctiontee/bfeservice"
	"github.com/cloudx-io/auctiontee/config"
	"github.com/cloudx-io/auctiontee/grpctransport"
	"github.com/cloudx-io/auctiontee/kvclient"
	"github.com/cloudx-io/auctiontee/metrics"
)

func main() {
	flag.Parse()
	defer glog.Flush()

	v := viper.New()
	config.SetupViper(v, "bfe")
	cfg, err := config.New(v)
	if err != nil {
		glog.Exitf("load config: %v", err)
	}

	keyCache, err := cfg.Envelope.BuildKeyCache(context.Background())
	if err != nil {
		glog.Exitf("build key cache: %v", err)
	}

	recorder := metrics.NewRecorder()
	if cfg.MetricsPort != 0 {
		metrics.ServeRegistry(fmt.Sprintf("%s:%d", cfg.Host, cfg.MetricsPort), recorder)
	}

	biddingKey, err := cfg.Origins.BiddingPublicKey.PublicKey()
	if err != nil {
		glog.Exitf("decode bidding service public key: %v", err)
	}

	biddingConn, err := grpctransport.Dial(cfg.Origins.BiddingGRPCTarget)
	if err != nil {
		glog.Exitf("dial bidding service at %s: %v", cfg.Origins.BiddingGRPCTarget, err)
	}
	defer biddingConn.Close()

	signals := kvclient.New(cfg.Origins.BuyerKVServerAddress, recorder, "buyer_kv")
	orchestrator := bfeservice.New(grpctransport.NewBiddingClient(biddingConn, biddingKey, recorder), signals)

	lis, err := net.Listen("tcp", addr(cfg))
	if err != nil {
		glog.Exitf("listen on %s: %v", addr(cfg), err)
	}

	server := grpc.NewServer(grpctransport.ServerOptions()...)
	grpctransport.RegisterBFEServer(server, orchestrator, keyCache)

	glog.Infof("bfe: serving GetBids on %s, forwarding to bidding at %s", addr(cfg), cfg.Origins.BiddingGRPCTarget)
	if err := server.Serve(lis); err != nil {
		glog.Exitf("serve: %v", err)
	}
}
