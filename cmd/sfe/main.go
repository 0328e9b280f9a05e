// Command sfe runs the Seller Front End (C8): the SelectAd gRPC endpoint
// that decrypts the auction, fans out to every configured buyer, invokes
// the Auction service, and re-encrypts the result.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"time"

	"github.com/golang/glog"
	"github.com/spf13/viper"
	"google.golang.org/grpc"

	"github.com/cloudx-io/auctiontee/config"
	"github.com/cloudx-io/auctiontee/grpctransport"
	"github.com/cloudx-io/auctiontee/kvclient"
	"github.com/cloudx-io/auctiontee/metrics"
	"github.com/cloudx-io/auctiontee/reporting"
	"github.com/cloudx-io/auctiontee/sfeservice"
)

func main() {
	flag.Parse()
	defer glog.Flush()

	v := viper.New()
	config.SetupViper(v, "sfe")
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

	auctionConn, err := grpctransport.Dial(cfg.Origins.AuctionGRPCTarget)
	if err != nil {
		glog.Exitf("dial auction service at %s: %v", cfg.Origins.AuctionGRPCTarget, err)
	}
	defer auctionConn.Close()

	buyers, closeBuyers, err := buildBuyerRegistry(cfg, recorder)
	if err != nil {
		glog.Exitf("build buyer registry: %v", err)
	}
	defer closeBuyers()

	scoringSignals := kvclient.New(cfg.Origins.SellerKVServerAddress, recorder, "seller_kv")
	reportSender := reporting.NewSender(5 * time.Second)

	auctionKey, err := cfg.Origins.AuctionPublicKey.PublicKey()
	if err != nil {
		glog.Exitf("decode auction service public key: %v", err)
	}

	orchestrator := sfeservice.New(keyCache, buyers, grpctransport.NewAuctionClient(auctionConn, auctionKey, recorder), scoringSignals, reportSender, cfg.ConsentedDebugToken)

	lis, err := net.Listen("tcp", addr(cfg))
	if err != nil {
		glog.Exitf("listen on %s: %v", addr(cfg), err)
	}

	server := grpc.NewServer(grpctransport.ServerOptions()...)
	grpctransport.RegisterSFEServer(server, orchestrator)

	glog.Infof("sfe: serving SelectAd on %s, seller=%s buyers=%v", addr(cfg), cfg.Origins.SellerOrigin, cfg.Origins.BuyerOrigins)
	if err := server.Serve(lis); err != nil {
		glog.Exitf("serve: %v", err)
	}
}
