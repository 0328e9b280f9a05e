package metrics

import (
	"net/http"

	"github.com/golang/glog"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ServeRegistry starts an HTTP server on addr exposing r's registry at /metrics,
// mirroring prebid-prebid-server's dedicated Prometheus listener. It runs in
// its own goroutine; a bind failure is logged rather than fatal, since the
// RPC path this Recorder instruments must keep serving regardless.
func ServeRegistry(addr string, r *Recorder) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(r.Registry, promhttp.HandlerOpts{
		ErrorLog:            metricsErrorLogger{},
		MaxRequestsInFlight: 5,
	}))

	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			glog.Errorf("metrics: serve %s: %v", addr, err)
		}
	}()
}

type metricsErrorLogger struct{}

func (metricsErrorLogger) Println(v ...interface{}) {
	glog.Warningln(v...)
}
