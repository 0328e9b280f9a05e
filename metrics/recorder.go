package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	calleeLabel  = "callee"
	successLabel = "success"
)

// Recorder is the process-wide singleton (spec.md §5 "Shared resources")
// that emits {duration, byte-size, success} histograms tagged by callee
// name for every cross-service RPC — GetBids, GenerateBids, ScoreAds, and
// the buyer/seller KV fetches (spec.md §4.10).
type Recorder struct {
	Registry *prometheus.Registry

	rpcDuration *prometheus.HistogramVec
	rpcBytes    *prometheus.HistogramVec
	rpcTotal    *prometheus.CounterVec
}

// NewRecorder builds a Recorder registered against a fresh prometheus
// registry, mirroring prebid-prebid-server's Metrics constructor shape.
func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()

	r := &Recorder{
		Registry: registry,
		rpcDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "auctiontee_rpc_duration_seconds",
			Help:    "Duration of cross-service RPC calls, by callee.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{calleeLabel, successLabel}),
		rpcBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "auctiontee_rpc_response_bytes",
			Help:    "Response payload size of cross-service RPC calls, by callee.",
			Buckets: prometheus.ExponentialBuckets(64, 4, 8),
		}, []string{calleeLabel}),
		rpcTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auctiontee_rpc_total",
			Help: "Count of cross-service RPC calls, by callee and outcome.",
		}, []string{calleeLabel, successLabel}),
	}

	registry.MustRegister(r.rpcDuration, r.rpcBytes, r.rpcTotal)
	return r
}

// Stopwatch times one outgoing RPC; call Stop with the outcome once it
// completes. Constructed per call, not shared, so concurrent fan-out calls
// (spec.md §4.8) never race on a single timer.
type Stopwatch struct {
	recorder *Recorder
	callee   string
	start    time.Time
}

// Start begins timing an "initiated request" to callee (spec.md §4.10
// "initiated-request stopwatches").
func (r *Recorder) Start(callee string) *Stopwatch {
	return &Stopwatch{recorder: r, callee: callee, start: time.Now()}
}

// Stop records duration, responseBytes, and success for the call this
// Stopwatch was timing. A nil Stopwatch, or one started from a nil Recorder
// (an unwired client), is a no-op, so callers in tests that construct
// clients without a Recorder never crash.
func (s *Stopwatch) Stop(success bool, responseBytes int) {
	if s == nil || s.recorder == nil {
		return
	}
	successStr := "false"
	if success {
		successStr = "true"
	}
	s.recorder.rpcDuration.WithLabelValues(s.callee, successStr).Observe(time.Since(s.start).Seconds())
	s.recorder.rpcTotal.WithLabelValues(s.callee, successStr).Inc()
	if responseBytes > 0 {
		s.recorder.rpcBytes.WithLabelValues(s.callee).Observe(float64(responseBytes))
	}
}
