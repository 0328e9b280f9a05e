package metrics

import (
	"testing"

	"github.com/peterldowns/testy/check"
	dto "github.com/prometheus/client_model/go"
)

func TestRecorder_StartStop_CountsSuccessfulCall(t *testing.T) {
	r := NewRecorder()

	sw := r.Start("bfe.GetBids")
	sw.Stop(true, 128)

	families, err := r.Registry.Gather()
	check.NoError(t, err)

	total := findCounterValue(t, families, "auctiontee_rpc_total", "bfe.GetBids", "true")
	check.Equal(t, float64(1), total)
}

func TestRecorder_Stop_FailureIncrementsFailureLabel(t *testing.T) {
	r := NewRecorder()

	sw := r.Start("auction.ScoreAds")
	sw.Stop(false, 0)

	families, err := r.Registry.Gather()
	check.NoError(t, err)

	total := findCounterValue(t, families, "auctiontee_rpc_total", "auction.ScoreAds", "false")
	check.Equal(t, float64(1), total)
}

// A Stopwatch started from a nil Recorder is what an unwired client
// (recorder == nil) produces; stopping it must never panic.
func TestStopwatch_NilStop_NoPanic(t *testing.T) {
	var r *Recorder
	sw := r.Start("kv.FetchKeys")
	sw.Stop(true, 42)
}

func findCounterValue(t *testing.T, families []*dto.MetricFamily, name, callee, success string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, m := range fam.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels[calleeLabel] == callee && labels[successLabel] == success {
				return m.GetCounter().GetValue()
			}
		}
	}
	t.Fatalf("metric %s{callee=%s,success=%s} not found", name, callee, success)
	return 0
}
