package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += counter(m)
		}
	}
	return total
}

func counter(m *dto.Metric) float64 {
	if c := m.GetCounter(); c != nil {
		return c.GetValue()
	}
	return 0
}

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)
	r.RecordRejectedProposal("invalid")
	r.RecordRejectedProposal("size")
	r.RecordOracleFailure()
	r.RecordPatternsDetected("double_top", 3)
	r.RecordDegenerateRatio("put_call_ratio")

	if got := counterValue(t, reg, "patternlab_rejected_proposals_total"); got != 2 {
		t.Fatalf("rejected = %v", got)
	}
	if got := counterValue(t, reg, "patternlab_oracle_failures_total"); got != 1 {
		t.Fatalf("oracle failures = %v", got)
	}
	if got := counterValue(t, reg, "patternlab_patterns_detected_total"); got != 3 {
		t.Fatalf("patterns = %v", got)
	}
}
