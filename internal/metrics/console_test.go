package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterConsoleMetrics_Idempotent(t *testing.T) {
	RegisterConsoleMetrics()
	RegisterConsoleMetrics()

	RatingWritesTotal.WithLabelValues("commit", "committed").Inc()
	if v := testutil.ToFloat64(RatingWritesTotal.WithLabelValues("commit", "committed")); v < 1 {
		t.Errorf("rating_writes_total = %f, want >= 1", v)
	}
}
