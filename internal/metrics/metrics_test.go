package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Authorize("google")
	m.Authorize("google")
	m.Callback("naver", ResultSuccess)
	m.Callback("naver", ResultError)

	if got := testutil.ToFloat64(m.authorize.WithLabelValues("google")); got != 2 {
		t.Errorf("authorize{google} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.callback.WithLabelValues("naver", ResultSuccess)); got != 1 {
		t.Errorf("callback{naver,success} = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(m.callback); n != 2 {
		t.Errorf("callback series = %d, want 2", n)
	}
}

func TestMetrics_Nil(t *testing.T) {
	var m *Metrics
	m.Authorize("google")
	m.Callback("google", ResultDenied)
}
