package middleware

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestMetrics_Register(t *testing.T) {
	m, reg := registeredMetrics(t)

	// Touch one collector of each vector so Gather returns samples.
	m.IncRateLimitRequests("/anchors/nearby", "user")
	m.IncRateLimitBlocked("/anchors/nearby", "ip")
	m.IncRateLimitRedisErrors()

	for _, name := range []string{MetricRateLimitRequests, MetricRateLimitBlocked, MetricRateLimitRedisErrors} {
		if gatherFamily(t, reg, name) == nil {
			t.Errorf("metric %s not found in registry", name)
		}
	}
}

func TestMetrics_RegisterTwiceFails(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := m.Register(reg); err == nil {
		t.Error("second Register() on the same registry did not fail")
	}
}

func TestMetrics_RateLimitCounters(t *testing.T) {
	tests := []struct {
		name       string
		family     string
		record     func(m *Metrics)
		wantSeries int
	}{
		{
			"requests by endpoint and key type", MetricRateLimitRequests,
			func(m *Metrics) {
				m.IncRateLimitRequests("/anchors/nearby", "user")
				m.IncRateLimitRequests("/anchors/nearby", "user")
				m.IncRateLimitRequests("/anchors", "ip")
			},
			2,
		},
		{
			"blocked by endpoint", MetricRateLimitBlocked,
			func(m *Metrics) {
				m.IncRateLimitBlocked("/anchors/nearby", "user")
				m.IncRateLimitBlocked("/anchors/{id}/unlock", "user")
				m.IncRateLimitBlocked("/anchors/{id}/unlock", "user")
			},
			2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, reg := registeredMetrics(t)
			tt.record(m)

			mf := gatherFamily(t, reg, tt.family)
			if mf == nil {
				t.Fatalf("metric %s not found", tt.family)
			}
			if len(mf.GetMetric()) != tt.wantSeries {
				t.Errorf("series = %d, want %d", len(mf.GetMetric()), tt.wantSeries)
			}
		})
	}
}

func TestMetrics_Collectors(t *testing.T) {
	if n := len(NewMetrics().Collectors()); n != 7 {
		t.Errorf("collectors = %d, want 7", n)
	}
}
