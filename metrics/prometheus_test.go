package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zalando/rose/metrics"
)

func TestPrometheusMetrics(t *testing.T) {
	tests := []struct {
		name       string
		opts       metrics.Options
		addMetrics func(*metrics.Prometheus)
		expMetrics []string
	}{
		{
			name: "Incrementing the routing failures should get the total of routing failures.",
			addMetrics: func(pm *metrics.Prometheus) {
				pm.IncRoutingFailures()
				pm.IncRoutingFailures()
				pm.IncRoutingFailures()
			},
			expMetrics: []string{
				`rose_route_error_total 3`,
			},
		},
		{
			name: "Incrementing the destroy failures should get the total of destroy failures.",
			addMetrics: func(pm *metrics.Prometheus) {
				pm.IncDestroyFailures()
			},
			expMetrics: []string{
				`rose_engine_destroy_error_total 1`,
			},
		},
		{
			name: "Measuring the routes lookup should get the duration of the routes lookup.",
			addMetrics: func(pm *metrics.Prometheus) {
				pm.MeasureRouteLookup(time.Now().Add(-15 * time.Millisecond))
				pm.MeasureRouteLookup(time.Now().Add(-3 * time.Millisecond))
			},
			expMetrics: []string{
				`rose_route_lookup_duration_seconds_bucket{le="0.005"} 1`,
				`rose_route_lookup_duration_seconds_bucket{le="0.01"} 1`,
				`rose_route_lookup_duration_seconds_bucket{le="0.025"} 2`,
				`rose_route_lookup_duration_seconds_bucket{le="+Inf"} 2`,
				`rose_route_lookup_duration_seconds_count 2`,
			},
		},
		{
			name: "Measuring the engines should get the duration by engine.",
			addMetrics: func(pm *metrics.Prometheus) {
				pm.MeasureEngine("params", time.Now().Add(-15*time.Millisecond))
				pm.MeasureEngine("invoke", time.Now().Add(-3*time.Millisecond))
			},
			expMetrics: []string{
				`rose_engine_duration_seconds_bucket{engine="params",le="0.01"} 0`,
				`rose_engine_duration_seconds_bucket{engine="params",le="0.025"} 1`,
				`rose_engine_duration_seconds_count{engine="params"} 1`,
				`rose_engine_duration_seconds_bucket{engine="invoke",le="0.005"} 1`,
				`rose_engine_duration_seconds_count{engine="invoke"} 1`,
			},
		},
		{
			name: "Measuring the serve should get the duration and the count by route.",
			addMetrics: func(pm *metrics.Prometheus) {
				pm.MeasureServe("/items/{id}", "GET", 200, time.Now().Add(-15*time.Millisecond))
				pm.MeasureServe("/items/{id}", "GET", 200, time.Now().Add(-3*time.Millisecond))
				pm.MeasureServe("/items/{id}", "BREW", 405, time.Now())
			},
			expMetrics: []string{
				`rose_serve_route_duration_seconds_count{code="200",method="GET",route="/items/{id}"} 2`,
				`rose_serve_route_count{code="200",method="GET",route="/items/{id}"} 2`,
				`rose_serve_route_count{code="405",method="_unknownmethod_",route="/items/{id}"} 1`,
			},
		},
		{
			name: "Serve durations are not measured when disabled, only counted.",
			opts: metrics.Options{DisableCompatibilityDefaults: true},
			addMetrics: func(pm *metrics.Prometheus) {
				pm.MeasureServe("/", "GET", 200, time.Now())
				pm.MeasureEngine("params", time.Now())
			},
			expMetrics: []string{
				`rose_serve_route_count{code="200",method="GET",route="/"} 1`,
			},
		},
		{
			name: "Custom metrics are labeled with the key.",
			opts: metrics.Options{Prefix: "custom."},
			addMetrics: func(pm *metrics.Prometheus) {
				pm.IncCounter("ratelimit.rejected")
				pm.IncCounterBy("ratelimit.rejected", 2)
				pm.UpdateGauge("breakers.open", 1)
				pm.MeasureSince("lookup.nested", time.Now())
			},
			expMetrics: []string{
				`custom_custom_total{key="ratelimit.rejected"} 3`,
				`custom_custom_gauges{key="breakers.open"} 1`,
				`custom_custom_duration_seconds_count{key="lookup.nested"} 1`,
			},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			pm := metrics.NewPrometheus(test.opts)
			path := "/awesome-metrics"

			mux := http.NewServeMux()
			pm.RegisterHandler(path, mux)
			test.addMetrics(pm)

			req := httptest.NewRequest("GET", path, nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			resp := w.Result()
			require.Equal(t, http.StatusOK, resp.StatusCode)

			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)

			for _, expMetric := range test.expMetrics {
				assert.Contains(t, string(body), expMetric)
			}

			if test.opts.DisableCompatibilityDefaults {
				assert.NotContains(t, string(body), "rose_serve_route_duration_seconds_count")
				assert.NotContains(t, string(body), "rose_engine_duration_seconds_count")
			}
		})
	}
}

func TestPrometheusCustomRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	pm := metrics.NewPrometheus(metrics.Options{PrometheusRegistry: reg})
	pm.IncRoutingFailures()

	families, err := reg.Gather()
	require.NoError(t, err)

	var found *dto.MetricFamily
	for _, f := range families {
		if f.GetName() == "rose_route_error_total" {
			found = f
		}
	}

	require.NotNil(t, found)
	require.Len(t, found.GetMetric(), 1)
	assert.Equal(t, 1.0, found.GetMetric()[0].GetCounter().GetValue())
}

func TestPrometheusRuntimeMetrics(t *testing.T) {
	pm := metrics.NewPrometheus(metrics.Options{EnableRuntimeMetrics: true})

	mux := http.NewServeMux()
	pm.RegisterHandler("/metrics", mux)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	assert.True(t, strings.Contains(w.Body.String(), "go_goroutines"))
}
