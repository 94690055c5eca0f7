package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/zalando/rose/metrics"
)

func TestParseMetricsKind(t *testing.T) {
	for _, tt := range []struct {
		in   string
		want metrics.Kind
	}{
		{"codahale", metrics.CodaHaleKind},
		{"Prometheus", metrics.PrometheusKind},
		{"ALL", metrics.AllKind},
		{"", metrics.UnknownKind},
		{"statsd", metrics.UnknownKind},
	} {
		k := metrics.ParseMetricsKind(tt.in)
		assert.Equal(t, tt.want, k, tt.in)
	}

	assert.Equal(t, "all", metrics.AllKind.String())
	assert.Equal(t, "unknown", metrics.UnknownKind.String())
}

func TestNewMetrics(t *testing.T) {
	m := metrics.NewMetrics(metrics.Options{Format: metrics.PrometheusKind})
	defer m.Close()
	assert.IsType(t, &metrics.Prometheus{}, m)

	m = metrics.NewMetrics(metrics.Options{Format: metrics.AllKind})
	defer m.Close()
	assert.IsType(t, &metrics.All{}, m)

	m = metrics.NewMetrics(metrics.Options{})
	defer m.Close()
	assert.IsType(t, &metrics.CodaHale{}, m)
}

func TestAllHandler(t *testing.T) {
	m := metrics.NewMetrics(metrics.Options{Format: metrics.AllKind})
	defer m.Close()
	defer func() { metrics.Default = metrics.Void }()

	m.IncRoutingFailures()
	m.MeasureServe("/items/{id}", "GET", 200, time.Now())

	h := metrics.NewHandler(metrics.Options{Format: metrics.AllKind}, m)
	assert.Same(t, m, metrics.Default)

	for _, path := range []string{"/metrics", "/metrics/"} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest("GET", path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.Contains(t, w.Body.String(), "rose_route_error_total 1", path)

		req := httptest.NewRequest("GET", path, nil)
		req.Header.Set("Accept", "application/codahale+json")
		w = httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.Contains(t, w.Body.String(), `"routefailure":{"count":1}`, path)
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/debug/pprof/", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
