// Copyright 2015 Zalando SE
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/rcrowley/go-metrics"
)

const (
	KeyRouteLookup    = "routelookup"
	KeyRouteFailure   = "routefailure"
	KeyEngine         = "engine.%s"
	KeyServeRoute     = "serveroute.%s.%s.%d"
	KeyDestroyFailure = "engine.destroy.failure"

	statsRefreshDuration = 5 * time.Second
)

// CodaHale is the CodaHale format backend, implements Metrics interface in DropWizard's CodaHale metrics format.
type CodaHale struct {
	reg           metrics.Registry
	createTimer   func() metrics.Timer
	createCounter func() metrics.Counter
	createGauge   func() metrics.GaugeFloat64
	options       Options
	handler       http.Handler

	quit      chan struct{}
	closeOnce sync.Once
}

// NewCodaHale returns a new CodaHale backend of metrics.
func NewCodaHale(o Options) *CodaHale {
	o = applyCompatibilityDefaults(o)

	c := &CodaHale{quit: make(chan struct{})}
	c.reg = metrics.NewRegistry()

	var createSample func() metrics.Sample
	if o.UseExpDecaySample {
		createSample = newExpDecaySample
	} else {
		createSample = newUniformSample
	}
	c.createTimer = func() metrics.Timer { return createTimer(createSample()) }

	c.createCounter = metrics.NewCounter
	c.createGauge = metrics.NewGaugeFloat64
	c.options = o

	if o.EnableDebugGcMetrics {
		metrics.RegisterDebugGCStats(c.reg)
		go c.capture(metrics.CaptureDebugGCStatsOnce)
	}

	if o.EnableRuntimeMetrics {
		metrics.RegisterRuntimeMemStats(c.reg)
		go c.capture(metrics.CaptureRuntimeMemStatsOnce)
	}

	return c
}

// NewVoid returns a backend discarding every measurement.
func NewVoid() *CodaHale {
	c := &CodaHale{quit: make(chan struct{})}
	c.reg = metrics.NewRegistry()
	c.createTimer = func() metrics.Timer { return metrics.NilTimer{} }
	c.createCounter = func() metrics.Counter { return metrics.NilCounter{} }
	c.createGauge = func() metrics.GaugeFloat64 { return metrics.NilGaugeFloat64{} }
	return c
}

func (c *CodaHale) capture(f func(metrics.Registry)) {
	ticker := time.NewTicker(statsRefreshDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			f(c.reg)
		case <-c.quit:
			return
		}
	}
}

func (c *CodaHale) getTimer(key string) metrics.Timer {
	return c.reg.GetOrRegister(key, c.createTimer).(metrics.Timer)
}

func (c *CodaHale) updateTimer(key string, d time.Duration) {
	if t := c.getTimer(key); t != nil {
		t.Update(d)
	}
}

func (c *CodaHale) MeasureSince(key string, start time.Time) {
	c.measureSince(key, start)
}

func (c *CodaHale) getGauge(key string) metrics.GaugeFloat64 {
	return c.reg.GetOrRegister(key, c.createGauge).(metrics.GaugeFloat64)
}

func (c *CodaHale) UpdateGauge(key string, v float64) {
	if t := c.getGauge(key); t != nil {
		t.Update(v)
	}
}

func (c *CodaHale) IncCounter(key string) {
	c.incCounter(key, 1)
}

func (c *CodaHale) IncCounterBy(key string, value int64) {
	c.incCounter(key, value)
}

func (c *CodaHale) measureSince(key string, start time.Time) {
	c.updateTimer(key, time.Since(start))
}

func (c *CodaHale) MeasureRouteLookup(start time.Time) {
	c.measureSince(KeyRouteLookup, start)
}

func (c *CodaHale) MeasureEngine(engineName string, start time.Time) {
	if c.options.EnableEngineMetrics {
		c.measureSince(fmt.Sprintf(KeyEngine, engineName), start)
	}
}

func (c *CodaHale) MeasureServe(route, method string, code int, start time.Time) {
	if c.options.EnableServeRouteMetrics {
		c.measureSince(fmt.Sprintf(KeyServeRoute, routeForKey(route), measuredMethod(method), code), start)
	}
}

func (c *CodaHale) getCounter(key string) metrics.Counter {
	return c.reg.GetOrRegister(key, c.createCounter).(metrics.Counter)
}

func (c *CodaHale) incCounter(key string, value int64) {
	if c := c.getCounter(key); c != nil {
		c.Inc(value)
	}
}

func (c *CodaHale) IncRoutingFailures() {
	c.incCounter(KeyRouteFailure, 1)
}

func (c *CodaHale) IncDestroyFailures() {
	c.incCounter(KeyDestroyFailure, 1)
}

// Close stops collecting the runtime statistics.
func (c *CodaHale) Close() {
	c.closeOnce.Do(func() { close(c.quit) })
}

func (c *CodaHale) RegisterHandler(path string, handler *http.ServeMux) {
	h := c.getHandler(path)
	handler.Handle(path, h)
}

func (c *CodaHale) CreateHandler(path string) http.Handler {
	return &codaHaleMetricsHandler{path: path, registry: c.reg, options: c.options}
}

func (c *CodaHale) getHandler(path string) http.Handler {
	if c.handler != nil {
		return c.handler
	}

	c.handler = c.CreateHandler(path)
	return c.handler
}

type codaHaleMetricsHandler struct {
	path     string
	registry metrics.Registry
	options  Options
}

func (c *codaHaleMetricsHandler) sendMetrics(w http.ResponseWriter, p string) {
	_, k := path.Split(p)

	metrics := filterMetrics(c.registry, c.options.Prefix, k)

	if len(metrics) > 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(metrics)
	} else {
		http.NotFound(w, nil)
	}
}

// This listener is only used to expose the metrics
func (c *codaHaleMetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == "POST" {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p := r.URL.Path
	c.sendMetrics(w, strings.TrimPrefix(p, strings.TrimSuffix(c.path, "/")))
}

func filterMetrics(reg metrics.Registry, prefix, key string) roseMetrics {
	metrics := make(roseMetrics)

	canonicalKey := strings.TrimPrefix(key, prefix)
	m := reg.Get(canonicalKey)
	if m != nil {
		metrics[key] = m
	} else {
		reg.Each(func(name string, i any) {
			if key == "" || (strings.HasPrefix(name, canonicalKey)) {
				metrics[prefix+name] = i
			}
		})
	}
	return metrics
}

type roseMetrics map[string]any

// This listener is used to expose the collected metrics.
func (sm roseMetrics) MarshalJSON() ([]byte, error) {
	data := make(map[string]map[string]any)
	for name, metric := range sm {
		values := make(map[string]any)
		var metricsFamily string

		switch m := metric.(type) {
		case metrics.Gauge:
			metricsFamily = "gauges"
			values["value"] = m.Snapshot().Value()
		case metrics.GaugeFloat64:
			metricsFamily = "gauges"
			values["value"] = m.Snapshot().Value()
		case metrics.Histogram:
			metricsFamily = "histograms"
			h := m.Snapshot()
			ps := h.Percentiles([]float64{0.5, 0.75, 0.95, 0.99, 0.999})
			values["count"] = h.Count()
			values["min"] = h.Min()
			values["max"] = h.Max()
			values["mean"] = h.Mean()
			values["stddev"] = h.StdDev()
			values["median"] = ps[0]
			values["75%"] = ps[1]
			values["95%"] = ps[2]
			values["99%"] = ps[3]
			values["99.9%"] = ps[4]
		case metrics.Timer:
			metricsFamily = "timers"
			t := m.Snapshot()
			ps := t.Percentiles([]float64{0.5, 0.75, 0.95, 0.99, 0.999})
			values["count"] = t.Count()
			values["min"] = t.Min()
			values["max"] = t.Max()
			values["mean"] = t.Mean()
			values["stddev"] = t.StdDev()
			values["median"] = ps[0]
			values["75%"] = ps[1]
			values["95%"] = ps[2]
			values["99%"] = ps[3]
			values["99.9%"] = ps[4]
			values["1m.rate"] = t.Rate1()
			values["5m.rate"] = t.Rate5()
			values["15m.rate"] = t.Rate15()
			values["mean.rate"] = t.RateMean()
		case metrics.Counter:
			metricsFamily = "counters"
			t := m.Snapshot()
			values["count"] = t.Count()
		default:
			metricsFamily = "unknown"
			values["error"] = fmt.Sprintf("unknown metrics type %T", m)
		}
		if data[metricsFamily] == nil {
			data[metricsFamily] = make(map[string]any)
		}
		data[metricsFamily][name] = values
	}

	return json.Marshal(data)
}
