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
	"net/http"
	"net/http/pprof"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Kind is the type a metrics expose backend can be.
type Kind int

const (
	UnknownKind  Kind = 0
	CodaHaleKind Kind = 1 << iota
	PrometheusKind
	AllKind = CodaHaleKind | PrometheusKind
)

func (k Kind) String() string {
	switch k {
	case AllKind:
		return "all"
	case CodaHaleKind:
		return "codahale"
	case PrometheusKind:
		return "prometheus"
	default:
		return "unknown"
	}
}

// ParseMetricsKind parses an string and returns the correct Metrics kind.
func ParseMetricsKind(t string) Kind {
	t = strings.ToLower(t)

	switch t {
	case "codahale":
		return CodaHaleKind
	case "prometheus":
		return PrometheusKind
	case "all":
		return AllKind
	default:
		return UnknownKind
	}
}

// Metrics is the generic interface that all the required backends
// should implement to be a rose metrics compatible backend.
type Metrics interface {
	// Implements the `engines.Metrics` interface.
	MeasureSince(key string, start time.Time)
	IncCounter(key string)
	IncCounterBy(key string, value int64)
	UpdateGauge(key string, value float64)

	// Additional methods
	MeasureRouteLookup(start time.Time)
	IncRoutingFailures()
	MeasureEngine(engineName string, start time.Time)
	MeasureServe(route, method string, code int, start time.Time)
	IncDestroyFailures()
	RegisterHandler(path string, handler *http.ServeMux)
	Close()
}

// Options for initializing metrics collection.
type Options struct {
	// the metrics exposing format.
	Format Kind

	// Common prefix for the keys of the different
	// collected metrics.
	Prefix string

	// If set, garbage collector metrics are collected
	// in addition to the http traffic metrics.
	EnableDebugGcMetrics bool

	// If set, Go runtime metrics are collected in
	// addition to the http traffic metrics.
	EnableRuntimeMetrics bool

	// If set, detailed total response time metrics will be collected
	// for each route, additionally grouped by status and method.
	EnableServeRouteMetrics bool

	// If set, the durations of the engines are measured by engine name.
	EnableEngineMetrics bool

	// If set, the CodaHale timers use exponentially decaying samples,
	// otherwise uniform ones.
	UseExpDecaySample bool

	// HistogramBuckets defines buckets into which the observations are
	// counted for histogram metrics.
	HistogramBuckets []float64

	// EnableServeRouteMetrics and EnableEngineMetrics are set by default.
	// With this flag, they are taken as they are.
	DisableCompatibilityDefaults bool

	// PrometheusRegistry is the Prometheus registry to use, a new one is
	// created when nil.
	PrometheusRegistry *prometheus.Registry

	// EnableProfile exposes profiling information on /debug/pprof of the
	// metrics handler.
	EnableProfile bool
}

var (
	Default Metrics
	Void    Metrics
)

func init() {
	Void = NewVoid()
	Default = Void
}

// NewDefaultHandler returns a default metrics handler.
func NewDefaultHandler(o Options) http.Handler {
	m := NewMetrics(o)
	return NewHandler(o, m)
}

// NewMetrics returns a new metrics backend based on the format in the
// options. The unknown format falls back to CodaHale.
func NewMetrics(o Options) Metrics {
	var m Metrics

	switch o.Format {
	case AllKind:
		m = NewAll(o)
	case PrometheusKind:
		m = NewPrometheus(o)
	default:
		m = NewCodaHale(o)
	}

	return m
}

// NewHandler returns a collection of metrics handlers.
func NewHandler(o Options, m Metrics) http.Handler {
	mux := http.NewServeMux()

	if o.EnableProfile {
		mux.Handle("/debug/pprof/", http.HandlerFunc(pprof.Index))
		mux.Handle("/debug/pprof/cmdline", http.HandlerFunc(pprof.Cmdline))
		mux.Handle("/debug/pprof/profile", http.HandlerFunc(pprof.Profile))
		mux.Handle("/debug/pprof/symbol", http.HandlerFunc(pprof.Symbol))
		mux.Handle("/debug/pprof/trace", http.HandlerFunc(pprof.Trace))
	}

	// Root path should return 404.
	mux.Handle("/", http.NotFoundHandler())

	Default = m

	// Fix trailing slashes and register routes.
	mPath := defaultMetricsPath
	m.RegisterHandler(mPath, mux)
	mPath = strings.TrimSuffix(mPath, "/")
	m.RegisterHandler(mPath, mux)

	return mux
}

const defaultMetricsPath = "/metrics/"
