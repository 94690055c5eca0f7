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
	"time"
)

// All reports to both the Prometheus and the CodaHale backends. The
// CodaHale format is served when requested with the Accept header
// application/codahale+json.
type All struct {
	prometheus        *Prometheus
	codaHale          *CodaHale
	prometheusHandler http.Handler
	codaHaleHandler   http.Handler
}

func NewAll(o Options) *All {
	return &All{
		prometheus: NewPrometheus(o),
		codaHale:   NewCodaHale(o),
	}
}

func (a *All) MeasureSince(key string, start time.Time) {
	a.prometheus.MeasureSince(key, start)
	a.codaHale.MeasureSince(key, start)
}

func (a *All) IncCounter(key string) {
	a.prometheus.IncCounter(key)
	a.codaHale.IncCounter(key)
}

func (a *All) IncCounterBy(key string, value int64) {
	a.prometheus.IncCounterBy(key, value)
	a.codaHale.IncCounterBy(key, value)
}

func (a *All) UpdateGauge(key string, v float64) {
	a.prometheus.UpdateGauge(key, v)
	a.codaHale.UpdateGauge(key, v)
}

func (a *All) MeasureRouteLookup(start time.Time) {
	a.prometheus.MeasureRouteLookup(start)
	a.codaHale.MeasureRouteLookup(start)
}

func (a *All) IncRoutingFailures() {
	a.prometheus.IncRoutingFailures()
	a.codaHale.IncRoutingFailures()
}

func (a *All) MeasureEngine(engineName string, start time.Time) {
	a.prometheus.MeasureEngine(engineName, start)
	a.codaHale.MeasureEngine(engineName, start)
}

func (a *All) MeasureServe(route, method string, code int, start time.Time) {
	a.prometheus.MeasureServe(route, method, code, start)
	a.codaHale.MeasureServe(route, method, code, start)
}

func (a *All) IncDestroyFailures() {
	a.prometheus.IncDestroyFailures()
	a.codaHale.IncDestroyFailures()
}

func (a *All) Close() {
	a.codaHale.Close()
	a.prometheus.Close()
}

func (a *All) RegisterHandler(path string, handler *http.ServeMux) {
	a.prometheusHandler = a.prometheus.getHandler()
	a.codaHaleHandler = a.codaHale.getHandler(path)
	handler.Handle(path, a.newHandler())
}

func (a *All) newHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Header.Get("Accept") == "application/codahale+json" {
			a.codaHaleHandler.ServeHTTP(w, req)
		} else {
			a.prometheusHandler.ServeHTTP(w, req)
		}
	})
}
