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

package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	ot "github.com/opentracing/opentracing-go"

	"github.com/zalando/rose/engines/flowid"
	"github.com/zalando/rose/logging"
	"github.com/zalando/rose/metrics"
	"github.com/zalando/rose/routing"
	"github.com/zalando/rose/tracing"
)

// Responder results write themselves to the response.
type Responder interface {
	Respond(w http.ResponseWriter) error
}

// StatusCoder errors set the status of the response.
type StatusCoder interface {
	StatusCode() int
}

// Options of the Handler.
type Options struct {
	Mapping *routing.Mapping

	// Metrics defaults to metrics.Default.
	Metrics metrics.Metrics

	// Tracer, when set, creates a span for every request.
	Tracer ot.Tracer

	// NotFoundStatus is the status of the unresolved requests. Defaults
	// to 404.
	NotFoundStatus int

	AccessLogDisabled bool

	// Log defaults to logging.DefaultLog.
	Log logging.Logger
}

// Handler dispatches the requests to the engines of the mapping.
type Handler struct {
	mapping        *routing.Mapping
	metrics        metrics.Metrics
	tracer         ot.Tracer
	notFoundStatus int
	accessLog      bool
	log            logging.Logger
}

var _ http.Handler = (*Handler)(nil)

// NewHandler creates a handler. The mapping is expected to be frozen.
func NewHandler(o Options) *Handler {
	h := &Handler{
		mapping:        o.Mapping,
		metrics:        o.Metrics,
		tracer:         o.Tracer,
		notFoundStatus: o.NotFoundStatus,
		accessLog:      !o.AccessLogDisabled,
		log:            o.Log,
	}

	if h.metrics == nil {
		h.metrics = metrics.Default
	}

	if h.notFoundStatus == 0 {
		h.notFoundStatus = http.StatusNotFound
	}

	if h.log == nil {
		h.log = &logging.DefaultLog{}
	}

	return h
}

// panicError is the error of a chain that panicked.
type panicError struct {
	value any
}

func (e *panicError) Error() string { return fmt.Sprintf("engine panic: %v", e.value) }

func tryCatch(p func(), onErr func(v any, stack []byte)) {
	defer func() {
		if v := recover(); v != nil {
			if v == http.ErrAbortHandler {
				panic(v)
			}

			onErr(v, debug.Stack())
		}
	}()

	p()
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	lw := logging.NewLoggingWriter(w)

	if h.tracer != nil {
		span := tracing.CreateSpan("request", r.Context(), h.tracer)
		span.SetTag(tracing.ComponentTag, tracing.Component)
		span.SetTag(tracing.SpanKindTag, tracing.ServerSpan)
		span.SetTag(tracing.HTTPMethodTag, r.Method)
		span.SetTag(tracing.HTTPUrlTag, r.URL.String())
		r = r.WithContext(ot.ContextWithSpan(r.Context(), span))
		defer func() {
			span.SetTag(tracing.HTTPStatusCodeTag, lw.GetCode())
			if lw.GetCode() >= http.StatusInternalServerError {
				span.SetTag(tracing.ErrorTag, true)
			}

			span.Finish()
		}()
	}

	rose := routing.NewHTTPRose(h.mapping, lw, r)

	lookupStart := time.Now()
	mr, err := h.mapping.Resolve(rose.Method(), rose.Path())
	h.metrics.MeasureRouteLookup(lookupStart)

	var resource string
	if err != nil {
		h.metrics.IncRoutingFailures()
		h.log.Debugf("failed to resolve %s %s: %v", rose.Method(), rose.Path(), err)
		h.writeError(lw, lw, err)
	} else {
		resource = mr.Resource().Identity()
		err = h.serve(rose, mr, lw)
		h.metrics.MeasureServe(resource, r.Method, lw.GetCode(), start)
	}

	rose.Complete(err)

	if h.accessLog {
		logging.LogAccess(&logging.AccessEntry{
			Request:      r,
			StatusCode:   lw.GetCode(),
			ResponseSize: lw.GetBytes(),
			Duration:     time.Since(start),
			RequestTime:  start,
			FlowID:       flowid.Get(rose),
			Resource:     resource,
		})
	}
}

// serve runs the chain and renders its result, returning the error of
// the chain.
func (h *Handler) serve(rose *routing.Rose, mr *routing.MatchResult, lw *logging.LoggingWriter) error {
	var (
		result any
		err    error
	)

	tryCatch(func() {
		result, err = routing.NewChain(rose, mr).Proceed(nil)
	}, func(v any, stack []byte) {
		h.log.Errorf("engine panic while serving %s %s: %v\n%s", rose.Method(), rose.Path(), v, stack)
		err = &panicError{value: v}
	})

	w := rose.ResponseWriter()
	if err != nil {
		h.writeError(w, lw, err)
		return err
	}

	if lw.Written() {
		if result != nil {
			h.log.Debugf("response already written for %s %s, result ignored", rose.Method(), rose.Path())
		}

		return nil
	}

	if rerr := render(w, result); rerr != nil {
		h.log.Errorf("failed to render the result of %s %s: %v", rose.Method(), rose.Path(), rerr)
		if !lw.Written() {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
	}

	return nil
}

func render(w http.ResponseWriter, result any) error {
	switch v := result.(type) {
	case nil:
		w.WriteHeader(http.StatusNoContent)
		return nil
	case Responder:
		return v.Respond(w)
	case string:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, err := w.Write([]byte(v))
		return err
	case []byte:
		w.Header().Set("Content-Type", "application/octet-stream")
		_, err := w.Write(v)
		return err
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}

		w.Header().Set("Content-Type", "application/json")
		_, err = w.Write(b)
		return err
	}
}

func (h *Handler) status(err error) int {
	var (
		mna *routing.MethodNotAllowedError
		sc  StatusCoder
	)

	switch {
	case errors.Is(err, routing.ErrNotFound):
		return h.notFoundStatus
	case errors.As(err, &mna):
		return http.StatusMethodNotAllowed
	case errors.As(err, &sc):
		return sc.StatusCode()
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes the error status to w, unless the response was
// already started.
func (h *Handler) writeError(w http.ResponseWriter, lw *logging.LoggingWriter, err error) {
	status := h.status(err)
	if status >= http.StatusInternalServerError {
		h.log.Errorf("error while serving the request: %v", err)
	}

	if lw.Written() {
		return
	}

	var mna *routing.MethodNotAllowedError
	if errors.As(err, &mna) {
		w.Header().Set("Allow", strings.Join(mna.Allowed, ", "))
	}

	http.Error(w, http.StatusText(status), status)
}
