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

/*
Package tracing provides the OpenTracing tracer used by the tracing
engine and the request handler.

The tracer is selected with a list of options, where the first one is
the name of the tracer and the rest are passed to it:

	-opentracing "basic sample-modulo=10 recorder=log"

Available tracers:

	noop    discards every span (default)
	basic   the basictracer-go implementation, recording the sampled
	        spans either in the application log or in memory

Options of the basic tracer:

	drop-all-logs           drop the span logs
	sample-modulo=N         sample one trace of every N
	max-logs-per-span=N     limit of logs kept per span
	recorder=log|in-memory  where the sampled spans go
*/
package tracing

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	basic "github.com/opentracing/basictracer-go"
	ot "github.com/opentracing/opentracing-go"
	log "github.com/sirupsen/logrus"
)

// These constants are compatible with the tags in
// github.com/opentracing/opentracing-go/ext/tags.go
const (
	ComponentTag      = "component"
	HTTPUrlTag        = "http.url"
	HTTPMethodTag     = "http.method"
	SpanKindTag       = "span.kind"
	HTTPStatusCodeTag = "http.status_code"
	ErrorTag          = "error"

	RouteTag   = "rose.route"
	EngineTag  = "rose.engine"
	FlowIDTag  = "flow_id"
	Component  = "rose"
	ServerSpan = "server"
)

var (
	ErrUnsupportedTracer = errors.New("unsupported tracer")
	ErrMissingArguments  = errors.New("missing tracer arguments")
)

// CloseableTracer is a tracer that may hold resources to be released on
// shutdown.
type CloseableTracer interface {
	ot.Tracer
	Close()
}

type noopTracer struct{ ot.NoopTracer }

func (noopTracer) Close() {}

type basicTracer struct {
	ot.Tracer
	recorder basic.SpanRecorder
}

func (*basicTracer) Close() {}

// Recorder returns the span recorder of a basic tracer, or nil.
func Recorder(t ot.Tracer) basic.SpanRecorder {
	if bt, ok := t.(*basicTracer); ok {
		return bt.recorder
	}

	return nil
}

// InitTracer creates the tracer selected by the options. The first
// option is the name of the tracer.
func InitTracer(opts []string) (CloseableTracer, error) {
	if len(opts) == 0 {
		return nil, ErrMissingArguments
	}

	switch opts[0] {
	case "noop":
		return noopTracer{}, nil
	case "basic":
		return initBasic(opts[1:])
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedTracer, opts[0])
	}
}

func initBasic(opts []string) (CloseableTracer, error) {
	var (
		dropAllLogs    bool
		sampleModulo   uint64             = 1
		maxLogsPerSpan                    = 0
		recorder       basic.SpanRecorder = logRecorder{}
		err            error
	)

	for _, o := range opts {
		k, v, _ := strings.Cut(o, "=")
		switch k {
		case "drop-all-logs":
			dropAllLogs = true

		case "sample-modulo":
			if v == "" {
				return nil, missingArg(k)
			}

			sampleModulo, err = strconv.ParseUint(v, 10, 64)
			if err != nil || sampleModulo == 0 {
				return nil, invalidArg(k, v)
			}

		case "max-logs-per-span":
			if v == "" {
				return nil, missingArg(k)
			}

			maxLogsPerSpan, err = strconv.Atoi(v)
			if err != nil {
				return nil, invalidArg(k, v)
			}

		case "recorder":
			switch v {
			case "log":
				recorder = logRecorder{}
			case "in-memory":
				recorder = basic.NewInMemoryRecorder()
			case "":
				return nil, missingArg(k)
			default:
				return nil, invalidArg(k, v)
			}

		default:
			return nil, fmt.Errorf("unknown option for the basic tracer: %s", k)
		}
	}

	return &basicTracer{
		Tracer: basic.NewWithOptions(basic.Options{
			DropAllLogs:    dropAllLogs,
			ShouldSample:   func(traceID uint64) bool { return traceID%sampleModulo == 0 },
			MaxLogsPerSpan: maxLogsPerSpan,
			Recorder:       recorder,
		}),
		recorder: recorder,
	}, nil
}

func missingArg(opt string) error {
	return fmt.Errorf("missing argument for %s option", opt)
}

func invalidArg(opt, value string) error {
	return fmt.Errorf("invalid argument for %s option: %s", opt, value)
}

type logRecorder struct{}

func (logRecorder) RecordSpan(span basic.RawSpan) {
	if !span.Context.Sampled {
		return
	}

	log.WithFields(log.Fields{
		"trace":     strconv.FormatUint(span.Context.TraceID, 16),
		"span":      strconv.FormatUint(span.Context.SpanID, 16),
		"parent":    strconv.FormatUint(span.ParentSpanID, 16),
		"operation": span.Operation,
		"duration":  span.Duration,
		"tags":      span.Tags,
	}).Debug("span finished")
}

// CreateSpan starts a span as the child of the span found in the
// context, if any.
func CreateSpan(name string, ctx context.Context, tracer ot.Tracer) ot.Span {
	parent := ot.SpanFromContext(ctx)
	if parent == nil {
		return tracer.StartSpan(name)
	}

	return tracer.StartSpan(name, ot.ChildOf(parent.Context()))
}

// LogKV logs a key value pair to the span found in the context.
func LogKV(k, v string, ctx context.Context) {
	if span := ot.SpanFromContext(ctx); span != nil {
		span.LogKV(k, v)
	}
}
