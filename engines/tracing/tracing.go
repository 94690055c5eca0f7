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
Package tracing provides the engine creating an OpenTracing span around
the rest of the chain.

The span continues the trace of the incoming request when it carries one
in the HTTP headers. It is stored in the context of the request, so the
engines invoked later can create child spans:

	span := tracing.CreateSpan("query", rose.Context(), tracer)

The optional argument of the engine sets the operation name, defaulting
to the identity of the matched resource:

	engines:
	- name: tracingSpan
	  args: [items]
*/
package tracing

import (
	"fmt"
	"net/http"

	ot "github.com/opentracing/opentracing-go"

	"github.com/zalando/rose/engines"
	"github.com/zalando/rose/routing"
	"github.com/zalando/rose/tracing"
)

const Name = "tracingSpan"

type engine struct {
	tracer    ot.Tracer
	operation string
}

// New creates a tracing engine. When the operation is empty, the identity
// of the matched resource is used.
func New(tracer ot.Tracer, operation string) routing.Engine {
	return &engine{tracer: tracer, operation: operation}
}

func (e *engine) Name() string { return Name }

func (e *engine) startSpan(rose *routing.Rose, operation string) ot.Span {
	if parent := ot.SpanFromContext(rose.Context()); parent != nil {
		return e.tracer.StartSpan(operation, ot.ChildOf(parent.Context()))
	}

	if req := rose.Request(); req != nil {
		if sc, err := e.tracer.Extract(ot.HTTPHeaders, ot.HTTPHeadersCarrier(req.Header)); err == nil {
			return e.tracer.StartSpan(operation, ot.ChildOf(sc))
		}
	}

	return e.tracer.StartSpan(operation)
}

func (e *engine) Invoke(rose *routing.Rose, mr *routing.MatchResult, instruction any, chain *routing.Chain) (any, error) {
	operation := e.operation
	if operation == "" {
		operation = mr.Resource().Identity()
	}

	span := e.startSpan(rose, operation)
	defer span.Finish()

	span.SetTag(tracing.ComponentTag, tracing.Component)
	span.SetTag(tracing.SpanKindTag, tracing.ServerSpan)
	span.SetTag(tracing.RouteTag, mr.Resource().Identity())
	span.SetTag(tracing.HTTPMethodTag, rose.Method())
	if req := rose.Request(); req != nil {
		span.SetTag(tracing.HTTPUrlTag, req.URL.String())
	}

	rose.SetContext(ot.ContextWithSpan(rose.Context(), span))

	result, err := chain.Proceed(instruction)
	switch {
	case err != nil:
		span.SetTag(tracing.ErrorTag, true)
		span.LogKV("event", "error", "message", err.Error())
	case result != nil:
		if rsp, ok := result.(*engines.Response); ok && rsp.Status != 0 {
			span.SetTag(tracing.HTTPStatusCodeTag, rsp.Status)
			if rsp.Status >= http.StatusInternalServerError {
				span.SetTag(tracing.ErrorTag, true)
			}
		}
	}

	return result, err
}

func (e *engine) Destroy() error { return nil }

type spec struct {
	tracer ot.Tracer
}

// NewSpec creates the specification of the tracing engines using the
// tracer.
func NewSpec(tracer ot.Tracer) engines.Spec {
	return &spec{tracer: tracer}
}

func (s *spec) Name() string { return Name }

func (s *spec) CreateEngine(args []any) (routing.Engine, error) {
	if len(args) > 1 {
		return nil, engines.ErrInvalidEngineParameters
	}

	var operation string
	if len(args) == 1 {
		var err error
		if operation, err = engines.StringArg(args[0]); err != nil {
			return nil, err
		}

		if operation == "" {
			return nil, fmt.Errorf("%w: empty operation name", engines.ErrInvalidEngineParameters)
		}
	}

	return New(s.tracer, operation), nil
}
