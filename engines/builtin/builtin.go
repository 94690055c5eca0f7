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

// Package builtin provides the registry of the built-in engine
// specifications.
package builtin

import (
	ot "github.com/opentracing/opentracing-go"

	"github.com/zalando/rose/engines"
	"github.com/zalando/rose/engines/circuit"
	"github.com/zalando/rose/engines/compress"
	"github.com/zalando/rose/engines/flowid"
	"github.com/zalando/rose/engines/interceptor"
	"github.com/zalando/rose/engines/invoke"
	"github.com/zalando/rose/engines/lifo"
	"github.com/zalando/rose/engines/params"
	"github.com/zalando/rose/engines/ratelimit"
	"github.com/zalando/rose/engines/script"
	"github.com/zalando/rose/engines/tracing"
)

// Options of the built-in specifications. Every field is optional.
type Options struct {

	// Handlers available for the invoke engine.
	Handlers *invoke.Table

	// Interceptors available for the intercept engine.
	Interceptors *interceptor.Table

	// Metrics for the custom measurements of the engines.
	Metrics engines.Metrics

	// Tracer of the tracing engine. Defaults to the noop tracer.
	Tracer ot.Tracer

	// LIFOGroups holds the queues of the lifoGroup engines. Defaults to a
	// registry reporting to Metrics.
	LIFOGroups *lifo.Registry

	// RateLimitCounter of the cluster rate limit. When nil, creating
	// cluster rate limits fails.
	RateLimitCounter ratelimit.Counter

	// Lua configures the script engines.
	Lua script.LuaOptions
}

// MakeRegistry returns a registry with the built-in engine
// specifications.
func MakeRegistry(o Options) engines.Registry {
	if o.Handlers == nil {
		o.Handlers = invoke.NewTable()
	}

	if o.Interceptors == nil {
		o.Interceptors = interceptor.NewTable()
	}

	if o.LIFOGroups == nil {
		o.LIFOGroups = lifo.NewRegistry(o.Metrics)
	}

	if o.Tracer == nil {
		o.Tracer = &ot.NoopTracer{}
	}

	r := make(engines.Registry)
	for _, s := range []engines.Spec{
		invoke.NewSpec(o.Handlers),
		invoke.NewRespondSpec(),
		params.NewSpec(),
		interceptor.NewSpec(o.Interceptors),
		flowid.NewSpec(),
		ratelimit.NewLocalSpec(o.Metrics),
		ratelimit.NewClusterSpec(o.RateLimitCounter, o.Metrics),
		circuit.NewConsecutiveSpec(),
		circuit.NewRateSpec(),
		tracing.NewSpec(o.Tracer),
		compress.NewSpec(),
		lifo.NewSpec(),
		lifo.NewGroupSpec(o.LIFOGroups),
		script.NewSpec(o.Lua),
	} {
		r.Register(s)
	}

	return r
}
