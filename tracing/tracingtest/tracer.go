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

// Package tracingtest provides a tracer recording the spans of the engines
// and the request handler in memory, for tests.
package tracingtest

import (
	"fmt"
	"sync/atomic"
	"time"

	ot "github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/mocktracer"
)

// Tracer records spans. The finished spans are reported only when every
// started span was finished.
type Tracer struct {
	mock    *mocktracer.MockTracer
	started atomic.Int32
}

type Span struct {
	*mocktracer.MockSpan
	tracer *Tracer
}

var _ ot.Tracer = NewTracer()

func NewTracer() *Tracer {
	return &Tracer{mock: mocktracer.New()}
}

func (t *Tracer) Close() {}

func (t *Tracer) Reset() {
	t.started.Store(0)
	t.mock.Reset()
}

func (t *Tracer) StartSpan(operationName string, opts ...ot.StartSpanOption) ot.Span {
	t.started.Add(1)
	return &Span{MockSpan: t.mock.StartSpan(operationName, opts...).(*mocktracer.MockSpan), tracer: t}
}

// FinishedSpans waits up to a second for the started spans to finish, and
// panics when they don't.
func (t *Tracer) FinishedSpans() []*Span {
	timeout := time.After(time.Second)
	retry := time.NewTicker(10 * time.Millisecond)
	defer retry.Stop()

	for {
		finished := t.mock.FinishedSpans()
		if len(finished) == int(t.started.Load()) {
			spans := make([]*Span, len(finished))
			for i, s := range finished {
				spans[i] = &Span{MockSpan: s, tracer: t}
			}

			return spans
		}

		select {
		case <-retry.C:
		case <-timeout:
			panic(fmt.Sprintf("timeout waiting for %d finished spans, got: %d", t.started.Load(), len(finished)))
		}
	}
}

// FindSpan returns the first finished span with the operation name.
func (t *Tracer) FindSpan(operationName string) *Span {
	for _, s := range t.FinishedSpans() {
		if s.OperationName == operationName {
			return s
		}
	}

	return nil
}

// Operations returns the operation names of the finished spans in the
// order of finishing.
func (t *Tracer) Operations() []string {
	var names []string
	for _, s := range t.FinishedSpans() {
		names = append(names, s.OperationName)
	}

	return names
}

func (t *Tracer) Inject(sc ot.SpanContext, format any, carrier any) error {
	return t.mock.Inject(sc, format, carrier)
}

func (t *Tracer) Extract(format any, carrier any) (ot.SpanContext, error) {
	return t.mock.Extract(format, carrier)
}

func (s *Span) Tracer() ot.Tracer {
	return s.tracer
}
