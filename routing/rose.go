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

package routing

import (
	"context"
	"net/http"
	"strings"
	"sync"
)

// Rose is the context of a single request, passed to every engine of the
// chain. It carries the mapping, the request and the response writer
// when serving HTTP, the request scoped attributes and the callbacks to
// run after the request completed.
type Rose struct {
	ctx     context.Context
	mapping *Mapping
	method  string
	path    string

	request *http.Request
	writer  http.ResponseWriter

	attributes sync.Map

	mu              sync.Mutex
	afterCompletion []func(error)
	completed       bool
}

// NewRose creates a request context without an HTTP request, e.g. for
// tests or for transports other than HTTP.
func NewRose(ctx context.Context, m *Mapping, method, path string) *Rose {
	if ctx == nil {
		ctx = context.Background()
	}

	r := &Rose{mapping: m, method: strings.ToUpper(method), path: path}
	r.ctx = NewContext(ctx, r)
	return r
}

// NewHTTPRose creates the request context for an incoming HTTP request.
// The path is the escaped path of the request URL. The request available
// from the returned Rose carries it in its context.
func NewHTTPRose(m *Mapping, w http.ResponseWriter, req *http.Request) *Rose {
	r := &Rose{
		mapping: m,
		method:  req.Method,
		path:    req.URL.EscapedPath(),
		writer:  w,
	}

	r.ctx = NewContext(req.Context(), r)
	r.request = req.WithContext(r.ctx)
	return r
}

// Context returns the context of the request.
func (r *Rose) Context() context.Context { return r.ctx }

// SetContext replaces the context for the engines invoked later, e.g.
// to carry a tracing span. The context is expected to be derived from
// the current one.
func (r *Rose) SetContext(ctx context.Context) {
	r.ctx = NewContext(ctx, r)
	if r.request != nil {
		r.request = r.request.WithContext(r.ctx)
	}
}

// MappingTree returns the mapping serving the request, read only.
func (r *Rose) MappingTree() *Mapping { return r.mapping }

func (r *Rose) Method() string { return r.method }
func (r *Rose) Path() string   { return r.path }

// Request returns the HTTP request, nil when not serving HTTP.
func (r *Rose) Request() *http.Request { return r.request }

// ResponseWriter returns the response writer, nil when not serving HTTP.
func (r *Rose) ResponseWriter() http.ResponseWriter { return r.writer }

// SetResponseWriter replaces the response writer for the engines invoked
// later, e.g. to wrap it with a compressing writer.
func (r *Rose) SetResponseWriter(w http.ResponseWriter) { r.writer = w }

// Set stores a request scoped attribute.
func (r *Rose) Set(key string, value any) { r.attributes.Store(key, value) }

// Get returns a request scoped attribute.
func (r *Rose) Get(key string) (any, bool) { return r.attributes.Load(key) }

// Attributes returns a snapshot of the request scoped attributes.
func (r *Rose) Attributes() map[string]any {
	a := make(map[string]any)
	r.attributes.Range(func(k, v any) bool {
		a[k.(string)] = v
		return true
	})

	return a
}

// AfterCompletion registers a function to be called when the request is
// completed, with the error of the request or nil. The functions are
// called in reverse order of registration.
func (r *Rose) AfterCompletion(f func(error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.afterCompletion = append(r.afterCompletion, f)
}

// Complete calls the after completion functions. Only the first call has
// an effect.
func (r *Rose) Complete(err error) {
	r.mu.Lock()
	if r.completed {
		r.mu.Unlock()
		return
	}

	r.completed = true
	callbacks := r.afterCompletion
	r.afterCompletion = nil
	r.mu.Unlock()

	for i := len(callbacks) - 1; i >= 0; i-- {
		callbacks[i](err)
	}
}
