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
Package invoke provides the terminal engines of the chains: the engine
calling the application handlers, and the engine responding with a static
response.

Handlers are registered by name in a Table, so that the route files can
refer to them:

	engines:
	- name: invoke
	  args: [getItem]

The static response engine takes the status code, and optionally the body
and the content type:

	engines:
	- name: respond
	  args: [418, "I'm a teapot"]
*/
package invoke

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/zalando/rose/engines"
	"github.com/zalando/rose/routing"
)

const (
	Name        = "invoke"
	RespondName = "respond"
)

// Handler handles a request at the end of the chain. The returned value
// is rendered by the request handler.
type Handler func(rose *routing.Rose, mr *routing.MatchResult, instruction any) (any, error)

// Table contains the handlers available for the route files, by name. It
// is safe for concurrent use.
type Table struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewTable() *Table {
	return &Table{handlers: make(map[string]Handler)}
}

// Register adds a handler, replacing the one with the same name.
func (t *Table) Register(name string, h Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers[name] = h
}

func (t *Table) Get(name string) (Handler, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	h, ok := t.handlers[name]
	return h, ok
}

type engine struct {
	name    string
	handler Handler
}

// New creates a terminal engine calling h. The name is used in the logs
// and in the metrics.
func New(name string, h Handler) routing.Engine {
	return &engine{name: name, handler: h}
}

func (e *engine) Name() string { return Name + ":" + e.name }

func (e *engine) Invoke(rose *routing.Rose, mr *routing.MatchResult, instruction any, _ *routing.Chain) (any, error) {
	return e.handler(rose, mr, instruction)
}

func (e *engine) Destroy() error { return nil }

type spec struct {
	table *Table
}

// NewSpec creates the specification of the engines calling the handlers
// of the table.
func NewSpec(t *Table) engines.Spec {
	return &spec{table: t}
}

func (s *spec) Name() string { return Name }

func (s *spec) CreateEngine(args []any) (routing.Engine, error) {
	if len(args) != 1 {
		return nil, engines.ErrInvalidEngineParameters
	}

	name, err := engines.StringArg(args[0])
	if err != nil {
		return nil, err
	}

	h, ok := s.table.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: handler not found: %s", engines.ErrInvalidEngineParameters, name)
	}

	return New(name, h), nil
}

type respond struct {
	status      int
	body        string
	contentType string
}

// Respond creates a terminal engine responding with a static response.
func Respond(status int, body, contentType string) routing.Engine {
	return &respond{status: status, body: body, contentType: contentType}
}

func (r *respond) Name() string { return RespondName }

func (r *respond) Invoke(*routing.Rose, *routing.MatchResult, any, *routing.Chain) (any, error) {
	rsp := engines.NewResponse(r.status, r.body)
	if r.contentType != "" {
		rsp.Header.Set("Content-Type", r.contentType)
	}

	return rsp, nil
}

func (r *respond) Destroy() error { return nil }

type respondSpec struct{}

// NewRespondSpec creates the specification of the static response
// engines.
func NewRespondSpec() engines.Spec { return respondSpec{} }

func (respondSpec) Name() string { return RespondName }

func (respondSpec) CreateEngine(args []any) (routing.Engine, error) {
	if len(args) < 1 || len(args) > 3 {
		return nil, engines.ErrInvalidEngineParameters
	}

	status, err := engines.IntArg(args[0])
	if err != nil {
		return nil, err
	}

	if status < 100 || status > 599 {
		return nil, fmt.Errorf("%w: invalid status code: %d", engines.ErrInvalidEngineParameters, status)
	}

	var body, contentType string
	if len(args) > 1 {
		if body, err = engines.StringArg(args[1]); err != nil {
			return nil, err
		}
	}

	if len(args) > 2 {
		if contentType, err = engines.StringArg(args[2]); err != nil {
			return nil, err
		}
	}

	if body == "" && len(args) == 1 {
		body = http.StatusText(status)
	}

	return Respond(status, body, contentType), nil
}
