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
Package interceptor provides the engine running cross-cutting interceptors
around the rest of the chain.

Before the rest of the chain, the Before methods of the interceptors are
called in order. Any of them can deny the request, which short-circuits
the chain: the result of the denying interceptor is returned, or 403
Forbidden when it has none. After the rest of the chain returned without
an error, the After methods are called in reverse order, and they may
replace the result. The AfterCompletion methods of the interceptors whose
Before was called run when the request completed, in reverse order, with
the error of the request.

Interceptors are registered by name in a Table for the route files:

	engines:
	- name: intercept
	  args: [auth, audit]
*/
package interceptor

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/zalando/rose/engines"
	"github.com/zalando/rose/routing"
)

const Name = "intercept"

// Interceptor runs around the rest of the chain.
type Interceptor interface {

	// Before returns false to deny the request, with the result to
	// respond with.
	Before(rose *routing.Rose, mr *routing.MatchResult) (proceed bool, result any, err error)

	After(rose *routing.Rose, mr *routing.MatchResult, result any) (any, error)

	AfterCompletion(rose *routing.Rose, mr *routing.MatchResult, err error)
}

// Funcs implements Interceptor with optional functions.
type Funcs struct {
	BeforeFunc          func(*routing.Rose, *routing.MatchResult) (bool, any, error)
	AfterFunc           func(*routing.Rose, *routing.MatchResult, any) (any, error)
	AfterCompletionFunc func(*routing.Rose, *routing.MatchResult, error)
}

func (f Funcs) Before(rose *routing.Rose, mr *routing.MatchResult) (bool, any, error) {
	if f.BeforeFunc == nil {
		return true, nil, nil
	}

	return f.BeforeFunc(rose, mr)
}

func (f Funcs) After(rose *routing.Rose, mr *routing.MatchResult, result any) (any, error) {
	if f.AfterFunc == nil {
		return result, nil
	}

	return f.AfterFunc(rose, mr, result)
}

func (f Funcs) AfterCompletion(rose *routing.Rose, mr *routing.MatchResult, err error) {
	if f.AfterCompletionFunc != nil {
		f.AfterCompletionFunc(rose, mr, err)
	}
}

type engine struct {
	interceptors []Interceptor
}

// New creates an engine running the interceptors.
func New(interceptors ...Interceptor) routing.Engine {
	return &engine{interceptors: interceptors}
}

func (e *engine) Name() string { return Name }

func (e *engine) Invoke(rose *routing.Rose, mr *routing.MatchResult, instruction any, chain *routing.Chain) (any, error) {
	for _, i := range e.interceptors {
		rose.AfterCompletion(func(err error) { i.AfterCompletion(rose, mr, err) })

		proceed, result, err := i.Before(rose, mr)
		if err != nil {
			return nil, err
		}

		if !proceed {
			if result == nil {
				result = engines.StatusText(http.StatusForbidden)
			}

			return result, nil
		}
	}

	result, err := chain.Proceed(instruction)
	if err != nil {
		return nil, err
	}

	for i := len(e.interceptors) - 1; i >= 0; i-- {
		if result, err = e.interceptors[i].After(rose, mr, result); err != nil {
			return nil, err
		}
	}

	return result, nil
}

func (e *engine) Destroy() error { return nil }

// Table contains the interceptors available for the route files, by
// name. It is safe for concurrent use.
type Table struct {
	mu           sync.RWMutex
	interceptors map[string]Interceptor
}

func NewTable() *Table {
	return &Table{interceptors: make(map[string]Interceptor)}
}

func (t *Table) Register(name string, i Interceptor) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.interceptors[name] = i
}

func (t *Table) Get(name string) (Interceptor, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	i, ok := t.interceptors[name]
	return i, ok
}

type spec struct {
	table *Table
}

func NewSpec(t *Table) engines.Spec { return &spec{table: t} }

func (s *spec) Name() string { return Name }

func (s *spec) CreateEngine(args []any) (routing.Engine, error) {
	if len(args) == 0 {
		return nil, engines.ErrInvalidEngineParameters
	}

	var interceptors []Interceptor
	for _, a := range args {
		name, err := engines.StringArg(a)
		if err != nil {
			return nil, err
		}

		i, ok := s.table.Get(name)
		if !ok {
			return nil, fmt.Errorf("%w: interceptor not found: %s", engines.ErrInvalidEngineParameters, name)
		}

		interceptors = append(interceptors, i)
	}

	return New(interceptors...), nil
}
