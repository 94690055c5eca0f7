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

// Package enginetest provides engines and helpers for testing chains and
// engine implementations.
package enginetest

import (
	"net/http"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/zalando/rose/routing"
)

// Log records the names of the engines in the order of the events.
type Log struct {
	mu      sync.Mutex
	entries []string
}

func (l *Log) add(e string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
}

// Entries returns a copy of the recorded entries.
func (l *Log) Entries() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.entries)
}

// Engine is a configurable engine for tests. By default it proceeds with
// the instruction it received and returns the result of the rest of the
// chain.
type Engine struct {
	EngineName string
	Args       []any

	// Log, when set, receives "<name>" before proceeding and
	// "<name>:after" after the rest of the chain returned.
	Log *Log

	// Result is returned without proceeding, when Terminal is set.
	Terminal bool
	Result   any

	// Err is returned without proceeding, when set.
	Err error

	// DestroyErr is returned from Destroy. DestroyPanic makes Destroy
	// panic.
	DestroyErr   error
	DestroyPanic bool

	invoked   atomic.Int64
	destroyed atomic.Int64
}

func (e *Engine) Name() string { return e.EngineName }

func (e *Engine) Invoke(rose *routing.Rose, mr *routing.MatchResult, instruction any, chain *routing.Chain) (any, error) {
	e.invoked.Add(1)
	if e.Log != nil {
		e.Log.add(e.EngineName)
	}

	if e.Err != nil {
		return nil, e.Err
	}

	if e.Terminal {
		return e.Result, nil
	}

	result, err := chain.Proceed(instruction)
	if e.Log != nil {
		e.Log.add(e.EngineName + ":after")
	}

	return result, err
}

func (e *Engine) Destroy() error {
	e.destroyed.Add(1)
	if e.DestroyPanic {
		panic("destroy " + e.EngineName)
	}

	return e.DestroyErr
}

// Invoked returns the number of invocations.
func (e *Engine) Invoked() int { return int(e.invoked.Load()) }

// Destroyed returns the number of Destroy calls.
func (e *Engine) Destroyed() int { return int(e.destroyed.Load()) }

// Recording returns an engine that logs and proceeds.
func Recording(name string, l *Log) *Engine {
	return &Engine{EngineName: name, Log: l}
}

// Terminal returns an engine that returns result without proceeding.
func Terminal(name string, result any) *Engine {
	return &Engine{EngineName: name, Terminal: true, Result: result}
}

// Failing returns an engine that returns err without proceeding.
func Failing(name string, err error) *Engine {
	return &Engine{EngineName: name, Err: err}
}

// Spec creates test engines with the arguments stored, e.g. to verify the
// loading of route files.
type Spec struct {
	SpecName string
}

func (s *Spec) Name() string { return s.SpecName }

func (s *Spec) CreateEngine(args []any) (routing.Engine, error) {
	return &Engine{EngineName: s.SpecName, Args: args}, nil
}

// AnyPath is the pattern used by Serve when no pattern is given.
const AnyPath = "/*path"

// Serve registers the engines as the only route of a new mapping, with
// the pattern, or AnyPath when empty, and any method. Then it resolves
// the request, runs the chain and completes the request context with the
// error of the chain. It returns the result and the request context.
func Serve(w http.ResponseWriter, req *http.Request, pattern string, engines ...routing.Engine) (any, *routing.Rose, error) {
	if pattern == "" {
		pattern = AnyPath
	}

	m := routing.New(routing.Options{})
	if err := m.Add(routing.AnyMethod, pattern, engines...); err != nil {
		return nil, nil, err
	}

	m.Freeze()
	rose := routing.NewHTTPRose(m, w, req)
	mr, err := m.Resolve(rose.Method(), rose.Path())
	if err != nil {
		return nil, rose, err
	}

	result, err := routing.NewChain(rose, mr).Proceed(nil)
	rose.Complete(err)
	return result, rose, err
}
