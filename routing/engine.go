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

import "fmt"

// Engine is a unit of request processing. The engines bound to a node are
// invoked in order, through a Chain.
type Engine interface {

	// Invoke processes the request. It can delegate to the rest of the
	// chain by calling chain.Proceed, once, and it can do work before and
	// after that. Returning without calling Proceed short-circuits the
	// chain. The result is propagated to the caller of the chain.
	Invoke(rose *Rose, mr *MatchResult, instruction any, chain *Chain) (any, error)

	// Destroy releases the resources owned by the engine. It is called
	// once during shutdown, also when Invoke was never called.
	Destroy() error
}

// EngineFunc adapts a function to the Engine interface. Its Destroy is a
// no-op. Functions are not comparable, so every EngineFunc bound to a node
// counts as a distinct engine.
type EngineFunc func(rose *Rose, mr *MatchResult, instruction any, chain *Chain) (any, error)

// Invoke calls f.
func (f EngineFunc) Invoke(rose *Rose, mr *MatchResult, instruction any, chain *Chain) (any, error) {
	return f(rose, mr, instruction, chain)
}

// Destroy does nothing.
func (f EngineFunc) Destroy() error { return nil }

type namedEngine struct {
	name string
	f    EngineFunc
}

// Func creates a named engine from a function. The returned engine is a
// pointer, so it is deduplicated when bound to several nodes.
func Func(name string, f EngineFunc) Engine {
	return &namedEngine{name: name, f: f}
}

func (e *namedEngine) Name() string { return e.name }

func (e *namedEngine) Invoke(rose *Rose, mr *MatchResult, instruction any, chain *Chain) (any, error) {
	return e.f(rose, mr, instruction, chain)
}

func (e *namedEngine) Destroy() error { return nil }

// EngineName returns the name of an engine for logs and errors: the result
// of its Name() method, if it has one, or its type.
func EngineName(e Engine) string {
	if n, ok := e.(interface{ Name() string }); ok {
		return n.Name()
	}

	return fmt.Sprintf("%T", e)
}

// Engines returns the distinct engines of the tree, in the order of their
// first occurrence in pre-order.
func (m *Mapping) Engines() []Engine {
	var (
		engines []Engine
		seen    = make(map[Engine]struct{})
	)

	for n := range m.Iterate() {
		for _, b := range n.bindings {
			for _, e := range b.engines {
				if markSeen(seen, e) {
					engines = append(engines, e)
				}
			}
		}
	}

	return engines
}

// markSeen returns true when e was not seen before. Engines of
// uncomparable types are always reported as new.
func markSeen(seen map[Engine]struct{}, e Engine) (isNew bool) {
	defer func() {
		if recover() != nil {
			isNew = true
		}
	}()

	if _, ok := seen[e]; ok {
		return false
	}

	seen[e] = struct{}{}
	return true
}
