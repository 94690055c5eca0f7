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

// Package lookup provides the engine dispatching the requests to a nested
// mapping, mounted under a catch-all route of the outer mapping.
//
// The rest of the path, bound by the catch-all variable, is resolved in
// the nested mapping, and the chain of the nested match is invoked. The
// variables of the outer match are available in the nested match.
package lookup

import (
	"fmt"

	"github.com/zalando/rose/routing"
)

const Name = "lookup"

// KeyNestedMatch is the request attribute holding the nested match.
const KeyNestedMatch = "lookup:match"

type engine struct {
	nested *routing.Mapping
}

// New creates an engine dispatching to the nested mapping. The engine
// owns the nested mapping: destroying the engine destroys it. When the
// engine is bound in a mapping, destroying that mapping destroys the
// engines of the nested mapping too, each only once.
func New(nested *routing.Mapping) routing.Engine {
	return &engine{nested: nested}
}

func (e *engine) Name() string { return Name }

// Nested returns the nested mapping.
func (e *engine) Nested() *routing.Mapping { return e.nested }

func (e *engine) Invoke(rose *routing.Rose, mr *routing.MatchResult, instruction any, _ *routing.Chain) (any, error) {
	rest, ok := mr.CatchAllRest()
	if !ok {
		return nil, fmt.Errorf("lookup engine bound to a route without catch-all: %s", mr.Resource().Identity())
	}

	nmr, err := e.nested.ResolveNested(rose.Method(), rest, mr)
	if err != nil {
		return nil, err
	}

	rose.Set(KeyNestedMatch, nmr)
	return routing.NewChain(rose, nmr).Proceed(instruction)
}

func (e *engine) Destroy() error {
	return e.nested.Destroy()
}
