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
Package engines contains the definitions of the engine specifications,
the registry used to create engines from route files and the types shared
by the engine implementations.

An engine specification has a name, the one used in the route files, and
creates engines from a list of arguments:

	routes:
	- method: GET
	  path: /items/{id}
	  engines:
	  - name: params
	    args: [id, int]
	  - name: invoke
	    args: [getItem]

The built-in specifications are registered by engines/builtin.
*/
package engines

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/zalando/rose/routing"
)

var (
	// ErrInvalidEngineParameters is returned by CreateEngine when the
	// arguments are not valid for the engine.
	ErrInvalidEngineParameters = errors.New("invalid engine parameters")

	// ErrUnknownEngine is returned when no specification is registered
	// with the requested name.
	ErrUnknownEngine = errors.New("unknown engine")
)

// Spec creates the engines of one kind.
type Spec interface {

	// Name returns the name of the engine, as used in the route files.
	Name() string

	// CreateEngine creates an engine instance from the arguments. It
	// returns ErrInvalidEngineParameters, possibly wrapped, when the
	// arguments are invalid.
	CreateEngine(args []any) (routing.Engine, error)
}

// Registry contains the engine specifications by name.
type Registry map[string]Spec

// Register adds a specification, replacing the one with the same name.
func (r Registry) Register(s Spec) {
	r[s.Name()] = s
}

// Names returns the sorted names of the registered specifications.
func (r Registry) Names() []string {
	return slices.Sorted(maps.Keys(r))
}

// Create creates an engine with the named specification.
func (r Registry) Create(name string, args []any) (routing.Engine, error) {
	s, ok := r[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEngine, name)
	}

	e, err := s.CreateEngine(args)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine %s: %w", name, err)
	}

	return e, nil
}

// Metrics is the subset of the metrics backend available to the engines
// for custom measurements.
type Metrics interface {
	MeasureSince(key string, start time.Time)
	IncCounter(key string)
	IncCounterBy(key string, value int64)
	UpdateGauge(key string, value float64)
}
