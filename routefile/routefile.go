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

package routefile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"sigs.k8s.io/yaml"

	"github.com/zalando/rose/engines"
	"github.com/zalando/rose/engines/lookup"
	"github.com/zalando/rose/logging"
	"github.com/zalando/rose/routing"
)

// ErrInvalidRouteFile is returned for route files that cannot be parsed
// or registered.
var ErrInvalidRouteFile = errors.New("invalid route file")

// File is the content of a route file.
type File struct {
	Routes []Route `json:"routes"`
}

// Route is the definition of a route.
type Route struct {
	// Method is an HTTP method, or * or empty for any method.
	Method    string   `json:"method,omitempty"`
	Path      string   `json:"path"`
	Modifiers []string `json:"modifiers,omitempty"`
	Engines   []Engine `json:"engines"`

	// Mount contains the nested routes, resolved with the catch-all
	// variable of the path.
	Mount []Route `json:"mount,omitempty"`
}

// Engine is the definition of an engine of a route.
type Engine struct {
	Name string `json:"name"`
	Args []any  `json:"args,omitempty"`
}

// UnmarshalJSON accepts the name of the engine as a string, too.
func (e *Engine) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err == nil {
		*e = Engine{Name: name}
		return nil
	}

	type plain Engine
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}

	*e = Engine(p)
	return nil
}

// Parse parses the YAML, or JSON, content of a route file.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRouteFile, err)
	}

	if err := validate(f.Routes, ""); err != nil {
		return nil, err
	}

	return &f, nil
}

func validate(routes []Route, parent string) error {
	for _, r := range routes {
		if r.Path == "" {
			return fmt.Errorf("%w: missing path%s", ErrInvalidRouteFile, parent)
		}

		for _, e := range r.Engines {
			if e.Name == "" {
				return fmt.Errorf("%w: engine without name in %s%s", ErrInvalidRouteFile, r.Path, parent)
			}
		}

		if len(r.Mount) == 0 {
			continue
		}

		if !isCatchAll(r.Path) {
			return fmt.Errorf("%w: routes mounted on %s, a path without catch-all", ErrInvalidRouteFile, r.Path)
		}

		if err := validate(r.Mount, " under "+r.Path); err != nil {
			return err
		}
	}

	return nil
}

func isCatchAll(path string) bool {
	i := strings.LastIndex(path, "/")
	last := path[i+1:]
	return strings.HasPrefix(last, "*") || strings.HasPrefix(last, "{") && strings.HasSuffix(last, "*}")
}

// Load reads and parses a local route file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return Parse(data)
}

// Options of the registration.
type Options struct {
	// Registry of the engine specifications. Required.
	Registry engines.Registry

	// Metrics, when set, measures the duration of every engine.
	Metrics engines.EngineMetrics

	// Nested contains the options of the mappings of the mounted routes.
	Nested routing.Options

	// Log receives the errors of destroying the engines of the routes
	// that could not be registered. Defaults to DefaultLog.
	Log logging.Logger
}

func (o Options) log() logging.Logger {
	if o.Log == nil {
		return &logging.DefaultLog{}
	}

	return o.Log
}

// Register creates the engines of the routes and registers the routes in
// the mapping. It stops at the first error. The routes before the failing
// one stay registered, the engines of the rest are destroyed.
func (f *File) Register(m *routing.Mapping, o Options) error {
	routes, err := createRoutes(f.Routes, o)
	if err != nil {
		return err
	}

	for i, r := range routes {
		if err := m.Register(r); err != nil {
			destroy(o, routes[i:]...)
			return err
		}
	}

	return nil
}

// destroy releases the engines created for routes that could not be
// registered.
func destroy(o Options, routes ...routing.Route) {
	var e []routing.Engine
	for _, r := range routes {
		e = append(e, r.Engines...)
	}

	routing.DestroyEngines(o.log(), e...)
}

func createRoutes(defs []Route, o Options) ([]routing.Route, error) {
	var routes []routing.Route
	for _, d := range defs {
		r := routing.Route{Method: d.Method, Path: d.Path, Modifiers: d.Modifiers}
		for _, ed := range d.Engines {
			e, err := o.Registry.Create(ed.Name, ed.Args)
			if err != nil {
				destroy(o, append(routes, r)...)
				return nil, fmt.Errorf("route %s: %w", r, err)
			}

			if o.Metrics != nil {
				e = engines.Measure(e, o.Metrics)
			}

			r.Engines = append(r.Engines, e)
		}

		if len(d.Mount) > 0 {
			nested := routing.New(o.Nested)
			nestedRoutes, err := createRoutes(d.Mount, o)
			if err != nil {
				destroy(o, append(routes, r)...)
				return nil, err
			}

			if err := nested.Register(nestedRoutes...); err != nil {
				destroy(o, append(append(routes, nestedRoutes...), r)...)
				return nil, fmt.Errorf("routes mounted on %s: %w", d.Path, err)
			}

			nested.Freeze()
			r.Engines = append(r.Engines, lookup.New(nested))
		}

		routes = append(routes, r)
	}

	return routes, nil
}
