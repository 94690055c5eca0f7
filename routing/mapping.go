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
	"fmt"
	"iter"
	"net/http"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/zalando/rose/logging"
)

// MatchingOptions controls the request path matching.
type MatchingOptions uint

const (
	// MatchingOptionsNone is the default: /a/ does not match /a.
	MatchingOptionsNone MatchingOptions = 0

	// IgnoreTrailingSlash drops the trailing slash of the request path
	// before matching.
	IgnoreTrailingSlash MatchingOptions = 1 << iota
)

func (o MatchingOptions) ignoreTrailingSlash() bool {
	return o&IgnoreTrailingSlash > 0
}

// Options of a Mapping.
type Options struct {
	MatchingOptions MatchingOptions

	// Log receives the registration and shutdown messages. Defaults to
	// logging.DefaultLog.
	Log logging.Logger
}

// Route binds an ordered list of engines to a method and a path pattern.
type Route struct {
	// Method is an HTTP method, or * or empty for any method.
	Method string

	Path string

	// Modifiers tag the resource of the end node.
	Modifiers []string

	Engines []Engine
}

func (r Route) String() string {
	return fmt.Sprintf("%s %s", normalizeMethod(r.Method), r.Path)
}

// Mapping is the tree of the registered routes.
//
// The routes are registered during startup. After Freeze, the mapping is
// read only and safe for concurrent use. Resolving before Freeze must not
// run concurrently with the registration.
type Mapping struct {
	root    *Node
	options MatchingOptions
	log     logging.Logger

	mu     sync.Mutex
	frozen atomic.Bool

	destroyMu  sync.Mutex
	destroyed  bool
	destroyErr error
}

// New creates an empty mapping with only the root node.
func New(o Options) *Mapping {
	l := o.Log
	if l == nil {
		l = &logging.DefaultLog{}
	}

	return &Mapping{
		root:    newRoot(),
		options: o.MatchingOptions,
		log:     l,
	}
}

func normalizeMethod(m string) string {
	if m == "" {
		return AnyMethod
	}

	return strings.ToUpper(m)
}

// Add registers a single route.
func (m *Mapping) Add(method, pattern string, engines ...Engine) error {
	return m.Register(Route{Method: method, Path: pattern, Engines: engines})
}

// Register registers the routes in order. It stops at the first invalid
// route and returns its error, the routes before it stay registered. An
// invalid route leaves the tree unchanged.
func (m *Mapping) Register(routes ...Route) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.frozen.Load() {
		return ErrFrozen
	}

	for _, r := range routes {
		if err := m.register(r); err != nil {
			m.log.Errorf("failed to register route %v: %v", r, err)
			return err
		}

		m.log.Debugf("route registered: %v", r)
	}

	return nil
}

func (m *Mapping) register(r Route) error {
	if len(r.Engines) == 0 {
		return fmt.Errorf("%w: %v", ErrNoEngines, r)
	}

	for i, e := range r.Engines {
		if e == nil {
			return fmt.Errorf("%w: %v, engine %d is nil", ErrNoEngines, r, i)
		}
	}

	segments, err := parsePattern(r.Path)
	if err != nil {
		return err
	}

	method := normalizeMethod(r.Method)
	if err := m.check(segments, method); err != nil {
		return err
	}

	n := m.root
	for _, s := range segments {
		if n, err = n.child(s); err != nil {
			return err
		}
	}

	return n.bind(method, r.Modifiers, r.Engines)
}

// check verifies that the route can be inserted without modifying the
// tree, so a failing route leaves no dangling nodes behind.
func (m *Mapping) check(segments []segment, method string) error {
	n := m.root
	for _, s := range segments {
		var next *Node
		switch s.kind {
		case variableSegment:
			next = n.variable
		case catchAllSegment:
			next = n.catchAll
		default:
			next = n.literals[s.text]
		}

		if next == nil {
			return nil
		}

		if next.seg.key() != s.key() {
			return n.conflict(next, s)
		}

		n = next
	}

	if slices.Contains(n.Methods(), method) {
		return fmt.Errorf("%w: %s %s", ErrDuplicateRoute, method, n.resource.identity)
	}

	return nil
}

// Freeze ends the registration phase. Calling it more than once is a
// no-op.
func (m *Mapping) Freeze() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.frozen.Swap(true) {
		return
	}

	m.log.Infof(
		"mapping frozen, %d nodes, %d end resources",
		m.Count("", false), m.Count("", true),
	)
}

// Frozen tells whether Freeze was called.
func (m *Mapping) Frozen() bool { return m.frozen.Load() }

// Root returns the root node, with the identity /.
func (m *Mapping) Root() *Node { return m.root }

// Iterate returns the pre-order sequence of all the nodes in the tree.
func (m *Mapping) Iterate() iter.Seq[*Node] { return m.root.Iterate() }

// Count returns the number of nodes whose identity starts with prefix.
// When endOnly is set, only end resources are counted.
func (m *Mapping) Count(prefix string, endOnly bool) int {
	var c int
	for n := range m.Iterate() {
		if endOnly && !n.IsEndResource() {
			continue
		}

		if strings.HasPrefix(n.resource.identity, prefix) {
			c++
		}
	}

	return c
}

// Lookup returns the node registered for a pattern, nil if the pattern was
// not registered. It compares the normalized pattern, so /items/:id finds
// /items/{id}.
func (m *Mapping) Lookup(pattern string) *Node {
	segments, err := parsePattern(pattern)
	if err != nil {
		return nil
	}

	n := m.root
	for _, s := range segments {
		switch s.kind {
		case variableSegment:
			n = n.variable
		case catchAllSegment:
			n = n.catchAll
		default:
			n = n.literals[s.text]
		}

		if n == nil || n.seg.key() != s.key() {
			return nil
		}
	}

	return n
}

// Resolve finds the end node and the engines for a request method and
// path. The path is expected in its escaped form, as returned by
// url.URL.EscapedPath. The returned errors wrap ErrResolution: ErrNotFound
// or *MethodNotAllowedError.
func (m *Mapping) Resolve(method, path string) (*MatchResult, error) {
	return m.resolve(method, path, nil)
}

// ResolveNested is like Resolve, but the variables of the result also
// contain the variables of the parent match. Used by engines mounting a
// nested mapping under a catch-all.
func (m *Mapping) ResolveNested(method, path string, parent *MatchResult) (*MatchResult, error) {
	var seed map[string]string
	if parent != nil {
		seed = parent.variables
	}

	return m.resolve(method, path, seed)
}

func (m *Mapping) resolve(method, path string, seed map[string]string) (*MatchResult, error) {
	segments, ok := splitPath(path, m.options)
	if !ok {
		return nil, ErrNotFound
	}

	s := &searcher{method: strings.ToUpper(method)}
	n, engines, vars := s.search(m.root, segments)
	if n == nil {
		if s.allowed != nil {
			return nil, &MethodNotAllowedError{Method: s.method, Path: path, Allowed: s.allowed}
		}

		return nil, ErrNotFound
	}

	variables := make(map[string]string, len(seed)+len(vars))
	for k, v := range seed {
		variables[k] = v
	}

	var rest string
	for _, v := range vars {
		variables[v.name] = v.value
		if v.escaped != "" {
			rest = v.escaped
		}
	}

	return &MatchResult{node: n, variables: variables, engines: engines, rest: rest}, nil
}

func splitPath(path string, o MatchingOptions) ([]string, bool) {
	if path == "" {
		path = "/"
	}

	if path[0] != '/' {
		return nil, false
	}

	if o.ignoreTrailingSlash() && len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}

	if path == "/" {
		return nil, true
	}

	return strings.Split(path[1:], "/"), true
}

type variable struct {
	name, value string

	// set only for catch-alls
	escaped string
}

type searcher struct {
	method string

	// methods of the first end node matching the path without matching
	// the method
	allowed []string
}

func (s *searcher) search(n *Node, rest []string) (*Node, []Engine, []variable) {
	if len(rest) == 0 {
		if engines := s.terminal(n); engines != nil {
			return n, engines, nil
		}

		if n.catchAll != nil {
			return s.catchAll(n.catchAll, rest)
		}

		return nil, nil, nil
	}

	value := unescapeSegment(rest[0])
	if c := n.literals[value]; c != nil {
		if target, engines, vars := s.search(c, rest[1:]); target != nil {
			return target, engines, vars
		}
	}

	if c := n.variable; c != nil && c.seg.accepts(value) {
		if target, engines, vars := s.search(c, rest[1:]); target != nil {
			return target, engines, append(vars, variable{name: c.seg.text, value: value})
		}
	}

	if n.catchAll != nil {
		return s.catchAll(n.catchAll, rest)
	}

	return nil, nil, nil
}

func (s *searcher) catchAll(n *Node, rest []string) (*Node, []Engine, []variable) {
	engines := s.terminal(n)
	if engines == nil {
		return nil, nil, nil
	}

	escaped := "/" + strings.Join(rest, "/")
	return n, engines, []variable{{name: n.seg.text, value: unescapeSegment(escaped), escaped: escaped}}
}

func (s *searcher) terminal(n *Node) []Engine {
	if !n.IsEndResource() {
		return nil
	}

	if engines := n.lookup(s.method); engines != nil {
		return engines
	}

	if s.allowed == nil {
		s.allowed = allowedMethods(n)
	}

	return nil
}

func allowedMethods(n *Node) []string {
	methods := n.Methods()
	if slices.Contains(methods, http.MethodGet) && !slices.Contains(methods, http.MethodHead) {
		methods = append(methods, http.MethodHead)
	}

	slices.Sort(methods)
	return methods
}
