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
)

// AnyMethod binds engines to every method without an explicit binding.
const AnyMethod = "*"

type binding struct {
	method  string
	engines []Engine
}

// Node is a node of the mapping tree.
type Node struct {
	resource Resource
	seg      segment

	// relation only, never used for traversal
	parent *Node

	// registration order
	children []*Node

	literals map[string]*Node
	variable *Node
	catchAll *Node

	bindings []binding
}

func newRoot() *Node {
	return &Node{resource: Resource{identity: "/"}}
}

// Resource returns the descriptor of the node.
func (n *Node) Resource() Resource { return n.resource }

// Segment returns the normalized pattern segment of the node, empty for
// the root.
func (n *Node) Segment() string { return n.seg.key() }

// CatchAllVariable returns the name of the variable when the node is a
// catch-all.
func (n *Node) CatchAllVariable() (string, bool) {
	if n.seg.kind != catchAllSegment {
		return "", false
	}

	return n.seg.text, true
}

// Parent returns the parent node, nil for the root.
func (n *Node) Parent() *Node { return n.parent }

// Children returns the child nodes in registration order.
func (n *Node) Children() []*Node { return slices.Clone(n.children) }

// Child returns the child with the normalized segment key, e.g. "list",
// "{id}" or "*path".
func (n *Node) Child(key string) *Node {
	for _, c := range n.children {
		if c.seg.key() == key {
			return c
		}
	}

	return nil
}

// IsEndResource tells whether the node has engines bound to it.
func (n *Node) IsEndResource() bool { return len(n.bindings) > 0 }

// Methods returns the bound methods in registration order.
func (n *Node) Methods() []string {
	methods := make([]string, len(n.bindings))
	for i, b := range n.bindings {
		methods[i] = b.method
	}

	return methods
}

// Engines returns a copy of the engines to be invoked for a request
// method, nil if the node cannot serve the method.
func (n *Node) Engines(method string) []Engine {
	return slices.Clone(n.lookup(strings.ToUpper(method)))
}

func (n *Node) lookup(method string) []Engine {
	var anyMethod []Engine
	for _, b := range n.bindings {
		if b.method == method {
			return b.engines
		}

		if b.method == AnyMethod {
			anyMethod = b.engines
		}
	}

	if anyMethod != nil {
		return anyMethod
	}

	if method == http.MethodHead {
		return n.lookup(http.MethodGet)
	}

	return nil
}

// Iterate returns the pre-order sequence of the nodes in the subtree,
// starting with n. Children are visited in registration order.
func (n *Node) Iterate() iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		n.walk(yield)
	}
}

func (n *Node) walk(yield func(*Node) bool) bool {
	if !yield(n) {
		return false
	}

	for _, c := range n.children {
		if !c.walk(yield) {
			return false
		}
	}

	return true
}

func (n *Node) String() string {
	if !n.IsEndResource() {
		return n.resource.String()
	}

	return fmt.Sprintf("%s %s", n.resource, strings.Join(n.Methods(), ","))
}

func (n *Node) newChild(s segment) *Node {
	c := &Node{
		resource: Resource{identity: joinIdentity(n.resource.identity, s.key())},
		seg:      s,
		parent:   n,
	}

	n.children = append(n.children, c)
	return c
}

func (n *Node) conflict(existing *Node, s segment) error {
	return fmt.Errorf(
		"%w: %s conflicts with %s under %s",
		ErrConflictingSegment, s.key(), existing.seg.key(), n.resource.identity,
	)
}

// child returns the child for the segment, creating it when missing.
func (n *Node) child(s segment) (*Node, error) {
	switch s.kind {
	case variableSegment:
		if n.variable != nil {
			if n.variable.seg.key() != s.key() {
				return nil, n.conflict(n.variable, s)
			}

			return n.variable, nil
		}

		n.variable = n.newChild(s)
		return n.variable, nil
	case catchAllSegment:
		if n.catchAll != nil {
			if n.catchAll.seg.key() != s.key() {
				return nil, n.conflict(n.catchAll, s)
			}

			return n.catchAll, nil
		}

		n.catchAll = n.newChild(s)
		return n.catchAll, nil
	default:
		if c, ok := n.literals[s.text]; ok {
			return c, nil
		}

		if n.literals == nil {
			n.literals = make(map[string]*Node)
		}

		c := n.newChild(s)
		n.literals[s.text] = c
		return c, nil
	}
}

func (n *Node) bind(method string, modifiers []string, engines []Engine) error {
	for _, b := range n.bindings {
		if b.method == method {
			return fmt.Errorf("%w: %s %s", ErrDuplicateRoute, method, n.resource.identity)
		}
	}

	n.bindings = append(n.bindings, binding{method: method, engines: slices.Clone(engines)})
	n.resource = n.resource.bound(modifiers)
	return nil
}
