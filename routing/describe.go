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

// Binding describes the engines bound to a method.
type Binding struct {
	Method  string   `json:"method"`
	Engines []string `json:"engines"`
}

// Description is the JSON serializable view of a subtree, used by the
// admin endpoints.
type Description struct {
	Identity  string         `json:"identity"`
	Segment   string         `json:"segment,omitempty"`
	End       bool           `json:"end,omitempty"`
	Modifiers []string       `json:"modifiers,omitempty"`
	Bindings  []Binding      `json:"bindings,omitempty"`
	Children  []*Description `json:"children,omitempty"`
}

// Describe returns the view of the subtree of n.
func (n *Node) Describe() *Description {
	d := &Description{
		Identity:  n.resource.identity,
		Segment:   n.seg.key(),
		End:       n.resource.end,
		Modifiers: n.resource.Modifiers(),
	}

	for _, b := range n.bindings {
		names := make([]string, len(b.engines))
		for i, e := range b.engines {
			names[i] = EngineName(e)
		}

		d.Bindings = append(d.Bindings, Binding{Method: b.method, Engines: names})
	}

	for _, c := range n.children {
		d.Children = append(d.Children, c.Describe())
	}

	return d
}

// Describe returns the view of the whole tree.
func (m *Mapping) Describe() *Description { return m.root.Describe() }
