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
	"slices"
	"strings"
)

// Resource describes a mapped path. It is a value type: the tree replaces
// the resource of a node instead of changing it.
type Resource struct {
	identity  string
	end       bool
	modifiers []string
}

// NewResource creates a resource. The modifiers are deduplicated and
// sorted.
func NewResource(identity string, end bool, modifiers ...string) Resource {
	return Resource{identity: identity, end: end, modifiers: normalizeModifiers(nil, modifiers)}
}

func normalizeModifiers(current, added []string) []string {
	if len(current) == 0 && len(added) == 0 {
		return nil
	}

	m := make([]string, 0, len(current)+len(added))
	m = append(m, current...)
	for _, a := range added {
		if a != "" {
			m = append(m, a)
		}
	}

	slices.Sort(m)
	return slices.Compact(m)
}

// Identity returns the pattern path of the resource, e.g. /items/{id}.
func (r Resource) Identity() string { return r.identity }

// IsEndResource tells whether the resource terminates an invocable
// mapping.
func (r Resource) IsEndResource() bool { return r.end }

// Modifiers returns a copy of the modifier tags.
func (r Resource) Modifiers() []string { return slices.Clone(r.modifiers) }

// HasModifier tells whether the resource was tagged with m.
func (r Resource) HasModifier(m string) bool {
	_, found := slices.BinarySearch(r.modifiers, m)
	return found
}

func (r Resource) String() string {
	var b strings.Builder
	b.WriteString(r.identity)
	if r.end {
		b.WriteString(" (end)")
	}

	if len(r.modifiers) > 0 {
		b.WriteString(" [")
		b.WriteString(strings.Join(r.modifiers, ","))
		b.WriteString("]")
	}

	return b.String()
}

func (r Resource) bound(modifiers []string) Resource {
	return Resource{
		identity:  r.identity,
		end:       true,
		modifiers: normalizeModifiers(r.modifiers, modifiers),
	}
}
