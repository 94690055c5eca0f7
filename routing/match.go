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
	"maps"
	"slices"
)

// MatchResult is the outcome of a successful resolution. It is created
// only by the Mapping and it is not changed afterwards.
type MatchResult struct {
	node      *Node
	variables map[string]string
	engines   []Engine

	// escaped rest of the path bound by a catch-all
	rest string
}

// Node returns the matched end node.
func (mr *MatchResult) Node() *Node { return mr.node }

// Resource returns the resource of the matched node.
func (mr *MatchResult) Resource() Resource { return mr.node.resource }

// Variables returns a copy of the path variables.
func (mr *MatchResult) Variables() map[string]string { return maps.Clone(mr.variables) }

// Variable returns the value of a path variable, or empty string.
func (mr *MatchResult) Variable(name string) string { return mr.variables[name] }

// LookupVariable returns the value of a path variable and whether it was
// bound.
func (mr *MatchResult) LookupVariable(name string) (string, bool) {
	v, ok := mr.variables[name]
	return v, ok
}

// CatchAllRest returns the rest of the path bound by the catch-all of the
// matched node in its escaped form, as expected by Resolve. The value of
// the catch-all variable is the unescaped form of it.
func (mr *MatchResult) CatchAllRest() (string, bool) {
	if mr.node.seg.kind != catchAllSegment {
		return "", false
	}

	return mr.rest, true
}

// Engine returns the first engine to be invoked.
func (mr *MatchResult) Engine() Engine { return mr.engines[0] }

// Engines returns a copy of the engines bound for the request method.
func (mr *MatchResult) Engines() []Engine { return slices.Clone(mr.engines) }

func (mr *MatchResult) String() string {
	return fmt.Sprintf("%s %v", mr.node.resource.identity, mr.variables)
}
