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
Package routing implements the request dispatch core: a mapping tree of
path patterns bound to ordered lists of engines, the resolution of request
paths against the tree, and the chain protocol driving the engines of a
match.

# Mapping Tree

Route patterns are registered during startup with Mapping.Add or
Mapping.Register. Every segment of a pattern becomes a Node in the tree.
A node's Resource carries its identity, the pattern path from the root,
e.g. /items/{id}, and whether it is an end resource, a node with engines
bound to it. After startup the mapping is frozen with Mapping.Freeze, and
from then on it is read by any number of requests without locking.

Pattern segments can be:

- literal text, e.g. /user/list

- a variable, matching a single non-empty segment, e.g. /user/{id} or
/user/:id. A variable can be constrained with a regular expression matching
the whole segment: /user/{id:[0-9]+}

- a catch-all, as the last segment, matching the rest of the path,
including the slashes: /assets/*path or /assets/{path*}. The bound value
starts with a slash.

On the same level, literal children are preferred over the variable child,
and the variable child over the catch-all. When the preferred branch fails
deeper in the tree, the resolution backtracks to the next alternative.

Two different variables, or two different catch-alls, cannot be declared
as siblings, and the same method cannot be bound twice to the same node:
the registration of such routes fails.

# Methods

The engines are bound to a node per request method. Routes registered
with the method * (or empty) match any method not bound explicitly. HEAD
requests fall back to the GET binding. When the path matches an end node
but the method does not, the resolution fails with a MethodNotAllowedError.

# Engines and Chains

An Engine is a unit of request processing. For a match, a Chain is created
with the engines of the matched node. Calling Proceed on the chain invokes
the next engine, passing it the view of the rest of the chain. An engine
delegates by calling Proceed on the chain it received, or short-circuits by
returning without it. Calling Proceed twice on the same view, or after the
last engine, is a protocol violation.

	e := routing.Func("hello", func(r *routing.Rose, m *routing.MatchResult, _ any, _ *routing.Chain) (any, error) {
	    return "hello " + m.Variable("name"), nil
	})

	m := routing.New(routing.Options{})
	if err := m.Add("GET", "/hello/{name}", e); err != nil {
	    log.Fatal(err)
	}

	m.Freeze()

	mr, err := m.Resolve("GET", "/hello/world")
	if err != nil {
	    log.Fatal(err)
	}

	result, err := routing.NewChain(routing.NewRose(context.Background(), m, "GET", "/hello/world"), mr).Proceed(nil)

# Shutdown

Mapping.Destroy calls Destroy on every distinct engine of the tree exactly
once. Failing engines are logged, and the rest of the engines are still
destroyed.
*/
package routing
