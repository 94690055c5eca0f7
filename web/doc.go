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
Package web provides the HTTP entry point of the request dispatch, and
the introspection API of the mapping.

For every request, the Handler creates the request context, resolves the
path and the method in the mapping, and runs the chain of engines of the
match. The result of the chain is rendered as the response:

	- a Responder, e.g. *engines.Response, writes itself
	- a string is written as text/plain
	- a []byte is written as application/octet-stream
	- nil results in 204 No Content, unless the chain wrote the response
	- anything else is encoded as JSON

When the chain already wrote the response, the result is ignored.

Resolution failures result in 404 Not Found, or 405 Method Not Allowed
with the Allow header. Errors implementing StatusCoder set the status of
the response, other errors and the panics of the engines result in 500
Internal Server Error.

The admin handler serves the introspection API:

	GET /rose-info/tree                      the JSON description of the tree
	GET /rose-info/count?prefix=/items&end   the number of nodes
*/
package web
