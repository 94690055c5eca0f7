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
Package routefile loads route definitions from YAML files, local or
remote, and registers them in a mapping.

A route file lists the routes with their method, path pattern, optional
modifiers and engines. An engine is either a name, or a name with
arguments:

	routes:
	- method: GET
	  path: /items/{id}
	  modifiers: [public]
	  engines:
	  - flowId
	  - name: params
	    args: [id, int]
	  - name: invoke
	    args: [getItem]

A route with a catch-all path can mount nested routes. The nested routes
are registered in their own mapping, and resolved with the rest of the
path, after the engines of the mounting route:

	- path: /admin/*rest
	  engines:
	  - name: intercept
	    args: [auth]
	  mount:
	  - method: GET
	    path: /users
	    engines:
	    - name: invoke
	      args: [listUsers]

Remote route files are downloaded over HTTP, with retries.
*/
package routefile
