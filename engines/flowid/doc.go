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
Package flowid implements the engine identifying the requests through
their complete lifecycle, for logging and monitoring.

The flow id is stored as a request attribute, set on the request as the
X-Flow-Id header for the engines invoked later, and set on the response.

The engine takes 2 optional parameters:

 1. "reuse" to accept an existing, valid X-Flow-Id header of the request
 2. the generator: "standard" (default), "ulid" or "uuid"

Usage:

	engines:
	- name: flowId
	  args: [reuse, ulid]

The standard generator creates random 16 characters long flow ids from a
64 characters alphabet. The ULID generator creates lexicographically
sortable ids of 26 characters. The UUID generator creates random version
4 UUIDs.
*/
package flowid
