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
Package metrics implements collection of common performance metrics.

It supports two backends, Prometheus and the Go implementation of the Coda
Hale metrics library:

https://github.com/dropwizard/metrics

The collected metrics include the time of looking up routes, the routing
failures, the time spent with the engines of a route, the total time of
serving a request by route, method and status code, and the engines that
failed to be destroyed during shutdown.

For the keys used for the different CodaHale metrics, please, see the Key*
constants. The Prometheus metrics are prefixed with the rose namespace.

# Options

The metrics are served on the support listener, under /metrics. With the
format all, the CodaHale metrics are returned when the request has the
Accept header application/codahale+json.
*/
package metrics
