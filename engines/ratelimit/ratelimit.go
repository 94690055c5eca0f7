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
Package ratelimit provides the engines limiting the rate of the requests
per client, short-circuiting the chain with 429 Too Many Requests.

The local rate limit keeps a token bucket per client in the memory of the
instance:

	engines:
	- name: localRatelimit
	  args: [20, 1m]

The cluster rate limit counts the requests of a group in fixed time
windows in Redis, shared by all the instances:

	engines:
	- name: clusterRatelimit
	  args: [login, 100, 1h]

Clients are identified by the first X-Forwarded-For address, or the
remote address of the request. An optional last argument names a header
identifying the clients instead, e.g. Authorization.
*/
package ratelimit

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/zalando/rose/engines"
	"github.com/zalando/rose/routing"
)

const (
	LocalName   = "localRatelimit"
	ClusterName = "clusterRatelimit"

	RetryAfterHeader = "Retry-After"

	rejectedMetricsKey = "ratelimit.rejected."
)

// Lookuper returns the key of the client of a request.
type Lookuper func(*routing.Rose) string

// ClientIP identifies the clients by the first X-Forwarded-For address,
// or the remote address.
func ClientIP(rose *routing.Rose) string {
	req := rose.Request()
	if req == nil {
		return ""
	}

	if ff := req.Header.Get("X-Forwarded-For"); ff != "" {
		first, _, _ := strings.Cut(ff, ",")
		return strings.TrimSpace(first)
	}

	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return req.RemoteAddr
	}

	return host
}

// Header identifies the clients by the value of a request header.
func Header(name string) Lookuper {
	return func(rose *routing.Rose) string {
		if req := rose.Request(); req != nil {
			return req.Header.Get(name)
		}

		return ""
	}
}

// Settings of a rate limit.
type Settings struct {
	MaxHits    int
	TimeWindow time.Duration

	// Group is the shared name of the cluster rate limit.
	Group string

	Lookuper Lookuper
}

func (s Settings) lookuper() Lookuper {
	if s.Lookuper == nil {
		return ClientIP
	}

	return s.Lookuper
}

func tooManyRequests(retryAfter time.Duration) *engines.Response {
	rsp := engines.StatusText(http.StatusTooManyRequests)
	seconds := int(math.Ceil(retryAfter.Seconds()))
	if seconds < 1 {
		seconds = 1
	}

	rsp.Header.Set(RetryAfterHeader, strconv.Itoa(seconds))
	return rsp
}

// parseLimitArgs parses the arguments: max hits, time window and an
// optional header name.
func parseLimitArgs(args []any) (Settings, error) {
	if len(args) < 2 || len(args) > 3 {
		return Settings{}, engines.ErrInvalidEngineParameters
	}

	maxHits, err := engines.IntArg(args[0])
	if err != nil {
		return Settings{}, err
	}

	window, err := engines.DurationArg(args[1])
	if err != nil {
		return Settings{}, err
	}

	if maxHits <= 0 || window <= 0 {
		return Settings{}, engines.ErrInvalidEngineParameters
	}

	s := Settings{MaxHits: maxHits, TimeWindow: window}
	if len(args) == 3 {
		h, err := engines.StringArg(args[2])
		if err != nil {
			return Settings{}, err
		}

		s.Lookuper = Header(h)
	}

	return s, nil
}
