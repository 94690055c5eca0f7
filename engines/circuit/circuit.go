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
Package circuit provides the circuit breaker engines, protecting the rest
of the chain from the load while it fails.

A failure is an error returned by the rest of the chain, or a result with
a status code of 500 or higher. While the breaker is open, the engine
short-circuits the chain with 503 Service Unavailable and the
X-Circuit-Open header. After the timeout, the breaker lets a limited
number of requests through, and closes when they succeed.

The consecutive breaker opens after a number of consecutive failures:

	engines:
	- name: consecutiveBreaker
	  args: [5, 10s, 2]

The arguments are the failures, and optionally the timeout and the number
of requests in the half-open state.

The rate breaker opens when the failures reach a number within a window
of requests, counted in intervals:

	engines:
	- name: rateBreaker
	  args: [30, 300, 1m]

The arguments are the failures, the window, and optionally the interval,
the timeout and the number of requests in the half-open state.
*/
package circuit

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/zalando/rose/engines"
	"github.com/zalando/rose/routing"
)

const (
	ConsecutiveName = "consecutiveBreaker"
	RateName        = "rateBreaker"

	OpenHeader = "X-Circuit-Open"

	DefaultTimeout          = time.Minute
	DefaultHalfOpenRequests = 1
	DefaultInterval         = time.Minute
)

// BreakerType defines the type of the breaker.
type BreakerType int

const (
	ConsecutiveFailures BreakerType = iota
	FailureRate
)

// BreakerSettings of a circuit breaker.
type BreakerSettings struct {
	Type BreakerType

	// Name identifies the breaker in the logs.
	Name string

	Failures int

	// Window is the number of requests of the failure rate.
	Window int

	// Interval is the period of clearing the counts of the failure rate.
	Interval time.Duration

	Timeout          time.Duration
	HalfOpenRequests int
}

type engine struct {
	settings BreakerSettings
	gb       *gobreaker.TwoStepCircuitBreaker
}

// New creates a circuit breaker engine.
func New(s BreakerSettings) routing.Engine {
	if s.Timeout <= 0 {
		s.Timeout = DefaultTimeout
	}

	if s.HalfOpenRequests <= 0 {
		s.HalfOpenRequests = DefaultHalfOpenRequests
	}

	gs := gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: uint32(s.HalfOpenRequests),
		Timeout:     s.Timeout,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Infof("circuit breaker %v went from %v to %v", name, from.String(), to.String())
		},
	}

	switch s.Type {
	case FailureRate:
		if s.Interval <= 0 {
			s.Interval = DefaultInterval
		}

		gs.Interval = s.Interval
		gs.ReadyToTrip = func(c gobreaker.Counts) bool {
			return c.Requests >= uint32(s.Window) && c.TotalFailures >= uint32(s.Failures)
		}
	default:
		gs.ReadyToTrip = func(c gobreaker.Counts) bool {
			return int(c.ConsecutiveFailures) >= s.Failures
		}
	}

	return &engine{settings: s, gb: gobreaker.NewTwoStepCircuitBreaker(gs)}
}

func (e *engine) Name() string {
	if e.settings.Type == FailureRate {
		return RateName
	}

	return ConsecutiveName
}

// State returns the state of the breaker: closed, half-open or open.
func (e *engine) State() string { return e.gb.State().String() }

func failed(result any, err error) bool {
	if err != nil {
		return true
	}

	if rsp, ok := result.(*engines.Response); ok {
		return rsp.Status >= http.StatusInternalServerError
	}

	return false
}

func (e *engine) Invoke(rose *routing.Rose, mr *routing.MatchResult, instruction any, chain *routing.Chain) (any, error) {
	done, err := e.gb.Allow()
	if err != nil {
		if !errors.Is(err, gobreaker.ErrOpenState) && !errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("circuit breaker %s: %w", e.settings.Name, err)
		}

		rsp := engines.StatusText(http.StatusServiceUnavailable)
		rsp.Header.Set(OpenHeader, "true")
		return rsp, nil
	}

	result, err := chain.Proceed(instruction)
	done(!failed(result, err))
	return result, err
}

func (e *engine) Destroy() error { return nil }

type spec struct {
	typ BreakerType
}

func NewConsecutiveSpec() engines.Spec { return spec{typ: ConsecutiveFailures} }

func NewRateSpec() engines.Spec { return spec{typ: FailureRate} }

func (s spec) Name() string {
	if s.typ == FailureRate {
		return RateName
	}

	return ConsecutiveName
}

func (s spec) CreateEngine(args []any) (routing.Engine, error) {
	bs := BreakerSettings{Type: s.typ}

	var err error
	next := func() any {
		a := args[0]
		args = args[1:]
		return a
	}

	required := 1
	if s.typ == FailureRate {
		required = 2
	}

	if len(args) < required || len(args) > required+3 {
		return nil, engines.ErrInvalidEngineParameters
	}

	if bs.Failures, err = engines.IntArg(next()); err != nil {
		return nil, err
	}

	if s.typ == FailureRate {
		if bs.Window, err = engines.IntArg(next()); err != nil {
			return nil, err
		}

		if len(args) > 0 {
			if bs.Interval, err = engines.DurationArg(next()); err != nil {
				return nil, err
			}
		}
	} else if len(args) > 2 {
		return nil, engines.ErrInvalidEngineParameters
	}

	if len(args) > 0 {
		if bs.Timeout, err = engines.DurationArg(next()); err != nil {
			return nil, err
		}
	}

	if len(args) > 0 {
		if bs.HalfOpenRequests, err = engines.IntArg(next()); err != nil {
			return nil, err
		}
	}

	if bs.Failures <= 0 || (s.typ == FailureRate && bs.Window < bs.Failures) {
		return nil, engines.ErrInvalidEngineParameters
	}

	bs.Name = fmt.Sprintf("%s(%v)", s.Name(), bs.Failures)
	return New(bs), nil
}
