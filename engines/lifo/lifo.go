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
Package lifo provides engines limiting the number of the requests
processed concurrently by the rest of the chain. The requests over the
limit wait in a queue, and the most recent one proceeds first, so that
under overload the clients still waiting get served, and the ones that
likely gave up already time out.

The lifo engine has its own queue:

	- name: lifo
	  args: [100, 50, 10s]

The arguments are the maximum concurrency, the maximum queue size and
the timeout of waiting, all optional, defaulting to 100, 100 and 10s.

The lifoGroup engines share the queue of the group:

	- name: lifoGroup
	  args: [items, 100, 50, 10s]

Only one engine of a group needs to set the configuration.

When the queue is full, the response is 503 Service Unavailable, when
waiting times out, it is 502 Bad Gateway.
*/
package lifo

import (
	"errors"
	"net/http"
	"time"

	"github.com/aryszka/jobqueue"
	log "github.com/sirupsen/logrus"

	"github.com/zalando/rose/engines"
	"github.com/zalando/rose/routing"
)

const (
	LIFOName      = "lifo"
	LIFOGroupName = "lifoGroup"

	defaultMaxConcurrency = 100
	defaultMaxQueueSize   = 100
	defaultTimeout        = 10 * time.Second
)

type engine struct {
	name    string
	queue   *Queue
	destroy func()
}

// New creates an engine with its own queue.
func New(c Config) routing.Engine {
	q := NewQueue(LIFOName, c, nil)
	return &engine{name: LIFOName, queue: q, destroy: q.Close}
}

// NewGroup creates an engine using the queue of the group. When
// hasConfig is false, the configuration is taken from another engine of
// the group.
func NewGroup(r *Registry, name string, c Config, hasConfig bool) routing.Engine {
	return &engine{
		name:    LIFOGroupName,
		queue:   r.acquire(name, c, hasConfig),
		destroy: func() { r.release(name) },
	}
}

func (e *engine) Name() string { return e.name }

func (e *engine) Invoke(rose *routing.Rose, mr *routing.MatchResult, instruction any, chain *routing.Chain) (any, error) {
	done, err := e.queue.Wait()
	if err != nil {
		switch {
		case errors.Is(err, jobqueue.ErrStackFull):
			log.Errorf("Failed to get an entry on to the queue to process QueueFull: %v for %s %s", err, rose.Method(), rose.Path())
			return engines.NewResponse(http.StatusServiceUnavailable, "Queue Full"), nil
		case errors.Is(err, jobqueue.ErrTimeout):
			log.Errorf("Failed to get an entry on to the queue to process Timeout: %v for %s %s", err, rose.Method(), rose.Path())
			return engines.NewResponse(http.StatusBadGateway, "Queue timeout"), nil
		default:
			log.Errorf("Unknown error for LIFO: %v for %s %s", err, rose.Method(), rose.Path())
			return engines.StatusText(http.StatusServiceUnavailable), nil
		}
	}

	defer done()
	return chain.Proceed(instruction)
}

func (e *engine) Destroy() error {
	e.destroy()
	return nil
}

// parseConfig parses the optional concurrency, queue size and timeout.
func parseConfig(args []any) (Config, error) {
	c := Config{
		MaxConcurrency: defaultMaxConcurrency,
		MaxQueueSize:   defaultMaxQueueSize,
		Timeout:        defaultTimeout,
	}

	if len(args) > 3 {
		return c, engines.ErrInvalidEngineParameters
	}

	if len(args) > 0 {
		v, err := engines.IntArg(args[0])
		if err != nil {
			return c, err
		}

		if v >= 1 {
			c.MaxConcurrency = v
		}
	}

	if len(args) > 1 {
		v, err := engines.IntArg(args[1])
		if err != nil {
			return c, err
		}

		if v >= 0 {
			c.MaxQueueSize = v
		}
	}

	if len(args) > 2 {
		d, err := engines.DurationArg(args[2])
		if err != nil {
			return c, err
		}

		if d < time.Millisecond {
			d = time.Millisecond
		}

		c.Timeout = d
	}

	return c, nil
}

type spec struct{}

type groupSpec struct {
	registry *Registry
}

// NewSpec creates the specification of the lifo engine.
func NewSpec() engines.Spec { return spec{} }

// NewGroupSpec creates the specification of the lifoGroup engine. The
// status of the group queues is reported by the metrics of the registry.
func NewGroupSpec(r *Registry) engines.Spec { return groupSpec{registry: r} }

func (spec) Name() string { return LIFOName }

func (spec) CreateEngine(args []any) (routing.Engine, error) {
	c, err := parseConfig(args)
	if err != nil {
		return nil, err
	}

	return New(c), nil
}

func (groupSpec) Name() string { return LIFOGroupName }

func (s groupSpec) CreateEngine(args []any) (routing.Engine, error) {
	if len(args) == 0 {
		return nil, engines.ErrInvalidEngineParameters
	}

	name, err := engines.StringArg(args[0])
	if err != nil || name == "" {
		return nil, engines.ErrInvalidEngineParameters
	}

	c, err := parseConfig(args[1:])
	if err != nil {
		return nil, err
	}

	return NewGroup(s.registry, name, c, len(args) > 1), nil
}
