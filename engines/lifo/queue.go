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

package lifo

import (
	"fmt"
	"sync"
	"time"

	"github.com/aryszka/jobqueue"
	log "github.com/sirupsen/logrus"

	"github.com/zalando/rose/engines"
)

// note: Config must stay comparable because it is used to detect mismatching group configurations

// Config of a queue.
type Config struct {

	// MaxConcurrency defines how many requests are allowed to run
	// concurrently.
	MaxConcurrency int

	// MaxQueueSize defines how many requests may be waiting in the
	// queue.
	MaxQueueSize int

	// Timeout defines how long a request can be waiting in the queue.
	Timeout time.Duration
}

// QueueStatus reports the current status of a queue.
type QueueStatus struct {

	// ActiveRequests represents the number of the requests currently
	// being handled.
	ActiveRequests int

	// QueuedRequests represents the number of requests waiting to be
	// handled.
	QueuedRequests int
}

// Queue lets a limited number of requests proceed concurrently, and keeps
// the rest waiting, serving the most recent one first.
type Queue struct {
	stack  *jobqueue.Stack
	config Config

	metrics   engines.Metrics
	activeKey string
	queuedKey string
}

func jobqueueOptions(c Config) jobqueue.Options {
	return jobqueue.Options{
		MaxConcurrency: c.MaxConcurrency,
		MaxStackSize:   c.MaxQueueSize,
		Timeout:        c.Timeout,
	}
}

// NewQueue creates a queue. When m is not nil, the status of the queue
// is reported as the gauges lifo.<name>.active and lifo.<name>.queued.
func NewQueue(name string, c Config, m engines.Metrics) *Queue {
	return &Queue{
		stack:     jobqueue.With(jobqueueOptions(c)),
		config:    c,
		metrics:   m,
		activeKey: fmt.Sprintf("lifo.%s.active", name),
		queuedKey: fmt.Sprintf("lifo.%s.queued", name),
	}
}

// Wait blocks until the request can proceed or needs to be rejected. When
// it can proceed, calling done is mandatory when the request was
// processed.
func (q *Queue) Wait() (done func(), err error) {
	done, err = q.stack.Wait()
	q.measure()
	if err != nil {
		return nil, err
	}

	return func() {
		done()
		q.measure()
	}, nil
}

// Status returns the current status of the queue.
func (q *Queue) Status() QueueStatus {
	st := q.stack.Status()
	return QueueStatus{
		ActiveRequests: st.ActiveJobs,
		QueuedRequests: st.QueuedJobs,
	}
}

// Config returns the current configuration of the queue.
func (q *Queue) Config() Config {
	return q.config
}

func (q *Queue) measure() {
	if q.metrics == nil {
		return
	}

	s := q.Status()
	q.metrics.UpdateGauge(q.activeKey, float64(s.ActiveRequests))
	q.metrics.UpdateGauge(q.queuedKey, float64(s.QueuedRequests))
}

func (q *Queue) reconfigure(c Config) {
	q.config = c
	q.stack.Reconfigure(jobqueueOptions(c))
}

// Close rejects the waiting requests and releases the queue.
func (q *Queue) Close() {
	q.stack.Close()
}

type group struct {
	queue      *Queue
	configured bool
	refs       int
}

// Registry maintains the queues shared by the engines of a group. A group
// queue is closed when every engine using it was destroyed.
type Registry struct {
	metrics engines.Metrics

	mu     sync.Mutex
	groups map[string]*group
}

// NewRegistry creates a registry. The metrics are optional.
func NewRegistry(m engines.Metrics) *Registry {
	return &Registry{metrics: m, groups: make(map[string]*group)}
}

// acquire returns the queue of the group, creating it when missing. The
// first engine providing a configuration configures the queue, the
// mismatching configurations of the later ones are ignored.
func (r *Registry) acquire(name string, c Config, hasConfig bool) *Queue {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.groups[name]
	if !ok {
		g = &group{queue: NewQueue(name, c, r.metrics), configured: hasConfig}
		r.groups[name] = g
	} else if hasConfig {
		switch {
		case !g.configured:
			g.queue.reconfigure(c)
			g.configured = true
		case g.queue.Config() != c:
			log.Warnf("Found mismatching configuration for the LIFO group: %s", name)
		}
	}

	g.refs++
	return g.queue
}

func (r *Registry) release(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.groups[name]
	if !ok {
		return
	}

	g.refs--
	if g.refs <= 0 {
		g.queue.Close()
		delete(r.groups, name)
	}
}

// Queue returns the queue of a group, nil when the group is not used.
func (r *Registry) Queue(name string) *Queue {
	r.mu.Lock()
	defer r.mu.Unlock()

	if g, ok := r.groups[name]; ok {
		return g.queue
	}

	return nil
}
