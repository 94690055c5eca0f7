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

package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/zalando/rose/engines"
	"github.com/zalando/rose/routing"
)

type local struct {
	settings Settings
	limit    rate.Limit
	metrics  engines.Metrics

	mu       sync.Mutex
	limiters map[string]*rate.Limiter

	quit      chan struct{}
	closeOnce sync.Once
}

// NewLocal creates an engine allowing MaxHits requests per TimeWindow
// and client, with bursts up to MaxHits. The idle clients are dropped
// periodically, until the engine is destroyed.
func NewLocal(s Settings, m engines.Metrics) routing.Engine {
	l := &local{
		settings: s,
		limit:    rate.Every(s.TimeWindow / time.Duration(s.MaxHits)),
		metrics:  m,
		limiters: make(map[string]*rate.Limiter),
		quit:     make(chan struct{}),
	}

	go l.cleanup()
	return l
}

func (l *local) cleanup() {
	ticker := time.NewTicker(l.settings.TimeWindow)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.dropIdle()
		case <-l.quit:
			return
		}
	}
}

// dropIdle removes the limiters with a full bucket.
func (l *local) dropIdle() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, lim := range l.limiters {
		if lim.Tokens() >= float64(l.settings.MaxHits) {
			delete(l.limiters, k)
		}
	}
}

func (l *local) limiter(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.settings.MaxHits)
		l.limiters[key] = lim
	}

	return lim
}

func (l *local) clients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

func (l *local) Name() string { return LocalName }

func (l *local) Invoke(rose *routing.Rose, mr *routing.MatchResult, instruction any, chain *routing.Chain) (any, error) {
	lim := l.limiter(l.settings.lookuper()(rose))
	if !lim.Allow() {
		if l.metrics != nil {
			l.metrics.IncCounter(rejectedMetricsKey + LocalName)
		}

		return tooManyRequests(time.Duration(float64(time.Second) / float64(l.limit))), nil
	}

	return chain.Proceed(instruction)
}

func (l *local) Destroy() error {
	l.closeOnce.Do(func() { close(l.quit) })
	return nil
}

type localSpec struct {
	metrics engines.Metrics
}

// NewLocalSpec creates the specification of the local rate limit. The
// metrics may be nil.
func NewLocalSpec(m engines.Metrics) engines.Spec {
	return &localSpec{metrics: m}
}

func (s *localSpec) Name() string { return LocalName }

func (s *localSpec) CreateEngine(args []any) (routing.Engine, error) {
	settings, err := parseLimitArgs(args)
	if err != nil {
		return nil, err
	}

	return NewLocal(settings, s.metrics), nil
}
