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
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/zalando/rose/engines"
	"github.com/zalando/rose/routing"
)

const (
	DefaultReadTimeout  = 25 * time.Millisecond
	DefaultWriteTimeout = 25 * time.Millisecond
	DefaultDialTimeout  = 100 * time.Millisecond
	DefaultPoolTimeout  = 25 * time.Millisecond

	redisKeyPrefix          = "rose:ratelimit:"
	redisErrorsMetricsKey   = "ratelimit.redis.errors"
	redisAllowMetricsFormat = "ratelimit.redis.allow.%s"
)

// ErrNoRedis is returned when creating a cluster rate limit without
// Redis.
var ErrNoRedis = errors.New("cluster rate limit requires redis")

// RedisOptions configures the connection to the Redis instances shared by
// the cluster. Multiple addresses form a ring.
type RedisOptions struct {
	Addrs        []string
	Password     string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	DialTimeout  time.Duration
	PoolTimeout  time.Duration
}

// NewRedisClient creates the client for the options, nil when no address
// is configured.
func NewRedisClient(o RedisOptions) redis.UniversalClient {
	if len(o.Addrs) == 0 {
		return nil
	}

	withDefault := func(d, def time.Duration) time.Duration {
		if d <= 0 {
			return def
		}

		return d
	}

	if len(o.Addrs) == 1 {
		return redis.NewClient(&redis.Options{
			Addr:         o.Addrs[0],
			Password:     o.Password,
			ReadTimeout:  withDefault(o.ReadTimeout, DefaultReadTimeout),
			WriteTimeout: withDefault(o.WriteTimeout, DefaultWriteTimeout),
			DialTimeout:  withDefault(o.DialTimeout, DefaultDialTimeout),
			PoolTimeout:  withDefault(o.PoolTimeout, DefaultPoolTimeout),
		})
	}

	addrs := make(map[string]string)
	for i, a := range o.Addrs {
		addrs[fmt.Sprintf("redis%d", i)] = a
	}

	return redis.NewRing(&redis.RingOptions{
		Addrs:        addrs,
		Password:     o.Password,
		ReadTimeout:  withDefault(o.ReadTimeout, DefaultReadTimeout),
		WriteTimeout: withDefault(o.WriteTimeout, DefaultWriteTimeout),
		DialTimeout:  withDefault(o.DialTimeout, DefaultDialTimeout),
		PoolTimeout:  withDefault(o.PoolTimeout, DefaultPoolTimeout),
	})
}

// Counter counts the hits of a key in a time window.
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

type redisCounter struct {
	client redis.Cmdable
}

// NewRedisCounter creates a counter storing the hits in Redis, with keys
// expiring with the window.
func NewRedisCounter(c redis.Cmdable) Counter {
	return &redisCounter{client: c}
}

func (c *redisCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	var incr *redis.IntCmd
	_, err := c.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, key)
		p.Expire(ctx, key, window)
		return nil
	})

	if err != nil {
		return 0, err
	}

	return incr.Val(), nil
}

type cluster struct {
	settings Settings
	counter  Counter
	metrics  engines.Metrics
	now      func() time.Time
}

// NewCluster creates an engine allowing MaxHits requests per TimeWindow
// and client for the group, counted in fixed windows. When the counter
// fails, the requests are allowed.
func NewCluster(s Settings, c Counter, m engines.Metrics) routing.Engine {
	return &cluster{settings: s, counter: c, metrics: m, now: time.Now}
}

func (c *cluster) Name() string { return ClusterName }

func (c *cluster) incCounter(key string) {
	if c.metrics != nil {
		c.metrics.IncCounter(key)
	}
}

func (c *cluster) Invoke(rose *routing.Rose, mr *routing.MatchResult, instruction any, chain *routing.Chain) (any, error) {
	now := c.now()
	window := now.Truncate(c.settings.TimeWindow)
	key := fmt.Sprintf("%s%s:%s:%d", redisKeyPrefix, c.settings.Group, c.settings.lookuper()(rose), window.Unix())

	start := time.Now()
	hits, err := c.counter.Incr(rose.Context(), key, c.settings.TimeWindow)
	if c.metrics != nil {
		c.metrics.MeasureSince(fmt.Sprintf(redisAllowMetricsFormat, c.settings.Group), start)
	}

	if err != nil {
		log.Errorf("failed to count the hits of the cluster rate limit %s: %v", c.settings.Group, err)
		c.incCounter(redisErrorsMetricsKey)
		return chain.Proceed(instruction)
	}

	if hits > int64(c.settings.MaxHits) {
		c.incCounter(rejectedMetricsKey + c.settings.Group)
		return tooManyRequests(window.Add(c.settings.TimeWindow).Sub(now)), nil
	}

	return chain.Proceed(instruction)
}

func (c *cluster) Destroy() error { return nil }

type clusterSpec struct {
	counter Counter
	metrics engines.Metrics
}

// NewClusterSpec creates the specification of the cluster rate limit.
// When the counter is nil, creating the engines fails with ErrNoRedis.
func NewClusterSpec(c Counter, m engines.Metrics) engines.Spec {
	return &clusterSpec{counter: c, metrics: m}
}

func (s *clusterSpec) Name() string { return ClusterName }

func (s *clusterSpec) CreateEngine(args []any) (routing.Engine, error) {
	if s.counter == nil {
		return nil, ErrNoRedis
	}

	if len(args) == 0 {
		return nil, engines.ErrInvalidEngineParameters
	}

	group, err := engines.StringArg(args[0])
	if err != nil {
		return nil, err
	}

	settings, err := parseLimitArgs(args[1:])
	if err != nil {
		return nil, err
	}

	settings.Group = group
	return NewCluster(settings, s.counter, s.metrics), nil
}
