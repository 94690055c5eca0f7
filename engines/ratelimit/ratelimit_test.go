package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zalando/rose/engines"
	"github.com/zalando/rose/engines/enginetest"
	"github.com/zalando/rose/metrics/metricstest"
	"github.com/zalando/rose/routing"
)

func serve(t *testing.T, e routing.Engine, client string) any {
	t.Helper()
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Forwarded-For", client+", 10.0.0.1")
	result, _, err := enginetest.Serve(httptest.NewRecorder(), req, "", e, enginetest.Terminal("handler", "ok"))
	require.NoError(t, err)
	return result
}

func assertTooManyRequests(t *testing.T, result any, retryAfter string) {
	t.Helper()
	rsp, ok := result.(*engines.Response)
	require.True(t, ok, "expected a response, got: %v", result)
	assert.Equal(t, http.StatusTooManyRequests, rsp.Status)
	assert.Equal(t, retryAfter, rsp.Header.Get(RetryAfterHeader))
}

func TestLocal(t *testing.T) {
	m := &metricstest.MockMetrics{}
	e, err := NewLocalSpec(m).CreateEngine([]any{2.0, "1m"})
	require.NoError(t, err)
	defer e.Destroy()

	assert.Equal(t, "ok", serve(t, e, "192.0.2.1"))
	assert.Equal(t, "ok", serve(t, e, "192.0.2.1"))
	assertTooManyRequests(t, serve(t, e, "192.0.2.1"), "30")
	assert.Equal(t, "ok", serve(t, e, "192.0.2.2"))

	c, _ := m.Counter("ratelimit.rejected.localRatelimit")
	assert.Equal(t, int64(1), c)
}

func TestLocalHeaderLookuper(t *testing.T) {
	e := NewLocal(Settings{MaxHits: 1, TimeWindow: time.Hour, Lookuper: Header("Authorization")}, nil)
	defer e.Destroy()

	send := func(auth string) any {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", auth)
		result, _, err := enginetest.Serve(httptest.NewRecorder(), req, "", e, enginetest.Terminal("handler", "ok"))
		require.NoError(t, err)
		return result
	}

	assert.Equal(t, "ok", send("a"))
	assert.Equal(t, "ok", send("b"))
	assertTooManyRequests(t, send("a"), "3600")
}

func TestLocalDropsIdleClients(t *testing.T) {
	l := NewLocal(Settings{MaxHits: 10, TimeWindow: time.Hour}, nil).(*local)
	defer l.Destroy()

	l.limiter("idle")
	l.limiter("busy").Allow()
	assert.Equal(t, 2, l.clients())

	l.dropIdle()
	assert.Equal(t, 1, l.clients())

	require.NoError(t, l.Destroy())
	require.NoError(t, l.Destroy())
}

func TestClientIP(t *testing.T) {
	for _, tt := range []struct {
		forwarded string
		remote    string
		expected  string
	}{
		{"", "192.0.2.1:1234", "192.0.2.1"},
		{"203.0.113.7, 192.0.2.1", "192.0.2.1:1234", "203.0.113.7"},
		{"", "pipe", "pipe"},
	} {
		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = tt.remote
		if tt.forwarded != "" {
			req.Header.Set("X-Forwarded-For", tt.forwarded)
		}

		rose := routing.NewHTTPRose(routing.New(routing.Options{}), httptest.NewRecorder(), req)
		assert.Equal(t, tt.expected, ClientIP(rose))
	}

	assert.Empty(t, ClientIP(routing.NewRose(context.Background(), nil, "GET", "/")))
}

type memoryCounter struct {
	mu     sync.Mutex
	counts map[string]int64
	keys   []string
	err    error
}

func (c *memoryCounter) Incr(_ context.Context, key string, _ time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return 0, c.err
	}

	if c.counts == nil {
		c.counts = make(map[string]int64)
	}

	c.counts[key]++
	c.keys = append(c.keys, key)
	return c.counts[key], nil
}

func TestCluster(t *testing.T) {
	counter := &memoryCounter{}
	m := &metricstest.MockMetrics{}
	e, err := NewClusterSpec(counter, m).CreateEngine([]any{"login", 2, "1m"})
	require.NoError(t, err)

	now := time.Date(2026, 10, 19, 12, 0, 45, 0, time.UTC)
	e.(*cluster).now = func() time.Time { return now }

	assert.Equal(t, "ok", serve(t, e, "192.0.2.1"))
	assert.Equal(t, "ok", serve(t, e, "192.0.2.1"))
	assertTooManyRequests(t, serve(t, e, "192.0.2.1"), "15")
	assert.Equal(t, "ok", serve(t, e, "192.0.2.2"))

	assert.Equal(t, "rose:ratelimit:login:192.0.2.1:1792411200", counter.keys[0])

	now = now.Add(time.Minute)
	assert.Equal(t, "ok", serve(t, e, "192.0.2.1"))

	c, _ := m.Counter("ratelimit.rejected.login")
	assert.Equal(t, int64(1), c)
	_, ok := m.Measure("ratelimit.redis.allow.login")
	assert.True(t, ok)
}

func TestClusterFailsOpen(t *testing.T) {
	m := &metricstest.MockMetrics{}
	e := NewCluster(Settings{Group: "g", MaxHits: 1, TimeWindow: time.Minute}, &memoryCounter{err: errors.New("down")}, m)

	assert.Equal(t, "ok", serve(t, e, "192.0.2.1"))
	assert.Equal(t, "ok", serve(t, e, "192.0.2.1"))

	c, _ := m.Counter("ratelimit.redis.errors")
	assert.Equal(t, int64(2), c)
}

func TestRedisCounterUnavailable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	_, err := NewRedisCounter(client).Incr(context.Background(), "key", time.Minute)
	assert.Error(t, err)

	e := NewCluster(Settings{Group: "g", MaxHits: 1, TimeWindow: time.Minute}, NewRedisCounter(client), nil)
	assert.Equal(t, "ok", serve(t, e, "192.0.2.1"))
}

func TestNewRedisClient(t *testing.T) {
	assert.Nil(t, NewRedisClient(RedisOptions{}))

	c := NewRedisClient(RedisOptions{Addrs: []string{"127.0.0.1:6379"}})
	assert.IsType(t, &redis.Client{}, c)
	c.Close()

	c = NewRedisClient(RedisOptions{Addrs: []string{"127.0.0.1:6379", "127.0.0.1:6380"}})
	assert.IsType(t, &redis.Ring{}, c)
	c.Close()
}

func TestSpecArgs(t *testing.T) {
	local := NewLocalSpec(nil)
	for _, args := range [][]any{nil, {1}, {"1", "1m"}, {0, "1m"}, {1, "-1m"}, {1, "1m", 3}, {1, "1m", "h", "x"}} {
		_, err := local.CreateEngine(args)
		assert.ErrorIs(t, err, engines.ErrInvalidEngineParameters, "%v", args)
	}

	cluster := NewClusterSpec(&memoryCounter{}, nil)
	for _, args := range [][]any{nil, {1, 1, "1m"}, {"g"}, {"g", 1}} {
		_, err := cluster.CreateEngine(args)
		assert.ErrorIs(t, err, engines.ErrInvalidEngineParameters, "%v", args)
	}

	_, err := NewClusterSpec(nil, nil).CreateEngine([]any{"g", 1, "1m"})
	assert.ErrorIs(t, err, ErrNoRedis)
}
