package config

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zalando/rose"
	"github.com/zalando/rose/engines/ratelimit"
	"github.com/zalando/rose/metrics"
	"github.com/zalando/rose/routefile"
)

func TestEnvOverridesRedisPassword(t *testing.T) {
	for _, tt := range []struct {
		name string
		args []string
		env  string
		want string
	}{{
		name: "don't set redis password either from file nor environment",
		args: []string{"rose"},
		want: "",
	}, {
		name: "set redis password from environment",
		args: []string{"rose"},
		env:  "set_from_env",
		want: "set_from_env",
	}, {
		name: "set redis password from config file and ignore environment",
		args: []string{"rose", "-config-file=testdata/test.yaml"},
		env:  "set_from_env",
		want: "set_from_file",
	}} {
		t.Run(tt.name, func(t *testing.T) {
			if tt.env != "" {
				t.Setenv(redisPasswordEnv, tt.env)
			}

			cfg := NewConfig()
			require.NoError(t, cfg.ParseArgs(tt.args[0], tt.args[1:]))
			assert.Equal(t, tt.want, cfg.RedisPassword)
		})
	}
}

func TestDefaults(t *testing.T) {
	cfg := NewConfig()
	require.NoError(t, cfg.ParseArgs("rose", nil))

	expected := rose.Options{
		Address:            rose.DefaultAddress,
		SupportListener:    rose.DefaultSupportListener,
		NotFoundStatus:     http.StatusNotFound,
		ShutdownTimeout:    rose.DefaultShutdownTimeout,
		RoutesFileTimeout:  routefile.DefaultHTTPTimeout,
		RoutesFileMaxTries: routefile.DefaultMaxTries,

		ApplicationLogLevel:  log.InfoLevel,
		ApplicationLogPrefix: "[APP]",

		MetricsFlavour:       metrics.CodaHaleKind,
		MetricsPrefix:        "rose.",
		EnableRuntimeMetrics: true,

		OpenTracing: []string{"noop"},

		RedisReadTimeout:  ratelimit.DefaultReadTimeout,
		RedisWriteTimeout: ratelimit.DefaultWriteTimeout,
		RedisDialTimeout:  ratelimit.DefaultDialTimeout,
		RedisPoolTimeout:  ratelimit.DefaultPoolTimeout,

		ReadTimeoutServer:       5 * time.Minute,
		ReadHeaderTimeoutServer: 60 * time.Second,
		WriteTimeoutServer:      60 * time.Second,
		IdleTimeoutServer:       60 * time.Second,
		MaxHeaderBytes:          http.DefaultMaxHeaderBytes,
	}

	if diff := cmp.Diff(expected, cfg.ToOptions(), cmpopts.IgnoreUnexported(rose.Options{})); diff != "" {
		t.Errorf("invalid options (-want +got):\n%s", diff)
	}
}

func TestConfigFile(t *testing.T) {
	cfg := NewConfig()
	require.NoError(t, cfg.ParseArgs("rose", []string{
		"-config-file=testdata/test.yaml",
		"-address=:7070",
	}))

	o := cfg.ToOptions()

	// the flags win over the file
	assert.Equal(t, ":7070", o.Address)

	assert.Equal(t, "/etc/rose/routes.yaml", o.RoutesFile)
	assert.Equal(t, metrics.PrometheusKind, o.MetricsFlavour)
	assert.Equal(t, log.DebugLevel, o.ApplicationLogLevel)
	assert.Equal(t, []string{"redis-0:6379", "redis-1:6379"}, o.RedisAddrs)
	assert.Equal(t, []float64{0.1, 1, 10}, o.HistogramMetricBuckets)
	assert.Equal(t, []string{"basic", "sample-modulo=10"}, o.OpenTracing)
	assert.Equal(t, 5*time.Second, o.ShutdownTimeout)
	assert.Equal(t, []string{"file"}, o.LuaSources)
	assert.Equal(t, []string{"base", "base64"}, o.LuaModules)
}

func TestFlags(t *testing.T) {
	cfg := NewConfig()
	require.NoError(t, cfg.ParseArgs("rose", []string{
		"-redis-addrs=redis-0:6379,redis-1:6379",
		"-ignore-trailing-slash",
		"-metrics-flavour=all",
		"-support-listener=",
		"-lua-modules=base,string.upper",
		"-lua-sources=inline",
	}))

	o := cfg.ToOptions()
	assert.Equal(t, []string{"redis-0:6379", "redis-1:6379"}, o.RedisAddrs)
	assert.True(t, o.IgnoreTrailingSlash)
	assert.Equal(t, metrics.AllKind, o.MetricsFlavour)
	assert.Empty(t, o.SupportListener)
	assert.Equal(t, []string{"base", "string.upper"}, o.LuaModules)
	assert.Equal(t, []string{"inline"}, o.LuaSources)
}

func TestInvalidLuaSourcesInFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("lua-sources:\n- remote\n"), 0o600))

	cfg := NewConfig()
	assert.ErrorContains(t, cfg.ParseArgs("rose", []string{"-config-file=" + path}), "value not allowed: remote")
}

func TestInvalidConfig(t *testing.T) {
	for _, tt := range []struct {
		name string
		args []string
	}{
		{"log level", []string{"-application-log-level=LOUD"}},
		{"metrics flavour", []string{"-metrics-flavour=statsd"}},
		{"histogram buckets", []string{"-histogram-metric-buckets=1,two"}},
		{"not found status", []string{"-not-found-status=99"}},
		{"missing config file", []string{"-config-file=testdata/missing.yaml"}},
		{"positional arguments", []string{"extra"}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			assert.Error(t, cfg.ParseArgs("rose", tt.args))
		})
	}
}
