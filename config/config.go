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

// Package config reads the configuration of rose from the command line
// flags and from an optional YAML file. The values of the YAML file
// override the defaults, and the command line flags override the YAML
// file.
package config

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/zalando/rose"
	"github.com/zalando/rose/engines/ratelimit"
	"github.com/zalando/rose/engines/script"
	"github.com/zalando/rose/metrics"
	"github.com/zalando/rose/routefile"
)

const redisPasswordEnv = "ROSE_REDIS_PASSWORD"

type Config struct {
	ConfigFile string
	Flags      *flag.FlagSet

	// generic:
	Address                    string        `yaml:"address"`
	SupportListener            string        `yaml:"support-listener"`
	PrintVersion               bool          `yaml:"version"`
	IgnoreTrailingSlash        bool          `yaml:"ignore-trailing-slash"`
	NotFoundStatus             int           `yaml:"not-found-status"`
	WaitForHealthcheckInterval time.Duration `yaml:"wait-for-healthcheck-interval"`
	ShutdownTimeout            time.Duration `yaml:"shutdown-timeout"`

	// routes:
	RoutesFile         string        `yaml:"routes-file"`
	RoutesFileTimeout  time.Duration `yaml:"routes-file-timeout"`
	RoutesFileMaxTries uint          `yaml:"routes-file-max-tries"`

	// logging:
	ApplicationLogLevel       log.Level `yaml:"-"`
	ApplicationLogLevelString string    `yaml:"application-log-level"`
	ApplicationLogPrefix      string    `yaml:"application-log-prefix"`
	ApplicationLogJSONEnabled bool      `yaml:"application-log-json-enabled"`
	AccessLogDisabled         bool      `yaml:"access-log-disabled"`
	AccessLogJSONEnabled      bool      `yaml:"access-log-json-enabled"`
	AccessLogStripQuery       bool      `yaml:"access-log-strip-query"`

	// metrics:
	MetricsFlavour               metrics.Kind `yaml:"-"`
	MetricsFlavourString         string       `yaml:"metrics-flavour"`
	MetricsPrefix                string       `yaml:"metrics-prefix"`
	EnableRuntimeMetrics         bool         `yaml:"runtime-metrics"`
	EnableServeRouteMetrics      bool         `yaml:"serve-route-metrics"`
	EnableEngineMetrics          bool         `yaml:"engine-metrics"`
	EnableProfile                bool         `yaml:"enable-profile"`
	HistogramMetricBuckets       []float64    `yaml:"-"`
	HistogramMetricBucketsString string       `yaml:"histogram-metric-buckets"`

	// tracing:
	OpenTracing string `yaml:"opentracing"`

	// redis:
	RedisAddrs        *listFlag     `yaml:"redis-addrs"`
	RedisPassword     string        `yaml:"redis-password"`
	RedisReadTimeout  time.Duration `yaml:"redis-read-timeout"`
	RedisWriteTimeout time.Duration `yaml:"redis-write-timeout"`
	RedisDialTimeout  time.Duration `yaml:"redis-dial-timeout"`
	RedisPoolTimeout  time.Duration `yaml:"redis-pool-timeout"`

	// scripts:
	LuaModules *listFlag `yaml:"lua-modules"`
	LuaSources *listFlag `yaml:"lua-sources"`

	// server:
	EnableProxyProtocol     bool          `yaml:"enable-proxy-protocol"`
	ReadTimeoutServer       time.Duration `yaml:"read-timeout-server"`
	ReadHeaderTimeoutServer time.Duration `yaml:"read-header-timeout-server"`
	WriteTimeoutServer      time.Duration `yaml:"write-timeout-server"`
	IdleTimeoutServer       time.Duration `yaml:"idle-timeout-server"`
	MaxHeaderBytes          int           `yaml:"max-header-bytes"`
}

const (
	defaultApplicationLogLevel = "INFO"
	defaultMetricsFlavour      = "codahale"
	defaultOpenTracing         = "noop"
)

// NewConfig creates the configuration with the defaults and the command
// line flags defined on a new flag set.
func NewConfig() *Config {
	cfg := new(Config)
	cfg.RedisAddrs = commaListFlag()
	cfg.LuaModules = commaListFlag()
	cfg.LuaSources = commaListFlag(script.SourceFile, script.SourceInline, script.SourceNone)

	flag := flag.NewFlagSet("", flag.ExitOnError)
	flag.StringVar(&cfg.ConfigFile, "config-file", "", "if provided the flags will be loaded/overwritten by the values on the file (yaml)")

	// generic:
	flag.StringVar(&cfg.Address, "address", rose.DefaultAddress, "network address that rose should listen on")
	flag.StringVar(&cfg.SupportListener, "support-listener", rose.DefaultSupportListener, "network address used for exposing the /metrics and the /rose-info endpoints. An empty value disables the support endpoints.")
	flag.BoolVar(&cfg.PrintVersion, "version", false, "print rose version")
	flag.BoolVar(&cfg.IgnoreTrailingSlash, "ignore-trailing-slash", false, "flag indicating to ignore trailing slashes in paths when matching")
	flag.IntVar(&cfg.NotFoundStatus, "not-found-status", http.StatusNotFound, "status of the responses when no route matches the request")
	flag.DurationVar(&cfg.WaitForHealthcheckInterval, "wait-for-healthcheck-interval", 0, "period waiting after the shutdown signal before stopping the listeners")
	flag.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", rose.DefaultShutdownTimeout, "maximum time waiting for the active requests on shutdown")

	// routes:
	flag.StringVar(&cfg.RoutesFile, "routes-file", "", "file or http(s) URL of the YAML route definitions")
	flag.DurationVar(&cfg.RoutesFileTimeout, "routes-file-timeout", routefile.DefaultHTTPTimeout, "timeout of downloading a remote route file")
	flag.UintVar(&cfg.RoutesFileMaxTries, "routes-file-max-tries", routefile.DefaultMaxTries, "number of attempts downloading a remote route file")

	// logging:
	flag.StringVar(&cfg.ApplicationLogLevelString, "application-log-level", defaultApplicationLogLevel, "log level for application logs, possible values: PANIC, FATAL, ERROR, WARN, INFO, DEBUG")
	flag.StringVar(&cfg.ApplicationLogPrefix, "application-log-prefix", "[APP]", "prefix for each log entry")
	flag.BoolVar(&cfg.ApplicationLogJSONEnabled, "application-log-json-enabled", false, "when this flag is set, log in JSON format is used")
	flag.BoolVar(&cfg.AccessLogDisabled, "access-log-disabled", false, "when this flag is set, no access log is printed")
	flag.BoolVar(&cfg.AccessLogJSONEnabled, "access-log-json-enabled", false, "when this flag is set, log in JSON format is used")
	flag.BoolVar(&cfg.AccessLogStripQuery, "access-log-strip-query", false, "when this flag is set, the access log strips the query strings from the access log")

	// metrics:
	flag.StringVar(&cfg.MetricsFlavourString, "metrics-flavour", defaultMetricsFlavour, "metrics flavour is used to change the exposed metrics format. Supported metric formats: 'codahale', 'prometheus' and 'all'")
	flag.StringVar(&cfg.MetricsPrefix, "metrics-prefix", "rose.", "allows setting a custom path prefix for the codahale metrics")
	flag.BoolVar(&cfg.EnableRuntimeMetrics, "runtime-metrics", true, "enables reporting of the Go runtime statistics")
	flag.BoolVar(&cfg.EnableServeRouteMetrics, "serve-route-metrics", false, "enables reporting the total serve time metrics for each route")
	flag.BoolVar(&cfg.EnableEngineMetrics, "engine-metrics", false, "enables reporting the duration of every engine")
	flag.BoolVar(&cfg.EnableProfile, "enable-profile", false, "enable profile information on the support listener under /debug/pprof")
	flag.StringVar(&cfg.HistogramMetricBucketsString, "histogram-metric-buckets", "", "use custom buckets for prometheus histograms, must be a comma-separated list of numbers")

	// tracing:
	flag.StringVar(&cfg.OpenTracing, "opentracing", defaultOpenTracing, "list of arguments for opentracing (space separated), first argument is the tracer implementation: noop or basic")

	// redis:
	flag.Var(cfg.RedisAddrs, "redis-addrs", "redis addresses as comma separated list, used by the cluster rate limits.\nUse "+redisPasswordEnv+" environment variable or 'redis-password' key in config file to set redis password")
	flag.DurationVar(&cfg.RedisReadTimeout, "redis-read-timeout", ratelimit.DefaultReadTimeout, "set redis socket read timeout")
	flag.DurationVar(&cfg.RedisWriteTimeout, "redis-write-timeout", ratelimit.DefaultWriteTimeout, "set redis socket write timeout")
	flag.DurationVar(&cfg.RedisDialTimeout, "redis-dial-timeout", ratelimit.DefaultDialTimeout, "set redis client dial timeout")
	flag.DurationVar(&cfg.RedisPoolTimeout, "redis-pool-timeout", ratelimit.DefaultPoolTimeout, "set redis get connection from pool timeout")

	// scripts:
	flag.Var(cfg.LuaModules, "lua-modules", "comma separated list of the Lua modules, or the module.symbol entries, available for the scripts. Empty enables every module")
	flag.Var(cfg.LuaSources, "lua-sources", `comma separated list of the allowed Lua script sources: "file", "inline" or "none". Empty allows file and inline sources`)

	// server:
	flag.BoolVar(&cfg.EnableProxyProtocol, "enable-proxy-protocol", false, "accept the PROXY protocol header on the request listener")
	flag.DurationVar(&cfg.ReadTimeoutServer, "read-timeout-server", 5*time.Minute, "set ReadTimeout for http server connections")
	flag.DurationVar(&cfg.ReadHeaderTimeoutServer, "read-header-timeout-server", 60*time.Second, "set ReadHeaderTimeout for http server connections")
	flag.DurationVar(&cfg.WriteTimeoutServer, "write-timeout-server", 60*time.Second, "set WriteTimeout for http server connections")
	flag.DurationVar(&cfg.IdleTimeoutServer, "idle-timeout-server", 60*time.Second, "set IdleTimeout for http server connections")
	flag.IntVar(&cfg.MaxHeaderBytes, "max-header-bytes", http.DefaultMaxHeaderBytes, "set MaxHeaderBytes for http server connections")

	cfg.Flags = flag
	return cfg
}

func validate(c *Config) error {
	if _, err := log.ParseLevel(c.ApplicationLogLevelString); err != nil {
		return err
	}

	if metrics.ParseMetricsKind(c.MetricsFlavourString) == metrics.UnknownKind {
		return fmt.Errorf("invalid metrics flavour: %s", c.MetricsFlavourString)
	}

	if _, err := parseHistogramBuckets(c.HistogramMetricBucketsString); err != nil {
		return err
	}

	if c.NotFoundStatus < 100 || c.NotFoundStatus > 599 {
		return fmt.Errorf("invalid not found status: %d", c.NotFoundStatus)
	}

	return nil
}

// Parse parses the command line arguments of the process.
func (c *Config) Parse() error {
	return c.ParseArgs(os.Args[0], os.Args[1:])
}

// ParseArgs parses the arguments, and when a config file is set, it loads
// it and parses the arguments again, so that they take precedence.
func (c *Config) ParseArgs(progname string, args []string) error {
	c.Flags.Init(progname, flag.ExitOnError)
	err := c.Flags.Parse(args)
	if err != nil {
		return err
	}

	// check if arguments were correctly parsed.
	if len(c.Flags.Args()) != 0 {
		return fmt.Errorf("invalid arguments: %s", c.Flags.Args())
	}

	if c.ConfigFile != "" {
		yamlFile, err := os.ReadFile(c.ConfigFile)
		if err != nil {
			return fmt.Errorf("invalid config file: %w", err)
		}

		err = yaml.Unmarshal(yamlFile, c)
		if err != nil {
			return fmt.Errorf("unmarshalling config file error: %w", err)
		}

		err = c.Flags.Parse(args)
		if err != nil {
			return err
		}
	}

	if err := validate(c); err != nil {
		return err
	}

	c.ApplicationLogLevel, _ = log.ParseLevel(c.ApplicationLogLevelString)
	c.MetricsFlavour = metrics.ParseMetricsKind(c.MetricsFlavourString)
	c.HistogramMetricBuckets, _ = parseHistogramBuckets(c.HistogramMetricBucketsString)

	c.parseEnv()
	return nil
}

// ToOptions converts the configuration to the options of rose.Run.
func (c *Config) ToOptions() rose.Options {
	var openTracing []string
	if c.OpenTracing != "" {
		openTracing = strings.Fields(c.OpenTracing)
	}

	return rose.Options{
		Address:                    c.Address,
		SupportListener:            c.SupportListener,
		IgnoreTrailingSlash:        c.IgnoreTrailingSlash,
		NotFoundStatus:             c.NotFoundStatus,
		WaitForHealthcheckInterval: c.WaitForHealthcheckInterval,
		ShutdownTimeout:            c.ShutdownTimeout,

		RoutesFile:         c.RoutesFile,
		RoutesFileTimeout:  c.RoutesFileTimeout,
		RoutesFileMaxTries: c.RoutesFileMaxTries,

		ApplicationLogLevel:       c.ApplicationLogLevel,
		ApplicationLogPrefix:      c.ApplicationLogPrefix,
		ApplicationLogJSONEnabled: c.ApplicationLogJSONEnabled,
		AccessLogDisabled:         c.AccessLogDisabled,
		AccessLogJSONEnabled:      c.AccessLogJSONEnabled,
		AccessLogStripQuery:       c.AccessLogStripQuery,

		MetricsFlavour:          c.MetricsFlavour,
		MetricsPrefix:           c.MetricsPrefix,
		EnableRuntimeMetrics:    c.EnableRuntimeMetrics,
		EnableServeRouteMetrics: c.EnableServeRouteMetrics,
		EnableEngineMetrics:     c.EnableEngineMetrics,
		EnableProfile:           c.EnableProfile,
		HistogramMetricBuckets:  c.HistogramMetricBuckets,

		OpenTracing: openTracing,

		RedisAddrs:        c.RedisAddrs.values,
		RedisPassword:     c.RedisPassword,
		RedisReadTimeout:  c.RedisReadTimeout,
		RedisWriteTimeout: c.RedisWriteTimeout,
		RedisDialTimeout:  c.RedisDialTimeout,
		RedisPoolTimeout:  c.RedisPoolTimeout,

		LuaModules: c.LuaModules.values,
		LuaSources: c.LuaSources.values,

		EnableProxyProtocol:     c.EnableProxyProtocol,
		ReadTimeoutServer:       c.ReadTimeoutServer,
		ReadHeaderTimeoutServer: c.ReadHeaderTimeoutServer,
		WriteTimeoutServer:      c.WriteTimeoutServer,
		IdleTimeoutServer:       c.IdleTimeoutServer,
		MaxHeaderBytes:          c.MaxHeaderBytes,
	}
}

func parseHistogramBuckets(s string) ([]float64, error) {
	if s == "" {
		return nil, nil
	}

	var buckets []float64
	for _, v := range strings.Split(s, ",") {
		b, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("unable to parse histogram-metric-buckets: %w", err)
		}

		buckets = append(buckets, b)
	}

	return buckets, nil
}

func (c *Config) parseEnv() {
	// Set Redis password from environment variable if not set earlier (configuration file)
	if c.RedisPassword == "" {
		c.RedisPassword = os.Getenv(redisPasswordEnv)
	}
}
