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

package rose

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pires/go-proxyproto"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/zalando/rose/engines"
	"github.com/zalando/rose/engines/builtin"
	"github.com/zalando/rose/engines/interceptor"
	"github.com/zalando/rose/engines/invoke"
	"github.com/zalando/rose/engines/ratelimit"
	"github.com/zalando/rose/engines/script"
	"github.com/zalando/rose/logging"
	"github.com/zalando/rose/metrics"
	"github.com/zalando/rose/routefile"
	"github.com/zalando/rose/routing"
	"github.com/zalando/rose/tracing"
	"github.com/zalando/rose/web"
)

const (
	DefaultAddress         = ":9090"
	DefaultSupportListener = ":9911"
	DefaultShutdownTimeout = 30 * time.Second

	defaultProxyProtocolReadHeaderTimeout = time.Second
)

// Options to start rose with Run.
type Options struct {

	// Network address that rose should listen on for the requests.
	Address string

	// Network address of the listener serving the metrics and the
	// introspection of the mapping. Empty disables it.
	SupportListener string

	// Routes registered before the routes of the route file.
	Routes []routing.Route

	// RoutesFile is the path or the http(s) URL of a YAML route file.
	RoutesFile string

	// Timeout and number of attempts of downloading a remote route
	// file.
	RoutesFileTimeout  time.Duration
	RoutesFileMaxTries uint

	// IgnoreTrailingSlash drops the trailing slash of the request paths
	// before matching.
	IgnoreTrailingSlash bool

	// NotFoundStatus is the status of the unresolved requests, 404 by
	// default.
	NotFoundStatus int

	// Handlers and Interceptors referenced by name from the route file.
	Handlers     *invoke.Table
	Interceptors *interceptor.Table

	// CustomEngines are registered after the built-in engines, replacing
	// the ones with the same name.
	CustomEngines []engines.Spec

	// Metrics flavour and options.
	MetricsFlavour          metrics.Kind
	MetricsPrefix           string
	EnableRuntimeMetrics    bool
	EnableServeRouteMetrics bool
	EnableEngineMetrics     bool
	EnableProfile           bool
	HistogramMetricBuckets  []float64

	// OpenTracing selects and configures the tracer, e.g. "basic
	// sample-modulo=10". Defaults to "noop".
	OpenTracing []string

	// Redis instances of the cluster rate limits.
	RedisAddrs        []string
	RedisPassword     string
	RedisReadTimeout  time.Duration
	RedisWriteTimeout time.Duration
	RedisDialTimeout  time.Duration
	RedisPoolTimeout  time.Duration

	// Logging.
	ApplicationLogPrefix      string
	ApplicationLogLevel       log.Level
	ApplicationLogJSONEnabled bool
	AccessLogDisabled         bool
	AccessLogJSONEnabled      bool
	AccessLogStripQuery       bool

	// LuaModules and LuaSources configure the lua engines, see
	// script.LuaOptions.
	LuaModules []string
	LuaSources []string

	// EnableProxyProtocol accepts the PROXY protocol header on the
	// request listener, and takes the client address from it.
	EnableProxyProtocol bool

	// Server timeouts.
	ReadTimeoutServer       time.Duration
	ReadHeaderTimeoutServer time.Duration
	WriteTimeoutServer      time.Duration
	IdleTimeoutServer       time.Duration
	MaxHeaderBytes          int

	// WaitForHealthcheckInterval is the time between receiving the
	// shutdown signal and stopping the listeners.
	WaitForHealthcheckInterval time.Duration

	// ShutdownTimeout limits waiting for the active requests on
	// shutdown.
	ShutdownTimeout time.Duration

	testOptions
}

type testOptions struct {
	signals   chan os.Signal
	listening func(address, support net.Addr)
}

type server struct {
	name     string
	server   *http.Server
	listener net.Listener
}

func (o Options) mappingOptions() routing.Options {
	var mo routing.MatchingOptions
	if o.IgnoreTrailingSlash {
		mo |= routing.IgnoreTrailingSlash
	}

	return routing.Options{MatchingOptions: mo}
}

func (o Options) metricsOptions() metrics.Options {
	return metrics.Options{
		Format:                  o.MetricsFlavour,
		Prefix:                  o.MetricsPrefix,
		EnableRuntimeMetrics:    o.EnableRuntimeMetrics,
		EnableServeRouteMetrics: o.EnableServeRouteMetrics,
		EnableEngineMetrics:     o.EnableEngineMetrics,
		EnableProfile:           o.EnableProfile,
		HistogramBuckets:        o.HistogramMetricBuckets,
	}
}

func (o Options) redisOptions() ratelimit.RedisOptions {
	return ratelimit.RedisOptions{
		Addrs:        o.RedisAddrs,
		Password:     o.RedisPassword,
		ReadTimeout:  o.RedisReadTimeout,
		WriteTimeout: o.RedisWriteTimeout,
		DialTimeout:  o.RedisDialTimeout,
		PoolTimeout:  o.RedisPoolTimeout,
	}
}

func (o Options) newServer(name, address string, h http.Handler, proxyProtocol bool) (*server, error) {
	l, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s for the %s: %w", address, name, err)
	}

	if proxyProtocol {
		l = &proxyproto.Listener{
			Listener:          l,
			ReadHeaderTimeout: defaultProxyProtocolReadHeaderTimeout,
		}
	}

	return &server{
		name:     name,
		listener: l,
		server: &http.Server{
			Handler:           h,
			ReadTimeout:       o.ReadTimeoutServer,
			ReadHeaderTimeout: o.ReadHeaderTimeoutServer,
			WriteTimeout:      o.WriteTimeoutServer,
			IdleTimeout:       o.IdleTimeoutServer,
			MaxHeaderBytes:    o.MaxHeaderBytes,
		},
	}, nil
}

// createMapping registers the routes of the options and of the route
// file, and freezes the mapping.
func createMapping(o Options, registry engines.Registry, m metrics.Metrics) (*routing.Mapping, error) {
	mappingOptions := o.mappingOptions()
	mapping := routing.New(mappingOptions)

	if err := mapping.Register(o.Routes...); err != nil {
		return nil, err
	}

	if o.RoutesFile != "" {
		f, err := routefile.Open(context.Background(), o.RoutesFile, routefile.RemoteOptions{
			HTTPTimeout: o.RoutesFileTimeout,
			MaxTries:    o.RoutesFileMaxTries,
		})
		if err != nil {
			mapping.Destroy()
			return nil, err
		}

		var engineMetrics engines.EngineMetrics
		if o.EnableEngineMetrics {
			engineMetrics = m
		}

		if err := f.Register(mapping, routefile.Options{
			Registry: registry,
			Metrics:  engineMetrics,
			Nested:   mappingOptions,
		}); err != nil {
			mapping.Destroy()
			return nil, err
		}
	}

	mapping.Freeze()
	log.Infof("mapping created, %d resources, %d end resources", mapping.Count("", false), mapping.Count("", true))
	return mapping, nil
}

// destroy releases the engines of the mapping and counts the failures.
func destroy(mapping *routing.Mapping, m metrics.Metrics) {
	err := mapping.Destroy()
	if err == nil {
		return
	}

	errs := []error{err}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs = joined.Unwrap()
	}

	for _, e := range errs {
		var derr *routing.DestroyError
		if errors.As(e, &derr) {
			m.IncDestroyFailures()
		}
	}
}

func shutdown(servers []*server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	for _, s := range servers {
		if err := s.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shut down the %s: %w", s.name, err))
		}
	}

	return errors.Join(errs...)
}

func run(o Options) error {
	if o.Address == "" {
		o.Address = DefaultAddress
	}

	if len(o.OpenTracing) == 0 {
		o.OpenTracing = []string{"noop"}
	}

	if o.ShutdownTimeout <= 0 {
		o.ShutdownTimeout = DefaultShutdownTimeout
	}

	logging.Init(logging.Options{
		ApplicationLogPrefix:      o.ApplicationLogPrefix,
		ApplicationLogLevel:       o.ApplicationLogLevel,
		ApplicationLogJSONEnabled: o.ApplicationLogJSONEnabled,
		AccessLogDisabled:         o.AccessLogDisabled,
		AccessLogJSONEnabled:      o.AccessLogJSONEnabled,
		AccessLogStripQuery:       o.AccessLogStripQuery,
	})

	metricsOptions := o.metricsOptions()
	mtr := metrics.NewMetrics(metricsOptions)
	defer mtr.Close()

	tracer, err := tracing.InitTracer(o.OpenTracing)
	if err != nil {
		return fmt.Errorf("failed to initialize the tracer: %w", err)
	}
	defer tracer.Close()

	var counter ratelimit.Counter
	if redisClient := ratelimit.NewRedisClient(o.redisOptions()); redisClient != nil {
		defer redisClient.Close()
		counter = ratelimit.NewRedisCounter(redisClient)
	}

	registry := builtin.MakeRegistry(builtin.Options{
		Handlers:         o.Handlers,
		Interceptors:     o.Interceptors,
		Metrics:          mtr,
		Tracer:           tracer,
		RateLimitCounter: counter,
		Lua:              script.LuaOptions{Modules: o.LuaModules, Sources: o.LuaSources},
	})

	for _, s := range o.CustomEngines {
		registry.Register(s)
	}

	mapping, err := createMapping(o, registry, mtr)
	if err != nil {
		return err
	}
	defer destroy(mapping, mtr)

	handler := web.NewHandler(web.Options{
		Mapping:           mapping,
		Metrics:           mtr,
		Tracer:            tracer,
		NotFoundStatus:    o.NotFoundStatus,
		AccessLogDisabled: o.AccessLogDisabled,
	})

	var servers []*server
	closeListeners := func() {
		for _, s := range servers {
			s.listener.Close()
		}
	}

	requests, err := o.newServer("request listener", o.Address, handler, o.EnableProxyProtocol)
	if err != nil {
		return err
	}

	servers = append(servers, requests)

	var supportAddr net.Addr
	if o.SupportListener != "" {
		mux := http.NewServeMux()
		mux.Handle(web.AdminPathPrefix, web.NewAdminHandler(mapping))
		mux.Handle("/", metrics.NewHandler(metricsOptions, mtr))

		support, err := o.newServer("support listener", o.SupportListener, mux, false)
		if err != nil {
			closeListeners()
			return err
		}

		servers = append(servers, support)
		supportAddr = support.listener.Addr()
	}

	sigs := o.signals
	if sigs == nil {
		sigs = make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGTERM, syscall.SIGINT)
		defer signal.Stop(sigs)
	}

	g, ctx := errgroup.WithContext(context.Background())
	for _, s := range servers {
		log.Infof("%s listening on %v", s.name, s.listener.Addr())
		g.Go(func() error {
			if err := s.server.Serve(s.listener); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("%s failed: %w", s.name, err)
			}

			return nil
		})
	}

	g.Go(func() error {
		select {
		case sig := <-sigs:
			log.Infof("received %v, shutting down", sig)
			if o.WaitForHealthcheckInterval > 0 {
				time.Sleep(o.WaitForHealthcheckInterval)
			}
		case <-ctx.Done():
		}

		return shutdown(servers, o.ShutdownTimeout)
	})

	if o.listening != nil {
		o.listening(requests.listener.Addr(), supportAddr)
	}

	err = g.Wait()
	log.Info("listeners stopped")
	return err
}

// Run starts rose with the options. It blocks until SIGTERM or SIGINT is
// received, or a listener fails. On shutdown, it waits for the active
// requests, then destroys the engines of the mapping.
func Run(o Options) error {
	return run(o)
}
