// Package runtime is the HTTP surface of the agent service: the request
// envelope, the route handlers and the lifecycle that ties them to the
// manifest watcher.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/szaher/tutoragent/internal/agent"
	"github.com/szaher/tutoragent/internal/config"
	"github.com/szaher/tutoragent/internal/manifest"
	"github.com/szaher/tutoragent/internal/readiness"
	"github.com/szaher/tutoragent/internal/telemetry"
)

const shutdownTimeout = 10 * time.Second

// Runtime manages the full lifecycle of the service.
type Runtime struct {
	config   config.Config
	server   *Server
	manifest *manifest.Source
	logger   *zap.Logger

	mu   sync.Mutex
	addr net.Addr
}

// Options configures the runtime. Zero values are built from the config.
type Options struct {
	Logger  *zap.Logger
	Agent   agent.Agent
	Metrics *telemetry.Metrics
	Tracer  *telemetry.Tracer
}

// New builds every component named by cfg. Configuration problems such as
// an unknown agent kind or a broken readiness expression surface here.
func New(cfg config.Config, opts Options) (*Runtime, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	a := opts.Agent
	if a == nil {
		var err error
		a, err = agent.New(cfg.Agent, logger)
		if err != nil {
			return nil, fmt.Errorf("create agent: %w", err)
		}
	}

	checker, err := readiness.FromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("create readiness checks: %w", err)
	}

	metrics := opts.Metrics
	if metrics == nil && cfg.Metrics {
		metrics = telemetry.NewMetrics()
	}

	tracer := opts.Tracer
	if tracer == nil && cfg.Tracing {
		tracer = telemetry.NewTracer(telemetry.LogExporter(logger))
	}

	src := manifest.NewSource(cfg.Manifest.Path)
	rt := &Runtime{
		config:   cfg,
		manifest: src,
		logger:   logger,
	}
	rt.server = NewServer(cfg, a,
		WithLogger(logger),
		WithMetrics(metrics),
		WithManifest(src),
		WithReadiness(checker),
		WithTracer(tracer),
	)
	return rt, nil
}

// Handler returns the HTTP handler.
func (rt *Runtime) Handler() http.Handler {
	return rt.server.Handler()
}

// Addr returns the bound listen address once Start is serving.
func (rt *Runtime) Addr() net.Addr {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.addr
}

// Start serves HTTP and, when enabled, watches the manifest. It blocks
// until ctx is cancelled or a component fails, then shuts down gracefully.
func (rt *Runtime) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", rt.config.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", rt.config.Addr, err)
	}
	rt.mu.Lock()
	rt.addr = ln.Addr()
	rt.mu.Unlock()

	// Serve returning for any reason stops the other components.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		if err := rt.server.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})

	if rt.config.Manifest.Watch {
		g.Go(func() error {
			if err := rt.manifest.Watch(gctx, rt.logger); err != nil {
				// The endpoint still works without the cache.
				rt.logger.Warn("manifest watcher stopped", zap.Error(err))
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		return rt.Shutdown(context.Background())
	})

	return g.Wait()
}

// Shutdown gracefully stops the HTTP server.
func (rt *Runtime) Shutdown(ctx context.Context) error {
	rt.logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := rt.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}
	return nil
}
