// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/offnote/internal/api"
	"github.com/starford/offnote/internal/connectivity"
	"github.com/starford/offnote/internal/localstore"
	"github.com/starford/offnote/internal/mcpserver"
	"github.com/starford/offnote/internal/remote"
	"github.com/starford/offnote/internal/sse"
	"github.com/starford/offnote/internal/syncengine"
)

// components is the wired object graph shared by the daemon and MCP modes.
type components struct {
	db      *localstore.DB
	client  *remote.Client
	engine  *syncengine.Engine
	broker  *sse.Broker
	monitor *connectivity.Monitor
	source  connectivity.Source
}

func (a *application) init() (*Config, error) {
	if a.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if a.version == "" {
		a.version = "dev"
	}
	return a.config, nil
}

func build(cfg *Config, httpClient *http.Client, logger *slog.Logger) (*components, error) {
	if dir := filepath.Dir(cfg.SQLite.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	// Opened on first use.
	db := localstore.New(cfg.SQLite.Path)

	if httpClient == nil {
		httpClient = &http.Client{}
	}
	client := remote.NewClient(cfg.Remote.BaseURL, httpClient, cfg.Remote.Timeout)

	var queue syncengine.Queue
	if cfg.Sync.DurableQueue {
		queue = db
	}

	broker := sse.NewBroker(15 * time.Second)
	engine := syncengine.New(db, queue, client,
		syncengine.WithLogger(logger),
		syncengine.WithNotifier(broker.Notify),
		syncengine.WithRemoteTimeout(cfg.Remote.Timeout),
	)

	var source connectivity.Source
	switch cfg.Connectivity.Mode {
	case ConnectivityModeFile:
		source = &connectivity.FileSource{Path: cfg.Connectivity.StateFile, Logger: logger}
	default:
		source = &connectivity.ProbeSource{
			Pinger:   client,
			Interval: cfg.Connectivity.ProbeInterval,
			Timeout:  cfg.Connectivity.ProbeTimeout,
			Logger:   logger,
		}
	}

	return &components{
		db:      db,
		client:  client,
		engine:  engine,
		broker:  broker,
		monitor: connectivity.NewMonitor(engine, logger),
		source:  source,
	}, nil
}

func (c *components) close(logger *slog.Logger) {
	c.engine.Close()
	c.broker.Close()
	if err := c.db.Close(); err != nil {
		logger.Error("close database", slog.String("error", err.Error()))
	}
}

// newHTTPHandler mounts health checks and the local API.
func newHTTPHandler(c *components) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := c.engine.Status(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", api.NewRouter(c.engine, c.client, c.broker))
	return r
}

// Run starts the daemon: local HTTP API, SSE stream and connectivity monitor.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{logOutput: os.Stdout}

	for _, opt := range opts {
		opt(app)
	}

	cfg, err := app.init()
	if err != nil {
		return err
	}

	logger, logCloser := newLogger(cfg.App, app.logOutput)
	defer logCloser.Close()
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("remote", cfg.Remote.BaseURL),
		slog.String("connectivity_mode", cfg.Connectivity.Mode),
		slog.Bool("durable_queue", cfg.Sync.DurableQueue),
		slog.String("log_level", cfg.App.LogLevel.String()))

	c, err := build(cfg, app.httpClient, logger)
	if err != nil {
		return err
	}
	defer c.close(logger)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           newHTTPHandler(c),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return c.monitor.Run(gCtx, c.source)
	})

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group once the server has been shut down so the
// connectivity monitor stops too.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools over stdio. Logs never go to stdout, which
// carries the protocol.
func RunMCP(ctx context.Context, opts ...Option) error {
	app := &application{logOutput: os.Stderr}

	for _, opt := range opts {
		opt(app)
	}

	cfg, err := app.init()
	if err != nil {
		return err
	}
	if app.logOutput == os.Stdout {
		app.logOutput = os.Stderr
	}

	logger, logCloser := newLogger(cfg.App, app.logOutput)
	defer logCloser.Close()
	slog.SetDefault(logger)

	c, err := build(cfg, app.httpClient, logger)
	if err != nil {
		return err
	}
	defer c.close(logger)

	srv := mcpserver.New(c.engine, app.version)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return c.monitor.Run(gCtx, c.source)
	})

	g.Go(func() error {
		defer cancel()
		logger.Info("MCP server starting on stdio", slog.String("version", app.version))
		return srv.ServeStdio()
	})

	return g.Wait()
}
