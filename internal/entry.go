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
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/regnet/internal/api"
	"github.com/starford/regnet/internal/mcpserver"
	"github.com/starford/regnet/internal/modules"
	"github.com/starford/regnet/internal/netservice"
	"github.com/starford/regnet/internal/sse"
	"github.com/starford/regnet/internal/storage"
	"github.com/starford/regnet/internal/store"
	"github.com/starford/regnet/internal/watch"
	pkgconfig "github.com/starford/regnet/pkg/config"
)

// Verify *sse.Broker satisfies netservice.Notifier at compile time.
var _ netservice.Notifier = (*sse.Broker)(nil)

// components are the resources shared by every command.
type components struct {
	cfg       *Config
	logger    *slog.Logger
	db        *store.DB
	artifacts *storage.FS
}

func (c *components) Close() {
	if err := c.db.Close(); err != nil {
		c.logger.Warn("close store failed", slog.String("error", err.Error()))
	}
}

func newApplication(opts []Option) (*application, error) {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// open initialises logging, the run store and the artifact directory.
// logOut is stdout except in MCP mode, where stdout carries the protocol.
func (a *application) open(logOut *os.File) (*components, error) {
	cfg := a.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("artifacts_path", cfg.Artifacts.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	artifacts, err := storage.NewFS(cfg.Artifacts.Path)
	if err != nil {
		return nil, fmt.Errorf("init artifacts: %w", err)
	}

	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	return &components{cfg: cfg, logger: logger, db: db, artifacts: artifacts}, nil
}

// RunPipeline executes the full pipeline once with the configured inputs.
func RunPipeline(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	if err := app.config.ValidateInputs(); err != nil {
		return fmt.Errorf("inputs: %w", err)
	}
	c, err := app.open(os.Stdout)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc := netservice.NewService(c.db, c.artifacts, nil, c.logger)
	sum, err := svc.Run(ctx, app.config.RunSpec())
	if err != nil {
		return fmt.Errorf("run pipeline: %w", err)
	}
	c.logger.Info("Run stored",
		slog.Int64("run_id", sum.Run.ID),
		slog.Int("modules", sum.Modules),
		slog.Int("edges", sum.Edges),
		slog.Any("artifacts", sum.Artifacts))
	return nil
}

// RebuildModules rebuilds a stored run's modules with the configured
// thresholds, without refitting.
func RebuildModules(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	c, err := app.open(os.Stdout)
	if err != nil {
		return err
	}
	defer c.Close()

	svc := netservice.NewService(c.db, c.artifacts, nil, c.logger)
	runID := app.runID
	if runID == 0 {
		run, err := svc.LatestRun(ctx)
		if err != nil {
			return fmt.Errorf("latest run: %w", err)
		}
		runID = run.ID
	}
	set, err := svc.RebuildModules(ctx, runID, app.config.Modules)
	if err != nil {
		return fmt.Errorf("rebuild modules of run %d: %w", runID, err)
	}
	c.logger.Info("Modules stored",
		slog.Int64("run_id", runID),
		slog.Int64("set_id", set.ID),
		slog.Int("modules", len(set.Modules)),
		slog.Int("edges", len(modules.Edges(set.Modules))))
	return nil
}

// ServeMCP exposes stored runs over the MCP stdio transport.
func ServeMCP(_ context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	c, err := app.open(os.Stderr)
	if err != nil {
		return err
	}
	defer c.Close()

	svc := netservice.NewService(c.db, c.artifacts, nil, c.logger)
	return mcpserver.New(svc).ServeStdio()
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	c, err := app.open(os.Stdout)
	if err != nil {
		return err
	}
	defer c.Close()

	cfg, logger := c.cfg, c.logger

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	svc := netservice.NewService(c.db, c.artifacts, broker, logger)
	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)
	artifactRouter := api.ArtifactRouter(api.NewArtifactHandler(c.artifacts), cfg.Auth.AuthEnabled(), cfg.Auth.Token)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := svc.Ready(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api and rendered networks under /artifacts.
	r.Mount("/api", apiRouter)
	r.Mount("/artifacts", artifactRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start config watcher; threshold edits rebuild the latest run.
	if cfg.Watch.Enabled && app.configPath != "" {
		tracker := watch.NewThresholds(cfg.Modules, func() (modules.Thresholds, error) {
			next, err := pkgconfig.Reload(app.configPath, NewDefaultConfig)
			if err != nil {
				return modules.Thresholds{}, err
			}
			return next.Modules, nil
		}, svc, logger)

		g.Go(func() error {
			err := watch.File(gCtx, app.configPath, cfg.Watch.Debounce, logger, func(ctx context.Context) {
				_ = tracker.Apply(ctx)
			})
			if err != nil {
				// The API keeps serving; only hot reload is lost.
				logger.Warn("config watcher disabled", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
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

		// Close SSE streams first so Shutdown does not wait on them.
		broker.Close()

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

// errShutdown cancels the errgroup so the watcher stops with the server.
var errShutdown = errors.New("shutdown")
