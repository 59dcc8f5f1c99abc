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

	"golang.org/x/sync/errgroup"

	"github.com/starford/ter/internal/journal"
	"github.com/starford/ter/internal/livereload"
	"github.com/starford/ter/internal/logfields"
	"github.com/starford/ter/internal/mcpserver"
	"github.com/starford/ter/internal/metrics"
	"github.com/starford/ter/internal/models"
	"github.com/starford/ter/internal/server"
	"github.com/starford/ter/internal/site"
	"github.com/starford/ter/internal/watch"
)

// Version is reported by the MCP server.
var Version = "dev"

// journalKeep is how many rebuild entries survive the startup prune.
const journalKeep = 1000

func newApplication(opts []Option) (*application, error) {
	app := &application{logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

func (a *application) newLogger() *slog.Logger {
	hopts := &slog.HandlerOptions{Level: a.config.App.LogLevel}
	var h slog.Handler
	if a.config.App.LogFormat == LogFormatText {
		h = slog.NewTextHandler(a.logOutput, hopts)
	} else {
		h = slog.NewJSONHandler(a.logOutput, hopts)
	}
	return slog.New(h)
}

func (a *application) newBuilder(logger *slog.Logger) (*site.Builder, error) {
	cfg := a.config
	if err := os.MkdirAll(cfg.Site.OutputPath, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	b, err := site.New(cfg.Site.Builder(cfg.LiveReload.PathSuffix), logger)
	if err != nil {
		return nil, fmt.Errorf("init site: %w", err)
	}
	return b, nil
}

// Build renders the site once and exits.
func Build(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := app.newLogger()
	slog.SetDefault(logger)

	rebuilder := app.rebuilder
	if rebuilder == nil {
		b, err := app.newBuilder(logger)
		if err != nil {
			return err
		}
		rebuilder = b
	}

	if err := rebuilder.Rebuild(ctx, models.BuildOptions{}); err != nil {
		return fmt.Errorf("build: %w", err)
	}
	return nil
}

// RunMCP serves the MCP tools over stdio until the client disconnects.
func RunMCP(_ context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	// stdout carries the protocol.
	if app.logOutput == os.Stdout {
		app.logOutput = os.Stderr
	}
	logger := app.newLogger()
	slog.SetDefault(logger)

	b, err := app.newBuilder(logger)
	if err != nil {
		return err
	}
	logger.Info("mcp: serving on stdio", slog.String("input_path", app.config.Site.InputPath))
	return mcpserver.New(b, Version).ServeStdio()
}

// Run builds the site, then serves it with live reload while watching the
// input and config directories for changes.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger := app.newLogger()
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("input_path", cfg.Site.InputPath),
		slog.String("output_path", cfg.Site.OutputPath),
		slog.String("config_dir", cfg.Site.ConfigDir),
		slog.String("journal_path", cfg.Journal.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	rebuilder := app.rebuilder
	if rebuilder == nil {
		b, err := app.newBuilder(logger)
		if err != nil {
			return err
		}
		rebuilder = b
	} else if err := os.MkdirAll(cfg.Site.OutputPath, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	// A broken initial build is reported; serving continues so the next
	// edit can fix it.
	if err := rebuilder.Rebuild(ctx, models.BuildOptions{IncludeRefresh: true}); err != nil {
		logger.Error("initial build failed", logfields.Error(err))
	}

	rec := metrics.New(nil)

	watchOpts := []watch.Option{
		watch.WithLogger(logger),
		watch.WithMetrics(rec),
		watch.WithCoalesce(cfg.Watch.Coalesce),
	}
	serverOpts := []server.Option{
		server.WithLogger(logger),
		server.WithMetrics(rec),
		server.WithReloadSuffix(cfg.LiveReload.PathSuffix),
	}

	if cfg.Journal.Path != "" {
		db, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			return fmt.Errorf("init journal: %w", err)
		}
		defer db.Close()
		if n, err := db.Prune(ctx, journalKeep); err != nil {
			logger.Warn("journal prune failed", logfields.Error(err))
		} else if n > 0 {
			logger.Debug("journal pruned", slog.Int64("removed", n))
		}
		watchOpts = append(watchOpts, watch.WithJournal(db))
		serverOpts = append(serverOpts, server.WithJournal(db))
	}

	broker := livereload.NewBroker(cfg.LiveReload.Debounce, logger, rec)
	defer broker.Close()

	filter := watch.NewFilter([]string{cfg.Site.InputPath, cfg.Site.ConfigDir}, cfg.Site.OutputPath)
	watcher := watch.New(filter, rebuilder, broker, watchOpts...)
	srv := server.New(cfg.Site.OutputPath, broker, serverOpts...)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	events, err := watch.WatchFS(gCtx, filter.Roots, filter.SkipDir, logger)
	if err != nil {
		return fmt.Errorf("init watcher: %w", err)
	}

	// Start file watcher.
	g.Go(func() error {
		return watcher.Run(gCtx, events)
	})

	// Start HTTP server.
	g.Go(func() error {
		var err error
		if app.listener != nil {
			logger.Info("Starting HTTP server", slog.String("address", app.listener.Addr().String()))
			err = httpServer.Serve(app.listener)
		} else {
			logger.Info("Starting HTTP server", slog.String("address", httpServer.Addr))
			err = httpServer.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
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

		// Hijacked websocket connections are not tracked by Shutdown; closing
		// the broker ends them.
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", logfields.Error(err))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", logfields.Error(err))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group so the watcher stops once the server is down.
var errShutdown = errors.New("shutdown")
