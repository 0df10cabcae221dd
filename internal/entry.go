// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/vaultsnap/internal/api"
	"github.com/starford/vaultsnap/internal/logging"
	"github.com/starford/vaultsnap/internal/mcpserver"
	"github.com/starford/vaultsnap/internal/output"
	"github.com/starford/vaultsnap/internal/sse"
	"github.com/starford/vaultsnap/internal/watcher"
)

// eventReplay is how many events a new SSE client receives on connect.
const eventReplay = 200

// Run watches the images folder until ctx is cancelled or a signal arrives.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Log records also go to SSE clients, the way a desktop log pane would show them.
	broker := sse.NewBroker(eventReplay)
	defer broker.Close()

	logger := slog.New(logging.NewTee(app.handler(), broker, slog.LevelInfo))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("images_folder", cfg.Images.Folder),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.Bool("http_enabled", cfg.App.HTTP.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	c, err := app.build(logger, broker)
	if err != nil {
		return err
	}
	defer c.Close()

	if p := cfg.Settings.OverridePrefix; p != "" {
		logger.Info("Override prefix is active", slog.String("prefix", p))
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return watcher.Watch(gCtx, cfg.Images.Folder, c.processor, logger, watcher.WithSettle(cfg.Images.Settle))
	})

	if cfg.App.HTTP.Enabled {
		httpServer := &http.Server{
			Addr:              cfg.App.HTTP.Address(),
			Handler:           newRouter(cfg, c, broker),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g.Go(func() error {
			logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("HTTP server error: %w", err)
			}
			return nil
		})

		g.Go(func() error {
			<-gCtx.Done()
			logger.Info("Shutting down server...")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Stopped successfully")
	return nil
}

func newRouter(cfg *Config, c *components, broker *sse.Broker) http.Handler {
	rt := api.Runtime{
		Folder:    cfg.Images.Folder,
		Vault:     cfg.Vault.Path,
		Processor: c.processor,
	}
	apiRouter := api.NewRouter(c.notes, rt, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := os.Stat(cfg.Images.Folder); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"images folder unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", apiRouter)
	return r
}

// RunMCP serves the MCP tools over stdin/stdout. Logs go to the configured
// writer so that stdout stays reserved for the protocol.
func RunMCP(_ context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := slog.New(app.handler())

	c, err := app.build(logger)
	if err != nil {
		return err
	}
	defer c.Close()

	logger.Info("mcp: serving on stdio")
	return mcpserver.New(c.notes, app.config.Images.Folder, c.processor).ServeStdio()
}

// Inspect writes a tree describing what the next image would do to the
// note at path (latest note when empty).
func Inspect(ctx context.Context, w io.Writer, path, ext string, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	c, err := app.build(slog.New(app.handler()))
	if err != nil {
		return err
	}
	defer c.Close()

	p, err := c.notes.Preview(ctx, path, ext)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, output.PreviewTree(app.config.Vault.Path, p))
	return err
}
