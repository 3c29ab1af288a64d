// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/vaultview/internal/api"
	"github.com/starford/vaultview/internal/index"
	"github.com/starford/vaultview/internal/mcpserver"
	"github.com/starford/vaultview/internal/models"
	"github.com/starford/vaultview/internal/noteservice"
	"github.com/starford/vaultview/internal/render"
	"github.com/starford/vaultview/internal/sse"
	"github.com/starford/vaultview/internal/storage"
)

// components is everything the serve and mcp modes share.
type components struct {
	logger *slog.Logger
	store  storage.Provider
	db     *index.DB
	ix     *index.Indexer
	svc    *noteservice.Service
}

func newApplication(opts []Option) (*application, error) {
	app := &application{version: "dev", logOut: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// bootstrap opens storage and the index and runs the initial sync.
// The caller closes c.db.
func (app *application) bootstrap(ctx context.Context) (*components, error) {
	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(app.logOut, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("render_base_url", cfg.Render.BaseURL),
		slog.String("log_level", cfg.App.LogLevel.String()))

	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create vault dir: %w", err)
	}
	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	pipe := render.New(cfg.Render.Options(logger))
	ix := index.NewIndexer(db, store, pipe, logger, cfg.Render.Workers)

	start := time.Now()
	if err := ix.Sync(ctx); err != nil {
		if ctx.Err() != nil {
			db.Close()
			return nil, err
		}
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	} else {
		logger.Info("initial sync finished", slog.Duration("took", time.Since(start)))
	}

	return &components{
		logger: logger,
		store:  store,
		db:     db,
		ix:     ix,
		svc:    noteservice.NewService(store, ix, logger),
	}, nil
}

// Run starts the HTTP server, the vault watcher and the live-reload stream.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	c, err := app.bootstrap(ctx)
	if err != nil {
		return err
	}
	defer c.db.Close()
	logger := c.logger

	broker := sse.NewBroker("/api/render/", cfg.Events.IndexThrottle)
	defer broker.Close()

	apiRouter := api.NewRouter(c.svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker, cfg.Vault.AssetDir)

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
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":  "ok",
			"clients": broker.ClientCount(),
		})
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	// Start file watcher; every index change goes out on the event stream.
	g.Go(func() error {
		if err := c.ix.Watch(gCtx, broker.NoteChanged); err != nil {
			return fmt.Errorf("watcher: %w", err)
		}
		return nil
	})

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

		// Close the stream first so open EventSource connections return.
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return context.Canceled
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the MCP tools on stdin/stdout while watching the vault.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	if app.logOut == os.Stdout {
		app.logOut = os.Stderr
	}

	c, err := app.bootstrap(ctx)
	if err != nil {
		return err
	}
	defer c.db.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.ix.Watch(gCtx, func(kind, path string) {
			c.logger.Debug("vault changed", slog.String("kind", kind), slog.String("path", path))
		})
	})
	g.Go(func() error {
		defer cancel()
		srv := mcpserver.New(c.svc, c.store, app.config.Vault.AssetDir, app.version)
		return srv.ServeStdio()
	})
	return g.Wait()
}

// RenderFile renders one vault note against the current vault and writes the
// bundle as indented JSON. It does not touch the index.
func RenderFile(ctx context.Context, path string, out io.Writer, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := slog.New(slog.NewJSONHandler(app.logOut, &slog.HandlerOptions{Level: cfg.App.LogLevel}))

	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	rel := strings.TrimPrefix(filepath.ToSlash(path), "/")
	data, err := store.Read(rel)
	if err != nil {
		return fmt.Errorf("read %s: %w", rel, err)
	}

	pipe := render.New(cfg.Render.Options(logger))
	doc := models.Document{Path: "/" + rel, Text: string(data)}
	bundle, err := pipe.Render(ctx, doc, storage.NewFileIndex(store))
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(bundle)
}
