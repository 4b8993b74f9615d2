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

	"github.com/starford/folio/internal/api"
	"github.com/starford/folio/internal/index"
	"github.com/starford/folio/internal/noteservice"
	"github.com/starford/folio/internal/publish"
	"github.com/starford/folio/internal/session"
	"github.com/starford/folio/internal/sse"
	"github.com/starford/folio/internal/storage"
)

const (
	graphThrottle   = 2 * time.Second
	shutdownTimeout = 10 * time.Second
)

var errConfigRequired = errors.New("config is required")

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// core is the vault, its index and the note service over them. The HTTP and
// MCP servers both run on top of it.
type core struct {
	store storage.Provider
	db    *index.DB
	svc   *noteservice.Service
}

// openCore prepares the vault and brings the index up to date with it.
func openCore(cfg *Config, logger *slog.Logger, opts ...noteservice.Option) (*core, error) {
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
	if err := index.Sync(db, store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	opts = append([]noteservice.Option{noteservice.WithLogger(logger)}, opts...)
	return &core{store: store, db: db, svc: noteservice.NewService(store, db, opts...)}, nil
}

func (c *core) Close() error {
	return c.db.Close()
}

// Run starts the HTTP server and blocks until ctx is cancelled or a
// shutdown signal arrives. Pending session edits are written before it
// returns.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts, os.Stdout)
	if err != nil {
		return err
	}
	cfg := app.config

	logger := newLogger(app.logOut, cfg.App.LogLevel)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()),
		slog.Duration("session_ttl", cfg.Editor.SessionTTL),
		slog.Duration("save_debounce", cfg.Editor.SaveDebounce),
		slog.Bool("publish_enabled", cfg.Publish.Enabled))

	basePath := publish.DefaultBasePath
	if cfg.Publish.Enabled {
		basePath = cfg.Publish.BasePath
	}
	c, err := openCore(cfg, logger, noteservice.WithRenderer(publish.New(basePath)))
	if err != nil {
		return err
	}
	defer c.Close()

	broker := sse.NewBroker(graphThrottle)
	defer broker.Close()

	sessions := session.NewManager(c.svc,
		session.WithTTL(cfg.Editor.SessionTTL),
		session.WithDebounce(cfg.Editor.SaveDebounce),
		session.WithLogger(logger),
		session.WithOnSaved(func(d *noteservice.Document) {
			broker.PublishDocumentSaved(sse.DocumentSaved{ID: d.ID, Path: d.Path, Checksum: d.Checksum})
		}),
	)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           newRouter(cfg, c, sessions, broker),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Foreign edits to the vault reach clients as note events.
	watcher := index.NewWatcher(c.db, c.store, cfg.Vault.Path,
		index.WithWatchLogger(logger),
		index.WithOnChange(func(ch index.Change) {
			broker.PublishNoteChange(ch.Kind, sse.NoteChanged{ID: ch.ID, Path: ch.Path})
		}),
	)

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	g, gCtx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		if err := watcher.Run(gCtx); err != nil {
			logger.Error("watcher failed, external edits will not be indexed", slog.String("error", err.Error()))
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", httpServer.Addr))
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
		// Stops the watcher as well.
		stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		if err := sessions.CloseAll(shutdownCtx); err != nil {
			logger.Error("Flushing editing sessions failed", slog.String("error", err.Error()))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// newRouter assembles health checks, the API under /api and, when enabled,
// the public pages under the publish base path.
func newRouter(cfg *Config, c *core, sessions *session.Manager, events http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health checks are unauthenticated.
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		writeStatus(w, http.StatusOK, "ok")
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := c.db.Ping(r.Context()); err != nil {
			writeStatus(w, http.StatusServiceUnavailable, "index unavailable")
			return
		}
		writeStatus(w, http.StatusOK, "ok")
	})

	r.Mount("/api", api.NewRouter(c.svc, sessions, api.RouterConfig{
		AuthEnabled: cfg.Auth.AuthEnabled(),
		Token:       cfg.Auth.Token,
		Events:      events,
	}))

	if cfg.Publish.Enabled {
		r.Mount(cfg.Publish.BasePath, api.NewPublicRouter(c.svc))
	}
	return r
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = fmt.Fprintf(w, `{"status":%q}`, status)
}
