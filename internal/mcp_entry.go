package internal

import (
	"context"
	"log/slog"
	"os"

	"github.com/starford/folio/internal/index"
	"github.com/starford/folio/internal/mcpserver"
)

// ServeMCP runs the MCP server on stdin/stdout against the configured vault.
func ServeMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts, os.Stderr)
	if err != nil {
		return err
	}
	cfg := app.config

	logger := newLogger(app.logOut, cfg.App.LogLevel)
	slog.SetDefault(logger)

	c, err := openCore(cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	// Another process, such as the HTTP server, may write the vault meanwhile.
	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		w := index.NewWatcher(c.db, c.store, cfg.Vault.Path, index.WithWatchLogger(logger))
		if err := w.Run(watchCtx); err != nil {
			logger.Warn("watcher failed", slog.String("error", err.Error()))
		}
	}()

	logger.Info("MCP server starting on stdio", slog.String("vault_path", cfg.Vault.Path))
	return mcpserver.New(c.svc).ServeStdio()
}
