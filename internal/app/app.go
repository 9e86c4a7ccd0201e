// Package app wires the market engine together and runs its long-lived
// goroutines until shutdown.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/zeroxbot/internal/config"
)

// App is the root application object. It owns the configuration, logger and
// the cleanup functions run in reverse order on Close.
type App struct {
	cfg     *config.Config
	base    *slog.Logger // handed to components, which tag themselves
	logger  *slog.Logger
	closers []func()
}

// New creates an App.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		base:   logger,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires the dependencies and blocks in the engine run loop until ctx is
// cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("instruments", strings.Join(a.cfg.Instruments, ",")),
		slog.String("oracle", a.cfg.Oracle.URL),
		slog.Bool("dry_run", a.cfg.Executor.DryRun),
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.base)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	return a.runEngine(ctx, deps)
}

// Close tears down all resources in reverse registration order. It is safe to
// call more than once.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
