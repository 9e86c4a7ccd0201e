package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	s3blob "github.com/alanyoungcy/zeroxbot/internal/blob/s3"
	"github.com/alanyoungcy/zeroxbot/internal/balance"
	"github.com/alanyoungcy/zeroxbot/internal/domain"
	"github.com/alanyoungcy/zeroxbot/internal/engine"
	"github.com/alanyoungcy/zeroxbot/internal/executor"
	"github.com/alanyoungcy/zeroxbot/internal/feed"
	"github.com/alanyoungcy/zeroxbot/internal/metrics"
	"github.com/alanyoungcy/zeroxbot/internal/notify"
	"github.com/alanyoungcy/zeroxbot/internal/oracle"
	"github.com/alanyoungcy/zeroxbot/internal/platform/bitget"
	"github.com/alanyoungcy/zeroxbot/internal/snapshot"
)

const (
	// startupTimeout bounds the one-off calls made before the loops start.
	startupTimeout = 15 * time.Second

	shutdownNotifyTimeout = 10 * time.Second
)

// runEngine builds the engine and runs the stream feed, the state publisher
// and the optional metrics server and archiver under one errgroup.
func (a *App) runEngine(ctx context.Context, deps *Dependencies) error {
	cfg := a.cfg
	g, ctx := errgroup.WithContext(ctx)

	// Executor.
	precision := executor.NewPrecision(cfg.Executor.Precision, cfg.Executor.DefaultPrecision)
	if cfg.Executor.UseExchangePrecision {
		pctx, cancel := context.WithTimeout(ctx, startupTimeout)
		if err := precision.Refresh(pctx, deps.Exchange); err != nil {
			a.logger.WarnContext(ctx, "exchange precision unavailable, using table", slog.String("error", err.Error()))
		}
		cancel()
	}

	cache := engine.NewPriceCache()
	exec := executor.New(executor.Config{
		DryRun:          cfg.Executor.DryRun,
		DefaultNotional: decimal.NewFromFloat(cfg.Executor.DefaultNotional),
	}, deps.Exchange, cache, precision, a.base)
	if deps.Notifier.Enabled() {
		exec.SetAlerter(deps.Notifier)
	}
	defer deps.Notifier.Wait()

	// Engine.
	engDeps := engine.Deps{
		Oracle:   oracle.NewClient(cfg.Oracle.URL, cfg.Oracle.Timeout.Duration),
		Executor: exec,
		Cache:    cache,
		Bus:      deps.Bus,
		Logger:   a.base,
	}
	if deps.Journal != nil {
		engDeps.Journal = deps.Journal
	}
	eng := engine.New(engine.Config{
		ThoughtCapacity:   engine.DefaultThoughtCapacity,
		WaitLogSampleRate: cfg.Oracle.WaitLogSampleRate,
		DecisionChannel:   cfg.Redis.DecisionChannel,
		ThoughtStream:     cfg.Redis.ThoughtStream,
	}, engDeps)
	defer eng.Wait()

	rctx, cancel := context.WithTimeout(ctx, startupTimeout)
	if err := eng.Restore(rctx); err != nil {
		a.logger.WarnContext(ctx, "thought log restore failed", slog.String("error", err.Error()))
	}
	cancel()

	// Stream feed.
	ws := bitget.NewWSClient(bitget.WSConfig{
		URL:              cfg.Stream.WsURL,
		InstType:         cfg.Stream.InstType,
		Instruments:      cfg.Instruments,
		PingInterval:     cfg.Stream.PingInterval.Duration,
		ReadTimeout:      cfg.Stream.ReadTimeout.Duration,
		HandshakeTimeout: cfg.Stream.HandshakeTimeout.Duration,
	})
	feed.TrackState(ws, a.base)
	wsFeed := feed.NewBitgetFeed(ws, eng.HandleTick, cfg.Stream.ReconnectDelay.Duration, a.base)
	g.Go(func() error {
		return wsFeed.Run(ctx)
	})

	// State publisher.
	publisher := snapshot.NewPublisher(snapshot.Config{
		Path:     cfg.Snapshot.Path,
		Interval: cfg.Snapshot.Interval.Duration,
	}, eng, balance.NewOracle(deps.Exchange, a.base), balance.NewSession(), deps.Mirror, a.base)
	g.Go(func() error {
		return publisher.Run(ctx)
	})

	// Metrics.
	if cfg.Metrics.Enabled {
		srv := metrics.NewServer(cfg.Metrics.Port, a.base)
		g.Go(func() error {
			return srv.Run(ctx)
		})
	}

	// Archiver.
	if deps.Blob != nil {
		var journal s3blob.ThoughtArchiveStore
		if deps.Journal != nil {
			journal = deps.Journal
		}
		archiver := s3blob.NewArchiver(deps.Blob, cfg.S3.Prefix, publisher, journal, a.base)
		g.Go(func() error {
			return archiver.Run(ctx, cfg.S3.Interval.Duration)
		})
	}

	deps.Notifier.Go(ctx, notify.EventStartup, "zeroxbot started",
		fmt.Sprintf("watching %s", strings.Join(cfg.Instruments, ", ")))

	a.logger.InfoContext(ctx, "engine running", slog.Int("instruments", len(cfg.Instruments)))
	err := g.Wait()
	a.notifyStopped(deps.Notifier, err)
	return err
}

// notifyStopped sends the shutdown alert synchronously, before the backends
// are closed. The run context is already cancelled at this point.
func (a *App) notifyStopped(n *notify.Notifier, runErr error) {
	if !n.Enabled() {
		return
	}
	msg := "shutdown requested"
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		msg = runErr.Error()
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownNotifyTimeout)
	defer cancel()
	if err := n.Notify(ctx, notify.EventShutdown, "zeroxbot stopped", msg); err != nil {
		a.logger.Warn("shutdown notification failed", slog.String("error", err.Error()))
	}
}

// Ask relays a free-form message to the decision oracle together with the
// current balance and the most recent published price for the first
// instrument.
func (a *App) Ask(ctx context.Context, message string) (oracle.ChatReply, error) {
	deps, cleanup, err := Wire(ctx, a.cfg, a.base)
	if err != nil {
		return oracle.ChatReply{}, fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	var bal float64
	if v, err := balance.NewOracle(deps.Exchange, a.base).Fetch(ctx); err != nil {
		a.logger.WarnContext(ctx, "asking without balance", slog.String("error", err.Error()))
	} else {
		bal, _ = v.Float64()
	}

	var (
		instrument domain.Instrument
		price      float64
	)
	if len(a.cfg.Instruments) > 0 {
		instrument = a.cfg.Instruments[0]
		price, _ = snapshot.PublishedPrice(a.cfg.Snapshot.Path, instrument)
	}

	a.logger.DebugContext(ctx, "asking oracle",
		slog.String("instrument", instrument),
		slog.Float64("price", price),
		slog.Float64("balance", bal),
	)
	client := oracle.NewClient(a.cfg.Oracle.URL, a.cfg.Oracle.Timeout.Duration)
	return client.Ask(ctx, message, bal, instrument, price)
}
