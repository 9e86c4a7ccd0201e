package feed

import (
	"context"
	"log/slog"
	"time"

	"github.com/alanyoungcy/zeroxbot/internal/domain"
	"github.com/alanyoungcy/zeroxbot/internal/metrics"
	"github.com/alanyoungcy/zeroxbot/internal/platform/bitget"
)

// TickHandler is called for each valid price tick, in arrival order.
type TickHandler func(ctx context.Context, tick domain.PriceTick)

// stream is one connection lifetime of the exchange market-data feed.
type stream interface {
	Run(ctx context.Context, handler bitget.TickHandler) error
}

// BitgetFeed keeps the Bitget ticker stream alive: it runs one connection at a
// time and reconnects after a constant delay whenever the connection drops.
// Connection errors are logged and never end the feed.
type BitgetFeed struct {
	stream         stream
	onTick         TickHandler
	reconnectDelay time.Duration
	logger         *slog.Logger
}

// NewBitgetFeed creates a feed around the given stream client.
func NewBitgetFeed(s stream, onTick TickHandler, reconnectDelay time.Duration, logger *slog.Logger) *BitgetFeed {
	if reconnectDelay <= 0 {
		reconnectDelay = time.Second
	}
	return &BitgetFeed{
		stream:         s,
		onTick:         onTick,
		reconnectDelay: reconnectDelay,
		logger:         logger.With(slog.String("component", "bitget_ws_feed")),
	}
}

// Run connects, dispatches ticks and reconnects until ctx is cancelled.
func (f *BitgetFeed) Run(ctx context.Context) error {
	handler := func(tick domain.PriceTick) {
		if f.onTick != nil {
			f.onTick(ctx, tick)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := f.stream.Run(ctx, handler)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			f.logger.Warn("bitget ws disconnected, reconnecting",
				slog.String("error", err.Error()),
				slog.Duration("delay", f.reconnectDelay),
			)
		}
		metrics.WSReconnects.Inc()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(f.reconnectDelay):
		}
	}
}

// TrackState mirrors stream state transitions into logs and the ws_state gauge,
// and logs server events. Error replies are logged at warn.
func TrackState(client *bitget.WSClient, logger *slog.Logger) {
	logger = logger.With(slog.String("component", "bitget_ws_feed"))
	client.OnEvent(func(ev bitget.WSEvent) {
		attrs := []any{
			slog.String("event", ev.Event),
			slog.String("inst_id", ev.Arg.InstID),
		}
		if !ev.IsError() {
			logger.Debug("bitget ws event", attrs...)
			return
		}
		metrics.WSErrorEvents.Inc()
		logger.Warn("bitget ws error event", append(attrs,
			slog.String("code", ev.ErrorCode()),
			slog.String("error_msg", ev.Msg),
		)...)
	})
	client.OnStateChange(func(s bitget.ConnState) {
		metrics.WSState.Set(float64(s))
		if s == bitget.StateSubscribed {
			logger.Info("bitget ws subscribed")
		} else {
			logger.Debug("bitget ws state", slog.String("state", s.String()))
		}
	})
}
