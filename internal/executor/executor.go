// Package executor turns BUY/SELL decisions into precision-rounded market
// orders.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/zeroxbot/internal/domain"
	"github.com/alanyoungcy/zeroxbot/internal/metrics"
)

// OrderPlacer submits orders to the exchange.
type OrderPlacer interface {
	PlaceMarketOrder(ctx context.Context, req domain.OrderRequest) (string, error)
}

// PriceSource returns the latest cached price for an instrument.
type PriceSource interface {
	Price(instrument string) (float64, bool)
}

// Alerter receives order outcomes. Go must not block.
type Alerter interface {
	Go(ctx context.Context, event, title, message string)
}

// Config holds sizing policy.
type Config struct {
	// DryRun logs the order that would be sent instead of submitting it.
	DryRun bool
	// DefaultNotional is used when a decision carries no amount. Zero means
	// such decisions are skipped.
	DefaultNotional decimal.Decimal
}

// Executor sizes and submits one market order per actionable decision. It
// never retries: a failed submission is logged and dropped.
type Executor struct {
	cfg       Config
	placer    OrderPlacer
	prices    PriceSource
	precision *Precision
	logger    *slog.Logger
	alerter   Alerter
	newID     func() string
}

// New creates an Executor.
func New(cfg Config, placer OrderPlacer, prices PriceSource, precision *Precision, logger *slog.Logger) *Executor {
	return &Executor{
		cfg:       cfg,
		placer:    placer,
		prices:    prices,
		precision: precision,
		logger:    logger.With(slog.String("component", "executor")),
		newID:     uuid.NewString,
	}
}

// SetAlerter routes placed and failed orders to a.
func (e *Executor) SetAlerter(a Alerter) {
	e.alerter = a
}

// Execute converts the decision's notional amount into a quantity at the
// latest cached price, rounds it to the instrument precision and submits a
// market order. Every outcome is logged here; the returned error is
// informational and callers are expected to continue.
func (e *Executor) Execute(ctx context.Context, instrument string, d domain.Decision) error {
	if !d.Action.Actionable() {
		return nil
	}
	side := d.Action.Side()
	log := e.logger.With(
		slog.String("instrument", instrument),
		slog.String("side", string(side)),
	)

	req, err := e.BuildOrder(instrument, d)
	if err != nil {
		metrics.Orders.WithLabelValues(string(side), "skipped").Inc()
		log.Warn("order skipped", slog.String("error", err.Error()))
		return err
	}
	log = log.With(slog.String("quantity", req.QuantityString()))

	if e.cfg.DryRun {
		metrics.Orders.WithLabelValues(string(side), "dry_run").Inc()
		log.Info("dry run: order not submitted")
		return nil
	}

	orderID, err := e.placer.PlaceMarketOrder(ctx, req)
	if err != nil {
		metrics.Orders.WithLabelValues(string(side), "failed").Inc()
		log.Error("order placement failed", slog.String("error", err.Error()))
		e.alert(ctx, "order_failed", req, err.Error())
		return err
	}

	metrics.Orders.WithLabelValues(string(side), "placed").Inc()
	log.Info("order placed successfully", slog.String("order_id", orderID))
	e.alert(ctx, "order_placed", req, "order "+orderID)
	return nil
}

func (e *Executor) alert(ctx context.Context, event string, req domain.OrderRequest, detail string) {
	if e.alerter == nil {
		return
	}
	title := fmt.Sprintf("%s %s %s", strings.ToUpper(string(req.Side)), req.QuantityString(), req.Instrument)
	e.alerter.Go(ctx, event, title, detail)
}

// BuildOrder sizes the order for an actionable decision without submitting
// it.
func (e *Executor) BuildOrder(instrument string, d domain.Decision) (domain.OrderRequest, error) {
	notional := e.cfg.DefaultNotional
	if d.Notional.Valid && d.Notional.Decimal.IsPositive() {
		notional = d.Notional.Decimal
	}
	if !notional.IsPositive() {
		return domain.OrderRequest{}, domain.ErrNoNotional
	}

	price, ok := e.prices.Price(instrument)
	if !ok || !domain.ValidPrice(price) {
		return domain.OrderRequest{}, fmt.Errorf("%s: %w", instrument, domain.ErrNoPrice)
	}

	places := e.precision.Places(instrument)
	qty := notional.Div(decimal.NewFromFloat(price)).Round(places)
	if !qty.IsPositive() {
		return domain.OrderRequest{}, fmt.Errorf("%s: %w", instrument, domain.ErrZeroQuantity)
	}

	return domain.OrderRequest{
		ClientOrderID: e.newID(),
		Instrument:    instrument,
		Side:          d.Action.Side(),
		Type:          domain.OrderTypeMarket,
		Quantity:      qty,
		Precision:     places,
	}, nil
}
