package snapshot

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/zeroxbot/internal/balance"
	"github.com/alanyoungcy/zeroxbot/internal/domain"
	"github.com/alanyoungcy/zeroxbot/internal/metrics"
)

const (
	statusScanning   = "ESCANEANDO MERCADO 📡"
	statusConnecting = "CONECTANDO..."
	colorReady       = "verde"
	colorWaiting     = "amarillo"

	mirrorTimeout = 2 * time.Second
)

// State is the engine view the publisher renders.
type State interface {
	Prices() map[string]float64
	Thoughts() []domain.ThoughtEntry
}

// BalanceReader reports the account equity, ok=false when unavailable.
type BalanceReader interface {
	Balance(ctx context.Context) (decimal.Decimal, bool)
}

// Config controls the publisher.
type Config struct {
	Path     string
	Interval time.Duration
}

// thoughtView is the display form of a ThoughtEntry.
type thoughtView struct {
	ID         string  `json:"id"`
	Timestamp  string  `json:"timestamp"`
	Instrument string  `json:"moneda"`
	Price      float64 `json:"precio"`
	Action     string  `json:"accion"`
	Reason     string  `json:"razon"`
	Confidence any     `json:"confianza"`
}

func newThoughtView(t domain.ThoughtEntry) thoughtView {
	conf := t.Confidence
	if conf == nil || conf == "" {
		conf = "N/A"
	}
	return thoughtView{
		ID:         t.ID,
		Timestamp:  t.Timestamp.Local().Format(time.TimeOnly),
		Instrument: t.Instrument,
		Price:      t.Price,
		Action:     t.Action.Label(),
		Reason:     t.Reason,
		Confidence: conf,
	}
}

// Publisher periodically merges engine state, balance and session PnL into
// the snapshot file.
type Publisher struct {
	cfg     Config
	state   State
	balance BalanceReader
	session *balance.Session
	mirror  domain.PriceMirror
	logger  *slog.Logger
	now     func() time.Time

	mu   sync.RWMutex
	last []byte
}

// NewPublisher creates a Publisher. mirror may be nil.
func NewPublisher(cfg Config, state State, bal BalanceReader, session *balance.Session, mirror domain.PriceMirror, logger *slog.Logger) *Publisher {
	if session == nil {
		session = balance.NewSession()
	}
	return &Publisher{
		cfg:     cfg,
		state:   state,
		balance: bal,
		session: session,
		mirror:  mirror,
		logger:  logger.With(slog.String("component", "snapshot")),
		now:     time.Now,
	}
}

// Run publishes on every interval tick until ctx is cancelled.
func (p *Publisher) Run(ctx context.Context) error {
	p.logger.Info("publishing state", slog.String("path", p.cfg.Path), slog.Duration("interval", p.cfg.Interval))

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.PublishOnce(ctx); err != nil {
				p.logger.Debug("snapshot write failed", slog.String("error", err.Error()))
			}
		}
	}
}

// PublishOnce runs one publish cycle.
func (p *Publisher) PublishOnce(ctx context.Context) error {
	var (
		v  decimal.Decimal
		ok bool
	)
	if p.balance != nil {
		v, ok = p.balance.Balance(ctx)
	}
	hadBaseline := p.sessionHasBaseline()
	reading := p.session.Observe(v, ok)
	if reading.HasBaseline && !hadBaseline {
		p.logger.Info("session baseline set", slog.String("equity", reading.Balance.StringFixed(2)))
	}
	if reading.HasBalance {
		f, _ := reading.Balance.Float64()
		metrics.AccountEquity.Set(f)
		delta, _ := reading.Delta.Float64()
		metrics.SessionPnL.Set(delta)
	}

	prices := p.state.Prices()
	thoughts := p.state.Thoughts()
	views := make([]thoughtView, 0, len(thoughts))
	for _, t := range thoughts {
		views = append(views, newThoughtView(t))
	}

	status, color := statusConnecting, colorWaiting
	if len(prices) > 0 {
		status, color = statusScanning, colorReady
	}

	now := p.now()
	doc := ReadDocument(p.cfg.Path)
	err := doc.Merge(map[string]any{
		"precios":              prices,
		"timestamp_mercado":    now.UnixMilli(),
		"saldo_cuenta":         reading.Balance.StringFixed(2),
		"ultima_operacion_pnl": balance.FormatDelta(reading.Delta),
		"pensamientos":         views,
		"estado_sistema":       status,
		"color_estado":         color,
	})
	if err != nil {
		metrics.SnapshotWrites.WithLabelValues("error").Inc()
		return err
	}
	out, err := doc.Encode()
	if err != nil {
		metrics.SnapshotWrites.WithLabelValues("error").Inc()
		return err
	}
	if err := WriteAtomic(p.cfg.Path, out); err != nil {
		metrics.SnapshotWrites.WithLabelValues("error").Inc()
		return err
	}
	metrics.SnapshotWrites.WithLabelValues("ok").Inc()

	p.mu.Lock()
	p.last = out
	p.mu.Unlock()

	p.mirrorPrices(ctx, prices, now)
	return nil
}

// Last returns the most recently written document, or nil.
func (p *Publisher) Last() []byte {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.last
}

func (p *Publisher) sessionHasBaseline() bool {
	_, ok := p.session.Baseline()
	return ok
}

func (p *Publisher) mirrorPrices(ctx context.Context, prices map[string]float64, ts time.Time) {
	if p.mirror == nil || len(prices) == 0 {
		return
	}
	mctx, cancel := context.WithTimeout(ctx, mirrorTimeout)
	defer cancel()
	for inst, price := range prices {
		if err := p.mirror.SetPrice(mctx, inst, price, ts); err != nil {
			p.logger.Debug("price mirror failed", slog.String("instrument", inst), slog.String("error", err.Error()))
			return
		}
	}
}
