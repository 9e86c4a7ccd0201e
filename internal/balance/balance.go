// Package balance reads the account equity and tracks the session baseline.
package balance

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/zeroxbot/internal/domain"
)

// Source returns the USDT equity of the futures account.
type Source interface {
	AccountEquity(ctx context.Context) (decimal.Decimal, error)
}

// Oracle wraps a Source and reduces every failure to "unavailable". Errors
// are logged once per failure streak so a missing credential does not flood
// the log every publish cycle.
type Oracle struct {
	src    Source
	logger *slog.Logger

	mu      sync.Mutex
	failing bool
}

// NewOracle creates a balance Oracle over src.
func NewOracle(src Source, logger *slog.Logger) *Oracle {
	return &Oracle{
		src:    src,
		logger: logger.With(slog.String("component", "balance")),
	}
}

// Fetch reads the equity once. Any failure wraps domain.ErrBalanceUnavailable.
func (o *Oracle) Fetch(ctx context.Context) (decimal.Decimal, error) {
	if o.src == nil {
		return decimal.Zero, domain.ErrBalanceUnavailable
	}
	v, err := o.src.AccountEquity(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("balance: %w: %w", domain.ErrBalanceUnavailable, err)
	}
	return v, nil
}

// Balance returns the current equity, or ok=false when it cannot be read.
func (o *Oracle) Balance(ctx context.Context) (decimal.Decimal, bool) {
	if o.src == nil {
		return decimal.Zero, false
	}
	v, err := o.Fetch(ctx)

	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		if !o.failing {
			o.logger.WarnContext(ctx, "balance unavailable", slog.String("error", err.Error()))
		}
		o.failing = true
		return decimal.Zero, false
	}
	if o.failing {
		o.logger.InfoContext(ctx, "balance available again", slog.String("equity", v.StringFixed(2)))
	}
	o.failing = false
	return v, true
}

// Reading is the session view after one observation.
type Reading struct {
	Balance     decimal.Decimal
	Delta       decimal.Decimal
	HasBalance  bool
	HasBaseline bool
}

// Session remembers the first positive balance seen as the baseline and the
// last known balance across unavailable periods.
type Session struct {
	mu          sync.Mutex
	baseline    decimal.Decimal
	hasBaseline bool
	last        decimal.Decimal
	hasLast     bool
}

// NewSession returns an empty Session.
func NewSession() *Session {
	return &Session{}
}

// Observe folds a balance query result into the session. When ok is false
// the last known balance is kept.
func (s *Session) Observe(v decimal.Decimal, ok bool) Reading {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ok {
		s.last, s.hasLast = v, true
		if !s.hasBaseline && v.IsPositive() {
			s.baseline, s.hasBaseline = v, true
		}
	}

	r := Reading{
		Balance:     s.last,
		HasBalance:  s.hasLast,
		HasBaseline: s.hasBaseline,
	}
	if s.hasBaseline && s.hasLast {
		r.Delta = s.last.Sub(s.baseline)
	}
	return r
}

// Baseline returns the session baseline, if one has been set.
func (s *Session) Baseline() (decimal.Decimal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseline, s.hasBaseline
}

// FormatDelta renders a signed two-decimal amount: "+1.25", "-0.40", "+0.00".
func FormatDelta(d decimal.Decimal) string {
	s := d.StringFixed(2)
	if !d.Round(2).IsNegative() {
		return "+" + s
	}
	return s
}
