// Package engine turns price changes into gated decision requests and acts on
// the verdicts.
package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/zeroxbot/internal/domain"
	"github.com/alanyoungcy/zeroxbot/internal/metrics"
)

// broadcastTimeout bounds each optional fan-out write (bus, journal).
const broadcastTimeout = 2 * time.Second

// Oracle maps a price event to a decision.
type Oracle interface {
	Decide(ctx context.Context, instrument string, price float64) (domain.Decision, error)
}

// Executor acts on BUY/SELL decisions. It logs its own failures.
type Executor interface {
	Execute(ctx context.Context, instrument string, d domain.Decision) error
}

// Config holds engine policy knobs.
type Config struct {
	ThoughtCapacity   int
	WaitLogSampleRate float64
	DecisionChannel   string // bus channel for decision broadcasts
	ThoughtStream     string // bus stream for the durable decision feed
}

// Deps holds the engine collaborators. Oracle is required; the rest are
// optional.
type Deps struct {
	Oracle   Oracle
	Executor Executor
	Cache    *PriceCache
	Bus      domain.SignalBus
	Journal  domain.ThoughtStore
	Logger   *slog.Logger
}

// Engine owns the price cache, the decision gate and the thought log. Several
// engines can coexist; there is no package-level state besides metrics.
type Engine struct {
	cfg      Config
	oracle   Oracle
	executor Executor
	bus      domain.SignalBus
	journal  domain.ThoughtStore
	logger   *slog.Logger

	cache    *PriceCache
	gate     Gate
	thoughts *ThoughtLog

	inflight sync.WaitGroup

	now       func() time.Time
	randFloat func() float64
	newID     func() string
}

// New creates an Engine.
func New(cfg Config, deps Deps) *Engine {
	cache := deps.Cache
	if cache == nil {
		cache = NewPriceCache()
	}
	return &Engine{
		cfg:       cfg,
		oracle:    deps.Oracle,
		executor:  deps.Executor,
		bus:       deps.Bus,
		journal:   deps.Journal,
		logger:    deps.Logger.With(slog.String("component", "engine")),
		cache:     cache,
		thoughts:  NewThoughtLog(cfg.ThoughtCapacity),
		now:       time.Now,
		randFloat: rand.Float64,
		newID:     uuid.NewString,
	}
}

// HandleTick updates the price cache and, when the price changed and no
// decision is in flight, dispatches one decision request in the background.
// It never blocks on the oracle, so the stream keeps reading in arrival order.
func (e *Engine) HandleTick(ctx context.Context, tick domain.PriceTick) {
	if !tick.Valid() {
		return
	}
	if !e.cache.Update(tick.Instrument, tick.Price) {
		metrics.Ticks.WithLabelValues("duplicate").Inc()
		return
	}
	metrics.Ticks.WithLabelValues("changed").Inc()

	release, ok := e.gate.TryAcquire()
	if !ok {
		metrics.DecisionsDropped.Inc()
		return
	}

	e.inflight.Add(1)
	go func() {
		defer e.inflight.Done()
		defer release()
		e.decide(ctx, tick)
	}()
}

// decide runs one oracle round-trip, executes actionable verdicts and records
// the outcome. Oracle failures count as WAIT with no reason.
func (e *Engine) decide(ctx context.Context, tick domain.PriceTick) {
	start := e.now()
	d, err := e.oracle.Decide(ctx, tick.Instrument, tick.Price)
	metrics.DecisionLatency.Observe(e.now().Sub(start).Seconds())
	if err != nil {
		metrics.DecisionErrors.Inc()
		e.logger.Warn("decision oracle unavailable",
			slog.String("instrument", tick.Instrument),
			slog.String("error", err.Error()),
		)
		d = domain.Wait()
	}

	if d.Action.Actionable() {
		e.logger.Info("oracle ordered",
			slog.String("instrument", tick.Instrument),
			slog.String("action", string(d.Action)),
			slog.String("reason", d.Reason),
		)
		if e.executor != nil {
			_ = e.executor.Execute(ctx, tick.Instrument, d)
		}
	} else if err == nil && e.randFloat() < e.cfg.WaitLogSampleRate {
		e.logger.Info("oracle waits",
			slog.String("instrument", tick.Instrument),
			slog.String("reason", d.Reason),
		)
	}

	entry := domain.ThoughtEntry{
		ID:         e.newID(),
		Instrument: tick.Instrument,
		Price:      tick.Price,
		Action:     d.Action,
		Reason:     d.Reason,
		Confidence: d.Confidence,
		Timestamp:  e.now(),
	}
	e.thoughts.Add(entry)
	metrics.Decisions.WithLabelValues(string(d.Action)).Inc()

	e.broadcast(ctx, entry)
}

// thoughtMessage is the wire form of a ThoughtEntry on the bus.
type thoughtMessage struct {
	ID         string    `json:"id"`
	Instrument string    `json:"instrument"`
	Price      float64   `json:"price"`
	Action     string    `json:"action"`
	Reason     string    `json:"reason"`
	Confidence any       `json:"confidence,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// broadcast fans the entry out to the optional bus and journal. Failures are
// logged and never affect the decision path.
func (e *Engine) broadcast(ctx context.Context, entry domain.ThoughtEntry) {
	if e.bus != nil {
		payload, err := json.Marshal(thoughtMessage{
			ID:         entry.ID,
			Instrument: entry.Instrument,
			Price:      entry.Price,
			Action:     string(entry.Action),
			Reason:     entry.Reason,
			Confidence: entry.Confidence,
			Timestamp:  entry.Timestamp,
		})
		if err == nil {
			bctx, cancel := context.WithTimeout(ctx, broadcastTimeout)
			if e.cfg.DecisionChannel != "" && entry.Action.Actionable() {
				if err := e.bus.Publish(bctx, e.cfg.DecisionChannel, payload); err != nil {
					e.logger.Debug("decision publish failed", slog.String("error", err.Error()))
				}
			}
			if e.cfg.ThoughtStream != "" {
				if err := e.bus.StreamAppend(bctx, e.cfg.ThoughtStream, payload); err != nil {
					e.logger.Debug("thought stream append failed", slog.String("error", err.Error()))
				}
			}
			cancel()
		}
	}

	if e.journal != nil {
		jctx, cancel := context.WithTimeout(ctx, broadcastTimeout)
		defer cancel()
		if err := e.journal.Insert(jctx, entry); err != nil {
			e.logger.Warn("thought journal insert failed", slog.String("error", err.Error()))
		}
	}
}

// Restore seeds the thought log from the journal so the published history
// survives restarts.
func (e *Engine) Restore(ctx context.Context) error {
	if e.journal == nil {
		return nil
	}
	entries, err := e.journal.ListRecent(ctx, e.thoughts.capacity)
	if err != nil {
		return err
	}
	e.thoughts.Seed(entries)
	e.logger.Info("thought log restored", slog.Int("entries", len(entries)))
	return nil
}

// Wait blocks until any in-flight decision completes.
func (e *Engine) Wait() {
	e.inflight.Wait()
}

// Cache returns the engine's price cache.
func (e *Engine) Cache() *PriceCache { return e.cache }

// Prices returns a copy of the cached prices.
func (e *Engine) Prices() map[string]float64 { return e.cache.Snapshot() }

// Thoughts returns the thought log, most recent first.
func (e *Engine) Thoughts() []domain.ThoughtEntry { return e.thoughts.Entries() }

// Busy reports whether a decision is in flight.
func (e *Engine) Busy() bool { return e.gate.Busy() }
