package executor

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// ContractSource publishes per-symbol order-size precision.
type ContractSource interface {
	ContractPrecisions(ctx context.Context) (map[string]int32, error)
}

// Precision resolves the number of decimal places an order quantity is
// rounded to. Exchange-published values win; otherwise the longest matching
// prefix from the configured table applies, then the default.
type Precision struct {
	mu       sync.RWMutex
	prefixes map[string]int32
	def      int32
	exchange map[string]int32
}

// NewPrecision builds a resolver from a prefix table such as
// {"BTC": 6, "ETH": 5, "PEPE": 0} and a default.
func NewPrecision(prefixes map[string]int, def int) *Precision {
	p := &Precision{
		prefixes: make(map[string]int32, len(prefixes)),
		def:      int32(def),
	}
	for prefix, places := range prefixes {
		p.prefixes[strings.ToUpper(prefix)] = int32(places)
	}
	return p
}

// Places returns the decimal places for instrument.
func (p *Precision) Places(instrument string) int32 {
	inst := strings.ToUpper(instrument)

	p.mu.RLock()
	defer p.mu.RUnlock()

	if places, ok := p.exchange[inst]; ok {
		return places
	}

	best, bestLen := p.def, -1
	for prefix, places := range p.prefixes {
		if strings.HasPrefix(inst, prefix) && len(prefix) > bestLen {
			best, bestLen = places, len(prefix)
		}
	}
	return best
}

// Refresh loads exchange-published precision, replacing any previous set.
func (p *Precision) Refresh(ctx context.Context, src ContractSource) error {
	m, err := src.ContractPrecisions(ctx)
	if err != nil {
		return fmt.Errorf("executor: refresh precision: %w", err)
	}
	exchange := make(map[string]int32, len(m))
	for sym, places := range m {
		exchange[strings.ToUpper(sym)] = places
	}

	p.mu.Lock()
	p.exchange = exchange
	p.mu.Unlock()
	return nil
}
