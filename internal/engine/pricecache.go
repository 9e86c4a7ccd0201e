package engine

import (
	"sync"

	"github.com/alanyoungcy/zeroxbot/internal/domain"
)

// PriceCache maps each instrument to its latest valid price.
type PriceCache struct {
	mu     sync.RWMutex
	prices map[string]float64
}

// NewPriceCache returns an empty cache.
func NewPriceCache() *PriceCache {
	return &PriceCache{prices: make(map[string]float64)}
}

// Update stores price for instrument and reports whether it differs from the
// cached value. Invalid prices are rejected and never change cached state.
func (c *PriceCache) Update(instrument string, price float64) bool {
	if instrument == "" || !domain.ValidPrice(price) {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.prices[instrument]; ok && prev == price {
		return false
	}
	c.prices[instrument] = price
	return true
}

// Price returns the cached price for instrument.
func (c *PriceCache) Price(instrument string) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.prices[instrument]
	return p, ok
}

// Snapshot returns a copy of every cached price.
func (c *PriceCache) Snapshot() map[string]float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]float64, len(c.prices))
	for k, v := range c.prices {
		out[k] = v
	}
	return out
}

// Len returns the number of instruments with a cached price.
func (c *PriceCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.prices)
}
