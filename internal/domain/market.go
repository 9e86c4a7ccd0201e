package domain

import (
	"math"
	"time"
)

// Instrument is an exchange symbol identifier such as "BTCUSDT".
type Instrument = string

// PriceTick is one price observation for an instrument.
type PriceTick struct {
	Instrument Instrument
	Price      float64
	ObservedAt time.Time
}

// Valid reports whether the tick carries a usable, strictly positive price.
func (t PriceTick) Valid() bool {
	return t.Instrument != "" && ValidPrice(t.Price)
}

// ValidPrice rejects zero, negative, NaN and infinite prices.
func ValidPrice(p float64) bool {
	return p > 0 && !math.IsNaN(p) && !math.IsInf(p, 0)
}
