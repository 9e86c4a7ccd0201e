package domain

import (
	"context"
	"time"
)

// PriceMirror publishes cached prices to an external store for other readers.
type PriceMirror interface {
	SetPrice(ctx context.Context, instrument string, price float64, ts time.Time) error
}

// SignalBus provides pub/sub and durable streams.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	StreamAppend(ctx context.Context, stream string, payload []byte) error
}
