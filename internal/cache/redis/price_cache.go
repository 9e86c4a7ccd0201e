package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/zeroxbot/internal/domain"
)

// PriceMirror implements domain.PriceMirror using Redis hashes. Each
// instrument lives at "price:{instrument}" with fields "price" and "ts"
// (Unix milliseconds).
type PriceMirror struct {
	rdb *redis.Client
}

// NewPriceMirror creates a PriceMirror backed by the given Client.
func NewPriceMirror(c *Client) *PriceMirror {
	return &PriceMirror{rdb: c.Underlying()}
}

func priceKey(instrument string) string {
	return "price:" + instrument
}

// SetPrice stores the latest price and observation time for an instrument.
func (pm *PriceMirror) SetPrice(ctx context.Context, instrument string, price float64, ts time.Time) error {
	fields := map[string]interface{}{
		"price": strconv.FormatFloat(price, 'f', -1, 64),
		"ts":    strconv.FormatInt(ts.UnixMilli(), 10),
	}
	if err := pm.rdb.HSet(ctx, priceKey(instrument), fields).Err(); err != nil {
		return fmt.Errorf("redis: set price %s: %w", instrument, err)
	}
	return nil
}

// GetPrice reads back a mirrored price. It returns domain.ErrNotFound when
// the instrument has never been mirrored.
func (pm *PriceMirror) GetPrice(ctx context.Context, instrument string) (float64, time.Time, error) {
	vals, err := pm.rdb.HGetAll(ctx, priceKey(instrument)).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: get price %s: %w", instrument, err)
	}
	priceStr, ok := vals["price"]
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	price, err := strconv.ParseFloat(priceStr, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: parse price %s: %w", instrument, err)
	}
	tsMilli, err := strconv.ParseInt(vals["ts"], 10, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: parse ts %s: %w", instrument, err)
	}
	return price, time.UnixMilli(tsMilli), nil
}

var _ domain.PriceMirror = (*PriceMirror)(nil)
