package executor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/zeroxbot/internal/domain"
)

type mapPrices map[string]float64

func (m mapPrices) Price(inst string) (float64, bool) {
	p, ok := m[inst]
	return p, ok
}

type fakePlacer struct {
	orders []domain.OrderRequest
	err    error
}

func (f *fakePlacer) PlaceMarketOrder(_ context.Context, req domain.OrderRequest) (string, error) {
	f.orders = append(f.orders, req)
	if f.err != nil {
		return "", f.err
	}
	return "oid-1", nil
}

type fakeContracts map[string]int32

func (f fakeContracts) ContractPrecisions(context.Context) (map[string]int32, error) {
	return f, nil
}

func defaultPrecision() *Precision {
	return NewPrecision(map[string]int{"BTC": 6, "ETH": 5, "PEPE": 0}, 4)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func buy(amount string) domain.Decision {
	d := domain.Decision{Action: domain.ActionBuy}
	if amount != "" {
		d.Notional = decimal.NewNullDecimal(decimal.RequireFromString(amount))
	}
	return d
}

func TestQuantityRoundedPerPrefixTable(t *testing.T) {
	prices := mapPrices{
		"BTCUSDT":  50000,
		"ETHUSDT":  3000,
		"PEPEUSDT": 0.00002,
		"SOLUSDT":  142.37,
	}

	tests := []struct {
		name   string
		inst   string
		amount string
		want   string
	}{
		{"btc six places", "BTCUSDT", "100", "0.002000"},
		{"btc scenario", "BTCUSDT", "50", "0.001000"},
		{"eth five places", "ETHUSDT", "100", "0.03333"},
		{"pepe integer", "PEPEUSDT", "100", "5000000"},
		{"default four places", "SOLUSDT", "100", "0.7024"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			placer := &fakePlacer{}
			e := New(Config{}, placer, prices, defaultPrecision(), discardLogger())

			require.NoError(t, e.Execute(context.Background(), tt.inst, buy(tt.amount)))
			require.Len(t, placer.orders, 1)
			req := placer.orders[0]
			assert.Equal(t, tt.want, req.QuantityString())
			assert.Equal(t, domain.OrderSideBuy, req.Side)
			assert.Equal(t, domain.OrderTypeMarket, req.Type)
			assert.NotEmpty(t, req.ClientOrderID)
		})
	}
}

func TestSellSide(t *testing.T) {
	placer := &fakePlacer{}
	e := New(Config{}, placer, mapPrices{"ETHUSDT": 2000}, defaultPrecision(), discardLogger())

	d := domain.Decision{Action: domain.ActionSell, Notional: decimal.NewNullDecimal(decimal.NewFromInt(20))}
	require.NoError(t, e.Execute(context.Background(), "ETHUSDT", d))
	require.Len(t, placer.orders, 1)
	assert.Equal(t, domain.OrderSideSell, placer.orders[0].Side)
	assert.Equal(t, "0.01000", placer.orders[0].QuantityString())
}

func TestExecuteSkips(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		prices  mapPrices
		inst    string
		d       domain.Decision
		wantErr error
	}{
		{"wait is ignored", Config{}, mapPrices{"BTCUSDT": 1}, "BTCUSDT", domain.Wait(), nil},
		{"no amount and no default", Config{}, mapPrices{"BTCUSDT": 1}, "BTCUSDT", buy(""), domain.ErrNoNotional},
		{"no cached price", Config{}, mapPrices{}, "BTCUSDT", buy("10"), domain.ErrNoPrice},
		{"rounds to zero", Config{}, mapPrices{"BTCUSDT": 50000}, "BTCUSDT", buy("0.01"), domain.ErrZeroQuantity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			placer := &fakePlacer{}
			e := New(tt.cfg, placer, tt.prices, defaultPrecision(), discardLogger())
			err := e.Execute(context.Background(), tt.inst, tt.d)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.Empty(t, placer.orders, "nothing is submitted")
		})
	}
}

func TestDefaultNotionalFallback(t *testing.T) {
	placer := &fakePlacer{}
	e := New(Config{DefaultNotional: decimal.NewFromInt(100)}, placer, mapPrices{"BTCUSDT": 50000}, defaultPrecision(), discardLogger())

	require.NoError(t, e.Execute(context.Background(), "BTCUSDT", buy("")))
	require.Len(t, placer.orders, 1)
	assert.Equal(t, "0.002000", placer.orders[0].QuantityString())
}

func TestDryRunDoesNotSubmit(t *testing.T) {
	placer := &fakePlacer{}
	e := New(Config{DryRun: true}, placer, mapPrices{"BTCUSDT": 50000}, defaultPrecision(), discardLogger())

	require.NoError(t, e.Execute(context.Background(), "BTCUSDT", buy("100")))
	assert.Empty(t, placer.orders)
}

func TestSubmissionFailureIsReturnedNotRetried(t *testing.T) {
	placer := &fakePlacer{err: domain.ErrExchange}
	e := New(Config{}, placer, mapPrices{"BTCUSDT": 50000}, defaultPrecision(), discardLogger())

	err := e.Execute(context.Background(), "BTCUSDT", buy("100"))
	assert.True(t, errors.Is(err, domain.ErrExchange))
	assert.Len(t, placer.orders, 1, "no retry")
}

func TestPrecisionResolution(t *testing.T) {
	p := NewPrecision(map[string]int{"BTC": 6, "BTCDOM": 2, "eth": 5, "PEPE": 0}, 4)

	assert.Equal(t, int32(6), p.Places("BTCUSDT"))
	assert.Equal(t, int32(2), p.Places("BTCDOMUSDT"), "longest prefix wins")
	assert.Equal(t, int32(5), p.Places("ethusdt"), "case-insensitive")
	assert.Equal(t, int32(0), p.Places("PEPEUSDT"))
	assert.Equal(t, int32(4), p.Places("LINKUSDT"))

	require.NoError(t, p.Refresh(context.Background(), fakeContracts{"BTCUSDT": 3, "LINKUSDT": 1}))
	assert.Equal(t, int32(3), p.Places("BTCUSDT"), "exchange metadata wins")
	assert.Equal(t, int32(1), p.Places("LINKUSDT"))
	assert.Equal(t, int32(5), p.Places("ETHUSDT"), "table still applies elsewhere")
}

type recordingAlerter struct {
	events []string
	titles []string
}

func (r *recordingAlerter) Go(_ context.Context, event, title, _ string) {
	r.events = append(r.events, event)
	r.titles = append(r.titles, title)
}

func TestAlertsOnPlacementOutcome(t *testing.T) {
	alerts := &recordingAlerter{}
	placer := &fakePlacer{}
	e := New(Config{}, placer, mapPrices{"BTCUSDT": 50000}, defaultPrecision(), discardLogger())
	e.SetAlerter(alerts)

	require.NoError(t, e.Execute(context.Background(), "BTCUSDT", buy("50")))
	placer.err = domain.ErrExchange
	require.Error(t, e.Execute(context.Background(), "BTCUSDT", buy("50")))
	require.Error(t, e.Execute(context.Background(), "BTCUSDT", buy("")), "skips are not alerted")

	assert.Equal(t, []string{"order_placed", "order_failed"}, alerts.events)
	assert.Equal(t, "BUY 0.001000 BTCUSDT", alerts.titles[0])
}
