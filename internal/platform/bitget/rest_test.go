package bitget

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/alanyoungcy/zeroxbot/internal/crypto"
	"github.com/alanyoungcy/zeroxbot/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAuth() *crypto.HMACAuth {
	return &crypto.HMACAuth{Key: "ak", Secret: "sk", Passphrase: "pp"}
}

// verifySignature recomputes ACCESS-SIGN for the received request.
func verifySignature(t *testing.T, r *http.Request, body string) {
	t.Helper()
	ts, err := strconv.ParseInt(r.Header.Get("ACCESS-TIMESTAMP"), 10, 64)
	require.NoError(t, err)
	want := testAuth().HeadersAt(r.Method, r.URL.RequestURI(), body, ts)
	assert.Equal(t, want["ACCESS-SIGN"], r.Header.Get("ACCESS-SIGN"))
	assert.Equal(t, "ak", r.Header.Get("ACCESS-KEY"))
	assert.Equal(t, "pp", r.Header.Get("ACCESS-PASSPHRASE"))
}

func TestPlaceMarketOrder(t *testing.T) {
	var got PlaceOrderRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, pathPlaceOrder, r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		verifySignature(t, r, string(raw))
		require.NoError(t, json.Unmarshal(raw, &got))
		_, _ = w.Write([]byte(`{"code":"00000","msg":"success","data":{"orderId":"1234","clientOid":"c-1"}}`))
	}))
	defer srv.Close()

	client := NewRESTClient(RESTConfig{BaseURL: srv.URL, Auth: testAuth()})
	id, err := client.PlaceMarketOrder(context.Background(), domain.OrderRequest{
		ClientOrderID: "c-1",
		Instrument:    "BTCUSDT",
		Side:          domain.OrderSideBuy,
		Type:          domain.OrderTypeMarket,
		Quantity:      decimal.RequireFromString("0.001"),
		Precision:     6,
	})
	require.NoError(t, err)
	assert.Equal(t, "1234", id)

	assert.Equal(t, "BTCUSDT", got.Symbol)
	assert.Equal(t, "0.001000", got.Size)
	assert.Equal(t, "buy", got.Side)
	assert.Equal(t, "market", got.OrderType)
	assert.Equal(t, "USDT-FUTURES", got.ProductType)
	assert.Equal(t, "crossed", got.MarginMode)
	assert.Equal(t, "USDT", got.MarginCoin)
}

func TestPlaceMarketOrderRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":"40762","msg":"The order amount exceeds the balance"}`))
	}))
	defer srv.Close()

	client := NewRESTClient(RESTConfig{BaseURL: srv.URL, Auth: testAuth()})
	_, err := client.PlaceMarketOrder(context.Background(), domain.OrderRequest{
		Instrument: "ETHUSDT",
		Side:       domain.OrderSideSell,
		Quantity:   decimal.NewFromInt(1),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrExchange))
}

func TestSignedCallsRequireCredentials(t *testing.T) {
	client := NewRESTClient(RESTConfig{BaseURL: "http://127.0.0.1:1", Auth: &crypto.HMACAuth{Key: "only-key"}})

	_, err := client.AccountEquity(context.Background())
	assert.ErrorIs(t, err, domain.ErrMissingCredentials)

	_, err = client.PlaceMarketOrder(context.Background(), domain.OrderRequest{Instrument: "BTCUSDT"})
	assert.ErrorIs(t, err, domain.ErrMissingCredentials)
}

func TestAccountEquity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, pathAccounts, r.URL.Path)
		assert.Equal(t, "USDT-FUTURES", r.URL.Query().Get("productType"))
		verifySignature(t, r, "")
		_, _ = w.Write([]byte(`{"code":"00000","data":[
			{"marginCoin":"USDC","accountEquity":"5"},
			{"marginCoin":"USDT","accountEquity":"1234.5678","available":"1000"}
		]}`))
	}))
	defer srv.Close()

	client := NewRESTClient(RESTConfig{BaseURL: srv.URL, Auth: testAuth()})
	eq, err := client.AccountEquity(context.Background())
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("1234.5678").Equal(eq))
}

func TestAccountEquityMissingCoin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":"00000","data":[]}`))
	}))
	defer srv.Close()

	client := NewRESTClient(RESTConfig{BaseURL: srv.URL, Auth: testAuth()})
	_, err := client.AccountEquity(context.Background())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAccountEquityUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewRESTClient(RESTConfig{BaseURL: srv.URL, Auth: testAuth()})
	_, err := client.AccountEquity(context.Background())
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestContractPrecisions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, pathContracts, r.URL.Path)
		assert.Empty(t, r.Header.Get("ACCESS-SIGN"), "public endpoint is unsigned")
		_, _ = w.Write([]byte(`{"code":"00000","data":[
			{"symbol":"BTCUSDT","volumePlace":"4"},
			{"symbol":"PEPEUSDT","volumePlace":0},
			{"symbol":"BROKEN","volumePlace":"x"}
		]}`))
	}))
	defer srv.Close()

	client := NewRESTClient(RESTConfig{BaseURL: srv.URL})
	got, err := client.ContractPrecisions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int32{"BTCUSDT": 4, "PEPEUSDT": 0}, got)
}
