package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/zeroxbot/internal/config"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// tickerServer accepts one subscription, pushes one ticker frame and then
// holds the connection open until the client goes away.
func tickerServer(t *testing.T, frame string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(frame))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

type exchangeMock struct {
	mu     sync.Mutex
	orders []map[string]string
}

func (m *exchangeMock) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("ACCESS-SIGN"))
		switch r.URL.Path {
		case "/api/v2/mix/account/accounts":
			_, _ = w.Write([]byte(`{"code":"00000","data":[{"marginCoin":"USDT","accountEquity":"1000"}]}`))
		case "/api/v2/mix/order/place-order":
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			m.mu.Lock()
			m.orders = append(m.orders, body)
			m.mu.Unlock()
			_, _ = w.Write([]byte(`{"code":"00000","data":{"orderId":"1","clientOid":"c"}}`))
		default:
			http.NotFound(w, r)
		}
	})
}

func (m *exchangeMock) placed() []map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]map[string]string(nil), m.orders...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunEndToEnd(t *testing.T) {
	ws := tickerServer(t, `{"action":"snapshot","data":[{"instId":"BTCUSDT","lastPr":"50000"}]}`)
	defer ws.Close()

	var oracleCalls atomic.Int32
	oracleSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		oracleCalls.Add(1)
		_, _ = w.Write([]byte(`{"accion":"COMPRAR","cantidad":50,"razon":"test","confianza":0.9}`))
	}))
	defer oracleSrv.Close()

	exchange := &exchangeMock{}
	rest := httptest.NewServer(exchange.handler(t))
	defer rest.Close()

	snapPath := filepath.Join(t.TempDir(), "estado_bot.json")
	require.NoError(t, os.WriteFile(snapPath, []byte(`{"foo":1}`), 0o644))

	cfg := config.Defaults()
	cfg.Instruments = []string{"BTCUSDT"}
	cfg.Stream.WsURL = "ws" + strings.TrimPrefix(ws.URL, "http")
	cfg.Oracle.URL = oracleSrv.URL
	cfg.Exchange.RestURL = rest.URL
	cfg.Exchange.ApiKey = "key"
	cfg.Exchange.ApiSecret = "secret"
	cfg.Exchange.ApiPassphrase = "pass"
	cfg.Snapshot.Path = snapPath
	cfg.Snapshot.Interval.Duration = 20 * time.Millisecond
	require.NoError(t, cfg.Validate())

	a := New(&cfg, testLogger())
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, func() bool { return len(exchange.placed()) == 1 }, 5*time.Second, 10*time.Millisecond)
	order := exchange.placed()[0]
	assert.Equal(t, "BTCUSDT", order["symbol"])
	assert.Equal(t, "buy", order["side"])
	assert.Equal(t, "0.001000", order["size"])
	assert.Equal(t, "market", order["orderType"])

	var doc map[string]any
	require.Eventually(t, func() bool {
		raw, err := os.ReadFile(snapPath)
		if err != nil || json.Unmarshal(raw, &doc) != nil {
			return false
		}
		thoughts, _ := doc["pensamientos"].([]any)
		return len(thoughts) == 1
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, float64(1), doc["foo"])
	assert.Equal(t, map[string]any{"BTCUSDT": float64(50000)}, doc["precios"])
	assert.Equal(t, "1000.00", doc["saldo_cuenta"])
	assert.Equal(t, "+0.00", doc["ultima_operacion_pnl"])
	assert.Equal(t, "verde", doc["color_estado"])
	thought := doc["pensamientos"].([]any)[0].(map[string]any)
	assert.Equal(t, "COMPRAR", thought["accion"])
	assert.Equal(t, 0.9, thought["confianza"])

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}
	assert.Equal(t, int32(1), oracleCalls.Load(), "one tick, one decision")
}

type webhookRecorder struct {
	mu       sync.Mutex
	contents []string
}

func (h *webhookRecorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body map[string]string
	_ = json.NewDecoder(r.Body).Decode(&body)
	h.mu.Lock()
	h.contents = append(h.contents, body["content"])
	h.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (h *webhookRecorder) received() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.contents...)
}

func TestRunSendsLifecycleAlerts(t *testing.T) {
	ws := tickerServer(t, `pong`)
	defer ws.Close()

	hook := &webhookRecorder{}
	hookSrv := httptest.NewServer(hook)
	defer hookSrv.Close()

	cfg := config.Defaults()
	cfg.Instruments = []string{"BTCUSDT", "ETHUSDT"}
	cfg.Stream.WsURL = "ws" + strings.TrimPrefix(ws.URL, "http")
	cfg.Snapshot.Path = filepath.Join(t.TempDir(), "estado_bot.json")
	cfg.Notify.DiscordWebhookURL = hookSrv.URL
	require.NoError(t, cfg.Validate())

	a := New(&cfg, testLogger())
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, func() bool { return len(hook.received()) == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, "**zeroxbot started**\nwatching BTCUSDT, ETHUSDT", hook.received()[0])

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}

	got := hook.received()
	require.Len(t, got, 2, "shutdown alert delivered before Run returns")
	assert.Equal(t, "**zeroxbot stopped**\nshutdown requested", got[1])
}

func TestWireRejectsUnreadableSecretFile(t *testing.T) {
	cfg := config.Defaults()
	cfg.Exchange.EncryptedSecretPath = filepath.Join(t.TempDir(), "missing.json")
	cfg.Exchange.SecretPassword = "pw"

	_, _, err := Wire(context.Background(), &cfg, testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exchange secret")
}

func TestWireDegradesWhenBackendsUnreachable(t *testing.T) {
	cfg := config.Defaults()
	cfg.Redis.Enabled = true
	cfg.Redis.Addr = "127.0.0.1:1"
	cfg.Redis.MaxRetries = -1
	cfg.Postgres.Enabled = true
	cfg.Postgres.DSN = "postgres://u:p@127.0.0.1:1/db?sslmode=disable&connect_timeout=1"

	deps, cleanup, err := Wire(context.Background(), &cfg, testLogger())
	require.NoError(t, err)
	defer cleanup()

	assert.NotNil(t, deps.Exchange)
	assert.Nil(t, deps.Mirror)
	assert.Nil(t, deps.Bus)
	assert.Nil(t, deps.Journal)
	assert.Nil(t, deps.Blob)
	assert.False(t, deps.Notifier.Enabled())
}

func TestAskUsesPublishedPrice(t *testing.T) {
	var seen map[string]any
	oracleSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&seen)
		_, _ = w.Write([]byte(`{"respuesta":"holding","accion":"ESPERAR"}`))
	}))
	defer oracleSrv.Close()

	snapPath := filepath.Join(t.TempDir(), "estado_bot.json")
	require.NoError(t, os.WriteFile(snapPath, []byte(`{"precios":{"ETHUSDT":3000}}`), 0o644))

	cfg := config.Defaults()
	cfg.Instruments = []string{"ETHUSDT"}
	cfg.Oracle.URL = oracleSrv.URL
	cfg.Snapshot.Path = snapPath

	a := New(&cfg, testLogger())
	defer a.Close()

	reply, err := a.Ask(context.Background(), "status?")
	require.NoError(t, err)
	assert.Equal(t, "holding", reply.Reply)
	assert.Equal(t, "ETHUSDT", seen["moneda"])
	assert.Equal(t, 3000.0, seen["precio"])
	assert.Equal(t, "status?", seen["mensaje_usuario"])
	assert.Equal(t, 0.0, seen["saldo_actual"])
}
