package oracle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alanyoungcy/zeroxbot/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func oracleServer(t *testing.T, status int, body string, seen *map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/analizar", r.URL.Path)
		if seen != nil {
			_ = json.NewDecoder(r.Body).Decode(seen)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
}

func TestDecideSendsPriceEvent(t *testing.T) {
	var seen map[string]any
	srv := oracleServer(t, http.StatusOK, `{"accion":"ESPERAR","razon":"flat"}`, &seen)
	defer srv.Close()

	c := NewClient(srv.URL, 0)
	c.now = func() time.Time { return time.UnixMilli(1700000000123) }

	d, err := c.Decide(context.Background(), "BTCUSDT", 50000.5)
	require.NoError(t, err)
	assert.Equal(t, domain.ActionWait, d.Action)
	assert.Equal(t, "flat", d.Reason)

	assert.Equal(t, "BTCUSDT", seen["moneda"])
	assert.Equal(t, 50000.5, seen["precio"])
	assert.Equal(t, float64(1700000000123), seen["timestamp"])
	assert.NotContains(t, seen, "mensaje_usuario")
}

func TestDecideMapsResponses(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		action     domain.Action
		notional   string
		confidence any
	}{
		{"buy with amount", `{"accion":"COMPRAR","cantidad":50,"razon":"momentum","confianza":0.8}`, domain.ActionBuy, "50", 0.8},
		{"sell with string amount", `{"accion":"VENDER","cantidad":"25.5"}`, domain.ActionSell, "25.5", nil},
		{"legacy decision key", `{"decision":"COMPRAR"}`, domain.ActionBuy, "", nil},
		{"accion wins over decision", `{"accion":"VENDER","decision":"COMPRAR"}`, domain.ActionSell, "", nil},
		{"unknown action", `{"accion":"HOLD"}`, domain.ActionWait, "", nil},
		{"missing action", `{"razon":"nothing"}`, domain.ActionWait, "", nil},
		{"garbage amount", `{"accion":"COMPRAR","cantidad":"lots"}`, domain.ActionBuy, "", nil},
		{"negative amount", `{"accion":"COMPRAR","cantidad":-5}`, domain.ActionBuy, "", nil},
		{"string confidence", `{"accion":"ESPERAR","confianza":"ALTA"}`, domain.ActionWait, "", "ALTA"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := oracleServer(t, http.StatusOK, tt.body, nil)
			defer srv.Close()

			d, err := NewClient(srv.URL, time.Second).Decide(context.Background(), "BTCUSDT", 1)
			require.NoError(t, err)
			assert.Equal(t, tt.action, d.Action)
			assert.Equal(t, tt.confidence, d.Confidence)
			if tt.notional == "" {
				assert.False(t, d.Notional.Valid)
			} else {
				require.True(t, d.Notional.Valid)
				assert.True(t, decimal.RequireFromString(tt.notional).Equal(d.Notional.Decimal))
			}
		})
	}
}

func TestDecideNonSuccessStatus(t *testing.T) {
	srv := oracleServer(t, http.StatusInternalServerError, `{"accion":"COMPRAR"}`, nil)
	defer srv.Close()

	d, err := NewClient(srv.URL, 0).Decide(context.Background(), "BTCUSDT", 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrOracleStatus)
	assert.Equal(t, domain.ActionWait, d.Action)
	assert.Empty(t, d.Reason)
}

func TestDecideUnreachable(t *testing.T) {
	d, err := NewClient("http://127.0.0.1:1", 0).Decide(context.Background(), "BTCUSDT", 1)
	require.Error(t, err)
	assert.Equal(t, domain.ActionWait, d.Action)
}

func TestDecideHonoursTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	start := time.Now()
	_, err := NewClient(srv.URL, 50*time.Millisecond).Decide(context.Background(), "BTCUSDT", 1)
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestAskSendsChatFields(t *testing.T) {
	var seen map[string]any
	srv := oracleServer(t, http.StatusOK, `{"respuesta":"hold tight","accion":"ESPERAR","confianza":"N/A"}`, &seen)
	defer srv.Close()

	reply, err := NewClient(srv.URL, 0).Ask(context.Background(), "how are we doing?", 1234.5, "ETHUSDT", 3000)
	require.NoError(t, err)
	assert.Equal(t, "hold tight", reply.Reply)
	assert.Equal(t, domain.ActionWait, reply.Decision.Action)

	assert.Equal(t, "how are we doing?", seen["mensaje_usuario"])
	assert.Equal(t, 1234.5, seen["saldo_actual"])
	assert.Equal(t, "ETHUSDT", seen["moneda"])
}
