// Package oracle is the HTTP client for the external decision service.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/zeroxbot/internal/domain"
)

const pathAnalyze = "/analizar"

// analyzeRequest is the body of POST /analizar. The chat fields are only sent
// by Ask.
type analyzeRequest struct {
	Precio         float64  `json:"precio"`
	Moneda         string   `json:"moneda"`
	Timestamp      int64    `json:"timestamp"`
	MensajeUsuario string   `json:"mensaje_usuario,omitempty"`
	SaldoActual    *float64 `json:"saldo_actual,omitempty"`
}

// analyzeResponse accepts both the current "accion" key and the legacy
// "decision" key for the verdict.
type analyzeResponse struct {
	Accion    string          `json:"accion"`
	Decision  string          `json:"decision"`
	Razon     string          `json:"razon"`
	Confianza any             `json:"confianza"`
	Cantidad  json.RawMessage `json:"cantidad"`
	Respuesta string          `json:"respuesta"`
}

func (r analyzeResponse) decision() domain.Decision {
	raw := r.Accion
	if raw == "" {
		raw = r.Decision
	}
	return domain.Decision{
		Action:     domain.ParseAction(raw),
		Reason:     r.Razon,
		Confidence: r.Confianza,
		Notional:   parseAmount(r.Cantidad),
	}
}

// Client talks to the decision oracle.
type Client struct {
	baseURL    string
	httpClient *http.Client
	now        func() time.Time
}

// NewClient creates a client for the oracle at baseURL. A zero timeout leaves
// the round-trip bounded only by the caller's context.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
	}
}

// Decide asks the oracle for a verdict on instrument at price. A transport
// failure or non-2xx status returns an error; the caller treats it as WAIT.
func (c *Client) Decide(ctx context.Context, instrument string, price float64) (domain.Decision, error) {
	resp, err := c.post(ctx, analyzeRequest{
		Precio:    price,
		Moneda:    instrument,
		Timestamp: c.now().UnixMilli(),
	})
	if err != nil {
		return domain.Wait(), err
	}
	return resp.decision(), nil
}

// ChatReply is the oracle's answer to a free-form message.
type ChatReply struct {
	Reply    string
	Decision domain.Decision
}

// Ask relays a chat-style message, with the current balance and the latest
// price context, to the same endpoint.
func (c *Client) Ask(ctx context.Context, message string, balance float64, instrument string, price float64) (ChatReply, error) {
	resp, err := c.post(ctx, analyzeRequest{
		Precio:         price,
		Moneda:         instrument,
		Timestamp:      c.now().UnixMilli(),
		MensajeUsuario: message,
		SaldoActual:    &balance,
	})
	if err != nil {
		return ChatReply{}, err
	}

	reply := resp.Respuesta
	if reply == "" {
		reply = resp.Razon
	}
	return ChatReply{Reply: reply, Decision: resp.decision()}, nil
}

func (c *Client) post(ctx context.Context, body analyzeRequest) (analyzeResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return analyzeResponse{}, fmt.Errorf("oracle: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+pathAnalyze, bytes.NewReader(payload))
	if err != nil {
		return analyzeResponse{}, fmt.Errorf("oracle: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return analyzeResponse{}, fmt.Errorf("oracle: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return analyzeResponse{}, fmt.Errorf("oracle: %w: HTTP %d", domain.ErrOracleStatus, resp.StatusCode)
	}

	var out analyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return analyzeResponse{}, fmt.Errorf("oracle: decode response: %w", err)
	}
	return out, nil
}

// parseAmount reads an optional positive amount sent as a number or a numeric
// string. Anything else yields an invalid NullDecimal.
func parseAmount(raw json.RawMessage) decimal.NullDecimal {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return decimal.NullDecimal{}
	}
	s = strings.Trim(s, `"`)
	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsPositive() {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}
