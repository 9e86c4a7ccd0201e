// Package bitget implements the Bitget v2 public market-data WebSocket and the
// signed mix (futures) REST endpoints the engine trades through.
package bitget

import (
	"encoding/json"
	"strconv"
	"strings"
)

// flexString unmarshals from either a JSON string or a JSON number so payloads
// work whether numeric fields are quoted or not.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// --------------------------------------------------------------------------
// WebSocket DTOs
// --------------------------------------------------------------------------

// WSArg identifies one channel subscription.
type WSArg struct {
	InstType string `json:"instType"`
	Channel  string `json:"channel"`
	InstID   string `json:"instId"`
}

// WSCommand is an outbound subscribe or unsubscribe operation.
type WSCommand struct {
	Op   string  `json:"op"`
	Args []WSArg `json:"args"`
}

// TickerMessage is the envelope pushed on the ticker channel.
type TickerMessage struct {
	Action string       `json:"action"` // "snapshot" or "update"
	Arg    WSArg        `json:"arg"`
	Data   []TickerData `json:"data"`
	Ts     int64        `json:"ts"`
}

// TickerData carries the fields of one ticker push the engine reads.
// Bitget v2 reports the last traded price as lastPr; older frames use last.
type TickerData struct {
	InstID string     `json:"instId"`
	LastPr flexString `json:"lastPr"`
	Last   flexString `json:"last"`
	Ts     flexString `json:"ts"`
}

// lastPrice returns the last traded price, preferring lastPr.
func (d TickerData) lastPrice() (float64, bool) {
	raw := strings.TrimSpace(string(d.LastPr))
	if raw == "" {
		raw = strings.TrimSpace(string(d.Last))
	}
	if raw == "" {
		return 0, false
	}
	p, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return p, true
}

// WSEvent is the acknowledgement or error pushed in response to a command.
type WSEvent struct {
	Event string     `json:"event"`
	Code  flexString `json:"code"`
	Msg   string     `json:"msg"`
	Arg   WSArg      `json:"arg"`
}

// IsError reports whether the server rejected a command.
func (e WSEvent) IsError() bool {
	return e.Event == "error"
}

// ErrorCode returns the Bitget error code, empty for acknowledgements.
func (e WSEvent) ErrorCode() string {
	return string(e.Code)
}

// --------------------------------------------------------------------------
// REST DTOs
// --------------------------------------------------------------------------

// successCode is the envelope code Bitget returns for accepted requests.
const successCode = "00000"

// APIResponse is the common REST envelope.
type APIResponse struct {
	Code        string          `json:"code"`
	Msg         string          `json:"msg"`
	RequestTime int64           `json:"requestTime"`
	Data        json.RawMessage `json:"data"`
}

// PlaceOrderRequest is the body of POST /api/v2/mix/order/place-order.
type PlaceOrderRequest struct {
	Symbol      string `json:"symbol"`
	ProductType string `json:"productType"`
	MarginMode  string `json:"marginMode"`
	MarginCoin  string `json:"marginCoin"`
	Size        string `json:"size"`
	Side        string `json:"side"`
	OrderType   string `json:"orderType"`
	ClientOid   string `json:"clientOid,omitempty"`
}

// PlaceOrderResult is the data payload of a successful order placement.
type PlaceOrderResult struct {
	OrderID   string `json:"orderId"`
	ClientOid string `json:"clientOid"`
}

// AccountInfo is one entry of GET /api/v2/mix/account/accounts.
type AccountInfo struct {
	MarginCoin    string     `json:"marginCoin"`
	Available     flexString `json:"available"`
	AccountEquity flexString `json:"accountEquity"`
	USDTEquity    flexString `json:"usdtEquity"`
}

// ContractInfo is one entry of GET /api/v2/mix/market/contracts.
type ContractInfo struct {
	Symbol      string     `json:"symbol"`
	VolumePlace flexString `json:"volumePlace"`
	MinTradeNum flexString `json:"minTradeNum"`
}
