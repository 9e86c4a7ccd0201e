package bitget

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/zeroxbot/internal/crypto"
	"github.com/alanyoungcy/zeroxbot/internal/domain"
	"github.com/shopspring/decimal"
)

const (
	pathPlaceOrder = "/api/v2/mix/order/place-order"
	pathAccounts   = "/api/v2/mix/account/accounts"
	pathContracts  = "/api/v2/mix/market/contracts"
)

// RESTConfig configures a RESTClient.
type RESTConfig struct {
	BaseURL     string // e.g. "https://api.bitget.com"
	ProductType string // e.g. "USDT-FUTURES"
	MarginCoin  string // e.g. "USDT"
	MarginMode  string // "crossed" or "isolated"
	Auth        *crypto.HMACAuth
	Timeout     time.Duration
}

// RESTClient is the client for the Bitget v2 mix REST API. It places market
// orders, reads account equity and fetches contract metadata.
type RESTClient struct {
	cfg        RESTConfig
	httpClient *http.Client
}

// NewRESTClient creates a new REST client.
func NewRESTClient(cfg RESTConfig) *RESTClient {
	if cfg.ProductType == "" {
		cfg.ProductType = "USDT-FUTURES"
	}
	if cfg.MarginCoin == "" {
		cfg.MarginCoin = "USDT"
	}
	if cfg.MarginMode == "" {
		cfg.MarginMode = "crossed"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &RESTClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// PlaceMarketOrder submits one market order and returns the exchange order ID.
// The quantity is sent exactly as rounded by the caller.
func (c *RESTClient) PlaceMarketOrder(ctx context.Context, req domain.OrderRequest) (string, error) {
	body := PlaceOrderRequest{
		Symbol:      req.Instrument,
		ProductType: c.cfg.ProductType,
		MarginMode:  c.cfg.MarginMode,
		MarginCoin:  c.cfg.MarginCoin,
		Size:        req.QuantityString(),
		Side:        string(req.Side),
		OrderType:   string(domain.OrderTypeMarket),
		ClientOid:   req.ClientOrderID,
	}

	data, err := c.doSignedRequest(ctx, http.MethodPost, pathPlaceOrder, nil, body)
	if err != nil {
		return "", fmt.Errorf("bitget/rest: place order %s: %w", req.Instrument, err)
	}

	var result PlaceOrderResult
	if err := json.Unmarshal(data, &result); err != nil {
		return "", fmt.Errorf("bitget/rest: decode order result: %w", err)
	}
	return result.OrderID, nil
}

// AccountEquity returns the total equity of the margin-coin futures account.
func (c *RESTClient) AccountEquity(ctx context.Context) (decimal.Decimal, error) {
	q := url.Values{}
	q.Set("productType", c.cfg.ProductType)

	data, err := c.doSignedRequest(ctx, http.MethodGet, pathAccounts, q, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("bitget/rest: accounts: %w", err)
	}

	var accounts []AccountInfo
	if err := json.Unmarshal(data, &accounts); err != nil {
		return decimal.Zero, fmt.Errorf("bitget/rest: decode accounts: %w", err)
	}

	for _, acct := range accounts {
		if !strings.EqualFold(acct.MarginCoin, c.cfg.MarginCoin) {
			continue
		}
		equity, err := decimal.NewFromString(string(acct.AccountEquity))
		if err != nil {
			return decimal.Zero, fmt.Errorf("bitget/rest: parse equity %q: %w", acct.AccountEquity, err)
		}
		return equity, nil
	}
	return decimal.Zero, fmt.Errorf("bitget/rest: %s account: %w", c.cfg.MarginCoin, domain.ErrNotFound)
}

// ContractPrecisions returns the order-size decimal places per symbol as
// published in the public contract metadata.
func (c *RESTClient) ContractPrecisions(ctx context.Context) (map[string]int32, error) {
	q := url.Values{}
	q.Set("productType", c.cfg.ProductType)

	data, err := c.doRequest(ctx, http.MethodGet, pathContracts, q, nil, false)
	if err != nil {
		return nil, fmt.Errorf("bitget/rest: contracts: %w", err)
	}

	var contracts []ContractInfo
	if err := json.Unmarshal(data, &contracts); err != nil {
		return nil, fmt.Errorf("bitget/rest: decode contracts: %w", err)
	}

	out := make(map[string]int32, len(contracts))
	for _, ct := range contracts {
		places, err := strconv.Atoi(string(ct.VolumePlace))
		if err != nil || places < 0 {
			continue
		}
		out[ct.Symbol] = int32(places)
	}
	return out, nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

func (c *RESTClient) doSignedRequest(ctx context.Context, method, path string, query url.Values, body any) (json.RawMessage, error) {
	if !c.cfg.Auth.Configured() {
		return nil, domain.ErrMissingCredentials
	}
	return c.doRequest(ctx, method, path, query, body, true)
}

// doRequest performs the HTTP round-trip, checks the envelope code and returns
// the raw data payload.
func (c *RESTClient) doRequest(ctx context.Context, method, path string, query url.Values, body any, signed bool) (json.RawMessage, error) {
	var bodyReader io.Reader
	var bodyStr string

	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyStr = string(jsonBody)
		bodyReader = bytes.NewReader(jsonBody)
	}

	requestPath := path
	if len(query) > 0 {
		requestPath += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+requestPath, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("locale", "en-US")

	if signed {
		for k, v := range c.cfg.Auth.Headers(method, requestPath, bodyStr) {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}

	var envelope APIResponse
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if envelope.Code != successCode {
		return nil, fmt.Errorf("%w: code=%s msg=%s", domain.ErrExchange, envelope.Code, envelope.Msg)
	}
	return envelope.Data, nil
}

// checkHTTPStatus maps non-2xx status codes to appropriate domain errors.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	bodyStr := string(body)
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, bodyStr)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, bodyStr)
	default:
		return fmt.Errorf("%w: HTTP %d: %s", domain.ErrExchange, statusCode, bodyStr)
	}
}
