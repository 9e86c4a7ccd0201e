package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrRateLimited        = errors.New("rate limited")
	ErrExchange           = errors.New("exchange rejected request")
	ErrMissingCredentials = errors.New("exchange credentials not configured")
	ErrBalanceUnavailable = errors.New("balance unavailable")
	ErrNoPrice            = errors.New("no cached price")
	ErrZeroQuantity       = errors.New("quantity rounds to zero")
	ErrNoNotional         = errors.New("decision carries no notional amount")
	ErrOracleStatus       = errors.New("decision oracle returned non-success status")
	ErrWSDisconnect       = errors.New("websocket disconnected")
)
