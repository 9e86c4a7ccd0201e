package domain

import "github.com/shopspring/decimal"

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderType is the execution style. Only market orders are submitted.
type OrderType string

const OrderTypeMarket OrderType = "market"

// OrderRequest is built immediately before submission and never retried.
type OrderRequest struct {
	ClientOrderID string
	Instrument    Instrument
	Side          OrderSide
	Type          OrderType
	Quantity      decimal.Decimal
	Precision     int32 // decimal places Quantity was rounded to
}

// QuantityString renders the quantity with exactly Precision decimal places.
func (r OrderRequest) QuantityString() string {
	return r.Quantity.StringFixed(r.Precision)
}
