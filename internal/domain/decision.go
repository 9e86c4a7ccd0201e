package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Action is the verdict returned by the decision oracle.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionWait Action = "WAIT"
)

// ParseAction maps the oracle's vocabulary onto the Action taxonomy.
// Unknown or empty values map to ActionWait.
func ParseAction(raw string) Action {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "COMPRAR", "COMPRA", "BUY":
		return ActionBuy
	case "VENDER", "VENTA", "SELL":
		return ActionSell
	default:
		return ActionWait
	}
}

// Actionable reports whether the action results in an order.
func (a Action) Actionable() bool {
	return a == ActionBuy || a == ActionSell
}

// Side returns the order side for an actionable action.
func (a Action) Side() OrderSide {
	if a == ActionSell {
		return OrderSideSell
	}
	return OrderSideBuy
}

// Label returns the label the display layer and the oracle speak.
func (a Action) Label() string {
	switch a {
	case ActionBuy:
		return "COMPRAR"
	case ActionSell:
		return "VENDER"
	default:
		return "ESPERAR"
	}
}

// Decision is a mapped oracle response. Confidence and Notional are optional.
type Decision struct {
	Action     Action
	Reason     string
	Confidence any
	Notional   decimal.NullDecimal
}

// Wait returns a no-op decision with no reason.
func Wait() Decision {
	return Decision{Action: ActionWait}
}

// ThoughtEntry records one decision round-trip for observability.
type ThoughtEntry struct {
	ID         string
	Instrument Instrument
	Price      float64
	Action     Action
	Reason     string
	Confidence any
	Timestamp  time.Time
}
