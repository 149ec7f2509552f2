package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Side is the order direction.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderType is the venue order type.
type OrderType string

const (
	OrderTypeMarket     OrderType = "MARKET"
	OrderTypeLimit      OrderType = "LIMIT"
	OrderTypeStopLoss   OrderType = "STOP_LOSS"
	OrderTypeStopLimit  OrderType = "STOP_LIMIT"
	OrderTypeTakeProfit OrderType = "TAKE_PROFIT"
)

// TimeInForceGTC is the default time-in-force when the caller leaves it empty.
const TimeInForceGTC = "GTC"

// ValidationError reports a malformed order draft. It is surfaced
// synchronously, before any network call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid order draft: %s %s", e.Field, e.Reason)
}

// OrderDraft is a caller-owned order request, consumed by the gateway.
type OrderDraft struct {
	Symbol      string           `json:"symbol"`
	Side        Side             `json:"side"`
	Type        OrderType        `json:"type"`
	Quantity    decimal.Decimal  `json:"quantity"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	StopPrice   *decimal.Decimal `json:"stopPrice,omitempty"`
	TimeInForce string           `json:"timeInForce"`
}

// Validate checks draft completeness. Quantity must be positive, price is
// required for every type except MARKET, and stop orders need a stop price.
func (d *OrderDraft) Validate() error {
	if d.Symbol == "" {
		return &ValidationError{Field: "symbol", Reason: "is required"}
	}
	switch d.Side {
	case SideBuy, SideSell:
	default:
		return &ValidationError{Field: "side", Reason: fmt.Sprintf("%q is not BUY or SELL", d.Side)}
	}
	switch d.Type {
	case OrderTypeMarket, OrderTypeLimit, OrderTypeStopLoss, OrderTypeStopLimit, OrderTypeTakeProfit:
	default:
		return &ValidationError{Field: "type", Reason: fmt.Sprintf("%q is not a known order type", d.Type)}
	}
	if d.Quantity.Sign() <= 0 {
		return &ValidationError{Field: "quantity", Reason: "must be positive"}
	}
	if d.Type != OrderTypeMarket {
		if d.Price == nil || d.Price.Sign() <= 0 {
			return &ValidationError{Field: "price", Reason: fmt.Sprintf("is required for %s orders", d.Type)}
		}
	}
	if d.Type == OrderTypeStopLoss || d.Type == OrderTypeStopLimit {
		if d.StopPrice == nil || d.StopPrice.Sign() <= 0 {
			return &ValidationError{Field: "stopPrice", Reason: fmt.Sprintf("is required for %s orders", d.Type)}
		}
	}
	return nil
}

// Normalized returns a copy with defaults filled in.
func (d OrderDraft) Normalized() OrderDraft {
	if d.TimeInForce == "" {
		d.TimeInForce = TimeInForceGTC
	}
	return d
}
