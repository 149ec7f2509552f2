package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func validDraft() OrderDraft {
	return OrderDraft{
		Symbol:   "BTCUSDT",
		Side:     SideBuy,
		Type:     OrderTypeLimit,
		Quantity: dec("0.5"),
		Price:    decPtr("45000"),
	}
}

func TestOrderDraft_Validate_OK(t *testing.T) {
	d := validDraft()
	if err := d.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestOrderDraft_Validate_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*OrderDraft)
	}{
		{"missing symbol", func(d *OrderDraft) { d.Symbol = "" }},
		{"bad side", func(d *OrderDraft) { d.Side = "HOLD" }},
		{"bad type", func(d *OrderDraft) { d.Type = "ICEBERG" }},
		{"zero quantity", func(d *OrderDraft) { d.Quantity = dec("0") }},
		{"negative quantity", func(d *OrderDraft) { d.Quantity = dec("-1") }},
		{"limit without price", func(d *OrderDraft) { d.Price = nil }},
		{"stop loss without stop price", func(d *OrderDraft) {
			d.Type = OrderTypeStopLoss
			d.StopPrice = nil
		}},
		{"stop limit without stop price", func(d *OrderDraft) {
			d.Type = OrderTypeStopLimit
			d.StopPrice = nil
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := validDraft()
			tc.mutate(&d)
			err := d.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("expected *ValidationError, got %T", err)
			}
		})
	}
}

func TestOrderDraft_Validate_MarketNeedsNoPrice(t *testing.T) {
	d := validDraft()
	d.Type = OrderTypeMarket
	d.Price = nil
	if err := d.Validate(); err != nil {
		t.Errorf("market order must not require a price: %v", err)
	}
}

func TestOrderDraft_Normalized_DefaultTIF(t *testing.T) {
	d := validDraft()
	if got := d.Normalized().TimeInForce; got != TimeInForceGTC {
		t.Errorf("expected default %s, got %s", TimeInForceGTC, got)
	}
	d.TimeInForce = "IOC"
	if got := d.Normalized().TimeInForce; got != "IOC" {
		t.Errorf("explicit TIF overwritten: %s", got)
	}
}
