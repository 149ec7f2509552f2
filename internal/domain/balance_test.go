package domain

import (
	"testing"
)

func TestBalance_Verify_Valid(t *testing.T) {
	b := &Balance{
		Total:     dec("1500"),
		Available: dec("1000"),
		Locked:    dec("500"),
		Assets: map[string]AssetBalance{
			"BTC":  {Available: dec("0.5"), Locked: dec("0.1")},
			"USDT": {Available: dec("1000"), Locked: dec("0")},
		},
	}
	if err := b.Verify(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestBalance_Verify_TotalMismatch(t *testing.T) {
	b := &Balance{Total: dec("1501"), Available: dec("1000"), Locked: dec("500")}
	if err := b.Verify(); err == nil {
		t.Error("expected error for total != available + locked")
	}
}

func TestBalance_Verify_NegativeAmounts(t *testing.T) {
	b := &Balance{Total: dec("-1"), Available: dec("-1"), Locked: dec("0")}
	if err := b.Verify(); err == nil {
		t.Error("expected error for negative available")
	}

	b = &Balance{
		Total:     dec("0"),
		Available: dec("0"),
		Locked:    dec("0"),
		Assets:    map[string]AssetBalance{"BTC": {Available: dec("-0.1")}},
	}
	if err := b.Verify(); err == nil {
		t.Error("expected error for negative asset balance")
	}
}

func TestBalance_Asset_AbsentIsZero(t *testing.T) {
	b := &Balance{}
	ab := b.Asset("BTC")
	if ab.Available.Sign() != 0 || ab.Locked.Sign() != 0 {
		t.Errorf("expected zero asset balance, got %+v", ab)
	}
}
