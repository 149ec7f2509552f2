package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// AssetBalance is the per-asset split of available and locked funds.
type AssetBalance struct {
	Available decimal.Decimal `json:"available"`
	Locked    decimal.Decimal `json:"locked"`
}

// Balance is the account balance as last reported by the venue.
// It is replaced wholesale on every fetch, never field-patched.
type Balance struct {
	Total     decimal.Decimal         `json:"total"`
	Available decimal.Decimal         `json:"available"`
	Locked    decimal.Decimal         `json:"locked"`
	Assets    map[string]AssetBalance `json:"assets"`
}

// Verify checks the balance invariants: non-negative amounts and
// total = available + locked. A violating payload must not be merged.
func (b *Balance) Verify() error {
	if b.Available.Sign() < 0 {
		return fmt.Errorf("negative available balance: %s", b.Available)
	}
	if b.Locked.Sign() < 0 {
		return fmt.Errorf("negative locked balance: %s", b.Locked)
	}
	if !b.Total.Equal(b.Available.Add(b.Locked)) {
		return fmt.Errorf("total %s != available %s + locked %s", b.Total, b.Available, b.Locked)
	}
	for asset, ab := range b.Assets {
		if ab.Available.Sign() < 0 || ab.Locked.Sign() < 0 {
			return fmt.Errorf("negative balance for asset %s", asset)
		}
	}
	return nil
}

// Asset returns the balance entry for one asset symbol, zero if absent.
func (b *Balance) Asset(symbol string) AssetBalance {
	if b.Assets == nil {
		return AssetBalance{}
	}
	return b.Assets[symbol]
}
