package domain

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Level is one price level of an order book side.
type Level struct {
	Price decimal.Decimal `json:"price"`
	Qty   decimal.Decimal `json:"quantity"`
}

// OrderBook holds both sides of a symbol's book.
// Invariant: bids sorted descending, asks ascending, prices strictly unique
// within a side, and best bid < best ask whenever both sides are non-empty.
type OrderBook struct {
	Symbol string  `json:"symbol"`
	Bids   []Level `json:"bids"`
	Asks   []Level `json:"asks"`
}

// ApplySnapshot discards both sides and replaces them wholesale.
// Input order is not trusted; both sides are re-sorted.
func (b *OrderBook) ApplySnapshot(bids, asks []Level) {
	b.Bids = normalizeSide(bids, true)
	b.Asks = normalizeSide(asks, false)
}

// ApplyDelta applies incremental level updates: quantity zero removes the
// level, a positive quantity upserts it. Returns an error if the resulting
// book is crossed; the receiver is left in the crossed state and the caller
// decides whether to keep it (the store rolls back to its last valid copy).
func (b *OrderBook) ApplyDelta(bids, asks []Level) error {
	for _, lv := range bids {
		b.Bids = upsertLevel(b.Bids, lv, true)
	}
	for _, lv := range asks {
		b.Asks = upsertLevel(b.Asks, lv, false)
	}
	if b.Crossed() {
		return fmt.Errorf("crossed book for %s: best bid %s >= best ask %s",
			b.Symbol, b.Bids[0].Price, b.Asks[0].Price)
	}
	return nil
}

// Crossed reports whether the best bid meets or exceeds the best ask.
// A crossed book is always a data error.
func (b *OrderBook) Crossed() bool {
	if len(b.Bids) == 0 || len(b.Asks) == 0 {
		return false
	}
	return b.Bids[0].Price.GreaterThanOrEqual(b.Asks[0].Price)
}

// Clone returns a deep copy, safe to hand to observers or keep as a
// known-good fallback.
func (b *OrderBook) Clone() *OrderBook {
	cp := &OrderBook{Symbol: b.Symbol}
	cp.Bids = append([]Level(nil), b.Bids...)
	cp.Asks = append([]Level(nil), b.Asks...)
	return cp
}

// normalizeSide sorts a side and drops zero-quantity and duplicate-price
// entries so a sloppy snapshot cannot break the monotonic invariant.
func normalizeSide(levels []Level, descending bool) []Level {
	out := make([]Level, 0, len(levels))
	for _, lv := range levels {
		if lv.Qty.Sign() > 0 {
			out = append(out, lv)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if descending {
			return out[i].Price.GreaterThan(out[j].Price)
		}
		return out[i].Price.LessThan(out[j].Price)
	})
	// Drop duplicates, keeping the first occurrence after the sort.
	dedup := out[:0]
	for i, lv := range out {
		if i > 0 && lv.Price.Equal(dedup[len(dedup)-1].Price) {
			continue
		}
		dedup = append(dedup, lv)
	}
	return dedup
}

// upsertLevel inserts, replaces, or removes a single level while keeping the
// side sorted. Binary search keeps deltas cheap on deep books.
func upsertLevel(levels []Level, lv Level, descending bool) []Level {
	idx := sort.Search(len(levels), func(i int) bool {
		if descending {
			return levels[i].Price.LessThanOrEqual(lv.Price)
		}
		return levels[i].Price.GreaterThanOrEqual(lv.Price)
	})

	exists := idx < len(levels) && levels[idx].Price.Equal(lv.Price)

	if lv.Qty.Sign() <= 0 {
		if exists {
			return append(levels[:idx], levels[idx+1:]...)
		}
		return levels // Removing an absent level is a no-op.
	}

	if exists {
		levels[idx].Qty = lv.Qty
		return levels
	}

	levels = append(levels, Level{})
	copy(levels[idx+1:], levels[idx:])
	levels[idx] = lv
	return levels
}
