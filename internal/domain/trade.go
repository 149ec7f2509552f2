package domain

import (
	"github.com/shopspring/decimal"
)

// dupWindow is how many recent prints are scanned for duplicates.
// Duplicates older than the window are tolerated as harmless.
const dupWindow = 8

// TradePrint is a single executed trade as reported by the venue.
type TradePrint struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Qty       decimal.Decimal `json:"quantity"`
	Side      Side            `json:"side"`
	Timestamp int64           `json:"timestamp"`
}

// equalPrint compares the identity fields the venue may resend.
func (p TradePrint) equalPrint(o TradePrint) bool {
	return p.Symbol == o.Symbol &&
		p.Timestamp == o.Timestamp &&
		p.Price.Equal(o.Price) &&
		p.Qty.Equal(o.Qty)
}

// TradeHistory is a bounded, symbol-scoped list of prints.
// Oldest entries are evicted first once capacity is reached.
type TradeHistory struct {
	capacity int
	prints   []TradePrint
}

// NewTradeHistory creates a history bounded to capacity entries.
func NewTradeHistory(capacity int) *TradeHistory {
	if capacity <= 0 {
		capacity = 1
	}
	return &TradeHistory{capacity: capacity}
}

// Append records a print, evicting the oldest entry when full.
// Returns false when the print is a duplicate inside the recent window.
func (h *TradeHistory) Append(p TradePrint) bool {
	start := len(h.prints) - dupWindow
	if start < 0 {
		start = 0
	}
	for i := len(h.prints) - 1; i >= start; i-- {
		if h.prints[i].equalPrint(p) {
			return false
		}
	}

	if len(h.prints) == h.capacity {
		copy(h.prints, h.prints[1:])
		h.prints = h.prints[:h.capacity-1]
	}
	h.prints = append(h.prints, p)
	return true
}

// Len returns the number of retained prints.
func (h *TradeHistory) Len() int { return len(h.prints) }

// Prints returns a copy of the retained prints, oldest first.
func (h *TradeHistory) Prints() []TradePrint {
	return append([]TradePrint(nil), h.prints...)
}
