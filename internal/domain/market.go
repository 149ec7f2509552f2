package domain

import (
	"github.com/shopspring/decimal"
)

// Market represents the 24h ticker view of one trading pair.
// All monetary fields are exact decimals; float64 is never used for money.
type Market struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Change24h decimal.Decimal `json:"change24h"`
	Volume24h decimal.Decimal `json:"volume24h"`
	High24h   decimal.Decimal `json:"high24h"`
	Low24h    decimal.Decimal `json:"low24h"`
}

// PatchTicker applies a ticker update in place. Ticker messages carry only
// price/change/volume; the 24h high/low from the REST listing are preserved.
// Last-write-wins: no ordering beyond network arrival is assumed.
func (m *Market) PatchTicker(price, change24h, volume24h decimal.Decimal) {
	m.Price = price
	m.Change24h = change24h
	m.Volume24h = volume24h
}
