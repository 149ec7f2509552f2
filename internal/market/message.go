package market

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"tradesync/internal/domain"
)

// Message type discriminators used by the venue's streaming envelope.
const (
	TypeTicker    = "ticker"
	TypeOrderBook = "orderbook"
	TypeTrade     = "trade"
)

// Envelope is the server->client frame: {"type":..., "data":...}.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// TickerPayload carries a ticker update. Only price/change/volume are
// streamed; 24h high/low come from the REST market listing.
type TickerPayload struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Change24h decimal.Decimal `json:"change24h"`
	Volume24h decimal.Decimal `json:"volume24h"`
}

// BookPayload carries either a full snapshot (Snapshot true, both sides
// replaced wholesale) or an incremental update (quantity zero deletes a
// level, positive quantity upserts it).
type BookPayload struct {
	Symbol   string         `json:"symbol"`
	Snapshot bool           `json:"snapshot"`
	Bids     []domain.Level `json:"bids"`
	Asks     []domain.Level `json:"asks"`
}

func parseEnvelope(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("unparseable frame: %w", err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("frame missing type")
	}
	return &env, nil
}
