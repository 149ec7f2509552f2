package market

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tradesync/internal/domain"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func frame(msgType, data string) []byte {
	return []byte(fmt.Sprintf(`{"type":%q,"data":%s}`, msgType, data))
}

func tickerFrame(symbol, price string) []byte {
	return frame(TypeTicker, fmt.Sprintf(
		`{"symbol":%q,"price":%s,"change24h":"1.5","volume24h":"1000"}`, symbol, price))
}

func TestStore_TickerLastWriteWins(t *testing.T) {
	s := NewStore(16, 10)

	s.applyFrame(tickerFrame("BTCUSDT", "45000"))
	s.applyFrame(tickerFrame("BTCUSDT", "46000"))

	markets := s.Markets()
	if len(markets) != 1 {
		t.Fatalf("expected exactly one market, got %d", len(markets))
	}
	if !markets[0].Price.Equal(dec("46000")) {
		t.Errorf("expected price 46000, got %s", markets[0].Price)
	}
}

func TestStore_TickerPatchPreservesHighLow(t *testing.T) {
	s := NewStore(16, 10)

	s.applyMarkets([]domain.Market{{
		Symbol:  "BTCUSDT",
		Price:   dec("45000"),
		High24h: dec("47000"),
		Low24h:  dec("44000"),
	}})
	s.applyFrame(tickerFrame("BTCUSDT", "46000"))

	m, ok := s.Market("BTCUSDT")
	if !ok {
		t.Fatal("market missing")
	}
	if !m.Price.Equal(dec("46000")) || !m.High24h.Equal(dec("47000")) {
		t.Errorf("patch overwrote REST-only fields: %+v", m)
	}
}

func TestStore_OrderBookSnapshotReplaces(t *testing.T) {
	s := NewStore(16, 10)

	s.applyFrame(frame(TypeOrderBook,
		`{"symbol":"BTCUSDT","snapshot":true,"bids":[{"price":"45000","quantity":"1"}],"asks":[{"price":"45100","quantity":"1"}]}`))
	s.applyFrame(frame(TypeOrderBook,
		`{"symbol":"BTCUSDT","snapshot":true,"bids":[{"price":"44900","quantity":"2"}],"asks":[{"price":"45050","quantity":"2"}]}`))

	book, ok := s.Book("BTCUSDT")
	if !ok {
		t.Fatal("book missing")
	}
	if len(book.Bids) != 1 || !book.Bids[0].Price.Equal(dec("44900")) {
		t.Errorf("snapshot did not replace bids: %+v", book.Bids)
	}
}

func TestStore_OrderBookDeltaUpsertAndRemove(t *testing.T) {
	s := NewStore(16, 10)

	s.applyFrame(frame(TypeOrderBook,
		`{"symbol":"BTCUSDT","snapshot":true,"bids":[{"price":"45000","quantity":"1"},{"price":"44900","quantity":"1"}],"asks":[{"price":"45100","quantity":"1"}]}`))
	s.applyFrame(frame(TypeOrderBook,
		`{"symbol":"BTCUSDT","snapshot":false,"bids":[{"price":"44900","quantity":"0"},{"price":"44950","quantity":"3"}],"asks":[]}`))

	book, _ := s.Book("BTCUSDT")
	if len(book.Bids) != 2 {
		t.Fatalf("expected 2 bids, got %+v", book.Bids)
	}
	if !book.Bids[1].Price.Equal(dec("44950")) || !book.Bids[1].Qty.Equal(dec("3")) {
		t.Errorf("upsert failed: %+v", book.Bids)
	}
}

func TestStore_CrossedDeltaKeepsLastGoodState(t *testing.T) {
	s := NewStore(16, 10)

	s.applyFrame(frame(TypeOrderBook,
		`{"symbol":"BTCUSDT","snapshot":true,"bids":[{"price":"45000","quantity":"1"}],"asks":[{"price":"45100","quantity":"1"}]}`))

	// A bid at the ask price crosses the book: must not be merged.
	s.applyFrame(frame(TypeOrderBook,
		`{"symbol":"BTCUSDT","snapshot":false,"bids":[{"price":"45100","quantity":"1"}],"asks":[]}`))

	book, _ := s.Book("BTCUSDT")
	if len(book.Bids) != 1 || !book.Bids[0].Price.Equal(dec("45000")) {
		t.Errorf("crossed delta was merged: %+v", book.Bids)
	}

	// Further deltas are ignored until a snapshot resynchronizes.
	s.applyFrame(frame(TypeOrderBook,
		`{"symbol":"BTCUSDT","snapshot":false,"bids":[{"price":"44000","quantity":"1"}],"asks":[]}`))
	book, _ = s.Book("BTCUSDT")
	if len(book.Bids) != 1 {
		t.Errorf("delta applied while desynced: %+v", book.Bids)
	}

	s.applyFrame(frame(TypeOrderBook,
		`{"symbol":"BTCUSDT","snapshot":true,"bids":[{"price":"44800","quantity":"1"}],"asks":[{"price":"44900","quantity":"1"}]}`))
	book, _ = s.Book("BTCUSDT")
	if !book.Bids[0].Price.Equal(dec("44800")) {
		t.Errorf("snapshot did not resynchronize: %+v", book.Bids)
	}
}

func TestStore_TradeHistoryBounded(t *testing.T) {
	s := NewStore(16, 3)

	for i := 0; i < 5; i++ {
		s.applyFrame(frame(TypeTrade, fmt.Sprintf(
			`{"symbol":"BTCUSDT","price":"4500%d","quantity":"0.1","side":"BUY","timestamp":%d}`, i, i)))
	}

	prints := s.Trades("BTCUSDT")
	if len(prints) != 3 {
		t.Fatalf("history exceeded capacity: %d", len(prints))
	}
	if prints[0].Timestamp != 2 {
		t.Errorf("oldest entries were not evicted first: %+v", prints)
	}
}

func TestStore_UnknownTypeDropped(t *testing.T) {
	s := NewStore(16, 10)

	s.applyFrame(frame("candles", `{"symbol":"BTCUSDT"}`))
	s.applyFrame([]byte(`not json`))

	if len(s.Markets()) != 0 {
		t.Error("unknown frame mutated state")
	}
}

func TestStore_BalanceReplaceAndReject(t *testing.T) {
	s := NewStore(16, 10)

	good := domain.Balance{Total: dec("150"), Available: dec("100"), Locked: dec("50")}
	s.applyBalance(good)

	b, ok := s.Balance()
	if !ok || !b.Total.Equal(dec("150")) {
		t.Fatalf("balance not stored: %+v", b)
	}

	// A payload violating total = available + locked is rejected wholesale.
	s.applyBalance(domain.Balance{Total: dec("999"), Available: dec("100"), Locked: dec("50")})
	b, _ = s.Balance()
	if !b.Total.Equal(dec("150")) {
		t.Errorf("invalid balance was merged: %+v", b)
	}
}

func TestStore_SymbolScopedNotifications(t *testing.T) {
	s := NewStore(16, 10)

	var btc, eth, all int
	s.SubscribeUpdates("BTCUSDT", func(Update) { btc++ })
	s.SubscribeUpdates("ETHUSDT", func(Update) { eth++ })
	s.SubscribeUpdates("", func(Update) { all++ })

	s.applyFrame(tickerFrame("BTCUSDT", "45000"))
	s.applyFrame(tickerFrame("BTCUSDT", "45001"))
	s.applyFrame(tickerFrame("ETHUSDT", "3000"))

	if btc != 2 || eth != 1 || all != 3 {
		t.Errorf("notification counts btc=%d eth=%d all=%d", btc, eth, all)
	}
}

func TestStore_DuplicateTradeNoNotification(t *testing.T) {
	s := NewStore(16, 10)

	var n int
	s.SubscribeUpdates("BTCUSDT", func(Update) { n++ })

	raw := frame(TypeTrade,
		`{"symbol":"BTCUSDT","price":"45000","quantity":"0.1","side":"BUY","timestamp":100}`)
	s.applyFrame(raw)
	s.applyFrame(raw)

	if n != 1 {
		t.Errorf("expected 1 notification, got %d", n)
	}
	if len(s.Trades("BTCUSDT")) != 1 {
		t.Errorf("duplicate print retained")
	}
}

func TestStore_RunMergesFromInbox(t *testing.T) {
	s := NewStore(16, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	s.SubscribeUpdates("BTCUSDT", func(Update) { close(done) })

	go s.Run(ctx)
	s.HandleFrame(ctx, tickerFrame("BTCUSDT", "45000"))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("frame was not merged by the run loop")
	}

	if m, ok := s.Market("BTCUSDT"); !ok || !m.Price.Equal(dec("45000")) {
		t.Errorf("market not merged: %+v", m)
	}
}
