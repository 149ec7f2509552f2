package market

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"

	"tradesync/internal/domain"
	"tradesync/internal/infra"
)

// UpdateKind names the entity a change notification refers to.
type UpdateKind string

const (
	UpdateTicker    UpdateKind = "ticker"
	UpdateOrderBook UpdateKind = "orderbook"
	UpdateTrade     UpdateKind = "trade"
	UpdateBalance   UpdateKind = "balance"
)

// Update is a symbol-scoped change notification. Balance updates carry an
// empty symbol.
type Update struct {
	Symbol string
	Kind   UpdateKind
}

// Inbox events. Everything that mutates the store flows through the inbox so
// a single goroutine performs all merges.
type inboundFrame struct{ raw []byte }
type balanceUpdate struct{ balance domain.Balance }
type marketList struct{ markets []domain.Market }

type observer struct {
	symbol string // empty matches every update
	fn     func(Update)
}

// Store is the merge engine: it applies inbound ticker/orderbook/trade
// messages onto in-memory state with defined ordering and replace/append
// semantics. All mutations are serialized through Run's single goroutine;
// orderbook deltas are order-dependent, so no two messages merge
// concurrently. The RWMutex covers external reads only.
type Store struct {
	inbox    chan any
	tradeCap int

	mu       sync.RWMutex
	markets  map[string]*domain.Market
	books    map[string]*domain.OrderBook
	trades   map[string]*domain.TradeHistory
	balance  *domain.Balance
	awaiting map[string]bool // symbols desynced until the next full snapshot

	obsMu     sync.Mutex
	observers map[int]observer
	nextObs   int
}

// NewStore creates a store with the given inbox size and per-symbol trade
// history capacity.
func NewStore(inboxSize, tradeCap int) *Store {
	if inboxSize <= 0 {
		inboxSize = 1024
	}
	if tradeCap <= 0 {
		tradeCap = 50
	}
	return &Store{
		inbox:     make(chan any, inboxSize),
		tradeCap:  tradeCap,
		markets:   make(map[string]*domain.Market),
		books:     make(map[string]*domain.OrderBook),
		trades:    make(map[string]*domain.TradeHistory),
		awaiting:  make(map[string]bool),
		observers: make(map[int]observer),
	}
}

// Run is the single-writer merge loop. It MUST be the only goroutine that
// mutates store state.
func (s *Store) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.inbox:
			s.apply(ev)
		}
	}
}

// HandleFrame enqueues a raw stream frame for merging. Blocks only when the
// inbox is full, which backpressures the stream read loop.
func (s *Store) HandleFrame(ctx context.Context, raw []byte) {
	select {
	case <-ctx.Done():
	case s.inbox <- inboundFrame{raw: raw}:
	}
}

// PutBalance enqueues a complete balance replacement, typically from a REST
// fetch. The whole payload is merged or none of it.
func (s *Store) PutBalance(ctx context.Context, b domain.Balance) {
	select {
	case <-ctx.Done():
	case s.inbox <- balanceUpdate{balance: b}:
	}
}

// ClearBalance removes the balance, e.g. on logout.
func (s *Store) ClearBalance(ctx context.Context) {
	select {
	case <-ctx.Done():
	case s.inbox <- balanceUpdate{}:
	}
}

// PutMarkets enqueues a market listing, typically the initial REST load.
func (s *Store) PutMarkets(ctx context.Context, markets []domain.Market) {
	select {
	case <-ctx.Done():
	case s.inbox <- marketList{markets: markets}:
	}
}

func (s *Store) apply(ev any) {
	switch e := ev.(type) {
	case inboundFrame:
		s.applyFrame(e.raw)
	case balanceUpdate:
		s.applyBalance(e.balance)
	case marketList:
		s.applyMarkets(e.markets)
	default:
		slog.Warn("Unknown store event", slog.Any("type", ev))
	}
}

func (s *Store) applyFrame(raw []byte) {
	env, err := parseEnvelope(raw)
	if err != nil {
		slog.Warn("Dropping malformed frame", slog.Any("error", err))
		infra.RecordDropped("malformed")
		return
	}

	switch env.Type {
	case TypeTicker:
		var p TickerPayload
		if err := json.Unmarshal(env.Data, &p); err != nil || p.Symbol == "" {
			slog.Warn("Dropping bad ticker payload", slog.Any("error", err))
			infra.RecordDropped("malformed")
			return
		}
		s.applyTicker(p)

	case TypeOrderBook:
		var p BookPayload
		if err := json.Unmarshal(env.Data, &p); err != nil || p.Symbol == "" {
			slog.Warn("Dropping bad orderbook payload", slog.Any("error", err))
			infra.RecordDropped("malformed")
			return
		}
		s.applyBook(p)

	case TypeTrade:
		var p domain.TradePrint
		if err := json.Unmarshal(env.Data, &p); err != nil || p.Symbol == "" {
			slog.Warn("Dropping bad trade payload", slog.Any("error", err))
			infra.RecordDropped("malformed")
			return
		}
		s.applyTrade(p)

	default:
		// Unknown types are dropped with a diagnostic, never fatal.
		slog.Warn("Dropping unknown message type", slog.String("type", env.Type))
		infra.RecordDropped("unknown_type")
	}
}

// applyTicker patches an existing market in place or inserts a new one.
// Last-write-wins: no ordering beyond network arrival is assumed.
func (s *Store) applyTicker(p TickerPayload) {
	s.mu.Lock()
	m, ok := s.markets[p.Symbol]
	if !ok {
		m = &domain.Market{Symbol: p.Symbol}
		s.markets[p.Symbol] = m
	}
	m.PatchTicker(p.Price, p.Change24h, p.Volume24h)
	s.mu.Unlock()

	infra.RecordMessage(TypeTicker)
	s.notify(Update{Symbol: p.Symbol, Kind: UpdateTicker})
}

func (s *Store) applyBook(p BookPayload) {
	s.mu.Lock()
	book, ok := s.books[p.Symbol]
	if !ok {
		book = &domain.OrderBook{Symbol: p.Symbol}
		s.books[p.Symbol] = book
	}

	if p.Snapshot {
		book.ApplySnapshot(p.Bids, p.Asks)
		delete(s.awaiting, p.Symbol) // A full snapshot resynchronizes.
	} else {
		if s.awaiting[p.Symbol] {
			s.mu.Unlock()
			slog.Debug("Dropping delta while awaiting snapshot", slog.String("symbol", p.Symbol))
			infra.RecordDropped("awaiting_snapshot")
			return
		}

		// Apply on a copy so a crossed result never replaces known-good state.
		candidate := book.Clone()
		if err := candidate.ApplyDelta(p.Bids, p.Asks); err != nil {
			s.awaiting[p.Symbol] = true
			s.mu.Unlock()
			slog.Error("Orderbook invariant violated, keeping last good state",
				slog.String("symbol", p.Symbol), slog.Any("error", err))
			infra.RecordDropped("crossed_book")
			return
		}
		s.books[p.Symbol] = candidate
	}
	s.mu.Unlock()

	infra.RecordMessage(TypeOrderBook)
	s.notify(Update{Symbol: p.Symbol, Kind: UpdateOrderBook})
}

func (s *Store) applyTrade(p domain.TradePrint) {
	s.mu.Lock()
	h, ok := s.trades[p.Symbol]
	if !ok {
		h = domain.NewTradeHistory(s.tradeCap)
		s.trades[p.Symbol] = h
	}
	appended := h.Append(p)
	s.mu.Unlock()

	if !appended {
		infra.RecordDropped("duplicate_trade")
		return
	}
	infra.RecordMessage(TypeTrade)
	s.notify(Update{Symbol: p.Symbol, Kind: UpdateTrade})
}

func (s *Store) applyBalance(b domain.Balance) {
	if b.Assets == nil && b.Total.Sign() == 0 && b.Available.Sign() == 0 && b.Locked.Sign() == 0 {
		// Zero value clears the balance (logout).
		s.mu.Lock()
		s.balance = nil
		s.mu.Unlock()
		s.notify(Update{Kind: UpdateBalance})
		return
	}

	if err := b.Verify(); err != nil {
		slog.Error("Rejecting balance update, invariant violated", slog.Any("error", err))
		infra.RecordDropped("bad_balance")
		return
	}

	s.mu.Lock()
	s.balance = &b
	s.mu.Unlock()
	s.notify(Update{Kind: UpdateBalance})
}

func (s *Store) applyMarkets(markets []domain.Market) {
	s.mu.Lock()
	for i := range markets {
		m := markets[i]
		s.markets[m.Symbol] = &m
	}
	s.mu.Unlock()

	for i := range markets {
		s.notify(Update{Symbol: markets[i].Symbol, Kind: UpdateTicker})
	}
}

// Market returns a copy of one market entry.
func (s *Store) Market(symbol string) (domain.Market, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.markets[symbol]
	if !ok {
		return domain.Market{}, false
	}
	return *m, true
}

// Markets returns copies of every market entry, sorted by symbol.
func (s *Store) Markets() []domain.Market {
	s.mu.RLock()
	out := make([]domain.Market, 0, len(s.markets))
	for _, m := range s.markets {
		out = append(out, *m)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Book returns a deep copy of one symbol's order book.
func (s *Store) Book(symbol string) (*domain.OrderBook, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	book, ok := s.books[symbol]
	if !ok {
		return nil, false
	}
	return book.Clone(), true
}

// Trades returns a copy of one symbol's retained prints, oldest first.
func (s *Store) Trades(symbol string) []domain.TradePrint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.trades[symbol]
	if !ok {
		return nil
	}
	return h.Prints()
}

// Balance returns a copy of the current balance, false when logged out.
func (s *Store) Balance() (domain.Balance, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.balance == nil {
		return domain.Balance{}, false
	}
	b := *s.balance
	if s.balance.Assets != nil {
		b.Assets = make(map[string]domain.AssetBalance, len(s.balance.Assets))
		for k, v := range s.balance.Assets {
			b.Assets[k] = v
		}
	}
	return b, true
}

// SubscribeUpdates registers a change observer. An empty symbol receives
// every update. Callbacks run on the merge goroutine and must be quick.
func (s *Store) SubscribeUpdates(symbol string, fn func(Update)) int {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	s.nextObs++
	s.observers[s.nextObs] = observer{symbol: symbol, fn: fn}
	return s.nextObs
}

// UnsubscribeUpdates removes an observer; no-op for unknown ids.
func (s *Store) UnsubscribeUpdates(id int) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	delete(s.observers, id)
}

func (s *Store) notify(u Update) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	for _, obs := range s.observers {
		if obs.symbol == "" || obs.symbol == u.Symbol {
			obs.fn(u)
		}
	}
}
