package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"tradesync/internal/domain"
	"tradesync/internal/gateway"
	"tradesync/internal/market"
	"tradesync/internal/stream"
	"tradesync/internal/vault"
)

// MarketAPI is the read-only REST surface the session uses for initial loads
// and refreshes. Satisfied by *gateway.RESTClient.
type MarketAPI interface {
	Markets(ctx context.Context) ([]domain.Market, error)
	Balance(ctx context.Context, token string) (domain.Balance, error)
}

// Session owns the client-side sync lifecycle: it connects the stream, keeps
// the subscription set aligned with the selected symbol, routes inbound
// frames into the merge engine, and ties authentication state to account
// data. Components are composed here and nowhere else.
type Session struct {
	conn     *stream.Conn
	registry *stream.Registry
	store    *market.Store
	vault    *vault.Vault
	gateway  *gateway.Gateway
	api      MarketAPI

	mu       sync.Mutex
	selected string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New wires a session from its parts. The stream connection is created here
// so the session is its frame handler.
func New(streamURL string, store *market.Store, v *vault.Vault, gw *gateway.Gateway, api MarketAPI) *Session {
	s := &Session{
		store:   store,
		vault:   v,
		gateway: gw,
		api:     api,
	}
	s.conn = stream.NewConn(streamURL, s)
	s.registry = stream.NewRegistry(s.conn)

	gw.OnOrderPlaced(func(ctx context.Context) { s.RefreshBalance(ctx) })
	v.OnLoginChange(func(loggedIn bool) {
		if !loggedIn {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			s.store.ClearBalance(ctx)
		}
	})
	return s
}

// Start launches the merge loop and the stream connection, then performs the
// initial REST loads. Returns once background work is running; market data
// arrives asynchronously.
func (s *Session) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.store.Run(ctx)
	}()

	s.conn.Connect(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loadMarkets(ctx)
		s.RefreshBalance(ctx)
	}()
}

// Close tears the session down: the stream stops reconnecting and in-flight
// work is cancelled.
func (s *Session) Close() {
	if s.cancel != nil {
		s.cancel()
	}
	s.conn.Close()
	s.wg.Wait()
	slog.Info("Session closed")
}

// OnConnected implements stream.Handler. Fires on every transition into
// Connected; the server holds no subscription state across a drop, so the
// full active set is replayed, and account data is refreshed to cover the
// gap.
func (s *Session) OnConnected(ctx context.Context) {
	s.registry.ReplayAll()
	s.RefreshBalance(ctx)
}

// OnMessage implements stream.Handler. Frames are enqueued in arrival order;
// the merge engine owns all parsing and validation.
func (s *Session) OnMessage(ctx context.Context, msg []byte) {
	s.store.HandleFrame(ctx, msg)
}

// SelectSymbol points the live channels at one symbol, dropping the previous
// selection's channels first. Selecting the current symbol is a no-op.
func (s *Session) SelectSymbol(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if symbol == s.selected {
		return
	}
	if s.selected != "" {
		for _, kind := range []string{stream.ChannelTicker, stream.ChannelOrderBook, stream.ChannelTrade} {
			s.registry.Unsubscribe(stream.Channel(kind, s.selected))
		}
	}
	s.selected = symbol
	if symbol == "" {
		return
	}
	for _, kind := range []string{stream.ChannelTicker, stream.ChannelOrderBook, stream.ChannelTrade} {
		s.registry.Subscribe(stream.Channel(kind, symbol))
	}
	slog.Info("Symbol selected", slog.String("symbol", symbol))
}

// Selected returns the currently selected symbol, empty when none.
func (s *Session) Selected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// Login stores the credential and loads account data.
func (s *Session) Login(ctx context.Context, cred vault.Credential) error {
	if err := s.vault.Store(ctx, cred); err != nil {
		return err
	}
	s.RefreshBalance(ctx)
	return nil
}

// Logout clears the credential; the vault observer wipes account data.
func (s *Session) Logout(ctx context.Context) {
	s.vault.Clear(ctx)
}

// RefreshBalance fetches the account balance when logged in. A rejected
// credential clears the vault; other failures keep the last known balance.
func (s *Session) RefreshBalance(ctx context.Context) {
	cred, ok := s.vault.Current(ctx)
	if !ok {
		return
	}

	b, err := s.api.Balance(ctx, cred.Token)
	if err != nil {
		if gateway.IsAuthExpired(err) {
			slog.Warn("Credential rejected during balance refresh, clearing vault")
			s.vault.Clear(ctx)
			return
		}
		slog.Warn("Balance refresh failed", slog.Any("error", err))
		return
	}
	s.store.PutBalance(ctx, b)
}

func (s *Session) loadMarkets(ctx context.Context) {
	markets, err := s.api.Markets(ctx)
	if err != nil {
		slog.Warn("Initial market load failed", slog.Any("error", err))
		return
	}
	s.store.PutMarkets(ctx, markets)
	slog.Info("Markets loaded", slog.Int("count", len(markets)))
}

// Gateway exposes the order pipeline.
func (s *Session) Gateway() *gateway.Gateway {
	return s.gateway
}

// Store exposes the read side of the merge engine.
func (s *Session) Store() *market.Store {
	return s.store
}

// StreamState reports the connection lifecycle state.
func (s *Session) StreamState() stream.State {
	return s.conn.State()
}

// ActiveChannels lists the currently subscribed channels, sorted.
func (s *Session) ActiveChannels() []string {
	return s.registry.Active()
}
