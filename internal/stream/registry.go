package stream

import (
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// Channel kinds understood by the venue.
const (
	ChannelTicker    = "ticker"
	ChannelOrderBook = "orderbook"
	ChannelTrade     = "trade"
)

// Channel builds the canonical channel name "{kind}@{symbol}", lower-cased.
func Channel(kind, symbol string) string {
	return strings.ToLower(kind + "@" + symbol)
}

// controlFrame is the client->server subscribe/unsubscribe envelope.
type controlFrame struct {
	Method string `json:"method"`
	Params struct {
		Channel string `json:"channel"`
	} `json:"params"`
}

func marshalControl(method, channel string) []byte {
	var f controlFrame
	f.Method = method
	f.Params.Channel = channel
	b, _ := json.Marshal(f)
	return b
}

// Sender is the outbound half of the connection the registry writes through.
type Sender interface {
	Send(data []byte) error
	State() State
}

// Registry tracks which logical channels the client wants active and replays
// them after every reconnect. The server holds no subscription state across
// a dropped connection.
type Registry struct {
	mu     sync.Mutex
	sender Sender
	active map[string]struct{}
}

// NewRegistry creates an empty registry writing through sender.
func NewRegistry(sender Sender) *Registry {
	return &Registry{
		sender: sender,
		active: make(map[string]struct{}),
	}
}

// Subscribe adds a channel to the active set. Idempotent: subscribing twice
// sends exactly one frame. If the connection is not Connected, the frame is
// deferred until the next ReplayAll.
func (r *Registry) Subscribe(channel string) {
	channel = strings.ToLower(channel)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.active[channel]; ok {
		return
	}
	r.active[channel] = struct{}{}

	if r.sender.State() == StateConnected {
		r.sendFrame("subscribe", channel)
	}
}

// Unsubscribe removes a channel from the active set; no-op if absent.
func (r *Registry) Unsubscribe(channel string) {
	channel = strings.ToLower(channel)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.active[channel]; !ok {
		return
	}
	delete(r.active, channel)

	if r.sender.State() == StateConnected {
		r.sendFrame("unsubscribe", channel)
	}
}

// ReplayAll issues one subscribe frame per active channel. Invoked by the
// orchestrator after every reconnect; replay order is unspecified.
func (r *Registry) ReplayAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for channel := range r.active {
		r.sendFrame("subscribe", channel)
	}
}

// Active returns the active channel set, sorted for stable output.
func (r *Registry) Active() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.active))
	for channel := range r.active {
		out = append(out, channel)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) sendFrame(method, channel string) {
	if err := r.sender.Send(marshalControl(method, channel)); err != nil {
		// A failed control frame is recovered by the next reconnect replay.
		slog.Warn("Subscription frame send failed",
			slog.String("method", method), slog.String("channel", channel), slog.Any("error", err))
	}
}
