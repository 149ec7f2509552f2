package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"tradesync/internal/domain"
)

// Order is a placed order as reported by the backend.
type Order struct {
	OrderID   string           `json:"orderId"`
	Symbol    string           `json:"symbol"`
	Side      domain.Side      `json:"side"`
	Type      domain.OrderType `json:"type"`
	Quantity  decimal.Decimal  `json:"quantity"`
	Price     *decimal.Decimal `json:"price,omitempty"`
	Status    string           `json:"status"`
	CreatedAt int64            `json:"createdAt"`
}

type wireAssetBalance struct {
	Asset     string          `json:"asset"`
	Available decimal.Decimal `json:"available"`
	Locked    decimal.Decimal `json:"locked"`
}

type wireBalance struct {
	Total     decimal.Decimal    `json:"total"`
	Available decimal.Decimal    `json:"available"`
	Locked    decimal.Decimal    `json:"locked"`
	Assets    []wireAssetBalance `json:"assets"`
}

func (w wireBalance) toDomain() domain.Balance {
	b := domain.Balance{
		Total:     w.Total,
		Available: w.Available,
		Locked:    w.Locked,
	}
	if len(w.Assets) > 0 {
		b.Assets = make(map[string]domain.AssetBalance, len(w.Assets))
		for _, a := range w.Assets {
			b.Assets[a.Asset] = domain.AssetBalance{Available: a.Available, Locked: a.Locked}
		}
	}
	return b
}

type wireError struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// RESTClient talks to the trading backend over HTTP. Every request carries a
// context and, where required, a bearer token supplied per call. Repeated
// backend failures trip a circuit breaker that rejects requests locally.
type RESTClient struct {
	baseURL    string
	httpClient *http.Client
	breaker    *breaker
	limiter    *rateLimiter
}

// NewRESTClient creates a client for the given base URL.
func NewRESTClient(baseURL string) *RESTClient {
	return &RESTClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		breaker: newBreaker(),
		limiter: newRateLimiter(5, 10),
	}
}

// Markets fetches the full market listing. Public endpoint, no token.
func (c *RESTClient) Markets(ctx context.Context) ([]domain.Market, error) {
	var out []domain.Market
	if err := c.do(ctx, http.MethodGet, "/api/v1/market/ticker", "", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Balance fetches the account balance for the given credential.
func (c *RESTClient) Balance(ctx context.Context, token string) (domain.Balance, error) {
	var w wireBalance
	if err := c.do(ctx, http.MethodGet, "/api/v1/account/balance", token, nil, &w); err != nil {
		return domain.Balance{}, err
	}
	return w.toDomain(), nil
}

// PlaceOrder submits a validated order draft.
func (c *RESTClient) PlaceOrder(ctx context.Context, token string, draft domain.OrderDraft) (Order, error) {
	var out Order
	if err := c.do(ctx, http.MethodPost, "/api/v1/order", token, draft, &out); err != nil {
		return Order{}, err
	}
	return out, nil
}

// OpenOrders fetches the account's resting orders.
func (c *RESTClient) OpenOrders(ctx context.Context, token string) ([]Order, error) {
	var out []Order
	if err := c.do(ctx, http.MethodGet, "/api/v1/orders/open", token, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CancelOrder cancels a resting order by id.
func (c *RESTClient) CancelOrder(ctx context.Context, token, orderID string) error {
	path := "/api/v1/order?orderId=" + url.QueryEscape(orderID)
	return c.do(ctx, http.MethodDelete, path, token, nil, nil)
}

func (c *RESTClient) do(ctx context.Context, method, path, token string, body, out any) error {
	if !c.breaker.allow() {
		return fmt.Errorf("%s %s: %w", method, path, ErrUnavailable)
	}
	if err := c.limiter.acquire(ctx); err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.breaker.recordFailure()
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.breaker.recordFailure()
		return fmt.Errorf("%s %s: failed to read response: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Client errors are ours, not the backend's; only 5xx counts against
		// the breaker.
		if resp.StatusCode >= 500 {
			c.breaker.recordFailure()
		} else {
			c.breaker.recordSuccess()
		}
		var we wireError
		_ = json.Unmarshal(raw, &we)
		reason := we.Message
		if reason == "" {
			reason = we.Error
		}
		return &RemoteError{Status: resp.StatusCode, Reason: reason}
	}

	c.breaker.recordSuccess()
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s %s: failed to decode response: %w", method, path, err)
	}
	return nil
}
