package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"tradesync/internal/domain"
)

func TestRESTClient_BalanceSendsBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(wireBalance{
			Total:     dec("150"),
			Available: dec("100"),
			Locked:    dec("50"),
			Assets:    []wireAssetBalance{{Asset: "BTC", Available: dec("1"), Locked: dec("0")}},
		})
	}))
	defer srv.Close()

	c := NewRESTClient(srv.URL)
	b, err := c.Balance(context.Background(), "tok-123")
	if err != nil {
		t.Fatalf("balance failed: %v", err)
	}
	if gotAuth != "Bearer tok-123" {
		t.Errorf("authorization header %q", gotAuth)
	}
	if !b.Total.Equal(dec("150")) {
		t.Errorf("got %+v", b)
	}
	if a := b.Asset("BTC"); !a.Available.Equal(dec("1")) {
		t.Errorf("asset not mapped: %+v", b.Assets)
	}
}

func TestRESTClient_PlaceOrderRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/order" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var draft domain.OrderDraft
		json.NewDecoder(r.Body).Decode(&draft)
		json.NewEncoder(w).Encode(Order{
			OrderID:  "o-1",
			Symbol:   draft.Symbol,
			Side:     draft.Side,
			Type:     draft.Type,
			Quantity: draft.Quantity,
			Status:   "NEW",
		})
	}))
	defer srv.Close()

	c := NewRESTClient(srv.URL)
	order, err := c.PlaceOrder(context.Background(), "tok", validDraft().Normalized())
	if err != nil {
		t.Fatalf("place failed: %v", err)
	}
	if order.OrderID != "o-1" || order.Symbol != "BTCUSDT" {
		t.Errorf("got %+v", order)
	}
}

func TestRESTClient_RemoteErrorCarriesStatusAndReason(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"message": "token expired"})
	}))
	defer srv.Close()

	c := NewRESTClient(srv.URL)
	_, err := c.Balance(context.Background(), "stale")

	var re *RemoteError
	if !errors.As(err, &re) {
		t.Fatalf("expected RemoteError, got %v", err)
	}
	if re.Status != http.StatusUnauthorized || re.Reason != "token expired" {
		t.Errorf("got %+v", re)
	}
	if !re.AuthExpired() {
		t.Error("401 not reported as auth expiry")
	}
}

func TestRESTClient_CancelOrderQuery(t *testing.T) {
	var gotMethod, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotQuery = r.URL.Query().Get("orderId")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewRESTClient(srv.URL)
	if err := c.CancelOrder(context.Background(), "tok", "o-42"); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if gotMethod != http.MethodDelete || gotQuery != "o-42" {
		t.Errorf("request %s orderId=%q", gotMethod, gotQuery)
	}
}

func TestRESTClient_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewRESTClient(srv.URL)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		c.Markets(ctx)
	}

	before := hits.Load()
	_, err := c.Markets(ctx)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if hits.Load() != before {
		t.Error("request reached the backend while the breaker was open")
	}
}

func TestRESTClient_ClientErrorsDoNotTripBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewRESTClient(srv.URL)
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		c.Markets(ctx)
	}

	_, err := c.Markets(ctx)
	var re *RemoteError
	if !errors.As(err, &re) {
		t.Fatalf("breaker tripped on 4xx: %v", err)
	}
}
