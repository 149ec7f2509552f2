package gateway

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"tradesync/internal/domain"
	"tradesync/internal/infra"
	"tradesync/internal/vault"
)

var hundred = decimal.NewFromInt(100)

// CredentialSource supplies the session credential. Satisfied by
// *vault.Vault.
type CredentialSource interface {
	Current(ctx context.Context) (vault.Credential, bool)
	Clear(ctx context.Context)
}

// Backend is the slice of the REST surface the gateway drives. Satisfied by
// *RESTClient.
type Backend interface {
	PlaceOrder(ctx context.Context, token string, draft domain.OrderDraft) (Order, error)
	OpenOrders(ctx context.Context, token string) ([]Order, error)
	CancelOrder(ctx context.Context, token, orderID string) error
}

// Gateway is the only path for outbound orders. Every submission passes
// local validation, then a step-up authorization prompt, then the backend.
// A failure at any stage stops the pipeline before the next one runs.
type Gateway struct {
	backend    Backend
	creds      CredentialSource
	authorizer Authorizer

	// onOrderPlaced runs after a successful submission, e.g. to refresh the
	// account balance. May be nil.
	onOrderPlaced func(ctx context.Context)
}

// New creates a gateway.
func New(backend Backend, creds CredentialSource, authorizer Authorizer) *Gateway {
	return &Gateway{backend: backend, creds: creds, authorizer: authorizer}
}

// OnOrderPlaced sets the post-submission hook.
func (g *Gateway) OnOrderPlaced(fn func(ctx context.Context)) {
	g.onOrderPlaced = fn
}

// SizeByPercentage converts a percentage of available funds into an order
// quantity, truncated (never rounded up) to 8 decimal places. For buys the
// available quote amount is divided by refPrice; for sells the base amount
// is sized directly and refPrice is ignored. Inputs that cannot produce a
// positive quantity yield zero.
func (g *Gateway) SizeByPercentage(side domain.Side, available, pct, refPrice decimal.Decimal) decimal.Decimal {
	if pct.Sign() <= 0 || pct.GreaterThan(hundred) || available.Sign() <= 0 {
		return decimal.Zero
	}

	if side == domain.SideBuy {
		if refPrice.Sign() <= 0 {
			return decimal.Zero
		}
		// QuoRem truncates toward zero at the requested precision, so the
		// sized order can never exceed available funds.
		q, _ := available.Mul(pct).QuoRem(refPrice.Mul(hundred), 8)
		return q
	}

	q, _ := available.Mul(pct).QuoRem(hundred, 8)
	return q
}

// Submit runs the full pipeline: validate, authorize, then send. The step-up
// prompt is never shown for a draft that would be rejected locally, and no
// network call is made unless the user approves.
func (g *Gateway) Submit(ctx context.Context, draft domain.OrderDraft) (Order, error) {
	draft = draft.Normalized()
	if err := draft.Validate(); err != nil {
		infra.RecordOrder("invalid")
		return Order{}, err
	}

	purpose := fmt.Sprintf("%s %s %s %s", draft.Side, draft.Quantity, draft.Symbol, draft.Type)
	decision, err := g.authorizer.Authorize(ctx, purpose)
	if err != nil {
		return Order{}, fmt.Errorf("authorization failed: %w", err)
	}
	switch decision {
	case AuthApproved:
	case AuthDenied:
		infra.RecordOrder("denied")
		return Order{}, ErrAuthorizationDenied
	default:
		infra.RecordOrder("cancelled")
		return Order{}, ErrAuthorizationCancelled
	}

	cred, ok := g.creds.Current(ctx)
	if !ok {
		return Order{}, ErrNotAuthenticated
	}

	order, err := g.backend.PlaceOrder(ctx, cred.Token, draft)
	if err != nil {
		g.handleRemote(ctx, err)
		infra.RecordOrder("rejected")
		return Order{}, err
	}

	infra.RecordOrder("submitted")
	slog.Info("Order submitted",
		slog.String("order_id", order.OrderID),
		slog.String("symbol", order.Symbol),
		slog.String("side", string(order.Side)))

	if g.onOrderPlaced != nil {
		g.onOrderPlaced(ctx)
	}
	return order, nil
}

// OpenOrders lists the account's resting orders.
func (g *Gateway) OpenOrders(ctx context.Context) ([]Order, error) {
	cred, ok := g.creds.Current(ctx)
	if !ok {
		return nil, ErrNotAuthenticated
	}
	orders, err := g.backend.OpenOrders(ctx, cred.Token)
	if err != nil {
		g.handleRemote(ctx, err)
		return nil, err
	}
	return orders, nil
}

// Cancel cancels a resting order by id.
func (g *Gateway) Cancel(ctx context.Context, orderID string) error {
	if orderID == "" {
		return &domain.ValidationError{Field: "orderId", Reason: "is required"}
	}
	cred, ok := g.creds.Current(ctx)
	if !ok {
		return ErrNotAuthenticated
	}
	if err := g.backend.CancelOrder(ctx, cred.Token, orderID); err != nil {
		g.handleRemote(ctx, err)
		return err
	}
	slog.Info("Order cancelled", slog.String("order_id", orderID))
	if g.onOrderPlaced != nil {
		g.onOrderPlaced(ctx)
	}
	return nil
}

// handleRemote reacts to backend errors: a credential rejection clears the
// vault so the session drops to logged-out state.
func (g *Gateway) handleRemote(ctx context.Context, err error) {
	if IsAuthExpired(err) {
		slog.Warn("Credential rejected by backend, clearing vault")
		g.creds.Clear(ctx)
	}
}
