package gateway

import "context"

// AuthDecision is the outcome of a step-up authorization prompt.
type AuthDecision int

const (
	AuthApproved AuthDecision = iota
	AuthDenied
	AuthCancelled
)

func (d AuthDecision) String() string {
	switch d {
	case AuthApproved:
		return "APPROVED"
	case AuthDenied:
		return "DENIED"
	case AuthCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// Authorizer obtains explicit user confirmation before a sensitive action.
// Implementations range from biometric prompts to a console y/n.
type Authorizer interface {
	Authorize(ctx context.Context, purpose string) (AuthDecision, error)
}

// AuthorizerFunc adapts a function to the Authorizer interface.
type AuthorizerFunc func(ctx context.Context, purpose string) (AuthDecision, error)

func (f AuthorizerFunc) Authorize(ctx context.Context, purpose string) (AuthDecision, error) {
	return f(ctx, purpose)
}
