// Package principal carries the authenticated caller through a request context.
package principal

import "context"

// Principal is the identity attached by the session guard.
type Principal struct {
	UserID    string
	Email     string
	SessionID string
}

type ctxKey struct{}

// With returns a copy of ctx carrying p.
func With(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// From returns the principal stored in ctx, if any.
func From(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)
	return p, ok && p.UserID != ""
}
