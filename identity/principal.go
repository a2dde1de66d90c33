package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrAnonymous is returned when an operation needs a signed-in user.
var ErrAnonymous = errors.New("no authenticated principal")

// Principal is the authenticated caller. Core services take it as an
// argument; only the HTTP layer reads it from the request context.
type Principal struct {
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
	IsAgent  bool      `json:"is_agent"`
}

func (p Principal) Authenticated() bool {
	return p.UserID != uuid.Nil
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the principal stored by the auth middleware, or the
// zero Principal when the request is anonymous.
func FromContext(ctx context.Context) Principal {
	p, _ := ctx.Value(principalKey{}).(Principal)
	return p
}

// Require returns the principal or ErrAnonymous.
func Require(ctx context.Context) (Principal, error) {
	p := FromContext(ctx)
	if !p.Authenticated() {
		return Principal{}, ErrAnonymous
	}
	return p, nil
}
