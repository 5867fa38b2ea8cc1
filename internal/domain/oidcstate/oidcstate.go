// Package oidcstate models the single-use (state, nonce, PKCE verifier)
// tuple created before an OIDC redirect and consumed exactly once on
// callback.
package oidcstate

import (
	"context"
	"time"
)

// TTL is the lifetime of an OIDC state record.
const TTL = 5 * time.Minute

type State struct {
	State        string
	Nonce        string
	ProviderID   string
	RedirectURI  string
	CodeVerifier string
	CreatedAt    time.Time
}

// Expired reports whether the state has outlived TTL as of now.
func (s State) Expired(now time.Time) bool {
	return now.Sub(s.CreatedAt) > TTL
}

// Repository is the durable store for OIDC state; the service layer also
// mirrors every write into the KV cache under oidc:state:<state> and reads
// that mirror first.
type Repository interface {
	Create(ctx context.Context, s State) error
	GetByState(ctx context.Context, state string) (State, error)
	Delete(ctx context.Context, state string) error
}
