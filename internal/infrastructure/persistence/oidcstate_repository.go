package persistence

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/iota-uz/logtide/internal/domain/oidcstate"
	"github.com/iota-uz/logtide/pkg/composables"
	"github.com/iota-uz/logtide/pkg/repo"
)

var ErrOIDCStateNotFound = errors.New("oidc state not found")

type PgOIDCStateRepository struct{}

func NewOIDCStateRepository() oidcstate.Repository {
	return &PgOIDCStateRepository{}
}

func (r *PgOIDCStateRepository) Create(ctx context.Context, s oidcstate.State) error {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, repo.Insert("oidc_states",
		[]string{"state", "nonce", "provider_id", "redirect_uri", "code_verifier", "created_at"}),
		s.State, s.Nonce, s.ProviderID, s.RedirectURI, s.CodeVerifier, s.CreatedAt)
	return err
}

func (r *PgOIDCStateRepository) GetByState(ctx context.Context, state string) (oidcstate.State, error) {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return oidcstate.State{}, err
	}
	var s oidcstate.State
	err = q.QueryRow(ctx, `
		SELECT state, nonce, provider_id, redirect_uri, code_verifier, created_at FROM oidc_states WHERE state = $1
	`, state).Scan(&s.State, &s.Nonce, &s.ProviderID, &s.RedirectURI, &s.CodeVerifier, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return oidcstate.State{}, ErrOIDCStateNotFound
		}
		return oidcstate.State{}, err
	}
	return s, nil
}

func (r *PgOIDCStateRepository) Delete(ctx context.Context, state string) error {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, "DELETE FROM oidc_states WHERE state = $1", state)
	return err
}
