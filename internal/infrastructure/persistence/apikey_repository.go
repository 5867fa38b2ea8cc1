package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/iota-uz/logtide/internal/domain/apikey"
	"github.com/iota-uz/logtide/pkg/composables"
	"github.com/iota-uz/logtide/pkg/repo"
)

var ErrApiKeyNotFound = errors.New("api key not found")

type PgApiKeyRepository struct{}

func NewApiKeyRepository() apikey.Repository {
	return &PgApiKeyRepository{}
}

// GetByHash joins through projects to recover the organization an API key
// authorizes, matching the AuthContext the ingestion pipeline needs.
func (r *PgApiKeyRepository) GetByHash(ctx context.Context, hash string) (apikey.ApiKey, apikey.AuthContext, error) {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return nil, apikey.AuthContext{}, err
	}
	var (
		id, projectID, orgID uuid.UUID
		displayName          string
		revoked              bool
		createdAt            time.Time
		lastUsedAt           *time.Time
	)
	err = q.QueryRow(ctx, `
		SELECT k.id, k.project_id, p.organization_id, k.display_name, k.revoked, k.created_at, k.last_used_at
		FROM api_keys k
		JOIN projects p ON p.id = k.project_id
		WHERE k.key_hash = $1 AND NOT k.revoked
	`, hash).Scan(&id, &projectID, &orgID, &displayName, &revoked, &createdAt, &lastUsedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apikey.AuthContext{}, ErrApiKeyNotFound
		}
		return nil, apikey.AuthContext{}, err
	}

	k := restoreApiKey(id, projectID, displayName, hash, revoked, createdAt, lastUsedAt)
	return k, apikey.AuthContext{ApiKeyID: id, ProjectID: projectID, OrganizationID: orgID}, nil
}

func (r *PgApiKeyRepository) GetByID(ctx context.Context, id uuid.UUID) (apikey.ApiKey, error) {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return nil, err
	}
	var (
		keyID, projectID uuid.UUID
		displayName      string
		keyHash          string
		revoked          bool
		createdAt        time.Time
		lastUsedAt       *time.Time
	)
	err = q.QueryRow(ctx, `
		SELECT id, project_id, display_name, key_hash, revoked, created_at, last_used_at
		FROM api_keys WHERE id = $1
	`, id).Scan(&keyID, &projectID, &displayName, &keyHash, &revoked, &createdAt, &lastUsedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrApiKeyNotFound
		}
		return nil, err
	}
	return restoreApiKey(keyID, projectID, displayName, keyHash, revoked, createdAt, lastUsedAt), nil
}

func (r *PgApiKeyRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]apikey.ApiKey, error) {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := q.Query(ctx, `
		SELECT id, project_id, display_name, key_hash, revoked, created_at, last_used_at
		FROM api_keys WHERE project_id = $1 ORDER BY created_at DESC
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []apikey.ApiKey
	for rows.Next() {
		var (
			id, pID     uuid.UUID
			displayName string
			keyHash     string
			revoked     bool
			createdAt   time.Time
			lastUsedAt  *time.Time
		)
		if err := rows.Scan(&id, &pID, &displayName, &keyHash, &revoked, &createdAt, &lastUsedAt); err != nil {
			return nil, err
		}
		out = append(out, restoreApiKey(id, pID, displayName, keyHash, revoked, createdAt, lastUsedAt))
	}
	return out, rows.Err()
}

// restoreApiKey reconstructs an ApiKey from storage without ever seeing its
// plaintext, bypassing Generate (which always mints a fresh key).
func restoreApiKey(id, projectID uuid.UUID, displayName, keyHash string, revoked bool, createdAt time.Time, lastUsedAt *time.Time) apikey.ApiKey {
	opts := []apikey.Option{apikey.WithID(id), apikey.WithCreatedAt(createdAt), apikey.WithRevoked(revoked)}
	if lastUsedAt != nil {
		opts = append(opts, apikey.WithLastUsedAt(*lastUsedAt))
	}
	_, k, _ := apikey.Generate(projectID, displayName, opts...)
	return storedApiKey{k, keyHash}
}

// storedApiKey overrides KeyHash() with the value actually persisted, since
// Generate() always computes the hash of a freshly minted plaintext.
type storedApiKey struct {
	apikey.ApiKey
	hash string
}

func (s storedApiKey) KeyHash() string { return s.hash }

func (r *PgApiKeyRepository) Create(ctx context.Context, k apikey.ApiKey) error {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, repo.Insert("api_keys", []string{"id", "project_id", "display_name", "key_hash", "revoked", "created_at"}),
		k.ID(), k.ProjectID(), k.DisplayName(), k.KeyHash(), k.Revoked(), k.CreatedAt())
	return err
}

func (r *PgApiKeyRepository) Revoke(ctx context.Context, id uuid.UUID) error {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, "UPDATE api_keys SET revoked = true WHERE id = $1", id)
	return err
}

func (r *PgApiKeyRepository) TouchLastUsed(ctx context.Context, id uuid.UUID) error {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, "UPDATE api_keys SET last_used_at = now() WHERE id = $1", id)
	return err
}
