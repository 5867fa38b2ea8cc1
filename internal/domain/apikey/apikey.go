// Package apikey models tenant agent credentials. Plaintext keys are never
// persisted: only their SHA-256 hash is stored, since API keys are
// high-entropy random tokens and password hashing (bcrypt) would be the
// wrong tool.
package apikey

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

type Option func(*apiKey)

func WithID(id uuid.UUID) Option           { return func(k *apiKey) { k.id = id } }
func WithCreatedAt(t time.Time) Option     { return func(k *apiKey) { k.createdAt = t } }
func WithLastUsedAt(t time.Time) Option    { return func(k *apiKey) { k.lastUsedAt = &t } }
func WithRevoked(revoked bool) Option      { return func(k *apiKey) { k.revoked = revoked } }

type ApiKey interface {
	ID() uuid.UUID
	ProjectID() uuid.UUID
	DisplayName() string
	KeyHash() string
	LastUsedAt() (time.Time, bool)
	Revoked() bool
	CreatedAt() time.Time
}

// Hash returns the SHA-256 hex digest of a plaintext API key.
func Hash(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// Generate creates a new plaintext API key ("lt_" followed by 32 random
// bytes, hex-encoded)
// and its persisted ApiKey record. The plaintext is returned alongside the
// record and must be shown to the caller exactly once.
func Generate(projectID uuid.UUID, displayName string, opts ...Option) (plaintext string, key ApiKey, err error) {
	buf := make([]byte, 32)
	if _, err = rand.Read(buf); err != nil {
		return "", nil, err
	}
	plaintext = "lt_" + hex.EncodeToString(buf)

	k := &apiKey{
		id:          uuid.New(),
		projectID:   projectID,
		displayName: displayName,
		keyHash:     Hash(plaintext),
		createdAt:   time.Now(),
	}
	for _, opt := range opts {
		opt(k)
	}
	return plaintext, k, nil
}

type apiKey struct {
	id          uuid.UUID
	projectID   uuid.UUID
	displayName string
	keyHash     string
	lastUsedAt  *time.Time
	revoked     bool
	createdAt   time.Time
}

func (k *apiKey) ID() uuid.UUID          { return k.id }
func (k *apiKey) ProjectID() uuid.UUID   { return k.projectID }
func (k *apiKey) DisplayName() string    { return k.displayName }
func (k *apiKey) KeyHash() string        { return k.keyHash }
func (k *apiKey) Revoked() bool          { return k.revoked }
func (k *apiKey) CreatedAt() time.Time   { return k.createdAt }

func (k *apiKey) LastUsedAt() (time.Time, bool) {
	if k.lastUsedAt == nil {
		return time.Time{}, false
	}
	return *k.lastUsedAt, true
}

// AuthContext is what a successful API-key lookup decorates the request
// with.
type AuthContext struct {
	ApiKeyID       uuid.UUID
	ProjectID      uuid.UUID
	OrganizationID uuid.UUID
}

type Repository interface {
	// GetByHash looks up a non-revoked key by its SHA-256 hash, along with
	// the project/organization it authorizes.
	GetByHash(ctx context.Context, hash string) (ApiKey, AuthContext, error)
	GetByID(ctx context.Context, id uuid.UUID) (ApiKey, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]ApiKey, error)
	Create(ctx context.Context, k ApiKey) error
	Revoke(ctx context.Context, id uuid.UUID) error
	TouchLastUsed(ctx context.Context, id uuid.UUID) error
}
