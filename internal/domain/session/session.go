// Package session models the bearer-token Session created on every
// successful authentication.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

type Option func(*session)

func WithIP(ip string) Option               { return func(s *session) { s.ip = ip } }
func WithUserAgent(ua string) Option         { return func(s *session) { s.userAgent = ua } }
func WithCreatedAt(t time.Time) Option       { return func(s *session) { s.createdAt = t } }
func WithExpiresAt(t time.Time) Option       { return func(s *session) { s.expiresAt = t } }

// Session is an opaque 256-bit random bearer token, compared verbatim
// (never by prefix) and never JWT-encoded.
type Session interface {
	Token() string
	UserID() uuid.UUID
	IP() string
	UserAgent() string
	ExpiresAt() time.Time
	CreatedAt() time.Time
	IsExpired(now time.Time) bool
}

// Duration is the default session lifetime.
const Duration = 30 * 24 * time.Hour

// NewToken generates a random 256-bit hex token.
func NewToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// New creates a Session for userID, generating its own token.
func New(userID uuid.UUID, opts ...Option) (Session, error) {
	token, err := NewToken()
	if err != nil {
		return nil, err
	}
	now := time.Now()
	s := &session{
		token:     token,
		userID:    userID,
		createdAt: now,
		expiresAt: now.Add(Duration),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// FromStorage reconstructs a Session read back from the repository, where
// the token is already fixed and must not be regenerated.
func FromStorage(token string, userID uuid.UUID, opts ...Option) Session {
	s := &session{token: token, userID: userID}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type session struct {
	token     string
	userID    uuid.UUID
	ip        string
	userAgent string
	createdAt time.Time
	expiresAt time.Time
}

func (s *session) Token() string         { return s.token }
func (s *session) UserID() uuid.UUID     { return s.userID }
func (s *session) IP() string            { return s.ip }
func (s *session) UserAgent() string     { return s.userAgent }
func (s *session) ExpiresAt() time.Time  { return s.expiresAt }
func (s *session) CreatedAt() time.Time  { return s.createdAt }

func (s *session) IsExpired(now time.Time) bool {
	return now.After(s.expiresAt)
}

type Repository interface {
	GetByToken(ctx context.Context, token string) (Session, error)
	Create(ctx context.Context, s Session) error
	Delete(ctx context.Context, token string) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
