package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/iota-uz/logtide/internal/domain/session"
	"github.com/iota-uz/logtide/pkg/composables"
	"github.com/iota-uz/logtide/pkg/repo"
)

var ErrSessionNotFound = errors.New("session not found")

type PgSessionRepository struct{}

func NewSessionRepository() session.Repository {
	return &PgSessionRepository{}
}

func (r *PgSessionRepository) GetByToken(ctx context.Context, token string) (session.Session, error) {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return nil, err
	}
	var (
		userID               uuid.UUID
		ip, userAgent        string
		createdAt, expiresAt time.Time
	)
	err = q.QueryRow(ctx, `
		SELECT user_id, ip, user_agent, created_at, expires_at FROM sessions WHERE token = $1
	`, token).Scan(&userID, &ip, &userAgent, &createdAt, &expiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return session.FromStorage(token, userID,
		session.WithIP(ip), session.WithUserAgent(userAgent),
		session.WithCreatedAt(createdAt), session.WithExpiresAt(expiresAt)), nil
}

func (r *PgSessionRepository) Create(ctx context.Context, s session.Session) error {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, repo.Insert("sessions", []string{"id", "user_id", "token", "ip", "user_agent", "created_at", "expires_at"}),
		uuid.New(), s.UserID(), s.Token(), s.IP(), s.UserAgent(), s.CreatedAt(), s.ExpiresAt())
	return err
}

func (r *PgSessionRepository) Delete(ctx context.Context, token string) error {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, "DELETE FROM sessions WHERE token = $1", token)
	return err
}

func (r *PgSessionRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return 0, err
	}
	tag, err := q.Exec(ctx, "DELETE FROM sessions WHERE expires_at < $1", before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
