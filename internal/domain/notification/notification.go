// Package notification models in-app Notification rows fanned out to
// organization members by the alert notifier.
package notification

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Notification struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Title     string
	Body      string
	Read      bool
	CreatedAt time.Time
}

type Repository interface {
	Create(ctx context.Context, n Notification) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Notification, error)
	MarkRead(ctx context.Context, id uuid.UUID) error
	UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error)
}
