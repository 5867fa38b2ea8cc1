package persistence

import (
	"context"

	"github.com/google/uuid"

	"github.com/iota-uz/logtide/internal/domain/notification"
	"github.com/iota-uz/logtide/pkg/composables"
	"github.com/iota-uz/logtide/pkg/repo"
)

type PgNotificationRepository struct{}

func NewNotificationRepository() notification.Repository {
	return &PgNotificationRepository{}
}

func (r *PgNotificationRepository) Create(ctx context.Context, n notification.Notification) error {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, repo.Insert("notifications", []string{"id", "user_id", "title", "body", "read", "created_at"}),
		n.ID, n.UserID, n.Title, n.Body, n.Read, n.CreatedAt)
	return err
}

func (r *PgNotificationRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]notification.Notification, error) {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := q.Query(ctx, `
		SELECT id, user_id, title, body, read, created_at FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		`+repo.FormatLimitOffset(limit, offset)+`
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []notification.Notification
	for rows.Next() {
		var n notification.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Body, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *PgNotificationRepository) MarkRead(ctx context.Context, id uuid.UUID) error {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, "UPDATE notifications SET read = true WHERE id = $1", id)
	return err
}

func (r *PgNotificationRepository) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return 0, err
	}
	var count int64
	err = q.QueryRow(ctx, "SELECT count(*) FROM notifications WHERE user_id = $1 AND NOT read", userID).Scan(&count)
	return count, err
}
