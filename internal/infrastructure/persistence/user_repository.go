package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/iota-uz/logtide/internal/domain/user"
	"github.com/iota-uz/logtide/pkg/composables"
	"github.com/iota-uz/logtide/pkg/repo"
)

var ErrUserNotFound = errors.New("user not found")

type PgUserRepository struct{}

func NewUserRepository() user.Repository {
	return &PgUserRepository{}
}

const userColumns = "id, email, display_name, password_hash, is_admin, disabled, created_at, last_login_at"

func scanUser(row pgx.Row) (user.User, error) {
	var (
		id                      uuid.UUID
		email, displayName      string
		passwordHash            *string
		isAdmin, disabled       bool
		createdAt               time.Time
		lastLoginAt             *time.Time
	)
	if err := row.Scan(&id, &email, &displayName, &passwordHash, &isAdmin, &disabled, &createdAt, &lastLoginAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	opts := []user.Option{user.WithID(id), user.WithAdmin(isAdmin), user.WithDisabled(disabled), user.WithCreatedAt(createdAt)}
	if passwordHash != nil {
		opts = append(opts, user.WithPasswordHash(*passwordHash))
	}
	if lastLoginAt != nil {
		opts = append(opts, user.WithLastLoginAt(*lastLoginAt))
	}
	return user.New(email, displayName, opts...), nil
}

func (r *PgUserRepository) GetByID(ctx context.Context, id uuid.UUID) (user.User, error) {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return nil, err
	}
	return scanUser(q.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id))
}

func (r *PgUserRepository) GetByEmail(ctx context.Context, normalizedEmail string) (user.User, error) {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return nil, err
	}
	return scanUser(q.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE email = $1", normalizedEmail))
}

func (r *PgUserRepository) GetPaginated(ctx context.Context, params *user.FindParams) ([]user.User, error) {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return nil, err
	}
	where, args := []string{"1 = 1"}, []any{}
	if len(params.IDs) > 0 {
		args = append(args, params.IDs)
		where = append(where, fmt.Sprintf("id = ANY($%d)", len(args)))
	}
	if params.Email != "" {
		args = append(args, params.Email)
		where = append(where, fmt.Sprintf("email = $%d", len(args)))
	}

	rows, err := q.Query(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY created_at DESC
		`+repo.FormatLimitOffset(params.Limit, params.Offset)+`
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []user.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *PgUserRepository) Count(ctx context.Context, params *user.FindParams) (int64, error) {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return 0, err
	}
	where, args := []string{"1 = 1"}, []any{}
	if params.Email != "" {
		args = append(args, params.Email)
		where = append(where, fmt.Sprintf("email = $%d", len(args)))
	}
	var count int64
	err = q.QueryRow(ctx, "SELECT count(*) FROM users WHERE "+strings.Join(where, " AND "), args...).Scan(&count)
	return count, err
}

func (r *PgUserRepository) Create(ctx context.Context, u user.User) (user.User, error) {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return nil, err
	}
	var passwordHash *string
	if hash, ok := u.PasswordHash(); ok {
		passwordHash = &hash
	}
	_, err = q.Exec(ctx, repo.Insert("users", strings.Split(userColumns, ", ")),
		u.ID(), u.Email(), u.DisplayName(), passwordHash, u.IsAdmin(), u.Disabled(), u.CreatedAt(), nil)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *PgUserRepository) Update(ctx context.Context, u user.User) error {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return err
	}
	var passwordHash *string
	if hash, ok := u.PasswordHash(); ok {
		passwordHash = &hash
	}
	_, err = q.Exec(ctx, repo.Update("users",
		[]string{"email", "display_name", "password_hash", "is_admin", "disabled"}, "id = $6"),
		u.Email(), u.DisplayName(), passwordHash, u.IsAdmin(), u.Disabled(), u.ID())
	return err
}

func (r *PgUserRepository) UpdateLastLogin(ctx context.Context, id uuid.UUID) error {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, "UPDATE users SET last_login_at = now() WHERE id = $1", id)
	return err
}

func (r *PgUserRepository) ClearPasswordHash(ctx context.Context, id uuid.UUID) error {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, "UPDATE users SET password_hash = NULL WHERE id = $1", id)
	return err
}

func (r *PgUserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, "DELETE FROM users WHERE id = $1", id)
	return err
}
