package persistence

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/iota-uz/logtide/internal/domain/systemsetting"
	"github.com/iota-uz/logtide/pkg/composables"
)

var ErrSettingNotFound = errors.New("system setting not found")

type PgSystemSettingRepository struct{}

func NewSystemSettingRepository() systemsetting.Repository {
	return &PgSystemSettingRepository{}
}

func (r *PgSystemSettingRepository) Get(ctx context.Context, key systemsetting.Key) (systemsetting.Setting, error) {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return systemsetting.Setting{}, err
	}
	var (
		s         systemsetting.Setting
		updatedBy *string
	)
	err = q.QueryRow(ctx, "SELECT key, value, updated_by, updated_at FROM system_settings WHERE key = $1", string(key)).
		Scan(&s.Key, &s.Value, &updatedBy, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return systemsetting.Setting{}, ErrSettingNotFound
		}
		return systemsetting.Setting{}, err
	}
	s.UpdatedBy = updatedBy
	return s, nil
}

func (r *PgSystemSettingRepository) GetAll(ctx context.Context) ([]systemsetting.Setting, error) {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := q.Query(ctx, "SELECT key, value, updated_by, updated_at FROM system_settings")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []systemsetting.Setting
	for rows.Next() {
		var (
			s         systemsetting.Setting
			updatedBy *string
		)
		if err := rows.Scan(&s.Key, &s.Value, &updatedBy, &s.UpdatedAt); err != nil {
			return nil, err
		}
		s.UpdatedBy = updatedBy
		out = append(out, s)
	}
	return out, rows.Err()
}

// Set upserts key with value and invalidates nothing itself; the caller
// (the settings service) is responsible for evicting the cache entry after
// the write commits, so readers never see a cached value the store does not hold.
func (r *PgSystemSettingRepository) Set(ctx context.Context, key systemsetting.Key, value json.RawMessage, updatedBy *string) error {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, `
		INSERT INTO system_settings (key, value, updated_by, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_by = EXCLUDED.updated_by, updated_at = now()
	`, string(key), value, updatedBy)
	return err
}

func (r *PgSystemSettingRepository) Delete(ctx context.Context, key systemsetting.Key) error {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, "DELETE FROM system_settings WHERE key = $1", string(key))
	return err
}
