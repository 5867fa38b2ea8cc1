// Package settings implements the cached SystemSetting key/value store and
// the auth-free bootstrap default user lookup.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/logtide/internal/domain/systemsetting"
	"github.com/iota-uz/logtide/internal/domain/user"
	"github.com/iota-uz/logtide/internal/infrastructure/cache"
)

// ErrUnknownKey is returned when a caller writes a key outside the
// enumerated set in systemsetting.Defaults.
var ErrUnknownKey = errors.New("settings: unknown key")

// ErrNoDefaultUser is returned by GetDefaultUser when auth-free mode is
// configured but no default user has been bootstrapped yet; handlers
// translate this to a 503.
var ErrNoDefaultUser = errors.New("settings: no default user configured")

// cacheTTL is long relative to write frequency: settings change rarely and
// every mutation path invalidates its own key.
const cacheTTL = 10 * time.Minute

type Service struct {
	repo   systemsetting.Repository
	cache  *cache.Client
	users  user.Repository
	logger *logrus.Entry
}

func New(repo systemsetting.Repository, cacheClient *cache.Client, users user.Repository, logger *logrus.Entry) *Service {
	return &Service{repo: repo, cache: cacheClient, users: users, logger: logger}
}

// Get returns the cached or stored value for key, falling back to
// defaultOverride if non-nil, else the built-in default.
func (s *Service) Get(ctx context.Context, key systemsetting.Key, defaultOverride ...any) (any, error) {
	cacheKey := cache.SettingKey(string(key))

	var raw json.RawMessage
	if hit, err := s.cache.GetJSON(ctx, cacheKey, &raw); err == nil && hit {
		var v any
		if err := json.Unmarshal(raw, &v); err == nil {
			return v, nil
		}
	}

	setting, err := s.repo.Get(ctx, key)
	if err == nil {
		var v any
		if jsonErr := json.Unmarshal(setting.Value, &v); jsonErr == nil {
			_ = s.cache.SetJSON(ctx, cacheKey, setting.Value, cacheTTL)
			return v, nil
		}
	}

	if len(defaultOverride) > 0 {
		return defaultOverride[0], nil
	}
	if !systemsetting.Known(key) {
		return nil, ErrUnknownKey
	}
	return systemsetting.Defaults[key], nil
}

// Set writes key=value, rejecting anything outside the enumerated set, and
// invalidates the cache entry only after the store write succeeds, so the
// cache never holds a value the store rejected.
func (s *Service) Set(ctx context.Context, key systemsetting.Key, value any, updatedBy *uuid.UUID) error {
	if !systemsetting.Known(key) {
		return ErrUnknownKey
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("settings: marshal %s: %w", key, err)
	}
	var updatedByStr *string
	if updatedBy != nil {
		s := updatedBy.String()
		updatedByStr = &s
	}
	if err := s.repo.Set(ctx, key, raw, updatedByStr); err != nil {
		return fmt.Errorf("settings: set %s: %w", key, err)
	}
	if err := s.cache.Del(ctx, cache.SettingKey(string(key))); err != nil && s.logger != nil {
		s.logger.WithError(err).WithField("key", key).Warn("settings cache invalidation failed")
	}
	return nil
}

// SetMany skips undefined (nil-map-absent) values and writes the rest.
func (s *Service) SetMany(ctx context.Context, values map[systemsetting.Key]any, updatedBy *uuid.UUID) error {
	for key, value := range values {
		if value == nil {
			continue
		}
		if err := s.Set(ctx, key, value, updatedBy); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes the override for key; subsequent reads return the
// built-in default.
func (s *Service) Delete(ctx context.Context, key systemsetting.Key) error {
	if !systemsetting.Known(key) {
		return ErrUnknownKey
	}
	if err := s.repo.Delete(ctx, key); err != nil {
		return fmt.Errorf("settings: delete %s: %w", key, err)
	}
	return s.cache.Del(ctx, cache.SettingKey(string(key)))
}

// AuthMode reads the cached auth.mode setting.
func (s *Service) AuthMode(ctx context.Context) (systemsetting.AuthMode, error) {
	v, err := s.Get(ctx, systemsetting.KeyAuthMode)
	if err != nil {
		return systemsetting.AuthModeStandard, err
	}
	mode, _ := v.(string)
	if mode == "" {
		return systemsetting.AuthModeStandard, nil
	}
	return systemsetting.AuthMode(mode), nil
}

// SignupEnabled reads the cached auth.signup_enabled setting.
func (s *Service) SignupEnabled(ctx context.Context) (bool, error) {
	v, err := s.Get(ctx, systemsetting.KeySignupEnabled)
	if err != nil {
		return true, err
	}
	b, ok := v.(bool)
	if !ok {
		return true, nil
	}
	return b, nil
}

// GetDefaultUser resolves auth.default_user_id to a live User for
// auth-free mode.
func (s *Service) GetDefaultUser(ctx context.Context) (user.User, error) {
	v, err := s.Get(ctx, systemsetting.KeyDefaultUserID)
	if err != nil {
		return nil, err
	}
	idStr, ok := v.(string)
	if !ok || idStr == "" {
		return nil, ErrNoDefaultUser
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, ErrNoDefaultUser
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, ErrNoDefaultUser
	}
	return u, nil
}

// SetDefaultUser bootstraps auth.default_user_id, used when provisioning
// the very first user in a fresh deployment.
func (s *Service) SetDefaultUser(ctx context.Context, id uuid.UUID) error {
	return s.Set(ctx, systemsetting.KeyDefaultUserID, id.String(), nil)
}
