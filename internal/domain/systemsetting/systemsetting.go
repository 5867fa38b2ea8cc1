// Package systemsetting models the enumerated SystemSetting key/value
// store. Only the keys declared in Keys are recognized; writes
// to anything else are rejected by the settings service.
package systemsetting

import (
	"context"
	"encoding/json"
	"time"
)

// Key is a recognized system setting name.
type Key string

const (
	KeySignupEnabled   Key = "auth.signup_enabled"
	KeyAuthMode        Key = "auth.mode"
	KeyDefaultUserID   Key = "auth.default_user_id"
)

// AuthMode is the value domain of KeyAuthMode.
type AuthMode string

const (
	AuthModeStandard AuthMode = "standard"
	AuthModeNone     AuthMode = "none"
)

// Defaults holds the built-in default value for every recognized key.
var Defaults = map[Key]any{
	KeySignupEnabled: true,
	KeyAuthMode:      AuthModeStandard,
	KeyDefaultUserID: nil,
}

// Known reports whether key is one of the enumerated settings.
func Known(key Key) bool {
	_, ok := Defaults[key]
	return ok
}

// Setting is one persisted key/value row.
type Setting struct {
	Key       Key
	Value     json.RawMessage
	UpdatedBy *string
	UpdatedAt time.Time
}

type Repository interface {
	Get(ctx context.Context, key Key) (Setting, error)
	GetAll(ctx context.Context) ([]Setting, error)
	Set(ctx context.Context, key Key, value json.RawMessage, updatedBy *string) error
	Delete(ctx context.Context, key Key) error
}
