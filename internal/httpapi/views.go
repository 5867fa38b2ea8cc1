package httpapi

import (
	"time"

	"github.com/google/uuid"

	"github.com/iota-uz/logtide/internal/domain/session"
	"github.com/iota-uz/logtide/internal/domain/user"
)

// userView is the JSON-safe projection of a User; it never exposes the
// password hash.
type userView struct {
	ID          uuid.UUID  `json:"id"`
	Email       string     `json:"email"`
	DisplayName string     `json:"displayName"`
	IsAdmin     bool       `json:"isAdmin"`
	Disabled    bool       `json:"disabled"`
	CreatedAt   time.Time  `json:"createdAt"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
}

func toUserView(u user.User) userView {
	v := userView{
		ID:          u.ID(),
		Email:       u.Email(),
		DisplayName: u.DisplayName(),
		IsAdmin:     u.IsAdmin(),
		Disabled:    u.Disabled(),
		CreatedAt:   u.CreatedAt(),
	}
	if t, ok := u.LastLoginAt(); ok {
		v.LastLoginAt = &t
	}
	return v
}

type sessionView struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func toSessionView(s session.Session) sessionView {
	return sessionView{Token: s.Token(), ExpiresAt: s.ExpiresAt()}
}
