package authsvc

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/iota-uz/logtide/internal/domain/authprovider"
	"github.com/iota-uz/logtide/internal/domain/user"
)

// LocalProvider authenticates against the password hash stored directly on
// User. It never supports redirect.
type LocalProvider struct {
	cfg   authprovider.LocalConfig
	users user.Repository
}

func NewLocalProvider(cfg authprovider.LocalConfig, users user.Repository) *LocalProvider {
	return &LocalProvider{cfg: cfg, users: users}
}

func (p *LocalProvider) Authenticate(ctx context.Context, creds Credentials) (AuthenticationResult, error) {
	email := user.Normalize(creds.Username)
	u, err := p.users.GetByEmail(ctx, email)
	if err != nil {
		return failure(ErrCodeInvalidCredentials, "invalid email or password"), nil
	}
	if u.Disabled() {
		return failure(ErrCodeUserDisabled, "account disabled"), nil
	}
	hash, ok := u.PasswordHash()
	if !ok {
		// SSO-provisioned accounts have no local password; don't lump them
		// in with a wrong password.
		return failure(ErrCodeSSOOnly, "this account uses single sign-on; use your organization's login provider"), nil
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(creds.Password)); err != nil {
		return failure(ErrCodeInvalidCredentials, "invalid email or password"), nil
	}
	return AuthenticationResult{
		Success:        true,
		ProviderUserID: u.ID().String(),
		Email:          u.Email(),
		Name:           u.DisplayName(),
	}, nil
}

func (p *LocalProvider) SupportsRedirect() bool { return false }

func (p *LocalProvider) GetAuthorizationUrl(context.Context, string) (string, string, error) {
	return "", "", errors.New("authsvc: local provider does not support redirect")
}

func (p *LocalProvider) HandleCallback(context.Context, CallbackData) (AuthenticationResult, error) {
	return failure(ErrCodeProviderError, "local provider does not support redirect"), nil
}

func (p *LocalProvider) ValidateConfig() error { return nil }

func (p *LocalProvider) TestConnection(context.Context) error { return nil }

func (p *LocalProvider) AllowAutoRegister() bool { return p.cfg.AllowAutoRegister }

// HashPassword is the local-provider counterpart used by the account
// creation/password-change paths, kept alongside the comparison logic it
// mirrors.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
