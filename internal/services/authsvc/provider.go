// Package authsvc implements the pluggable multi-provider authentication
// and identity-linking subsystem: local/OIDC/LDAP provider
// variants behind one interface, OIDC state/PKCE handling, user
// provisioning, identity linking, and sessions.
package authsvc

import "context"

// ErrorCode enumerates the typed reasons AuthenticationResult.Success can
// be false, translated to HTTP responses by the route layer.
type ErrorCode string

const (
	ErrCodeInvalidCredentials   ErrorCode = "INVALID_CREDENTIALS"
	ErrCodeSSOOnly              ErrorCode = "SSO_ONLY"
	ErrCodeUserDisabled         ErrorCode = "USER_DISABLED"
	ErrCodeProviderUnavailable  ErrorCode = "PROVIDER_UNAVAILABLE"
	ErrCodeProviderError        ErrorCode = "PROVIDER_ERROR"
	ErrCodeInvalidState         ErrorCode = "INVALID_STATE"
	ErrCodeMissingEmail         ErrorCode = "MISSING_EMAIL"
	ErrCodeEmailNotVerified     ErrorCode = "EMAIL_NOT_VERIFIED"
	ErrCodeAutoRegisterDisabled ErrorCode = "AUTO_REGISTER_DISABLED"
	ErrCodeAccountLocked        ErrorCode = "ACCOUNT_LOCKED"
)

// AuthenticationResult is the common return shape of every provider
// variant's authenticate/callback path.
type AuthenticationResult struct {
	Success        bool
	ProviderUserID string
	Email          string
	Name           string
	Metadata       map[string]any
	Error          string
	ErrorCode      ErrorCode
}

func failure(code ErrorCode, msg string) AuthenticationResult {
	return AuthenticationResult{Success: false, Error: msg, ErrorCode: code}
}

// Credentials carries whatever a provider variant needs to authenticate a
// user directly (local email/password, LDAP username/password). Redirect
// providers (OIDC) don't use this path; they use GetAuthorizationUrl /
// HandleCallback instead.
type Credentials struct {
	Username string
	Password string
}

// CallbackData is what an OIDC redirect callback hands back to
// HandleCallback.
type CallbackData struct {
	Code  string
	State string
}

// Provider is the capability set every auth provider variant exposes:
// a tagged variant with method dispatch rather than runtime shape checks
// on an untyped config.
type Provider interface {
	// Authenticate runs direct-credential authentication (local, LDAP).
	// Redirect-only providers (OIDC) return PROVIDER_ERROR.
	Authenticate(ctx context.Context, creds Credentials) (AuthenticationResult, error)

	// SupportsRedirect reports whether GetAuthorizationUrl/HandleCallback
	// are meaningful for this provider.
	SupportsRedirect() bool

	// GetAuthorizationUrl builds the redirect target for an
	// authorization-code flow; only implemented by redirect-capable
	// providers.
	GetAuthorizationUrl(ctx context.Context, redirectURI string) (url, state string, err error)

	// HandleCallback completes a redirect flow.
	HandleCallback(ctx context.Context, data CallbackData) (AuthenticationResult, error)

	// ValidateConfig reports whether the provider's stored configuration
	// is well-formed, without making a network call.
	ValidateConfig() error

	// TestConnection exercises the provider's live dependency (an LDAP
	// bind, an OIDC discovery fetch) for the admin "test connection"
	// action.
	TestConnection(ctx context.Context) error

	// AllowAutoRegister reports whether a first-time login against this
	// provider may create a new User.
	AllowAutoRegister() bool
}
