package authsvc

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"

	"github.com/iota-uz/logtide/internal/domain/authprovider"
)

// LDAPProvider authenticates against a directory using the standard
// bind-search-rebind pattern: bind as a service account, search for the
// entry matching SearchFilter with {{username}} substituted, then rebind
// as that entry's DN with the supplied password.
type LDAPProvider struct {
	cfg authprovider.LDAPConfig
}

func NewLDAPProvider(cfg authprovider.LDAPConfig) *LDAPProvider {
	return &LDAPProvider{cfg: cfg}
}

func (p *LDAPProvider) dial() (*ldap.Conn, error) {
	var conn *ldap.Conn
	var err error
	if strings.HasPrefix(p.cfg.URL, "ldaps://") {
		conn, err = ldap.DialURL(p.cfg.URL, ldap.DialWithTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12}))
	} else {
		conn, err = ldap.DialURL(p.cfg.URL)
	}
	if err != nil {
		return nil, fmt.Errorf("authsvc: ldap dial: %w", err)
	}
	return conn, nil
}

func (p *LDAPProvider) Authenticate(ctx context.Context, creds Credentials) (AuthenticationResult, error) {
	conn, err := p.dial()
	if err != nil {
		return failure(ErrCodeProviderUnavailable, err.Error()), nil
	}
	defer conn.Close()

	if p.cfg.BindDN != "" {
		if err := conn.Bind(p.cfg.BindDN, p.cfg.BindPassword); err != nil {
			return failure(ErrCodeProviderError, "ldap bind failed"), nil
		}
	}

	filter := strings.ReplaceAll(p.cfg.SearchFilter, "{{username}}", ldap.EscapeFilter(creds.Username))
	searchReq := ldap.NewSearchRequest(
		p.cfg.BaseDN,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 1, 0, false,
		filter,
		[]string{"dn", "mail", "cn", "displayName"},
		nil,
	)

	result, err := conn.Search(searchReq)
	if err != nil {
		return failure(ErrCodeProviderError, "ldap search failed"), nil
	}
	if len(result.Entries) != 1 {
		return failure(ErrCodeInvalidCredentials, "invalid username or password"), nil
	}
	entry := result.Entries[0]

	if err := conn.Bind(entry.DN, creds.Password); err != nil {
		return failure(ErrCodeInvalidCredentials, "invalid username or password"), nil
	}

	email := entry.GetAttributeValue("mail")
	name := entry.GetAttributeValue("displayName")
	if name == "" {
		name = entry.GetAttributeValue("cn")
	}
	if email == "" {
		return failure(ErrCodeMissingEmail, "ldap entry has no mail attribute"), nil
	}

	return AuthenticationResult{
		Success:        true,
		ProviderUserID: entry.DN,
		Email:          email,
		Name:           name,
	}, nil
}

func (p *LDAPProvider) SupportsRedirect() bool { return false }

func (p *LDAPProvider) GetAuthorizationUrl(context.Context, string) (string, string, error) {
	return "", "", fmt.Errorf("authsvc: ldap provider does not support redirect")
}

func (p *LDAPProvider) HandleCallback(context.Context, CallbackData) (AuthenticationResult, error) {
	return failure(ErrCodeProviderError, "ldap provider does not support redirect"), nil
}

func (p *LDAPProvider) ValidateConfig() error {
	return p.cfg.Validate()
}

// TestConnection exercises a bind without authenticating any user, for the
// admin "test connection" action.
func (p *LDAPProvider) TestConnection(ctx context.Context) error {
	conn, err := p.dial()
	if err != nil {
		return err
	}
	defer conn.Close()
	if p.cfg.BindDN == "" {
		return nil
	}
	return conn.Bind(p.cfg.BindDN, p.cfg.BindPassword)
}

func (p *LDAPProvider) AllowAutoRegister() bool { return p.cfg.AllowAutoRegister }
