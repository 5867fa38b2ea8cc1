package authsvc

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	zoidc "github.com/zitadel/oidc/v3/pkg/oidc"

	"github.com/iota-uz/logtide/internal/domain/authprovider"
	"github.com/iota-uz/logtide/internal/domain/oidcstate"
	"github.com/iota-uz/logtide/internal/infrastructure/cache"
)

// discoveryCacheTTL bounds how long a fetched discovery document is
// reused; issuer metadata changes rarely enough that a 1-hour
// process-local cache avoids a discovery round trip on every login.
const discoveryCacheTTL = time.Hour

var (
	discoveryMu    sync.Mutex
	discoveryCache = map[string]discoveryEntry{}
)

type discoveryEntry struct {
	doc       zoidc.DiscoveryConfiguration
	fetchedAt time.Time
}

func fetchDiscovery(ctx context.Context, issuer string) (zoidc.DiscoveryConfiguration, error) {
	discoveryMu.Lock()
	if e, ok := discoveryCache[issuer]; ok && time.Since(e.fetchedAt) < discoveryCacheTTL {
		discoveryMu.Unlock()
		return e.doc, nil
	}
	discoveryMu.Unlock()

	url := strings.TrimSuffix(issuer, "/") + "/.well-known/openid-configuration"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return zoidc.DiscoveryConfiguration{}, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return zoidc.DiscoveryConfiguration{}, fmt.Errorf("authsvc: oidc discovery: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return zoidc.DiscoveryConfiguration{}, fmt.Errorf("authsvc: oidc discovery: unexpected status %d", resp.StatusCode)
	}

	var doc zoidc.DiscoveryConfiguration
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return zoidc.DiscoveryConfiguration{}, fmt.Errorf("authsvc: oidc discovery: decode: %w", err)
	}

	discoveryMu.Lock()
	discoveryCache[issuer] = discoveryEntry{doc: doc, fetchedAt: time.Now()}
	discoveryMu.Unlock()

	return doc, nil
}

// OIDCProvider implements the authorization-code + PKCE flow against an
// external identity provider. State and the PKCE code
// verifier are persisted through the oidcstate repository (the durable
// store) plus its 5-minute KV mirror in the cache client, and are consumed exactly once on callback.
type OIDCProvider struct {
	providerID  uuid.UUID
	cfg         authprovider.OIDCConfig
	states      oidcstate.Repository
	kv          *cache.Client
	insecureTLS bool
}

func NewOIDCProvider(providerID uuid.UUID, cfg authprovider.OIDCConfig, states oidcstate.Repository, kv *cache.Client, insecureTLS bool) *OIDCProvider {
	cfg.Defaults()
	return &OIDCProvider{providerID: providerID, cfg: cfg, states: states, kv: kv, insecureTLS: insecureTLS}
}

func (p *OIDCProvider) httpClient() *http.Client {
	if !p.insecureTLS {
		return http.DefaultClient
	}
	// Only ever set for localhost issuers in development against a
	// self-signed IdP.
	return &http.Client{Transport: &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}}}
}

func (p *OIDCProvider) oauth2Config(ctx context.Context, redirectURI string) (*oauth2.Config, error) {
	doc, err := fetchDiscovery(ctx, p.cfg.IssuerURL)
	if err != nil {
		return nil, err
	}
	return &oauth2.Config{
		ClientID:     p.cfg.ClientID,
		ClientSecret: p.cfg.ClientSecret,
		RedirectURL:  redirectURI,
		Scopes:       p.cfg.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  doc.AuthorizationEndpoint,
			TokenURL: doc.TokenEndpoint,
		},
	}, nil
}

func (p *OIDCProvider) Authenticate(context.Context, Credentials) (AuthenticationResult, error) {
	return failure(ErrCodeProviderError, "oidc provider requires the redirect flow"), nil
}

func (p *OIDCProvider) SupportsRedirect() bool { return true }

// GetAuthorizationUrl issues a fresh state/nonce/PKCE verifier, stores it
// durably and mirrors it into the KV cache with a 5-minute TTL, then
// returns the authorization endpoint URL.
func (p *OIDCProvider) GetAuthorizationUrl(ctx context.Context, redirectURI string) (string, string, error) {
	oc, err := p.oauth2Config(ctx, redirectURI)
	if err != nil {
		return "", "", err
	}

	state := uuid.NewString()
	nonce := uuid.NewString()
	verifier := oauth2.GenerateVerifier()

	record := oidcstate.State{
		State:        state,
		Nonce:        nonce,
		ProviderID:   p.providerID.String(),
		RedirectURI:  redirectURI,
		CodeVerifier: verifier,
		CreatedAt:    time.Now(),
	}
	if err := p.states.Create(ctx, record); err != nil {
		return "", "", fmt.Errorf("authsvc: persist oidc state: %w", err)
	}
	if err := p.kv.SetJSON(ctx, cache.OIDCStateKey(state), record, oidcstate.TTL); err != nil {
		return "", "", fmt.Errorf("authsvc: mirror oidc state: %w", err)
	}

	authURL := oc.AuthCodeURL(state,
		oauth2.S256ChallengeOption(verifier),
		oauth2.SetAuthURLParam("nonce", nonce),
	)
	return authURL, state, nil
}

// HandleCallback consumes the single-use state (KV mirror first, durable
// store as fallback), exchanges the code, and resolves the caller's
// identity via the userinfo endpoint.
func (p *OIDCProvider) HandleCallback(ctx context.Context, data CallbackData) (AuthenticationResult, error) {
	record, err := p.consumeState(ctx, data.State)
	if err != nil {
		return failure(ErrCodeInvalidState, "state not found, expired, or already used"), nil
	}

	oc, err := p.oauth2Config(ctx, record.RedirectURI)
	if err != nil {
		return failure(ErrCodeProviderUnavailable, err.Error()), nil
	}

	httpCtx := context.WithValue(ctx, oauth2.HTTPClient, p.httpClient())
	token, err := oc.Exchange(httpCtx, data.Code, oauth2.VerifierOption(record.CodeVerifier))
	if err != nil {
		return failure(ErrCodeProviderError, "code exchange failed"), nil
	}

	if err := verifyNonce(token, record.Nonce); err != nil {
		return failure(ErrCodeInvalidState, "nonce mismatch"), nil
	}

	doc, err := fetchDiscovery(ctx, p.cfg.IssuerURL)
	if err != nil {
		return failure(ErrCodeProviderUnavailable, err.Error()), nil
	}
	if doc.UserinfoEndpoint == "" {
		return failure(ErrCodeProviderError, "issuer does not publish a userinfo endpoint"), nil
	}

	claims, err := p.userinfo(httpCtx, doc.UserinfoEndpoint, token)
	if err != nil {
		return failure(ErrCodeProviderError, err.Error()), nil
	}

	subject, _ := claims["sub"].(string)
	email, _ := claims[p.cfg.EmailClaim].(string)
	if emailVerified, ok := claims["email_verified"].(bool); ok && !emailVerified {
		return failure(ErrCodeEmailNotVerified, "email address is not verified with the identity provider"), nil
	}
	if email == "" {
		return failure(ErrCodeMissingEmail, "oidc claims did not include an email address"), nil
	}
	name, _ := claims[p.cfg.NameClaim].(string)

	return AuthenticationResult{
		Success:        true,
		ProviderUserID: subject,
		Email:          email,
		Name:           name,
		Metadata:       claims,
	}, nil
}

// verifyNonce binds the token response back to the authorization request:
// the id_token's nonce claim must equal the one stored with the state. The
// claim is read without signature verification because identity itself is
// resolved via the userinfo endpoint over TLS, not from the id_token.
func verifyNonce(token *oauth2.Token, expected string) error {
	raw, _ := token.Extra("id_token").(string)
	if raw == "" {
		return fmt.Errorf("authsvc: token response has no id_token")
	}
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return fmt.Errorf("authsvc: malformed id_token")
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return fmt.Errorf("authsvc: decode id_token payload: %w", err)
	}
	var claims struct {
		Nonce string `json:"nonce"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return fmt.Errorf("authsvc: parse id_token claims: %w", err)
	}
	if claims.Nonce != expected {
		return fmt.Errorf("authsvc: id_token nonce does not match stored nonce")
	}
	return nil
}

func (p *OIDCProvider) userinfo(ctx context.Context, endpoint string, token *oauth2.Token) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	token.SetAuthHeader(req)

	client := p.httpClient()
	if hc, ok := ctx.Value(oauth2.HTTPClient).(*http.Client); ok {
		client = hc
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("authsvc: userinfo request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("authsvc: userinfo returned status %d", resp.StatusCode)
	}

	var claims map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&claims); err != nil {
		return nil, fmt.Errorf("authsvc: decode userinfo: %w", err)
	}
	return claims, nil
}

// consumeState reads and deletes the state record, preferring the KV
// mirror (fast path) and falling back to the durable store so a callback
// still succeeds if the mirror entry already expired but the 5-minute
// durable window hasn't.
func (p *OIDCProvider) consumeState(ctx context.Context, state string) (oidcstate.State, error) {
	var record oidcstate.State
	if raw, ok, err := p.kv.GetDel(ctx, cache.OIDCStateKey(state)); err == nil && ok {
		if jsonErr := json.Unmarshal([]byte(raw), &record); jsonErr == nil {
			_ = p.states.Delete(ctx, state)
			if record.Expired(time.Now()) {
				return oidcstate.State{}, fmt.Errorf("authsvc: oidc state expired")
			}
			return record, nil
		}
	}

	record, err := p.states.GetByState(ctx, state)
	if err != nil {
		return oidcstate.State{}, err
	}
	_ = p.states.Delete(ctx, state)
	if record.Expired(time.Now()) {
		return oidcstate.State{}, fmt.Errorf("authsvc: oidc state expired")
	}
	return record, nil
}

func (p *OIDCProvider) ValidateConfig() error {
	return p.cfg.Validate()
}

// TestConnection fetches discovery metadata to confirm the issuer is
// reachable and well-formed, for the admin "test connection" action.
func (p *OIDCProvider) TestConnection(ctx context.Context) error {
	doc, err := fetchDiscovery(ctx, p.cfg.IssuerURL)
	if err != nil {
		return err
	}
	if doc.AuthorizationEndpoint == "" || doc.TokenEndpoint == "" {
		return fmt.Errorf("authsvc: issuer metadata is missing required endpoints")
	}
	return nil
}

func (p *OIDCProvider) AllowAutoRegister() bool { return p.cfg.AllowAutoRegister }
