package authsvc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/iota-uz/logtide/internal/domain/authprovider"
	"github.com/iota-uz/logtide/internal/domain/oidcstate"
	"github.com/iota-uz/logtide/internal/domain/user"
	"github.com/iota-uz/logtide/internal/infrastructure/cache"
)

// decodeConfig round-trips p's opaque config map through JSON into dest,
// since AuthProvider.Config() returns map[string]any rather than a typed
// struct.
func decodeConfig(raw map[string]any, dest any) error {
	b, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("authsvc: marshal provider config: %w", err)
	}
	if err := json.Unmarshal(b, dest); err != nil {
		return fmt.Errorf("authsvc: decode provider config: %w", err)
	}
	return nil
}

// NewFactory builds the default Factory, constructing the concrete
// Provider for a stored AuthProvider from its Kind and Config.
// insecureOIDCTLS is only ever true in development, for issuers serving a
// self-signed certificate on localhost.
func NewFactory(users user.Repository, states oidcstate.Repository, kv *cache.Client, insecureOIDCTLS bool) Factory {
	return func(ctx context.Context, p authprovider.AuthProvider) (Provider, error) {
		switch p.Kind() {
		case authprovider.KindLocal:
			var cfg authprovider.LocalConfig
			if err := decodeConfig(p.Config(), &cfg); err != nil {
				return nil, err
			}
			return NewLocalProvider(cfg, users), nil

		case authprovider.KindLDAP:
			var cfg authprovider.LDAPConfig
			if err := decodeConfig(p.Config(), &cfg); err != nil {
				return nil, err
			}
			return NewLDAPProvider(cfg), nil

		case authprovider.KindOIDC:
			var cfg authprovider.OIDCConfig
			if err := decodeConfig(p.Config(), &cfg); err != nil {
				return nil, err
			}
			return NewOIDCProvider(p.ID(), cfg, states, kv, insecureOIDCTLS), nil

		default:
			return nil, fmt.Errorf("authsvc: unknown provider kind %s", p.Kind())
		}
	}
}
