package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/gorilla/mux"

	"github.com/iota-uz/logtide/internal/domain/authprovider"
)

// adminProviderView exposes a provider's typed configuration with secrets
// masked.
type adminProviderView struct {
	ID           uuid.UUID      `json:"id"`
	Kind         authprovider.Kind `json:"kind"`
	Slug         string         `json:"slug"`
	DisplayName  string         `json:"displayName"`
	Enabled      bool           `json:"enabled"`
	IsDefault    bool           `json:"isDefault"`
	DisplayOrder int            `json:"displayOrder"`
	Config       map[string]any `json:"config"`
}

func maskedConfig(p authprovider.AuthProvider) (map[string]any, error) {
	raw := p.Config()
	switch p.Kind() {
	case authprovider.KindOIDC:
		var cfg authprovider.OIDCConfig
		if err := remarshal(raw, &cfg); err != nil {
			return nil, err
		}
		return toMap(cfg.Mask())
	case authprovider.KindLDAP:
		var cfg authprovider.LDAPConfig
		if err := remarshal(raw, &cfg); err != nil {
			return nil, err
		}
		return toMap(cfg.Mask())
	default:
		return raw, nil
	}
}

func remarshal(raw map[string]any, dest any) error {
	b, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dest)
}

func toMap(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func toAdminProviderView(p authprovider.AuthProvider) (adminProviderView, error) {
	cfg, err := maskedConfig(p)
	if err != nil {
		return adminProviderView{}, err
	}
	return adminProviderView{
		ID:           p.ID(),
		Kind:         p.Kind(),
		Slug:         p.Slug(),
		DisplayName:  p.DisplayName(),
		Enabled:      p.Enabled(),
		IsDefault:    p.IsDefault(),
		DisplayOrder: p.DisplayOrder(),
		Config:       cfg,
	}, nil
}

// HandleAdminListProviders implements GET /api/v1/admin/auth/providers.
func (a *App) HandleAdminListProviders(w http.ResponseWriter, r *http.Request) {
	a.requireAdmin(func(w http.ResponseWriter, r *http.Request, _ ctxUser) {
		providers, err := a.Providers.List(r.Context())
		if err != nil {
			writeErrorDetails(w, http.StatusInternalServerError, "failed to list providers", err.Error())
			return
		}
		views := make([]adminProviderView, 0, len(providers))
		for _, p := range providers {
			v, err := toAdminProviderView(p)
			if err != nil {
				writeErrorDetails(w, http.StatusInternalServerError, "failed to mask provider config", err.Error())
				return
			}
			views = append(views, v)
		}
		writeJSON(w, http.StatusOK, views)
	})(w, r)
}

type createProviderRequest struct {
	Kind         authprovider.Kind `json:"kind"`
	Slug         string            `json:"slug"`
	DisplayName  string            `json:"displayName"`
	DisplayOrder int               `json:"displayOrder"`
	Config       map[string]any    `json:"config"`
}

// HandleAdminCreateProvider implements POST /api/v1/admin/auth/providers.
func (a *App) HandleAdminCreateProvider(w http.ResponseWriter, r *http.Request) {
	a.requireAdmin(func(w http.ResponseWriter, r *http.Request, _ ctxUser) {
		var body createProviderRequest
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := validateProviderConfig(body.Kind, body.Config); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		p, err := authprovider.New(body.Kind, body.Slug, body.DisplayName, body.Config,
			authprovider.WithDisplayOrder(body.DisplayOrder))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := a.Providers.Create(r.Context(), p); err != nil {
			writeErrorDetails(w, http.StatusInternalServerError, "failed to create provider", err.Error())
			return
		}
		view, err := toAdminProviderView(p)
		if err != nil {
			writeErrorDetails(w, http.StatusInternalServerError, "failed to mask provider config", err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, view)
	})(w, r)
}

func validateProviderConfig(kind authprovider.Kind, raw map[string]any) error {
	switch kind {
	case authprovider.KindOIDC:
		var cfg authprovider.OIDCConfig
		if err := remarshal(raw, &cfg); err != nil {
			return err
		}
		cfg.Defaults()
		return cfg.Validate()
	case authprovider.KindLDAP:
		var cfg authprovider.LDAPConfig
		if err := remarshal(raw, &cfg); err != nil {
			return err
		}
		return cfg.Validate()
	case authprovider.KindLocal:
		return nil
	default:
		return fmt.Errorf("httpapi: unknown provider kind %s", kind)
	}
}

type updateProviderRequest struct {
	DisplayName  *string        `json:"displayName"`
	Enabled      *bool          `json:"enabled"`
	DisplayOrder *int           `json:"displayOrder"`
	Config       map[string]any `json:"config"`
}

// HandleAdminUpdateProvider implements PUT
// /api/v1/admin/auth/providers/:id.
func (a *App) HandleAdminUpdateProvider(w http.ResponseWriter, r *http.Request) {
	a.requireAdmin(func(w http.ResponseWriter, r *http.Request, _ ctxUser) {
		id, err := uuid.Parse(mux.Vars(r)["id"])
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid provider id")
			return
		}
		existing, err := a.Providers.GetByID(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusNotFound, "provider not found")
			return
		}

		var body updateProviderRequest
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		opts := []authprovider.Option{authprovider.WithID(id), authprovider.WithDefault(existing.IsDefault())}

		enabled := existing.Enabled()
		if body.Enabled != nil {
			if existing.IsDefault() && !*body.Enabled {
				writeError(w, http.StatusBadRequest, authprovider.ErrLocalImmutable.Error())
				return
			}
			enabled = *body.Enabled
		}
		opts = append(opts, authprovider.WithEnabled(enabled))

		order := existing.DisplayOrder()
		if body.DisplayOrder != nil {
			order = *body.DisplayOrder
		}
		opts = append(opts, authprovider.WithDisplayOrder(order))

		displayName := existing.DisplayName()
		if body.DisplayName != nil {
			displayName = *body.DisplayName
		}

		config := existing.Config()
		if body.Config != nil {
			if err := validateProviderConfig(existing.Kind(), body.Config); err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			config = mergeConfig(existing.Kind(), config, body.Config)
		}

		updated, err := authprovider.New(existing.Kind(), existing.Slug(), displayName, config, opts...)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := a.Providers.Update(r.Context(), updated); err != nil {
			writeErrorDetails(w, http.StatusInternalServerError, "failed to update provider", err.Error())
			return
		}
		view, err := toAdminProviderView(updated)
		if err != nil {
			writeErrorDetails(w, http.StatusInternalServerError, "failed to mask provider config", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, view)
	})(w, r)
}

// mergeConfig re-applies any field the client left masked (••••••••) from
// the stored config, so a PUT that doesn't intend to rotate a secret
// doesn't clobber it with the mask string.
func mergeConfig(kind authprovider.Kind, stored, incoming map[string]any) map[string]any {
	secretField := ""
	switch kind {
	case authprovider.KindOIDC:
		secretField = "clientSecret"
	case authprovider.KindLDAP:
		secretField = "bindPassword"
	default:
		return incoming
	}
	if v, ok := incoming[secretField]; ok {
		if s, ok := v.(string); ok && s == "••••••••" {
			incoming[secretField] = stored[secretField]
		}
	}
	return incoming
}

// HandleAdminDeleteProvider implements DELETE
// /api/v1/admin/auth/providers/:id.
func (a *App) HandleAdminDeleteProvider(w http.ResponseWriter, r *http.Request) {
	a.requireAdmin(func(w http.ResponseWriter, r *http.Request, _ ctxUser) {
		id, err := uuid.Parse(mux.Vars(r)["id"])
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid provider id")
			return
		}
		p, err := a.Providers.GetByID(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusNotFound, "provider not found")
			return
		}
		if p.IsDefault() {
			writeError(w, http.StatusBadRequest, authprovider.ErrLocalImmutable.Error())
			return
		}
		linked, err := a.Providers.LinkedUserCount(r.Context(), id)
		if err != nil {
			writeErrorDetails(w, http.StatusInternalServerError, "failed to check linked users", err.Error())
			return
		}
		if linked > 0 {
			writeError(w, http.StatusBadRequest, authprovider.ErrHasLinkedUsers.Error())
			return
		}
		if err := a.Providers.Delete(r.Context(), id); err != nil {
			writeErrorDetails(w, http.StatusInternalServerError, "failed to delete provider", err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})(w, r)
}

// HandleAdminTestProvider implements POST
// /api/v1/admin/auth/providers/:id/test: builds a live Provider from
// the stored config and reports whether construction succeeds, a cheap
// connectivity/config sanity check without performing a real login.
func (a *App) HandleAdminTestProvider(w http.ResponseWriter, r *http.Request) {
	a.requireAdmin(func(w http.ResponseWriter, r *http.Request, _ ctxUser) {
		id, err := uuid.Parse(mux.Vars(r)["id"])
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid provider id")
			return
		}
		p, err := a.Providers.GetByID(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusNotFound, "provider not found")
			return
		}
		if a.ProviderFactory == nil {
			writeError(w, http.StatusServiceUnavailable, "provider factory not configured")
			return
		}
		if _, err := a.ProviderFactory(r.Context(), p); err != nil {
			writeJSON(w, http.StatusOK, map[string]any{"ok": false, "error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})(w, r)
}
