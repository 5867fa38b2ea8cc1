package httpapi

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/uuid"

	"github.com/gorilla/mux"

	"github.com/iota-uz/logtide/internal/domain/authprovider"
	"github.com/iota-uz/logtide/internal/services/authsvc"
)

// providerView is the public shape of an AuthProvider returned by
// GET /api/v1/auth/providers.
type providerView struct {
	ID               uuid.UUID `json:"id"`
	Type             string    `json:"type"`
	Name             string    `json:"name"`
	Slug             string    `json:"slug"`
	Icon             string    `json:"icon"`
	IsDefault        bool      `json:"isDefault"`
	DisplayOrder     int       `json:"displayOrder"`
	SupportsRedirect bool      `json:"supportsRedirect"`
}

func toProviderView(p authprovider.AuthProvider) providerView {
	return providerView{
		ID:               p.ID(),
		Type:             string(p.Kind()),
		Name:             p.DisplayName(),
		Slug:             p.Slug(),
		Icon:             string(p.Kind()),
		IsDefault:        p.IsDefault(),
		DisplayOrder:     p.DisplayOrder(),
		SupportsRedirect: p.Kind() == authprovider.KindOIDC,
	}
}

// HandleListProviders implements GET /api/v1/auth/providers (public).
func (a *App) HandleListProviders(w http.ResponseWriter, r *http.Request) {
	providers, err := a.Auth.ListProviders(r.Context())
	if err != nil {
		writeErrorDetails(w, http.StatusInternalServerError, "failed to list providers", err.Error())
		return
	}
	views := make([]providerView, 0, len(providers))
	for _, p := range providers {
		views = append(views, toProviderView(p))
	}
	writeJSON(w, http.StatusOK, views)
}

// HandleAuthConfig implements GET /api/v1/auth/config (public).
func (a *App) HandleAuthConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	mode, err := a.Settings.AuthMode(ctx)
	if err != nil {
		writeErrorDetails(w, http.StatusInternalServerError, "failed to read auth config", err.Error())
		return
	}
	signup, err := a.Settings.SignupEnabled(ctx)
	if err != nil {
		writeErrorDetails(w, http.StatusInternalServerError, "failed to read auth config", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"authMode":       mode,
		"signupEnabled":  signup,
		"requiresLogin":  string(mode) != "none",
	})
}

// HandleAuthorize implements GET /api/v1/auth/providers/:slug/authorize.
func (a *App) HandleAuthorize(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["slug"]
	redirectURI := r.URL.Query().Get("redirect_uri")
	if redirectURI == "" {
		writeError(w, http.StatusBadRequest, "redirect_uri is required")
		return
	}

	authURL, err := a.Auth.BeginRedirect(r.Context(), slug, redirectURI)
	if err != nil {
		status, msg := authErrorStatus(err)
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"url":      authURL,
		"provider": slug,
	})
}

// HandleCallback implements GET /api/v1/auth/providers/:slug/callback:
// on success, 302 to the frontend with the issued session token; on
// failure, 302 to the frontend's login page with an error.
func (a *App) HandleCallback(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["slug"]
	q := r.URL.Query()

	sess, isNew, err := a.Auth.CompleteRedirect(r.Context(), slug, authsvc.CallbackData{
		Code:  q.Get("code"),
		State: q.Get("state"),
	}, clientIP(r), r.UserAgent())
	if err != nil {
		redirectTo := a.Config.Frontend.URL + "/login?error=" + url.QueryEscape(err.Error())
		http.Redirect(w, r, redirectTo, http.StatusFound)
		return
	}

	redirectTo := a.Config.Frontend.URL + "/auth/callback?token=" + url.QueryEscape(sess.Token()) +
		"&expires=" + url.QueryEscape(sess.ExpiresAt().Format("2006-01-02T15:04:05Z07:00")) +
		"&new_user=" + strconv.FormatBool(isNew)
	http.Redirect(w, r, redirectTo, http.StatusFound)
}

// HandleProviderLogin implements POST /api/v1/auth/providers/:slug/login
// (local/LDAP direct-credential login).
func (a *App) HandleProviderLogin(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["slug"]

	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess, isNew, err := a.Auth.Login(r.Context(), slug, authsvc.Credentials{
		Username: body.Username,
		Password: body.Password,
	}, clientIP(r), r.UserAgent())
	if err != nil {
		status, msg := authErrorStatus(err)
		writeError(w, status, msg)
		return
	}

	u, err := a.Users.GetByID(r.Context(), sess.UserID())
	if err != nil {
		writeErrorDetails(w, http.StatusInternalServerError, "failed to load user", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":      toUserView(u),
		"session":   toSessionView(sess),
		"isNewUser": isNew,
	})
}

// HandleLogout implements the session-token invalidation path.
func (a *App) HandleLogout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "missing session token")
		return
	}
	if err := a.Auth.Logout(r.Context(), token); err != nil {
		writeErrorDetails(w, http.StatusInternalServerError, "logout failed", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func authErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, authsvc.ErrProviderNotFound):
		return http.StatusBadRequest, "provider not found"
	case errors.Is(err, authsvc.ErrProviderDisabled):
		return http.StatusBadRequest, "provider is disabled"
	case errors.Is(err, authsvc.ErrAutoRegisterDisabled):
		return http.StatusBadRequest, "auto-registration is disabled for this provider"
	case errors.Is(err, authsvc.ErrSignupDisabled):
		return http.StatusBadRequest, "signup disabled"
	case errors.Is(err, authsvc.ErrIdentityTaken):
		return http.StatusBadRequest, "identity already linked to another user"
	case errors.Is(err, authsvc.ErrLastIdentity):
		return http.StatusBadRequest, "cannot unlink the only remaining identity"
	default:
		return http.StatusBadRequest, err.Error()
	}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	return r.RemoteAddr
}
