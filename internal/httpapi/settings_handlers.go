package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/iota-uz/logtide/internal/domain/systemsetting"
)

// HandleAdminListSettings implements GET /api/v1/admin/settings:
// returns every enumerated key with its effective value.
func (a *App) HandleAdminListSettings(w http.ResponseWriter, r *http.Request) {
	a.requireAdmin(func(w http.ResponseWriter, r *http.Request, _ ctxUser) {
		out := make(map[string]any, len(systemsetting.Defaults))
		for key := range systemsetting.Defaults {
			v, err := a.Settings.Get(r.Context(), key)
			if err != nil {
				writeErrorDetails(w, http.StatusInternalServerError, "failed to read settings", err.Error())
				return
			}
			out[string(key)] = v
		}
		writeJSON(w, http.StatusOK, out)
	})(w, r)
}

// HandleAdminGetSetting implements GET /api/v1/admin/settings/:key.
func (a *App) HandleAdminGetSetting(w http.ResponseWriter, r *http.Request) {
	a.requireAdmin(func(w http.ResponseWriter, r *http.Request, _ ctxUser) {
		key := systemsetting.Key(mux.Vars(r)["key"])
		if !systemsetting.Known(key) {
			writeError(w, http.StatusNotFound, "unknown setting key")
			return
		}
		v, err := a.Settings.Get(r.Context(), key)
		if err != nil {
			writeErrorDetails(w, http.StatusInternalServerError, "failed to read setting", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"key": key, "value": v})
	})(w, r)
}

type putSettingRequest struct {
	Value any `json:"value"`
}

// HandleAdminPutSetting implements PUT /api/v1/admin/settings/:key.
func (a *App) HandleAdminPutSetting(w http.ResponseWriter, r *http.Request) {
	a.requireAdmin(func(w http.ResponseWriter, r *http.Request, u ctxUser) {
		key := systemsetting.Key(mux.Vars(r)["key"])
		if !systemsetting.Known(key) {
			writeError(w, http.StatusNotFound, "unknown setting key")
			return
		}
		var body putSettingRequest
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := a.Settings.Set(r.Context(), key, body.Value, &u.id); err != nil {
			writeErrorDetails(w, http.StatusInternalServerError, "failed to update setting", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"key": key, "value": body.Value})
	})(w, r)
}

// HandleAdminPatchSettings implements PATCH /api/v1/admin/settings:
// bulk-update, skipping any key whose value is omitted.
func (a *App) HandleAdminPatchSettings(w http.ResponseWriter, r *http.Request) {
	a.requireAdmin(func(w http.ResponseWriter, r *http.Request, u ctxUser) {
		var body map[systemsetting.Key]any
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := a.Settings.SetMany(r.Context(), body, &u.id); err != nil {
			writeErrorDetails(w, http.StatusInternalServerError, "failed to update settings", err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})(w, r)
}

// HandleAdminDeleteSetting implements DELETE /api/v1/admin/settings/:key.
func (a *App) HandleAdminDeleteSetting(w http.ResponseWriter, r *http.Request) {
	a.requireAdmin(func(w http.ResponseWriter, r *http.Request, _ ctxUser) {
		key := systemsetting.Key(mux.Vars(r)["key"])
		if !systemsetting.Known(key) {
			writeError(w, http.StatusNotFound, "unknown setting key")
			return
		}
		if err := a.Settings.Delete(r.Context(), key); err != nil {
			writeErrorDetails(w, http.StatusInternalServerError, "failed to delete setting", err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})(w, r)
}
