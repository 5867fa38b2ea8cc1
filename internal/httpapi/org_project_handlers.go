package httpapi

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/iota-uz/logtide/internal/domain/apikey"
	"github.com/iota-uz/logtide/internal/domain/organization"
	"github.com/iota-uz/logtide/internal/domain/project"
)

type organizationView struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	OwnerID   uuid.UUID `json:"ownerId"`
	CreatedAt time.Time `json:"createdAt"`
}

func toOrganizationView(o organization.Organization) organizationView {
	return organizationView{ID: o.ID(), Name: o.Name(), Slug: o.Slug(), OwnerID: o.OwnerID(), CreatedAt: o.CreatedAt()}
}

// HandleListOrganizations lists organizations the caller belongs to. The
// /organizations/* prefix is exempt from API-key auth, but listing
// still requires a session).
func (a *App) HandleListOrganizations(w http.ResponseWriter, r *http.Request) {
	a.requireSession(func(w http.ResponseWriter, r *http.Request, u ctxUser) {
		orgs, err := a.Organizations.GetPaginated(r.Context(), &organization.FindParams{Limit: 100})
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to list organizations")
			return
		}
		views := make([]organizationView, 0, len(orgs))
		for _, o := range orgs {
			member, err := a.Organizations.IsMember(r.Context(), o.ID(), u.id)
			if err == nil && member {
				views = append(views, toOrganizationView(o))
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"organizations": views})
	})(w, r)
}

type createOrganizationRequest struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// HandleCreateOrganization creates an organization with the caller as owner
// and implicit first member.
func (a *App) HandleCreateOrganization(w http.ResponseWriter, r *http.Request) {
	a.requireSession(func(w http.ResponseWriter, r *http.Request, u ctxUser) {
		var req createOrganizationRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Name == "" || req.Slug == "" {
			writeError(w, http.StatusBadRequest, "name and slug are required")
			return
		}
		org := organization.New(req.Name, req.Slug, u.id)
		if err := a.Organizations.Create(r.Context(), org); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to create organization")
			return
		}
		writeJSON(w, http.StatusCreated, toOrganizationView(org))
	})(w, r)
}

type addMemberRequest struct {
	UserID uuid.UUID `json:"userId"`
	Role   string    `json:"role"`
}

// HandleAddOrganizationMember adds a member; only existing members may
// invite new ones").
func (a *App) HandleAddOrganizationMember(w http.ResponseWriter, r *http.Request) {
	orgID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid organization id")
		return
	}
	if _, ok := a.requireOrgMember(orgID, w, r); !ok {
		return
	}
	var req addMemberRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	role := organization.RoleMember
	if req.Role == string(organization.RoleOwner) {
		role = organization.RoleOwner
	}
	member := organization.Member{UserID: req.UserID, OrganizationID: orgID, Role: role, CreatedAt: time.Now()}
	if err := a.Organizations.AddMember(r.Context(), member); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to add member")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "added"})
}

// HandleRemoveOrganizationMember removes a member from an organization.
func (a *App) HandleRemoveOrganizationMember(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	orgID, err := uuid.Parse(vars["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid organization id")
		return
	}
	targetID, err := uuid.Parse(vars["userId"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	if _, ok := a.requireOrgMember(orgID, w, r); !ok {
		return
	}
	if err := a.Organizations.RemoveMember(r.Context(), orgID, targetID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to remove member")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

type projectView struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organizationId"`
	Name           string    `json:"name"`
	CreatedAt      time.Time `json:"createdAt"`
}

func toProjectView(p project.Project) projectView {
	return projectView{ID: p.ID(), OrganizationID: p.OrganizationID(), Name: p.Name(), CreatedAt: p.CreatedAt()}
}

// HandleListProjects lists projects for the organization named by the
// `organizationId` query parameter.
func (a *App) HandleListProjects(w http.ResponseWriter, r *http.Request) {
	orgID, err := uuid.Parse(r.URL.Query().Get("organizationId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "organizationId is required")
		return
	}
	if _, ok := a.requireOrgMember(orgID, w, r); !ok {
		return
	}
	projects, err := a.Projects.GetPaginated(r.Context(), &project.FindParams{OrganizationID: orgID, Limit: 100})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list projects")
		return
	}
	views := make([]projectView, 0, len(projects))
	for _, p := range projects {
		views = append(views, toProjectView(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": views})
}

type createProjectRequest struct {
	OrganizationID uuid.UUID `json:"organizationId"`
	Name           string    `json:"name"`
}

// HandleCreateProject creates a project within an organization the caller
// is a member of.
func (a *App) HandleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if _, ok := a.requireOrgMember(req.OrganizationID, w, r); !ok {
		return
	}
	p := project.New(req.OrganizationID, req.Name)
	if err := a.Projects.Create(r.Context(), p); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create project")
		return
	}
	writeJSON(w, http.StatusCreated, toProjectView(p))
}

// HandleDeleteProject deletes a project after checking the caller is a
// member of its owning organization.
func (a *App) HandleDeleteProject(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid project id")
		return
	}
	orgID, err := a.projectOrgID(r.Context(), projectID)
	if err != nil {
		writeError(w, http.StatusNotFound, "project not found")
		return
	}
	if _, ok := a.requireOrgMember(orgID, w, r); !ok {
		return
	}
	if err := a.Projects.Delete(r.Context(), projectID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete project")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type apiKeyView struct {
	ID          uuid.UUID  `json:"id"`
	ProjectID   uuid.UUID  `json:"projectId"`
	DisplayName string     `json:"displayName"`
	Revoked     bool       `json:"revoked"`
	LastUsedAt  *time.Time `json:"lastUsedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

func toApiKeyView(k apikey.ApiKey) apiKeyView {
	v := apiKeyView{ID: k.ID(), ProjectID: k.ProjectID(), DisplayName: k.DisplayName(), Revoked: k.Revoked(), CreatedAt: k.CreatedAt()}
	if t, ok := k.LastUsedAt(); ok {
		v.LastUsedAt = &t
	}
	return v
}

// HandleListApiKeys lists API keys for a project, never including the
// plaintext (only ever shown once, at creation).
func (a *App) HandleListApiKeys(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid project id")
		return
	}
	orgID, err := a.projectOrgID(r.Context(), projectID)
	if err != nil {
		writeError(w, http.StatusNotFound, "project not found")
		return
	}
	if _, ok := a.requireOrgMember(orgID, w, r); !ok {
		return
	}
	keys, err := a.ApiKeys.ListByProject(r.Context(), projectID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list api keys")
		return
	}
	views := make([]apiKeyView, 0, len(keys))
	for _, k := range keys {
		views = append(views, toApiKeyView(k))
	}
	writeJSON(w, http.StatusOK, map[string]any{"apiKeys": views})
}

type createApiKeyRequest struct {
	DisplayName string `json:"displayName"`
}

// HandleCreateApiKey generates a new API key and returns its plaintext
// exactly once; only the hash is stored.
func (a *App) HandleCreateApiKey(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid project id")
		return
	}
	orgID, err := a.projectOrgID(r.Context(), projectID)
	if err != nil {
		writeError(w, http.StatusNotFound, "project not found")
		return
	}
	if _, ok := a.requireOrgMember(orgID, w, r); !ok {
		return
	}
	var req createApiKeyRequest
	_ = decodeJSON(r, &req)
	if req.DisplayName == "" {
		req.DisplayName = "default"
	}
	plaintext, key, err := apikey.Generate(projectID, req.DisplayName)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate api key")
		return
	}
	if err := a.ApiKeys.Create(r.Context(), key); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store api key")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"apiKey":    toApiKeyView(key),
		"plaintext": plaintext,
	})
}

// HandleRevokeApiKey revokes an API key by id, after checking the caller
// belongs to the organization owning the key's project.
func (a *App) HandleRevokeApiKey(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid api key id")
		return
	}
	key, err := a.ApiKeys.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "api key not found")
		return
	}
	if _, ok := a.requireProjectMember(key.ProjectID(), w, r); !ok {
		return
	}
	if err := a.ApiKeys.Revoke(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to revoke api key")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}
