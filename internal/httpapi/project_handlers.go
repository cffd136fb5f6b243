package httpapi

import (
	"net/http"
	"strings"

	"taskhub.dev/internal/membership"
	"taskhub.dev/internal/project"
)

type projectRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type addMemberRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

type memberRoleRequest struct {
	Role string `json:"role"`
}

func (a *API) handleProjects(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		items, err := a.projects.ListProjects(r.Context(), callerID(r))
		if err != nil {
			a.handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	case http.MethodPost:
		a.createProject(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) createProject(w http.ResponseWriter, r *http.Request) {
	var req projectRequest
	if err := a.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	p, err := a.projects.CreateProject(r.Context(), callerID(r), deref(req.Name), deref(req.Description))
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	_ = a.audit.LogEvent(r.Context(), "project.created", map[string]any{"project_id": p.ID, "name": p.Name})
	writeJSON(w, http.StatusCreated, p)
}

func (a *API) handleProject(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("projectID")
	switch r.Method {
	case http.MethodGet:
		detail, err := a.projects.GetProject(r.Context(), callerID(r), projectID)
		if err != nil {
			a.handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, detail)
	case http.MethodPatch, http.MethodPut:
		var req projectRequest
		if err := a.decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		p, err := a.projects.UpdateProject(r.Context(), callerID(r), projectID, project.ProjectUpdate{
			Name:        req.Name,
			Description: req.Description,
		})
		if err != nil {
			a.handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	case http.MethodDelete:
		if err := a.projects.DeleteProject(r.Context(), callerID(r), projectID); err != nil {
			a.handleError(w, r, err)
			return
		}
		_ = a.audit.LogEvent(r.Context(), "project.deleted", map[string]any{"project_id": projectID})
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) handleMembers(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("projectID")
	switch r.Method {
	case http.MethodGet:
		items, err := a.projects.ListMembers(r.Context(), callerID(r), projectID)
		if err != nil {
			a.handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	case http.MethodPost:
		var req addMemberRequest
		if err := a.decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		role, err := optionalRole(req.Role)
		if err != nil {
			a.handleError(w, r, err)
			return
		}
		m, err := a.projects.AddMember(r.Context(), callerID(r), projectID, req.Email, role)
		if err != nil {
			a.handleError(w, r, err)
			return
		}
		_ = a.audit.LogEvent(r.Context(), "project.member.added", map[string]any{
			"project_id": projectID, "member_id": m.UserID, "role": m.Role.String(),
		})
		writeJSON(w, http.StatusCreated, m)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleMember(w http.ResponseWriter, r *http.Request) {
	projectID, targetID := r.PathValue("projectID"), r.PathValue("userID")
	switch r.Method {
	case http.MethodPatch, http.MethodPut:
		var req memberRoleRequest
		if err := a.decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		role, err := membership.ParseRole(req.Role)
		if err != nil {
			a.handleError(w, r, err)
			return
		}
		m, err := a.projects.UpdateMemberRole(r.Context(), callerID(r), projectID, targetID, role)
		if err != nil {
			a.handleError(w, r, err)
			return
		}
		_ = a.audit.LogEvent(r.Context(), "project.member.role_changed", map[string]any{
			"project_id": projectID, "member_id": targetID, "role": m.Role.String(),
		})
		writeJSON(w, http.StatusOK, m)
	case http.MethodDelete:
		if err := a.projects.RemoveMember(r.Context(), callerID(r), projectID, targetID); err != nil {
			a.handleError(w, r, err)
			return
		}
		_ = a.audit.LogEvent(r.Context(), "project.member.removed", map[string]any{
			"project_id": projectID, "member_id": targetID,
		})
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodPatch, http.MethodPut, http.MethodDelete)
	}
}

// optionalRole parses a role field where empty means the default.
func optionalRole(raw string) (membership.Role, error) {
	if strings.TrimSpace(raw) == "" {
		return membership.RoleUnknown, nil
	}
	return membership.ParseRole(raw)
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
