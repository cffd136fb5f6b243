package httpapi

import "net/http"

type noteRequest struct {
	Content string `json:"content"`
}

func (a *API) handleNotes(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("projectID")
	switch r.Method {
	case http.MethodGet:
		items, err := a.projects.ListNotes(r.Context(), callerID(r), projectID)
		if err != nil {
			a.handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	case http.MethodPost:
		var req noteRequest
		if err := a.decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		n, err := a.projects.CreateNote(r.Context(), callerID(r), projectID, req.Content)
		if err != nil {
			a.handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, n)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleNote(w http.ResponseWriter, r *http.Request) {
	projectID, noteID := r.PathValue("projectID"), r.PathValue("noteID")
	switch r.Method {
	case http.MethodGet:
		n, err := a.projects.GetNote(r.Context(), callerID(r), projectID, noteID)
		if err != nil {
			a.handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, n)
	case http.MethodPatch, http.MethodPut:
		var req noteRequest
		if err := a.decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		n, err := a.projects.UpdateNote(r.Context(), callerID(r), projectID, noteID, req.Content)
		if err != nil {
			a.handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, n)
	case http.MethodDelete:
		if err := a.projects.DeleteNote(r.Context(), callerID(r), projectID, noteID); err != nil {
			a.handleError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch, http.MethodPut, http.MethodDelete)
	}
}
