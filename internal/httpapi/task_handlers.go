package httpapi

import (
	"net/http"

	"taskhub.dev/internal/project"
)

type createTaskRequest struct {
	Title       string               `json:"title"`
	Description string               `json:"description"`
	AssignedTo  string               `json:"assigned_to"`
	Status      string               `json:"status"`
	Attachments []project.Attachment `json:"attachments"`
}

type updateTaskRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	AssignedTo  *string `json:"assigned_to"`
	Status      *string `json:"status"`
}

type subtaskRequest struct {
	Title       *string `json:"title"`
	IsCompleted *bool   `json:"is_completed"`
}

func (a *API) handleTasks(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("projectID")
	switch r.Method {
	case http.MethodGet:
		items, err := a.projects.ListTasks(r.Context(), callerID(r), projectID)
		if err != nil {
			a.handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	case http.MethodPost:
		var req createTaskRequest
		if err := a.decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		task, err := a.projects.CreateTask(r.Context(), callerID(r), projectID, project.NewTask{
			Title:       req.Title,
			Description: req.Description,
			AssignedTo:  req.AssignedTo,
			Status:      req.Status,
			Attachments: req.Attachments,
		})
		if err != nil {
			a.handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, task)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleTask(w http.ResponseWriter, r *http.Request) {
	projectID, taskID := r.PathValue("projectID"), r.PathValue("taskID")
	switch r.Method {
	case http.MethodGet:
		detail, err := a.projects.GetTask(r.Context(), callerID(r), projectID, taskID)
		if err != nil {
			a.handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, detail)
	case http.MethodPatch, http.MethodPut:
		var req updateTaskRequest
		if err := a.decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		task, err := a.projects.UpdateTask(r.Context(), callerID(r), projectID, taskID, project.TaskUpdate{
			Title:       req.Title,
			Description: req.Description,
			AssignedTo:  req.AssignedTo,
			Status:      req.Status,
		})
		if err != nil {
			a.handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, task)
	case http.MethodDelete:
		if err := a.projects.DeleteTask(r.Context(), callerID(r), projectID, taskID); err != nil {
			a.handleError(w, r, err)
			return
		}
		_ = a.audit.LogEvent(r.Context(), "task.deleted", map[string]any{"project_id": projectID, "task_id": taskID})
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) handleSubtasks(w http.ResponseWriter, r *http.Request) {
	projectID, taskID := r.PathValue("projectID"), r.PathValue("taskID")
	switch r.Method {
	case http.MethodGet:
		items, err := a.projects.ListSubtasks(r.Context(), callerID(r), projectID, taskID)
		if err != nil {
			a.handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	case http.MethodPost:
		var req subtaskRequest
		if err := a.decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		st, err := a.projects.CreateSubtask(r.Context(), callerID(r), projectID, taskID, deref(req.Title))
		if err != nil {
			a.handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, st)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleSubtask(w http.ResponseWriter, r *http.Request) {
	projectID, taskID, subtaskID := r.PathValue("projectID"), r.PathValue("taskID"), r.PathValue("subtaskID")
	switch r.Method {
	case http.MethodPatch, http.MethodPut:
		var req subtaskRequest
		if err := a.decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		st, err := a.projects.UpdateSubtask(r.Context(), callerID(r), projectID, taskID, subtaskID, project.SubtaskUpdate{
			Title:       req.Title,
			IsCompleted: req.IsCompleted,
		})
		if err != nil {
			a.handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	case http.MethodDelete:
		if err := a.projects.DeleteSubtask(r.Context(), callerID(r), projectID, taskID, subtaskID); err != nil {
			a.handleError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodPatch, http.MethodPut, http.MethodDelete)
	}
}
