package project

import (
	"context"
	"fmt"

	"taskhub.dev/internal/ids"
	"taskhub.dev/internal/membership"
)

func canEditSubtask(role membership.Role, userID string, t Task, st Subtask, upd SubtaskUpdate) bool {
	switch role {
	case membership.RoleAdmin:
		return true
	case membership.RoleProjectAdmin:
		return st.CreatedBy == userID || ownsTask(t, userID)
	case membership.RoleMember:
		return t.AssignedTo == userID && upd.completionOnly()
	case membership.RoleUnknown:
		return false
	}
	return false
}

func canDeleteSubtask(role membership.Role, userID string, t Task, st Subtask) bool {
	switch role {
	case membership.RoleAdmin:
		return true
	case membership.RoleProjectAdmin:
		return st.CreatedBy == userID || ownsTask(t, userID)
	case membership.RoleMember, membership.RoleUnknown:
		return false
	}
	return false
}

// ListSubtasks returns a task's subtasks.
func (s *Service) ListSubtasks(ctx context.Context, userID, projectID, taskID string) ([]Subtask, error) {
	if _, err := s.authorize(ctx, userID, projectID, membership.ActionViewTasks, nil); err != nil {
		return nil, err
	}
	t, err := s.loadTask(ctx, projectID, taskID)
	if err != nil {
		return nil, err
	}
	return s.store.ListSubtasks(ctx, t.ID)
}

// CreateSubtask adds a subtask. A PROJECT_ADMIN needs to own the parent task.
func (s *Service) CreateSubtask(ctx context.Context, userID, projectID, taskID, title string) (Subtask, error) {
	owns := func(ctx context.Context, role membership.Role, uid string) (bool, error) {
		t, err := s.loadTask(ctx, projectID, taskID)
		if err != nil {
			return false, err
		}
		switch role {
		case membership.RoleAdmin:
			return true, nil
		case membership.RoleProjectAdmin:
			return ownsTask(t, uid), nil
		case membership.RoleMember, membership.RoleUnknown:
			return false, nil
		}
		return false, nil
	}
	if _, err := s.authorize(ctx, userID, projectID, membership.ActionCreateSubtask, owns); err != nil {
		return Subtask{}, err
	}
	title, err := requireText("title", title, maxTitleLen)
	if err != nil {
		return Subtask{}, err
	}
	now := s.now().UTC()
	st := Subtask{
		ID:        ids.New(),
		TaskID:    taskID,
		Title:     title,
		CreatedBy: userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.InsertSubtask(ctx, st); err != nil {
		return Subtask{}, err
	}
	return st, nil
}

// UpdateSubtask applies a partial update. A MEMBER may only tick subtasks of
// a task assigned to them.
func (s *Service) UpdateSubtask(ctx context.Context, userID, projectID, taskID, subtaskID string, upd SubtaskUpdate) (Subtask, error) {
	var st Subtask
	owns := func(ctx context.Context, role membership.Role, uid string) (bool, error) {
		t, err := s.loadTask(ctx, projectID, taskID)
		if err != nil {
			return false, err
		}
		loaded, err := s.loadSubtask(ctx, t.ID, subtaskID)
		if err != nil {
			return false, err
		}
		st = loaded
		return canEditSubtask(role, uid, t, loaded, upd), nil
	}
	if _, err := s.authorize(ctx, userID, projectID, membership.ActionUpdateSubtask, owns); err != nil {
		return Subtask{}, err
	}
	if upd.Title == nil && upd.IsCompleted == nil {
		return Subtask{}, fmt.Errorf("%w: nothing to update", ErrInvalidInput)
	}
	if upd.Title != nil {
		title, err := requireText("title", *upd.Title, maxTitleLen)
		if err != nil {
			return Subtask{}, err
		}
		st.Title = title
	}
	if upd.IsCompleted != nil {
		st.IsCompleted = *upd.IsCompleted
	}
	st.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateSubtask(ctx, st); err != nil {
		return Subtask{}, err
	}
	return st, nil
}

// DeleteSubtask removes one subtask.
func (s *Service) DeleteSubtask(ctx context.Context, userID, projectID, taskID, subtaskID string) error {
	owns := func(ctx context.Context, role membership.Role, uid string) (bool, error) {
		t, err := s.loadTask(ctx, projectID, taskID)
		if err != nil {
			return false, err
		}
		st, err := s.loadSubtask(ctx, t.ID, subtaskID)
		if err != nil {
			return false, err
		}
		return canDeleteSubtask(role, uid, t, st), nil
	}
	if _, err := s.authorize(ctx, userID, projectID, membership.ActionDeleteSubtask, owns); err != nil {
		return err
	}
	return s.store.DeleteSubtask(ctx, subtaskID)
}
