package project

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"taskhub.dev/internal/ids"
	"taskhub.dev/internal/membership"
)

// ownsTask is the PROJECT_ADMIN ownership rule: they authored or were
// assigned the task.
func ownsTask(t Task, userID string) bool {
	return t.AssignedBy == userID || (t.AssignedTo != "" && t.AssignedTo == userID)
}

func canEditTask(role membership.Role, userID string, t Task, upd TaskUpdate) bool {
	switch role {
	case membership.RoleAdmin:
		return true
	case membership.RoleProjectAdmin:
		return ownsTask(t, userID)
	case membership.RoleMember:
		return t.AssignedTo == userID && upd.statusOnly()
	case membership.RoleUnknown:
		return false
	}
	return false
}

func canDeleteTask(role membership.Role, userID string, t Task) bool {
	switch role {
	case membership.RoleAdmin:
		return true
	case membership.RoleProjectAdmin:
		return ownsTask(t, userID)
	case membership.RoleMember, membership.RoleUnknown:
		return false
	}
	return false
}

// ListTasks returns the project's tasks.
func (s *Service) ListTasks(ctx context.Context, userID, projectID string) ([]Task, error) {
	if _, err := s.authorize(ctx, userID, projectID, membership.ActionViewTasks, nil); err != nil {
		return nil, err
	}
	return s.store.ListTasks(ctx, projectID)
}

// GetTask returns a task with its subtasks.
func (s *Service) GetTask(ctx context.Context, userID, projectID, taskID string) (TaskDetail, error) {
	if _, err := s.authorize(ctx, userID, projectID, membership.ActionViewTasks, nil); err != nil {
		return TaskDetail{}, err
	}
	t, err := s.loadTask(ctx, projectID, taskID)
	if err != nil {
		return TaskDetail{}, err
	}
	subtasks, err := s.store.ListSubtasks(ctx, t.ID)
	if err != nil {
		return TaskDetail{}, err
	}
	return TaskDetail{Task: t, Subtasks: subtasks}, nil
}

// CreateTask adds a task authored by userID.
func (s *Service) CreateTask(ctx context.Context, userID, projectID string, in NewTask) (Task, error) {
	if _, err := s.authorize(ctx, userID, projectID, membership.ActionCreateTask, nil); err != nil {
		return Task{}, err
	}
	title, err := requireText("title", in.Title, maxTitleLen)
	if err != nil {
		return Task{}, err
	}
	description, err := optionalText("description", in.Description, maxDescriptionLen)
	if err != nil {
		return Task{}, err
	}
	status, err := ParseStatus(in.Status)
	if err != nil {
		return Task{}, err
	}
	attachments, err := validateAttachments(in.Attachments)
	if err != nil {
		return Task{}, err
	}
	assignee := strings.TrimSpace(in.AssignedTo)
	if assignee != "" {
		if err := s.ensureMember(ctx, projectID, assignee); err != nil {
			return Task{}, err
		}
	}
	now := s.now().UTC()
	t := Task{
		ID:          ids.New(),
		ProjectID:   projectID,
		Title:       title,
		Description: description,
		AssignedTo:  assignee,
		AssignedBy:  userID,
		Status:      status,
		Attachments: attachments,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.InsertTask(ctx, t); err != nil {
		return Task{}, err
	}
	s.log.InfoContext(ctx, "task created", slog.String("project_id", projectID), slog.String("task_id", t.ID))
	return t, nil
}

// UpdateTask applies a partial update. A MEMBER may only move the status of
// a task assigned to them.
func (s *Service) UpdateTask(ctx context.Context, userID, projectID, taskID string, upd TaskUpdate) (Task, error) {
	var t Task
	owns := func(ctx context.Context, role membership.Role, uid string) (bool, error) {
		loaded, err := s.loadTask(ctx, projectID, taskID)
		if err != nil {
			return false, err
		}
		t = loaded
		return canEditTask(role, uid, loaded, upd), nil
	}
	if _, err := s.authorize(ctx, userID, projectID, membership.ActionUpdateTask, owns); err != nil {
		return Task{}, err
	}
	if upd.Title == nil && upd.Description == nil && upd.AssignedTo == nil && upd.Status == nil {
		return Task{}, fmt.Errorf("%w: nothing to update", ErrInvalidInput)
	}
	var err error
	if upd.Title != nil {
		if t.Title, err = requireText("title", *upd.Title, maxTitleLen); err != nil {
			return Task{}, err
		}
	}
	if upd.Description != nil {
		if t.Description, err = optionalText("description", *upd.Description, maxDescriptionLen); err != nil {
			return Task{}, err
		}
	}
	if upd.Status != nil {
		if strings.TrimSpace(*upd.Status) == "" {
			return Task{}, fmt.Errorf("%w: status is required", ErrInvalidInput)
		}
		if t.Status, err = ParseStatus(*upd.Status); err != nil {
			return Task{}, err
		}
	}
	if upd.AssignedTo != nil {
		assignee := strings.TrimSpace(*upd.AssignedTo)
		if assignee != "" {
			if err := s.ensureMember(ctx, projectID, assignee); err != nil {
				return Task{}, err
			}
		}
		t.AssignedTo = assignee
	}
	t.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateTask(ctx, t); err != nil {
		return Task{}, err
	}
	return t, nil
}

// DeleteTask removes a task and then its subtasks.
func (s *Service) DeleteTask(ctx context.Context, userID, projectID, taskID string) error {
	owns := func(ctx context.Context, role membership.Role, uid string) (bool, error) {
		t, err := s.loadTask(ctx, projectID, taskID)
		if err != nil {
			return false, err
		}
		return canDeleteTask(role, uid, t), nil
	}
	if _, err := s.authorize(ctx, userID, projectID, membership.ActionDeleteTask, owns); err != nil {
		return err
	}
	if err := s.store.DeleteTask(ctx, taskID); err != nil {
		return err
	}
	s.cleanupTask(ctx, taskID)
	s.log.InfoContext(ctx, "task deleted", slog.String("project_id", projectID), slog.String("task_id", taskID))
	return nil
}

func validateAttachments(in []Attachment) ([]Attachment, error) {
	if len(in) > maxAttachments {
		return nil, fmt.Errorf("%w: at most %d attachments", ErrInvalidInput, maxAttachments)
	}
	out := make([]Attachment, 0, len(in))
	for i, a := range in {
		a.URL = strings.TrimSpace(a.URL)
		a.MimeType = strings.TrimSpace(a.MimeType)
		if a.URL == "" {
			return nil, fmt.Errorf("%w: attachment %d has no url", ErrInvalidInput, i)
		}
		if a.Size < 0 {
			return nil, fmt.Errorf("%w: attachment %d has a negative size", ErrInvalidInput, i)
		}
		out = append(out, a)
	}
	return out, nil
}
