package project

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"taskhub.dev/internal/ids"
	"taskhub.dev/internal/membership"
	"taskhub.dev/internal/obs"
)

const (
	maxNameLen        = 100
	maxDescriptionLen = 2000
	maxTitleLen       = 200
	maxContentLen     = 10000
	maxAttachments    = 20
)

// UserDirectory resolves invitees by email.
type UserDirectory interface {
	UserIDByEmail(ctx context.Context, email string) (string, error)
}

// Service runs project, member, task, subtask and note operations. Every
// call that names a project goes through the gate first.
type Service struct {
	store   Store
	members *membership.Registry
	gate    *membership.Gate
	users   UserDirectory
	log     *slog.Logger
	now     func() time.Time
}

// Option configures Service behavior.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock overrides time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

func NewService(store Store, members *membership.Registry, gate *membership.Gate, users UserDirectory, opts ...Option) *Service {
	s := &Service{
		store:   store,
		members: members,
		gate:    gate,
		users:   users,
		log:     obs.Discard(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListProjects returns every project the user belongs to with their role.
func (s *Service) ListProjects(ctx context.Context, userID string) ([]UserProject, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, membership.ErrUnauthorized
	}
	return s.store.ProjectsForUser(ctx, userID)
}

// CreateProject stores a project together with the creator's ADMIN membership.
func (s *Service) CreateProject(ctx context.Context, userID, name, description string) (Project, error) {
	if strings.TrimSpace(userID) == "" {
		return Project{}, membership.ErrUnauthorized
	}
	name, err := requireText("name", name, maxNameLen)
	if err != nil {
		return Project{}, err
	}
	description, err = optionalText("description", description, maxDescriptionLen)
	if err != nil {
		return Project{}, err
	}
	now := s.now().UTC()
	p := Project{
		ID:          ids.New(),
		Name:        name,
		Description: description,
		CreatedBy:   userID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateProject(ctx, p, membership.CreatorMember(p.ID, userID, now)); err != nil {
		return Project{}, err
	}
	s.log.InfoContext(ctx, "project created", slog.String("project_id", p.ID), slog.String("user_id", userID))
	return p, nil
}

// GetProject returns the project with its members.
func (s *Service) GetProject(ctx context.Context, userID, projectID string) (ProjectDetail, error) {
	role, err := s.authorize(ctx, userID, projectID, membership.ActionViewProject, nil)
	if err != nil {
		return ProjectDetail{}, err
	}
	p, err := s.store.Project(ctx, projectID)
	if err != nil {
		return ProjectDetail{}, err
	}
	members, err := s.members.Members(ctx, projectID)
	if err != nil {
		return ProjectDetail{}, err
	}
	return ProjectDetail{Project: p, Role: role, Members: members}, nil
}

// UpdateProject changes name and/or description.
func (s *Service) UpdateProject(ctx context.Context, userID, projectID string, upd ProjectUpdate) (Project, error) {
	if _, err := s.authorize(ctx, userID, projectID, membership.ActionUpdateProject, nil); err != nil {
		return Project{}, err
	}
	p, err := s.store.Project(ctx, projectID)
	if err != nil {
		return Project{}, err
	}
	if upd.Name == nil && upd.Description == nil {
		return Project{}, fmt.Errorf("%w: nothing to update", ErrInvalidInput)
	}
	if upd.Name != nil {
		if p.Name, err = requireText("name", *upd.Name, maxNameLen); err != nil {
			return Project{}, err
		}
	}
	if upd.Description != nil {
		if p.Description, err = optionalText("description", *upd.Description, maxDescriptionLen); err != nil {
			return Project{}, err
		}
	}
	p.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateProject(ctx, p); err != nil {
		return Project{}, err
	}
	return p, nil
}

// DeleteProject removes the project, then cascades to its children. Only
// the creator may delete. Child cleanup failures are logged; the project
// delete itself is what the caller sees. Leftover children are unreachable
// because authorize requires the project row.
func (s *Service) DeleteProject(ctx context.Context, userID, projectID string) error {
	owns := func(ctx context.Context, role membership.Role, uid string) (bool, error) {
		p, err := s.store.Project(ctx, projectID)
		if err != nil {
			return false, err
		}
		return p.CreatedBy == uid, nil
	}
	if _, err := s.gate.AuthorizeAction(ctx, userID, projectID, membership.ActionDeleteProject, owns); err != nil {
		return err
	}
	if err := s.store.DeleteProject(ctx, projectID); err != nil {
		return err
	}
	report := s.CleanupProject(ctx, projectID)
	s.log.InfoContext(ctx, "project deleted",
		slog.String("project_id", projectID),
		slog.Int64("members", report.Members),
		slog.Int64("tasks", report.Tasks),
		slog.Int64("subtasks", report.Subtasks),
		slog.Int64("notes", report.Notes),
		slog.Int("failed_steps", len(report.Failed)),
	)
	return nil
}

// authorize runs the gate and then checks that the project row still exists,
// so memberships left behind by an interrupted cascade grant nothing.
func (s *Service) authorize(ctx context.Context, userID, projectID string, action membership.Action, owns membership.Ownership) (membership.Role, error) {
	role, err := s.gate.AuthorizeAction(ctx, userID, projectID, action, owns)
	if err != nil {
		return membership.RoleUnknown, err
	}
	if _, err := s.store.Project(ctx, projectID); err != nil {
		return membership.RoleUnknown, err
	}
	return role, nil
}

// loadTask fetches a task and checks it belongs to projectID.
func (s *Service) loadTask(ctx context.Context, projectID, taskID string) (Task, error) {
	if !ids.Valid(taskID) {
		return Task{}, ErrNotFound
	}
	t, err := s.store.Task(ctx, taskID)
	if err != nil {
		return Task{}, err
	}
	if t.ProjectID != projectID {
		return Task{}, ErrNotFound
	}
	return t, nil
}

func (s *Service) loadSubtask(ctx context.Context, taskID, subtaskID string) (Subtask, error) {
	if !ids.Valid(subtaskID) {
		return Subtask{}, ErrNotFound
	}
	st, err := s.store.Subtask(ctx, subtaskID)
	if err != nil {
		return Subtask{}, err
	}
	if st.TaskID != taskID {
		return Subtask{}, ErrNotFound
	}
	return st, nil
}

func (s *Service) loadNote(ctx context.Context, projectID, noteID string) (Note, error) {
	if !ids.Valid(noteID) {
		return Note{}, ErrNotFound
	}
	n, err := s.store.Note(ctx, noteID)
	if err != nil {
		return Note{}, err
	}
	if n.ProjectID != projectID {
		return Note{}, ErrNotFound
	}
	return n, nil
}

// ensureMember rejects assignees who are not part of the project.
func (s *Service) ensureMember(ctx context.Context, projectID, userID string) error {
	_, ok, err := s.members.GetRole(ctx, projectID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: assignee is not a project member", ErrInvalidInput)
	}
	return nil
}

func requireText(field, raw string, max int) (string, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return "", fmt.Errorf("%w: %s is required", ErrInvalidInput, field)
	}
	return optionalText(field, v, max)
}

func optionalText(field, raw string, max int) (string, error) {
	v := strings.TrimSpace(raw)
	if utf8.RuneCountInString(v) > max {
		return "", fmt.Errorf("%w: %s must be at most %d characters", ErrInvalidInput, field, max)
	}
	return v, nil
}
