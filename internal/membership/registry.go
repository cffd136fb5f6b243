package membership

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"taskhub.dev/internal/obs"
)

// Registry is the single writer of project memberships.
type Registry struct {
	store Store
	now   func() time.Time
	log   *slog.Logger
}

// RegistryOption configures Registry behavior.
type RegistryOption func(*Registry)

// WithRegistryClock overrides time source (useful for tests).
func WithRegistryClock(fn func() time.Time) RegistryOption {
	return func(r *Registry) {
		if fn != nil {
			r.now = fn
		}
	}
}

// WithRegistryLogger sets the logger.
func WithRegistryLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if l != nil {
			r.log = l
		}
	}
}

func NewRegistry(store Store, opts ...RegistryOption) *Registry {
	r := &Registry{store: store, now: time.Now, log: obs.Discard()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AddMember grants an assignable role to a user who is not yet a member.
func (r *Registry) AddMember(ctx context.Context, projectID, userID string, role Role) (Member, error) {
	projectID, userID, err := scope(projectID, userID)
	if err != nil {
		return Member{}, err
	}
	if !role.Assignable() {
		return Member{}, fmt.Errorf("%w: %s cannot be granted", ErrInvalidRole, role)
	}
	if _, err := r.store.ProjectCreator(ctx, projectID); err != nil {
		return Member{}, err
	}
	now := r.now().UTC()
	m := Member{ProjectID: projectID, UserID: userID, Role: role, CreatedAt: now, UpdatedAt: now}
	if err := r.store.InsertMember(ctx, m); err != nil {
		return Member{}, err
	}
	r.log.InfoContext(ctx, "member added",
		slog.String("project_id", projectID), slog.String("user_id", userID), slog.String("role", role.String()))
	return m, nil
}

// GetRole returns the user's role in the project; ok is false when the user
// is not a member.
func (r *Registry) GetRole(ctx context.Context, projectID, userID string) (Role, bool, error) {
	m, err := r.store.Member(ctx, projectID, userID)
	if errors.Is(err, ErrNotFound) {
		return RoleUnknown, false, nil
	}
	if err != nil {
		return RoleUnknown, false, err
	}
	return m.Role, true, nil
}

// UpdateRole changes an existing member's role. ADMIN cannot be granted and
// the creator's ADMIN row cannot be demoted.
func (r *Registry) UpdateRole(ctx context.Context, projectID, userID string, role Role) (Member, error) {
	projectID, userID, err := scope(projectID, userID)
	if err != nil {
		return Member{}, err
	}
	if !role.Assignable() {
		return Member{}, fmt.Errorf("%w: %s cannot be granted", ErrInvalidRole, role)
	}
	creator, err := r.store.ProjectCreator(ctx, projectID)
	if err != nil {
		return Member{}, err
	}
	if creator == userID {
		return Member{}, fmt.Errorf("%w: the project creator stays ADMIN", ErrInvalidRole)
	}
	if err := r.store.UpdateMemberRole(ctx, projectID, userID, role); err != nil {
		return Member{}, err
	}
	m, err := r.store.Member(ctx, projectID, userID)
	if err != nil {
		return Member{}, err
	}
	r.log.InfoContext(ctx, "member role updated",
		slog.String("project_id", projectID), slog.String("user_id", userID), slog.String("role", role.String()))
	return m, nil
}

// RemoveMember deletes a membership. The creator's row is never removed.
func (r *Registry) RemoveMember(ctx context.Context, projectID, userID string) error {
	projectID, userID, err := scope(projectID, userID)
	if err != nil {
		return err
	}
	creator, err := r.store.ProjectCreator(ctx, projectID)
	if err != nil {
		return err
	}
	if creator == userID {
		return ErrCannotRemoveCreator
	}
	if err := r.store.DeleteMember(ctx, projectID, userID); err != nil {
		return err
	}
	r.log.InfoContext(ctx, "member removed", slog.String("project_id", projectID), slog.String("user_id", userID))
	return nil
}

// Members lists a project's memberships with user details.
func (r *Registry) Members(ctx context.Context, projectID string) ([]Member, error) {
	return r.store.ListMembers(ctx, projectID)
}

// RemoveAll drops every membership of a project. It is a cascade step and
// succeeds when there is nothing left to remove.
func (r *Registry) RemoveAll(ctx context.Context, projectID string) (int64, error) {
	return r.store.DeleteMembers(ctx, projectID)
}

func scope(projectID, userID string) (string, string, error) {
	projectID = strings.TrimSpace(projectID)
	userID = strings.TrimSpace(userID)
	if projectID == "" || userID == "" {
		return "", "", fmt.Errorf("%w: project and user are required", ErrInvalidInput)
	}
	return projectID, userID, nil
}
