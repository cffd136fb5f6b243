package membership

import (
	"context"
	"time"
)

// Member is one (project, user) -> role row. Username, Email and Name are
// filled in by ListMembers.
type Member struct {
	ProjectID string    `json:"project_id"`
	UserID    string    `json:"user_id"`
	Role      Role      `json:"role"`
	Username  string    `json:"username,omitempty"`
	Email     string    `json:"email,omitempty"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreatorMember is the ADMIN row seeded together with a new project.
func CreatorMember(projectID, userID string, now time.Time) Member {
	return Member{
		ProjectID: projectID,
		UserID:    userID,
		Role:      RoleAdmin,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// RoleLookup is the read side the gate needs.
type RoleLookup interface {
	Member(ctx context.Context, projectID, userID string) (Member, error)
}

// Store persists memberships. Member, UpdateMemberRole and DeleteMember
// return ErrNotFound for a missing row; InsertMember returns ErrAlreadyMember
// on a duplicate (project, user) pair.
type Store interface {
	RoleLookup
	InsertMember(ctx context.Context, m Member) error
	ListMembers(ctx context.Context, projectID string) ([]Member, error)
	UpdateMemberRole(ctx context.Context, projectID, userID string, role Role) error
	DeleteMember(ctx context.Context, projectID, userID string) error
	// DeleteMembers removes every row of a project and reports how many went.
	DeleteMembers(ctx context.Context, projectID string) (int64, error)
	// ProjectCreator returns the createdBy of a project, ErrNotFound if the
	// project does not exist.
	ProjectCreator(ctx context.Context, projectID string) (string, error)
}
