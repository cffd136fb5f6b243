package project

import (
	"context"
	"log/slog"

	"taskhub.dev/internal/membership"
)

// ListMembers returns the project's members with user details.
func (s *Service) ListMembers(ctx context.Context, userID, projectID string) ([]membership.Member, error) {
	if _, err := s.authorize(ctx, userID, projectID, membership.ActionViewMembers, nil); err != nil {
		return nil, err
	}
	return s.members.Members(ctx, projectID)
}

// AddMember invites an existing user by email. RoleUnknown means MEMBER.
// A PROJECT_ADMIN may only invite plain members; granting PROJECT_ADMIN is
// left to the ADMIN.
func (s *Service) AddMember(ctx context.Context, userID, projectID, email string, role membership.Role) (membership.Member, error) {
	if role == membership.RoleUnknown {
		role = membership.RoleMember
	}
	grants := func(_ context.Context, caller membership.Role, _ string) (bool, error) {
		switch caller {
		case membership.RoleAdmin:
			return true, nil
		case membership.RoleProjectAdmin:
			return role == membership.RoleMember, nil
		case membership.RoleMember, membership.RoleUnknown:
			return false, nil
		}
		return false, nil
	}
	if _, err := s.authorize(ctx, userID, projectID, membership.ActionAddMember, grants); err != nil {
		return membership.Member{}, err
	}
	target, err := s.users.UserIDByEmail(ctx, email)
	if err != nil {
		return membership.Member{}, err
	}
	m, err := s.members.AddMember(ctx, projectID, target, role)
	if err != nil {
		return membership.Member{}, err
	}
	s.log.InfoContext(ctx, "member invited",
		slog.String("project_id", projectID), slog.String("by", userID), slog.String("user_id", target))
	return m, nil
}

// UpdateMemberRole changes another member's role. ADMIN only.
func (s *Service) UpdateMemberRole(ctx context.Context, userID, projectID, targetID string, role membership.Role) (membership.Member, error) {
	if _, err := s.authorize(ctx, userID, projectID, membership.ActionUpdateMember, nil); err != nil {
		return membership.Member{}, err
	}
	return s.members.UpdateRole(ctx, projectID, targetID, role)
}

// RemoveMember removes a member other than the creator. ADMIN only.
func (s *Service) RemoveMember(ctx context.Context, userID, projectID, targetID string) error {
	if _, err := s.authorize(ctx, userID, projectID, membership.ActionRemoveMember, nil); err != nil {
		return err
	}
	return s.members.RemoveMember(ctx, projectID, targetID)
}
