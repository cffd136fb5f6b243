package project

import (
	"context"

	"taskhub.dev/internal/ids"
	"taskhub.dev/internal/membership"
)

func canChangeNote(role membership.Role, userID string, n Note) bool {
	switch role {
	case membership.RoleAdmin:
		return true
	case membership.RoleProjectAdmin:
		return n.CreatedBy == userID
	case membership.RoleMember, membership.RoleUnknown:
		return false
	}
	return false
}

// ListNotes returns the project's notes.
func (s *Service) ListNotes(ctx context.Context, userID, projectID string) ([]Note, error) {
	if _, err := s.authorize(ctx, userID, projectID, membership.ActionViewNotes, nil); err != nil {
		return nil, err
	}
	return s.store.ListNotes(ctx, projectID)
}

// GetNote returns one note.
func (s *Service) GetNote(ctx context.Context, userID, projectID, noteID string) (Note, error) {
	if _, err := s.authorize(ctx, userID, projectID, membership.ActionViewNotes, nil); err != nil {
		return Note{}, err
	}
	return s.loadNote(ctx, projectID, noteID)
}

// CreateNote adds a note authored by userID.
func (s *Service) CreateNote(ctx context.Context, userID, projectID, content string) (Note, error) {
	if _, err := s.authorize(ctx, userID, projectID, membership.ActionCreateNote, nil); err != nil {
		return Note{}, err
	}
	content, err := requireText("content", content, maxContentLen)
	if err != nil {
		return Note{}, err
	}
	now := s.now().UTC()
	n := Note{
		ID:        ids.New(),
		ProjectID: projectID,
		CreatedBy: userID,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.InsertNote(ctx, n); err != nil {
		return Note{}, err
	}
	return n, nil
}

// UpdateNote replaces a note's content.
func (s *Service) UpdateNote(ctx context.Context, userID, projectID, noteID, content string) (Note, error) {
	var n Note
	owns := func(ctx context.Context, role membership.Role, uid string) (bool, error) {
		loaded, err := s.loadNote(ctx, projectID, noteID)
		if err != nil {
			return false, err
		}
		n = loaded
		return canChangeNote(role, uid, loaded), nil
	}
	if _, err := s.authorize(ctx, userID, projectID, membership.ActionUpdateNote, owns); err != nil {
		return Note{}, err
	}
	content, err := requireText("content", content, maxContentLen)
	if err != nil {
		return Note{}, err
	}
	n.Content = content
	n.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateNote(ctx, n); err != nil {
		return Note{}, err
	}
	return n, nil
}

// DeleteNote removes a note.
func (s *Service) DeleteNote(ctx context.Context, userID, projectID, noteID string) error {
	owns := func(ctx context.Context, role membership.Role, uid string) (bool, error) {
		n, err := s.loadNote(ctx, projectID, noteID)
		if err != nil {
			return false, err
		}
		return canChangeNote(role, uid, n), nil
	}
	if _, err := s.authorize(ctx, userID, projectID, membership.ActionDeleteNote, owns); err != nil {
		return err
	}
	return s.store.DeleteNote(ctx, noteID)
}
