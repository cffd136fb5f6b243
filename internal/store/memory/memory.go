// Package memory is an in-process store for development and tests. One lock
// guards every collection so multi-entity writes are atomic.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"taskhub.dev/internal/auth"
	"taskhub.dev/internal/membership"
	"taskhub.dev/internal/project"
)

type memberKey struct {
	projectID string
	userID    string
}

type Store struct {
	mu       sync.RWMutex
	users    map[string]auth.User
	projects map[string]project.Project
	members  map[memberKey]membership.Member
	tasks    map[string]project.Task
	subtasks map[string]project.Subtask
	notes    map[string]project.Note
}

var (
	_ auth.UserStore   = (*Store)(nil)
	_ membership.Store = (*Store)(nil)
	_ project.Store    = (*Store)(nil)
)

func New() *Store {
	return &Store{
		users:    make(map[string]auth.User),
		projects: make(map[string]project.Project),
		members:  make(map[memberKey]membership.Member),
		tasks:    make(map[string]project.Task),
		subtasks: make(map[string]project.Subtask),
		notes:    make(map[string]project.Note),
	}
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func sameFold(a, b string) bool { return strings.EqualFold(a, b) }

// ---- users ----

func (s *Store) CreateUser(_ context.Context, u *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; ok {
		return auth.ErrAlreadyExists
	}
	for _, existing := range s.users {
		if sameFold(existing.Email, u.Email) || sameFold(existing.Username, u.Username) {
			return auth.ErrAlreadyExists
		}
	}
	s.users[u.ID] = *u
	return nil
}

func (s *Store) UserByID(_ context.Context, id string) (auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return auth.User{}, auth.ErrNotFound
	}
	return u, nil
}

func (s *Store) findUser(match func(auth.User) bool) (auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if match(u) {
			return u, nil
		}
	}
	return auth.User{}, auth.ErrNotFound
}

func (s *Store) UserByEmail(_ context.Context, email string) (auth.User, error) {
	return s.findUser(func(u auth.User) bool { return sameFold(u.Email, email) })
}

func (s *Store) UserByUsername(_ context.Context, username string) (auth.User, error) {
	return s.findUser(func(u auth.User) bool { return sameFold(u.Username, username) })
}

func (s *Store) UserByVerificationHash(_ context.Context, hash string) (auth.User, error) {
	if hash == "" {
		return auth.User{}, auth.ErrNotFound
	}
	return s.findUser(func(u auth.User) bool { return u.EmailVerification.Hash == hash })
}

func (s *Store) UserByResetHash(_ context.Context, hash string) (auth.User, error) {
	if hash == "" {
		return auth.User{}, auth.ErrNotFound
	}
	return s.findUser(func(u auth.User) bool { return u.PasswordReset.Hash == hash })
}

// mutateUser runs fn on a copy of the user under the write lock and stores
// the result when fn returns nil.
func (s *Store) mutateUser(userID string, fn func(u *auth.User) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return auth.ErrNotFound
	}
	if err := fn(&u); err != nil {
		return err
	}
	s.users[userID] = u
	return nil
}

func (s *Store) SetRefreshToken(_ context.Context, userID, hash string) error {
	return s.mutateUser(userID, func(u *auth.User) error {
		u.RefreshTokenHash = hash
		return nil
	})
}

func (s *Store) SwapRefreshToken(_ context.Context, userID, oldHash, newHash string) error {
	return s.mutateUser(userID, func(u *auth.User) error {
		if u.RefreshTokenHash != oldHash {
			return auth.ErrStaleToken
		}
		u.RefreshTokenHash = newHash
		return nil
	})
}

func (s *Store) SetEmailVerification(_ context.Context, userID string, secret auth.OneTimeSecret) error {
	return s.mutateUser(userID, func(u *auth.User) error {
		u.EmailVerification = secret
		return nil
	})
}

func (s *Store) ConsumeEmailVerification(_ context.Context, userID, hash string) error {
	return s.mutateUser(userID, func(u *auth.User) error {
		if hash == "" || u.EmailVerification.Hash != hash {
			return auth.ErrStaleToken
		}
		u.EmailVerified = true
		u.EmailVerification = auth.OneTimeSecret{}
		return nil
	})
}

func (s *Store) SetPasswordReset(_ context.Context, userID string, secret auth.OneTimeSecret) error {
	return s.mutateUser(userID, func(u *auth.User) error {
		u.PasswordReset = secret
		return nil
	})
}

func (s *Store) ConsumePasswordReset(_ context.Context, userID, hash, passwordHash string) error {
	return s.mutateUser(userID, func(u *auth.User) error {
		if hash == "" || u.PasswordReset.Hash != hash {
			return auth.ErrStaleToken
		}
		u.PasswordHash = passwordHash
		u.PasswordReset = auth.OneTimeSecret{}
		u.RefreshTokenHash = ""
		return nil
	})
}

func (s *Store) UpdatePassword(_ context.Context, userID, passwordHash string) error {
	return s.mutateUser(userID, func(u *auth.User) error {
		u.PasswordHash = passwordHash
		return nil
	})
}

// ---- memberships ----

func (s *Store) Member(_ context.Context, projectID, userID string) (membership.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.members[memberKey{projectID, userID}]
	if !ok {
		return membership.Member{}, membership.ErrNotFound
	}
	return s.withUser(m), nil
}

func (s *Store) InsertMember(_ context.Context, m membership.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[m.ProjectID]; !ok {
		return membership.ErrNotFound
	}
	if _, ok := s.users[m.UserID]; !ok {
		return membership.ErrNotFound
	}
	key := memberKey{m.ProjectID, m.UserID}
	if _, ok := s.members[key]; ok {
		return membership.ErrAlreadyMember
	}
	s.members[key] = m
	return nil
}

func (s *Store) ListMembers(_ context.Context, projectID string) ([]membership.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]membership.Member, 0)
	for key, m := range s.members {
		if key.projectID == projectID {
			out = append(out, s.withUser(m))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].UserID < out[j].UserID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) UpdateMemberRole(_ context.Context, projectID, userID string, role membership.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := memberKey{projectID, userID}
	m, ok := s.members[key]
	if !ok {
		return membership.ErrNotFound
	}
	m.Role = role
	s.members[key] = m
	return nil
}

func (s *Store) DeleteMember(_ context.Context, projectID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := memberKey{projectID, userID}
	if _, ok := s.members[key]; !ok {
		return membership.ErrNotFound
	}
	delete(s.members, key)
	return nil
}

func (s *Store) DeleteMembers(_ context.Context, projectID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for key := range s.members {
		if key.projectID == projectID {
			delete(s.members, key)
			n++
		}
	}
	return n, nil
}

func (s *Store) ProjectCreator(_ context.Context, projectID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[projectID]
	if !ok {
		return "", membership.ErrNotFound
	}
	return p.CreatedBy, nil
}

// withUser fills in the user columns. Callers hold the lock.
func (s *Store) withUser(m membership.Member) membership.Member {
	if u, ok := s.users[m.UserID]; ok {
		m.Username = u.Username
		m.Email = u.Email
		m.Name = u.Name
	}
	return m
}
