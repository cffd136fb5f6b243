package pg

import (
	"context"
	"database/sql"
	"errors"

	"taskhub.dev/internal/membership"
)

const memberSelect = `
	select m.project_id, m.user_id, m.role, u.username, u.email, u.name, m.created_at, m.updated_at
	from project_members m
	join users u on u.id = m.user_id`

func scanMember(row rowScanner) (membership.Member, error) {
	var (
		m    membership.Member
		role string
	)
	if err := row.Scan(&m.ProjectID, &m.UserID, &role, &m.Username, &m.Email, &m.Name, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return membership.Member{}, err
	}
	parsed, err := membership.ParseRole(role)
	if err != nil {
		return membership.Member{}, err
	}
	m.Role = parsed
	return m, nil
}

func (s *Store) Member(ctx context.Context, projectID, userID string) (membership.Member, error) {
	if s.db == nil {
		return membership.Member{}, errNoDB
	}
	row := s.db.QueryRowContext(ctx, memberSelect+` where m.project_id = $1 and m.user_id = $2`, projectID, userID)
	m, err := scanMember(row)
	if errors.Is(err, sql.ErrNoRows) {
		return membership.Member{}, membership.ErrNotFound
	}
	return m, err
}

func (s *Store) InsertMember(ctx context.Context, m membership.Member) error {
	if s.db == nil {
		return errNoDB
	}
	_, err := s.db.ExecContext(ctx, `
		insert into project_members (project_id, user_id, role, created_at, updated_at)
		values ($1, $2, $3, $4, $5)
	`, m.ProjectID, m.UserID, m.Role.String(), m.CreatedAt, m.UpdatedAt)
	switch {
	case isUniqueViolation(err):
		return membership.ErrAlreadyMember
	case isForeignKeyViolation(err):
		return membership.ErrNotFound
	}
	return err
}

func (s *Store) ListMembers(ctx context.Context, projectID string) ([]membership.Member, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	rows, err := s.db.QueryContext(ctx, memberSelect+` where m.project_id = $1 order by m.created_at, m.user_id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]membership.Member, 0)
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) UpdateMemberRole(ctx context.Context, projectID, userID string, role membership.Role) error {
	return s.execOne(ctx, membership.ErrNotFound, `
		update project_members set role = $3, updated_at = now() where project_id = $1 and user_id = $2
	`, projectID, userID, role.String())
}

func (s *Store) DeleteMember(ctx context.Context, projectID, userID string) error {
	return s.execOne(ctx, membership.ErrNotFound,
		`delete from project_members where project_id = $1 and user_id = $2`, projectID, userID)
}

func (s *Store) DeleteMembers(ctx context.Context, projectID string) (int64, error) {
	return s.execCount(ctx, `delete from project_members where project_id = $1`, projectID)
}

func (s *Store) ProjectCreator(ctx context.Context, projectID string) (string, error) {
	if s.db == nil {
		return "", errNoDB
	}
	var creator string
	err := s.db.QueryRowContext(ctx, `select created_by from projects where id = $1`, projectID).Scan(&creator)
	if errors.Is(err, sql.ErrNoRows) {
		return "", membership.ErrNotFound
	}
	return creator, err
}
