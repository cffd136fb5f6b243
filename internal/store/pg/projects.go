package pg

import (
	"context"
	"database/sql"
	"errors"

	"taskhub.dev/internal/membership"
	"taskhub.dev/internal/project"
)

const projectColumns = `id, name, description, created_by, created_at, updated_at`

// CreateProject inserts the project and its owner membership in one
// transaction.
func (s *Store) CreateProject(ctx context.Context, p project.Project, owner membership.Member) error {
	if s.db == nil {
		return errNoDB
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		insert into projects (id, name, description, created_by, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6)
	`, p.ID, p.Name, p.Description, p.CreatedBy, p.CreatedAt, p.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return project.ErrConflict
		}
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		insert into project_members (project_id, user_id, role, created_at, updated_at)
		values ($1, $2, $3, $4, $5)
	`, owner.ProjectID, owner.UserID, owner.Role.String(), owner.CreatedAt, owner.UpdatedAt); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) Project(ctx context.Context, id string) (project.Project, error) {
	if s.db == nil {
		return project.Project{}, errNoDB
	}
	var p project.Project
	err := s.db.QueryRowContext(ctx, `select `+projectColumns+` from projects where id = $1`, id).
		Scan(&p.ID, &p.Name, &p.Description, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return project.Project{}, project.ErrNotFound
	}
	if err != nil {
		return project.Project{}, err
	}
	return p, nil
}

func (s *Store) ProjectsForUser(ctx context.Context, userID string) ([]project.UserProject, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	rows, err := s.db.QueryContext(ctx, `
		select p.id, p.name, p.description, p.created_by, p.created_at, p.updated_at, m.role,
			(select count(*) from project_members c where c.project_id = p.id)
		from project_members m
		join projects p on p.id = m.project_id
		where m.user_id = $1
		order by p.created_at desc, p.id desc
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]project.UserProject, 0)
	for rows.Next() {
		var (
			up   project.UserProject
			role string
		)
		if err := rows.Scan(&up.ID, &up.Name, &up.Description, &up.CreatedBy, &up.CreatedAt, &up.UpdatedAt,
			&role, &up.MemberCount); err != nil {
			return nil, err
		}
		if up.Role, err = membership.ParseRole(role); err != nil {
			return nil, err
		}
		result = append(result, up)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) UpdateProject(ctx context.Context, p project.Project) error {
	err := s.execOne(ctx, project.ErrNotFound, `
		update projects set name = $2, description = $3, updated_at = $4 where id = $1
	`, p.ID, p.Name, p.Description, p.UpdatedAt)
	if isUniqueViolation(err) {
		return project.ErrConflict
	}
	return err
}

func (s *Store) DeleteProject(ctx context.Context, id string) error {
	return s.execOne(ctx, project.ErrNotFound, `delete from projects where id = $1`, id)
}
