package pg

import (
	"context"
	"database/sql"
	"errors"

	"taskhub.dev/internal/project"
)

const noteColumns = `id, project_id, created_by, content, created_at, updated_at`

func scanNote(row rowScanner) (project.Note, error) {
	var n project.Note
	err := row.Scan(&n.ID, &n.ProjectID, &n.CreatedBy, &n.Content, &n.CreatedAt, &n.UpdatedAt)
	return n, err
}

func (s *Store) InsertNote(ctx context.Context, n project.Note) error {
	if s.db == nil {
		return errNoDB
	}
	_, err := s.db.ExecContext(ctx, `
		insert into notes (`+noteColumns+`) values ($1, $2, $3, $4, $5, $6)
	`, n.ID, n.ProjectID, n.CreatedBy, n.Content, n.CreatedAt, n.UpdatedAt)
	if isUniqueViolation(err) {
		return project.ErrConflict
	}
	return err
}

func (s *Store) Note(ctx context.Context, id string) (project.Note, error) {
	if s.db == nil {
		return project.Note{}, errNoDB
	}
	n, err := scanNote(s.db.QueryRowContext(ctx, `select `+noteColumns+` from notes where id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return project.Note{}, project.ErrNotFound
	}
	return n, err
}

func (s *Store) ListNotes(ctx context.Context, projectID string) ([]project.Note, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	rows, err := s.db.QueryContext(ctx, `
		select `+noteColumns+` from notes where project_id = $1 order by created_at desc, id desc
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]project.Note, 0)
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) UpdateNote(ctx context.Context, n project.Note) error {
	return s.execOne(ctx, project.ErrNotFound, `
		update notes set content = $2, updated_at = $3 where id = $1
	`, n.ID, n.Content, n.UpdatedAt)
}

func (s *Store) DeleteNote(ctx context.Context, id string) error {
	return s.execOne(ctx, project.ErrNotFound, `delete from notes where id = $1`, id)
}

func (s *Store) DeleteNotes(ctx context.Context, projectID string) (int64, error) {
	return s.execCount(ctx, `delete from notes where project_id = $1`, projectID)
}
