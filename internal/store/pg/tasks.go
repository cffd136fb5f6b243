package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"taskhub.dev/internal/project"
)

const taskColumns = `id, project_id, title, description, assigned_to, assigned_by, status, attachments, created_at, updated_at`

func scanTask(row rowScanner) (project.Task, error) {
	var (
		t           project.Task
		assignedTo  sql.NullString
		status      string
		attachments []byte
	)
	if err := row.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Description, &assignedTo, &t.AssignedBy, &status,
		&attachments, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return project.Task{}, err
	}
	t.AssignedTo = assignedTo.String
	t.Status = project.TaskStatus(status)
	t.Attachments = []project.Attachment{}
	if len(attachments) > 0 {
		if err := json.Unmarshal(attachments, &t.Attachments); err != nil {
			return project.Task{}, fmt.Errorf("decode attachments: %w", err)
		}
	}
	return t, nil
}

func encodeAttachments(in []project.Attachment) ([]byte, error) {
	if in == nil {
		in = []project.Attachment{}
	}
	b, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("marshal attachments: %w", err)
	}
	return b, nil
}

func (s *Store) InsertTask(ctx context.Context, t project.Task) error {
	if s.db == nil {
		return errNoDB
	}
	attachments, err := encodeAttachments(t.Attachments)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		insert into tasks (`+taskColumns+`)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, t.ID, t.ProjectID, t.Title, t.Description, nullIfEmpty(t.AssignedTo), t.AssignedBy, string(t.Status),
		attachments, t.CreatedAt, t.UpdatedAt)
	if isUniqueViolation(err) {
		return project.ErrConflict
	}
	return err
}

func (s *Store) Task(ctx context.Context, id string) (project.Task, error) {
	if s.db == nil {
		return project.Task{}, errNoDB
	}
	t, err := scanTask(s.db.QueryRowContext(ctx, `select `+taskColumns+` from tasks where id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return project.Task{}, project.ErrNotFound
	}
	return t, err
}

func (s *Store) ListTasks(ctx context.Context, projectID string) ([]project.Task, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	rows, err := s.db.QueryContext(ctx, `
		select `+taskColumns+` from tasks where project_id = $1 order by created_at desc, id desc
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]project.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) UpdateTask(ctx context.Context, t project.Task) error {
	attachments, err := encodeAttachments(t.Attachments)
	if err != nil {
		return err
	}
	return s.execOne(ctx, project.ErrNotFound, `
		update tasks set title = $2, description = $3, assigned_to = $4, status = $5, attachments = $6, updated_at = $7
		where id = $1
	`, t.ID, t.Title, t.Description, nullIfEmpty(t.AssignedTo), string(t.Status), attachments, t.UpdatedAt)
}

func (s *Store) DeleteTask(ctx context.Context, id string) error {
	return s.execOne(ctx, project.ErrNotFound, `delete from tasks where id = $1`, id)
}

func (s *Store) TaskIDs(ctx context.Context, projectID string) ([]string, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	rows, err := s.db.QueryContext(ctx, `select id from tasks where project_id = $1 order by id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) DeleteTasks(ctx context.Context, projectID string) (int64, error) {
	return s.execCount(ctx, `delete from tasks where project_id = $1`, projectID)
}

// ---- subtasks ----

const subtaskColumns = `id, task_id, title, is_completed, created_by, created_at, updated_at`

func scanSubtask(row rowScanner) (project.Subtask, error) {
	var st project.Subtask
	err := row.Scan(&st.ID, &st.TaskID, &st.Title, &st.IsCompleted, &st.CreatedBy, &st.CreatedAt, &st.UpdatedAt)
	return st, err
}

func (s *Store) InsertSubtask(ctx context.Context, st project.Subtask) error {
	if s.db == nil {
		return errNoDB
	}
	_, err := s.db.ExecContext(ctx, `
		insert into subtasks (`+subtaskColumns+`) values ($1, $2, $3, $4, $5, $6, $7)
	`, st.ID, st.TaskID, st.Title, st.IsCompleted, st.CreatedBy, st.CreatedAt, st.UpdatedAt)
	if isUniqueViolation(err) {
		return project.ErrConflict
	}
	return err
}

func (s *Store) Subtask(ctx context.Context, id string) (project.Subtask, error) {
	if s.db == nil {
		return project.Subtask{}, errNoDB
	}
	st, err := scanSubtask(s.db.QueryRowContext(ctx, `select `+subtaskColumns+` from subtasks where id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return project.Subtask{}, project.ErrNotFound
	}
	return st, err
}

func (s *Store) ListSubtasks(ctx context.Context, taskID string) ([]project.Subtask, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	rows, err := s.db.QueryContext(ctx, `
		select `+subtaskColumns+` from subtasks where task_id = $1 order by created_at, id
	`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]project.Subtask, 0)
	for rows.Next() {
		st, err := scanSubtask(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) UpdateSubtask(ctx context.Context, st project.Subtask) error {
	return s.execOne(ctx, project.ErrNotFound, `
		update subtasks set title = $2, is_completed = $3, updated_at = $4 where id = $1
	`, st.ID, st.Title, st.IsCompleted, st.UpdatedAt)
}

func (s *Store) DeleteSubtask(ctx context.Context, id string) error {
	return s.execOne(ctx, project.ErrNotFound, `delete from subtasks where id = $1`, id)
}

func (s *Store) DeleteSubtasks(ctx context.Context, taskIDs []string) (int64, error) {
	if len(taskIDs) == 0 {
		return 0, nil
	}
	args := make([]any, len(taskIDs))
	for i, id := range taskIDs {
		args[i] = id
	}
	return s.execCount(ctx, `delete from subtasks where task_id in (`+placeholders(1, len(taskIDs))+`)`, args...)
}
