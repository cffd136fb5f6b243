package project

import (
	"context"

	"taskhub.dev/internal/membership"
)

// Store persists projects and their content. Single-entity reads, updates and
// deletes return ErrNotFound for a missing row. Bulk deletes succeed on an
// empty match so cleanup can be re-run.
type Store interface {
	// CreateProject inserts the project and its creator's ADMIN membership as
	// one unit. A duplicate name returns ErrConflict.
	CreateProject(ctx context.Context, p Project, owner membership.Member) error
	Project(ctx context.Context, id string) (Project, error)
	ProjectsForUser(ctx context.Context, userID string) ([]UserProject, error)
	UpdateProject(ctx context.Context, p Project) error
	DeleteProject(ctx context.Context, id string) error

	InsertTask(ctx context.Context, t Task) error
	Task(ctx context.Context, id string) (Task, error)
	ListTasks(ctx context.Context, projectID string) ([]Task, error)
	UpdateTask(ctx context.Context, t Task) error
	DeleteTask(ctx context.Context, id string) error
	TaskIDs(ctx context.Context, projectID string) ([]string, error)
	DeleteTasks(ctx context.Context, projectID string) (int64, error)

	InsertSubtask(ctx context.Context, st Subtask) error
	Subtask(ctx context.Context, id string) (Subtask, error)
	ListSubtasks(ctx context.Context, taskID string) ([]Subtask, error)
	UpdateSubtask(ctx context.Context, st Subtask) error
	DeleteSubtask(ctx context.Context, id string) error
	DeleteSubtasks(ctx context.Context, taskIDs []string) (int64, error)

	InsertNote(ctx context.Context, n Note) error
	Note(ctx context.Context, id string) (Note, error)
	ListNotes(ctx context.Context, projectID string) ([]Note, error)
	UpdateNote(ctx context.Context, n Note) error
	DeleteNote(ctx context.Context, id string) error
	DeleteNotes(ctx context.Context, projectID string) (int64, error)
}
