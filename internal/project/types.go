package project

import (
	"fmt"
	"strings"
	"time"

	"taskhub.dev/internal/membership"
)

// Project owns its memberships, tasks and notes.
type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type ProjectUpdate struct {
	Name        *string
	Description *string
}

// UserProject is a project as seen from one member's list.
type UserProject struct {
	Project
	Role        membership.Role `json:"role"`
	MemberCount int             `json:"member_count"`
}

// ProjectDetail is a project with its members.
type ProjectDetail struct {
	Project
	Role    membership.Role     `json:"role"`
	Members []membership.Member `json:"members"`
}

type TaskStatus string

const (
	StatusTodo       TaskStatus = "TODO"
	StatusInProgress TaskStatus = "IN_PROGRESS"
	StatusDone       TaskStatus = "DONE"
)

// ParseStatus accepts the wire names case-insensitively; empty means TODO.
func ParseStatus(raw string) (TaskStatus, error) {
	switch s := TaskStatus(strings.ToUpper(strings.TrimSpace(raw))); s {
	case "":
		return StatusTodo, nil
	case StatusTodo, StatusInProgress, StatusDone:
		return s, nil
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrInvalidInput, raw)
}

// Attachment is file metadata; the bytes live elsewhere.
type Attachment struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
}

type Task struct {
	ID          string       `json:"id"`
	ProjectID   string       `json:"project_id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	AssignedTo  string       `json:"assigned_to,omitempty"`
	AssignedBy  string       `json:"assigned_by"`
	Status      TaskStatus   `json:"status"`
	Attachments []Attachment `json:"attachments"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

type NewTask struct {
	Title       string
	Description string
	AssignedTo  string
	Status      string
	Attachments []Attachment
}

type TaskUpdate struct {
	Title       *string
	Description *string
	AssignedTo  *string
	Status      *string
}

// statusOnly reports whether the update touches nothing but the status.
func (u TaskUpdate) statusOnly() bool {
	return u.Title == nil && u.Description == nil && u.AssignedTo == nil
}

// TaskDetail is a task with its subtasks.
type TaskDetail struct {
	Task
	Subtasks []Subtask `json:"subtasks"`
}

type Subtask struct {
	ID          string    `json:"id"`
	TaskID      string    `json:"task_id"`
	Title       string    `json:"title"`
	IsCompleted bool      `json:"is_completed"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type SubtaskUpdate struct {
	Title       *string
	IsCompleted *bool
}

func (u SubtaskUpdate) completionOnly() bool {
	return u.Title == nil
}

type Note struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	CreatedBy string    `json:"created_by"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CleanupReport describes one run of the cascade cleanup.
type CleanupReport struct {
	Members  int64
	Tasks    int64
	Subtasks int64
	Notes    int64
	Failed   []string
}
