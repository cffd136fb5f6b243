package pg

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"taskhub.dev/internal/auth"
	"taskhub.dev/internal/membership"
	"taskhub.dev/internal/project"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		db.Close()
	})
	return New(db), mock
}

var userCols = []string{
	"id", "name", "username", "email", "avatar", "password_hash", "email_verified", "refresh_token_hash",
	"email_verification_hash", "email_verification_expires_at", "password_reset_hash", "password_reset_expires_at",
	"created_at", "updated_at",
}

func TestCreateProjectInsertsOwnerInTransaction(t *testing.T) {
	s, mock := newMock(t)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	p := project.Project{ID: "p1", Name: "Apollo", CreatedBy: "u1", CreatedAt: now, UpdatedAt: now}

	mock.ExpectBegin()
	mock.ExpectExec("insert into projects").
		WithArgs("p1", "Apollo", "", "u1", now, now).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("insert into project_members").
		WithArgs("p1", "u1", "ADMIN", now, now).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	if err := s.CreateProject(context.Background(), p, membership.CreatorMember("p1", "u1", now)); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
}

func TestCreateProjectDuplicateNameRollsBack(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec("insert into projects").WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})
	mock.ExpectRollback()

	err := s.CreateProject(context.Background(), project.Project{ID: "p1", Name: "Apollo"}, membership.CreatorMember("p1", "u1", time.Now()))
	if !errors.Is(err, project.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestCreateProjectMemberFailureRollsBack(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec("insert into projects").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("insert into project_members").WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	if err := s.CreateProject(context.Background(), project.Project{ID: "p1"}, membership.CreatorMember("p1", "u1", time.Now())); err == nil {
		t.Fatal("expected error")
	}
}

func TestCreateUserDuplicate(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec("insert into users").WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})
	if err := s.CreateUser(context.Background(), &auth.User{ID: "u1"}); !errors.Is(err, auth.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestUserByEmailScansSecrets(t *testing.T) {
	s, mock := newMock(t)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	exp := now.Add(20 * time.Minute)
	mock.ExpectQuery("from users where email = \\$1").WithArgs("ann@example.com").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(
			"u1", "Ann", "ann", "ann@example.com", "", "hash", false, "rt",
			"vh", exp, nil, nil, now, now))

	u, err := s.UserByEmail(context.Background(), "ann@example.com")
	if err != nil {
		t.Fatalf("UserByEmail: %v", err)
	}
	if u.EmailVerification.Hash != "vh" || !u.EmailVerification.ExpiresAt.Equal(exp) {
		t.Fatalf("unexpected verification secret %+v", u.EmailVerification)
	}
	if !u.PasswordReset.Empty() || u.RefreshTokenHash != "rt" {
		t.Fatalf("unexpected user %+v", u)
	}
}

func TestUserByIDNotFound(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery("from users where id = \\$1").WithArgs("nope").WillReturnRows(sqlmock.NewRows(userCols))
	if _, err := s.UserByID(context.Background(), "nope"); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSwapRefreshTokenCompareAndSwap(t *testing.T) {
	s, mock := newMock(t)
	q := regexp.QuoteMeta("where id = $1 and refresh_token_hash = $2")
	mock.ExpectExec(q).WithArgs("u1", "old", "new").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs("u1", "old", "newer").WillReturnResult(sqlmock.NewResult(0, 0))

	ctx := context.Background()
	if err := s.SwapRefreshToken(ctx, "u1", "old", "new"); err != nil {
		t.Fatalf("first swap: %v", err)
	}
	if err := s.SwapRefreshToken(ctx, "u1", "old", "newer"); !errors.Is(err, auth.ErrStaleToken) {
		t.Fatalf("expected ErrStaleToken, got %v", err)
	}
}

func TestConsumePasswordResetRevokesSession(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("refresh_token_hash = ''")).
		WithArgs("u1", "rh", "pw").
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := s.ConsumePasswordReset(context.Background(), "u1", "rh", "pw"); err != nil {
		t.Fatalf("ConsumePasswordReset: %v", err)
	}
}

func TestMemberParsesRole(t *testing.T) {
	s, mock := newMock(t)
	now := time.Now()
	mock.ExpectQuery("from project_members m").WithArgs("p1", "u2").
		WillReturnRows(sqlmock.NewRows([]string{"project_id", "user_id", "role", "username", "email", "name", "created_at", "updated_at"}).
			AddRow("p1", "u2", "PROJECT_ADMIN", "bob", "bob@example.com", "Bob", now, now))

	m, err := s.Member(context.Background(), "p1", "u2")
	if err != nil {
		t.Fatalf("Member: %v", err)
	}
	if m.Role != membership.RoleProjectAdmin || m.Username != "bob" {
		t.Fatalf("unexpected member %+v", m)
	}
}

func TestInsertMemberErrors(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec("insert into project_members").WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})
	mock.ExpectExec("insert into project_members").WillReturnError(&pgconn.PgError{Code: pgErrForeignKeyViolation})

	m := membership.Member{ProjectID: "p1", UserID: "u2", Role: membership.RoleMember}
	if err := s.InsertMember(context.Background(), m); !errors.Is(err, membership.ErrAlreadyMember) {
		t.Fatalf("expected ErrAlreadyMember, got %v", err)
	}
	if err := s.InsertMember(context.Background(), m); !errors.Is(err, membership.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteMemberMissing(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec("delete from project_members").WithArgs("p1", "u9").WillReturnResult(sqlmock.NewResult(0, 0))
	if err := s.DeleteMember(context.Background(), "p1", "u9"); !errors.Is(err, membership.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteSubtasksForTasks(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("delete from subtasks where task_id in ($1,$2)")).
		WithArgs("t1", "t2").
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := s.DeleteSubtasks(context.Background(), []string{"t1", "t2"})
	if err != nil || n != 3 {
		t.Fatalf("DeleteSubtasks = %d, %v", n, err)
	}
	if n, err := s.DeleteSubtasks(context.Background(), nil); err != nil || n != 0 {
		t.Fatalf("empty DeleteSubtasks = %d, %v", n, err)
	}
}

func TestTaskDecodesAttachments(t *testing.T) {
	s, mock := newMock(t)
	now := time.Now()
	mock.ExpectQuery("from tasks where id = \\$1").WithArgs("t1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "project_id", "title", "description", "assigned_to", "assigned_by", "status", "attachments", "created_at", "updated_at"}).
			AddRow("t1", "p1", "Launch", "", nil, "u1", "IN_PROGRESS", []byte(`[{"url":"https://x/a.png","mime_type":"image/png","size":12}]`), now, now))

	task, err := s.Task(context.Background(), "t1")
	if err != nil {
		t.Fatalf("Task: %v", err)
	}
	if task.Status != project.StatusInProgress || task.AssignedTo != "" {
		t.Fatalf("unexpected task %+v", task)
	}
	if len(task.Attachments) != 1 || task.Attachments[0].Size != 12 {
		t.Fatalf("unexpected attachments %+v", task.Attachments)
	}
}

func TestProjectsForUser(t *testing.T) {
	s, mock := newMock(t)
	now := time.Now()
	mock.ExpectQuery("from project_members m").WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "created_by", "created_at", "updated_at", "role", "count"}).
			AddRow("p1", "Apollo", "", "u1", now, now, "ADMIN", 3))

	list, err := s.ProjectsForUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("ProjectsForUser: %v", err)
	}
	if len(list) != 1 || list[0].Role != membership.RoleAdmin || list[0].MemberCount != 3 {
		t.Fatalf("unexpected list %+v", list)
	}
}
