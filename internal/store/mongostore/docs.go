package mongostore

import (
	"time"

	"taskhub.dev/internal/auth"
	"taskhub.dev/internal/membership"
	"taskhub.dev/internal/project"
)

type userDoc struct {
	ID                    string     `bson:"_id"`
	Name                  string     `bson:"name"`
	Username              string     `bson:"username"`
	Email                 string     `bson:"email"`
	Avatar                string     `bson:"avatar"`
	PasswordHash          string     `bson:"password_hash"`
	EmailVerified         bool       `bson:"email_verified"`
	RefreshTokenHash      string     `bson:"refresh_token_hash"`
	VerificationHash      string     `bson:"email_verification_hash"`
	VerificationExpiresAt *time.Time `bson:"email_verification_expires_at,omitempty"`
	ResetHash             string     `bson:"password_reset_hash"`
	ResetExpiresAt        *time.Time `bson:"password_reset_expires_at,omitempty"`
	CreatedAt             time.Time  `bson:"created_at"`
	UpdatedAt             time.Time  `bson:"updated_at"`
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

func toUserDoc(u *auth.User) userDoc {
	return userDoc{
		ID:                    u.ID,
		Name:                  u.Name,
		Username:              u.Username,
		Email:                 u.Email,
		Avatar:                u.Avatar,
		PasswordHash:          u.PasswordHash,
		EmailVerified:         u.EmailVerified,
		RefreshTokenHash:      u.RefreshTokenHash,
		VerificationHash:      u.EmailVerification.Hash,
		VerificationExpiresAt: timePtr(u.EmailVerification.ExpiresAt),
		ResetHash:             u.PasswordReset.Hash,
		ResetExpiresAt:        timePtr(u.PasswordReset.ExpiresAt),
		CreatedAt:             u.CreatedAt,
		UpdatedAt:             u.UpdatedAt,
	}
}

func (d userDoc) user() auth.User {
	return auth.User{
		ID:                d.ID,
		Name:              d.Name,
		Username:          d.Username,
		Email:             d.Email,
		Avatar:            d.Avatar,
		PasswordHash:      d.PasswordHash,
		EmailVerified:     d.EmailVerified,
		RefreshTokenHash:  d.RefreshTokenHash,
		EmailVerification: auth.OneTimeSecret{Hash: d.VerificationHash, ExpiresAt: derefTime(d.VerificationExpiresAt)},
		PasswordReset:     auth.OneTimeSecret{Hash: d.ResetHash, ExpiresAt: derefTime(d.ResetExpiresAt)},
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
}

type memberDoc struct {
	ID        string    `bson:"_id"`
	ProjectID string    `bson:"project_id"`
	UserID    string    `bson:"user_id"`
	Role      string    `bson:"role"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func memberID(projectID, userID string) string { return projectID + "/" + userID }

func toMemberDoc(m membership.Member) memberDoc {
	return memberDoc{
		ID:        memberID(m.ProjectID, m.UserID),
		ProjectID: m.ProjectID,
		UserID:    m.UserID,
		Role:      m.Role.String(),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func (d memberDoc) member() (membership.Member, error) {
	role, err := membership.ParseRole(d.Role)
	if err != nil {
		return membership.Member{}, err
	}
	return membership.Member{
		ProjectID: d.ProjectID,
		UserID:    d.UserID,
		Role:      role,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}, nil
}

type projectDoc struct {
	ID          string    `bson:"_id"`
	Name        string    `bson:"name"`
	Description string    `bson:"description"`
	CreatedBy   string    `bson:"created_by"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

func toProjectDoc(p project.Project) projectDoc {
	return projectDoc(p)
}

func (d projectDoc) project() project.Project {
	return project.Project(d)
}

type attachmentDoc struct {
	URL      string `bson:"url"`
	MimeType string `bson:"mime_type"`
	Size     int64  `bson:"size"`
}

type taskDoc struct {
	ID          string          `bson:"_id"`
	ProjectID   string          `bson:"project_id"`
	Title       string          `bson:"title"`
	Description string          `bson:"description"`
	AssignedTo  string          `bson:"assigned_to,omitempty"`
	AssignedBy  string          `bson:"assigned_by"`
	Status      string          `bson:"status"`
	Attachments []attachmentDoc `bson:"attachments"`
	CreatedAt   time.Time       `bson:"created_at"`
	UpdatedAt   time.Time       `bson:"updated_at"`
}

func toTaskDoc(t project.Task) taskDoc {
	atts := make([]attachmentDoc, 0, len(t.Attachments))
	for _, a := range t.Attachments {
		atts = append(atts, attachmentDoc(a))
	}
	return taskDoc{
		ID:          t.ID,
		ProjectID:   t.ProjectID,
		Title:       t.Title,
		Description: t.Description,
		AssignedTo:  t.AssignedTo,
		AssignedBy:  t.AssignedBy,
		Status:      string(t.Status),
		Attachments: atts,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func (d taskDoc) task() project.Task {
	atts := make([]project.Attachment, 0, len(d.Attachments))
	for _, a := range d.Attachments {
		atts = append(atts, project.Attachment(a))
	}
	return project.Task{
		ID:          d.ID,
		ProjectID:   d.ProjectID,
		Title:       d.Title,
		Description: d.Description,
		AssignedTo:  d.AssignedTo,
		AssignedBy:  d.AssignedBy,
		Status:      project.TaskStatus(d.Status),
		Attachments: atts,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

type subtaskDoc struct {
	ID          string    `bson:"_id"`
	TaskID      string    `bson:"task_id"`
	Title       string    `bson:"title"`
	IsCompleted bool      `bson:"is_completed"`
	CreatedBy   string    `bson:"created_by"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

type noteDoc struct {
	ID        string    `bson:"_id"`
	ProjectID string    `bson:"project_id"`
	CreatedBy string    `bson:"created_by"`
	Content   string    `bson:"content"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}
