package mail

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestOutboxRecordsMessages(t *testing.T) {
	var box Outbox
	msg := VerificationMessage("ann@example.com", "ann", "http://localhost:8080/v1/auth/verify-email/abc123")
	if err := box.Send(context.Background(), msg); err != nil {
		t.Fatalf("Send: %v", err)
	}
	got, ok := box.Last("ANN@example.com")
	if !ok {
		t.Fatal("expected message for recipient")
	}
	if got.Subject != "Please verify your email" {
		t.Fatalf("unexpected subject: %q", got.Subject)
	}
	if tok := TokenFromLink(got.Text); tok != "abc123" {
		t.Fatalf("unexpected token: %q", tok)
	}
	if len(box.Messages()) != 1 {
		t.Fatalf("expected one message, got %d", len(box.Messages()))
	}
}

func TestOutboxFailure(t *testing.T) {
	var box Outbox
	boom := errors.New("smtp down")
	box.FailWith(boom)
	err := box.Send(context.Background(), PasswordResetMessage("bob@example.com", "", "https://x.test/reset/t"))
	if !errors.Is(err, boom) {
		t.Fatalf("expected configured failure, got %v", err)
	}
}

func TestMessageValidate(t *testing.T) {
	if err := (Message{To: "not an address", Subject: "x"}).Validate(); !errors.Is(err, ErrInvalidMessage) {
		t.Fatalf("expected invalid recipient, got %v", err)
	}
	if err := (Message{To: "a@example.com"}).Validate(); !errors.Is(err, ErrInvalidMessage) {
		t.Fatalf("expected missing subject, got %v", err)
	}
}

func TestLogSenderWritesEntry(t *testing.T) {
	var buf bytes.Buffer
	s := NewLogSender(slog.New(slog.NewJSONHandler(&buf, nil)), "no-reply@taskhub.local")
	if err := s.Send(context.Background(), PasswordResetMessage("c@example.com", "c", "https://x.test/r/1")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !strings.Contains(buf.String(), `"to":"c@example.com"`) {
		t.Fatalf("log entry missing recipient: %s", buf.String())
	}
}
