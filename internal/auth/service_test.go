package auth_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"taskhub.dev/internal/auth"
	"taskhub.dev/internal/mail"
	"taskhub.dev/internal/store/memory"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type harness struct {
	svc    *auth.Service
	store  *memory.Store
	outbox *mail.Outbox
	clock  *clock
}

func newHarness(t *testing.T) harness {
	t.Helper()
	clk := &clock{now: time.Now().UTC()}
	tokens, err := auth.NewTokenService(
		"access-secret-access-secret-access-secret",
		"refresh-secret-refresh-secret-refresh-secret",
		auth.WithClock(clk.Now),
		auth.WithOneTimeTTL(20*time.Minute),
	)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	st := memory.New()
	outbox := &mail.Outbox{}
	svc, err := auth.NewService(st, tokens, auth.WithMailer(outbox), auth.WithBaseURL("https://taskhub.test/"))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return harness{svc: svc, store: st, outbox: outbox, clock: clk}
}

func (h harness) register(t *testing.T, username string) auth.User {
	t.Helper()
	u, err := h.svc.Register(context.Background(), auth.Registration{
		Name:     "Test " + username,
		Email:    username + "@example.com",
		Username: username,
		Password: "password-" + username,
	})
	if err != nil {
		t.Fatalf("Register %s: %v", username, err)
	}
	return u
}

func (h harness) mailedToken(t *testing.T, to string) string {
	t.Helper()
	msg, ok := h.outbox.Last(to)
	if !ok {
		t.Fatalf("no mail sent to %s", to)
	}
	tok := mail.TokenFromLink(msg.Text)
	if tok == "" {
		t.Fatalf("no link in mail: %q", msg.Text)
	}
	return tok
}

func TestRegisterValidatesAndRejectsDuplicates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.register(t, "ann")
	if u.EmailVerified || u.EmailVerification.Empty() {
		t.Fatalf("new user should be unverified with a pending token: %+v", u)
	}
	if u.PasswordHash == "password-ann" {
		t.Fatal("password stored in plain text")
	}

	_, err := h.svc.Register(ctx, auth.Registration{Email: "ANN@example.com", Username: "ann2", Password: "password-x"})
	if !errors.Is(err, auth.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	bad := []auth.Registration{
		{Email: "not-an-email", Username: "bob", Password: "password-bob"},
		{Email: "bob@example.com", Username: "b", Password: "password-bob"},
		{Email: "bob@example.com", Username: "bob", Password: "short"},
	}
	for _, in := range bad {
		if _, err := h.svc.Register(ctx, in); !errors.Is(err, auth.ErrInvalidInput) {
			t.Fatalf("%+v: expected ErrInvalidInput, got %v", in, err)
		}
	}
}

func TestRegisterSurvivesMailFailure(t *testing.T) {
	h := newHarness(t)
	h.outbox.FailWith(errors.New("smtp down"))
	u := h.register(t, "ann")
	if u.ID == "" {
		t.Fatal("user not created")
	}
	if len(h.outbox.Messages()) != 0 {
		t.Fatal("unexpected delivered mail")
	}
}

func TestLoginByEmailOrUsername(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.register(t, "ann")

	for _, cred := range []string{"ann", "ANN@example.com"} {
		sess, err := h.svc.Login(ctx, cred, "password-ann")
		if err != nil {
			t.Fatalf("Login(%s): %v", cred, err)
		}
		if sess.Tokens.AccessToken == "" || sess.Tokens.RefreshToken == "" {
			t.Fatalf("missing tokens: %+v", sess.Tokens)
		}
		stored, _ := h.store.UserByID(ctx, sess.User.ID)
		if stored.RefreshTokenHash != auth.HashToken(sess.Tokens.RefreshToken) {
			t.Fatal("refresh hash not persisted")
		}
	}

	_, err := h.svc.Login(ctx, "ann", "wrong-password")
	if !errors.Is(err, auth.ErrUnauthorized) || auth.FailureReason(err) != "bad_credentials" {
		t.Fatalf("expected bad credentials, got %v", err)
	}
	_, err = h.svc.Login(ctx, "ghost", "password-ann")
	if !errors.Is(err, auth.ErrUnauthorized) {
		t.Fatalf("unknown user: expected ErrUnauthorized, got %v", err)
	}
}

func TestAuthenticate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.register(t, "ann")
	sess, _ := h.svc.Login(ctx, "ann", "password-ann")

	id, err := h.svc.Authenticate(ctx, sess.Tokens.AccessToken)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if id.UserID != u.ID || id.EmailVerified {
		t.Fatalf("unexpected identity: %+v", id)
	}
	if _, err := h.svc.Authenticate(ctx, sess.Tokens.RefreshToken); !errors.Is(err, auth.ErrUnauthorized) {
		t.Fatalf("refresh token authenticated: %v", err)
	}
	h.clock.Advance(time.Hour)
	if _, err := h.svc.Authenticate(ctx, sess.Tokens.AccessToken); !errors.Is(err, auth.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestRefreshRotatesAndRevokesOldToken(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.register(t, "ann")
	sess, _ := h.svc.Login(ctx, "ann", "password-ann")

	next, err := h.svc.Refresh(ctx, sess.Tokens.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if next.Tokens.RefreshToken == sess.Tokens.RefreshToken {
		t.Fatal("refresh token not rotated")
	}
	if _, err := h.svc.Refresh(ctx, sess.Tokens.RefreshToken); !errors.Is(err, auth.ErrTokenRevoked) {
		t.Fatalf("old refresh token reused: %v", err)
	}
	if _, err := h.svc.Refresh(ctx, next.Tokens.RefreshToken); err != nil {
		t.Fatalf("rotated token rejected: %v", err)
	}
}

func TestConcurrentRefreshHasOneWinner(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.register(t, "ann")
	sess, _ := h.svc.Login(ctx, "ann", "password-ann")

	const n = 16
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.svc.Refresh(ctx, sess.Tokens.RefreshToken)
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
				return
			}
			if !errors.Is(err, auth.ErrUnauthorized) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one successful refresh, got %d", wins)
	}
}

func TestLogoutRevokesRefresh(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.register(t, "ann")
	sess, _ := h.svc.Login(ctx, "ann", "password-ann")
	if err := h.svc.Logout(ctx, u.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := h.svc.Refresh(ctx, sess.Tokens.RefreshToken); !errors.Is(err, auth.ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked, got %v", err)
	}
}

func TestVerifyEmail(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.register(t, "ann")
	tok := h.mailedToken(t, u.Email)

	verified, err := h.svc.VerifyEmail(ctx, tok)
	if err != nil {
		t.Fatalf("VerifyEmail: %v", err)
	}
	if !verified.EmailVerified {
		t.Fatal("not verified")
	}
	if _, err := h.svc.VerifyEmail(ctx, tok); !errors.Is(err, auth.ErrUnauthorized) {
		t.Fatalf("token reused: %v", err)
	}
	if err := h.svc.ResendVerification(ctx, u.ID); !errors.Is(err, auth.ErrAlreadyVerified) {
		t.Fatalf("expected ErrAlreadyVerified, got %v", err)
	}
}

func TestVerifyEmailExpiredAndResend(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.register(t, "ann")
	first := h.mailedToken(t, u.Email)

	h.clock.Advance(21 * time.Minute)
	if _, err := h.svc.VerifyEmail(ctx, first); !errors.Is(err, auth.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}

	if err := h.svc.ResendVerification(ctx, u.ID); err != nil {
		t.Fatalf("ResendVerification: %v", err)
	}
	second := h.mailedToken(t, u.Email)
	if second == first {
		t.Fatal("resend reused the old token")
	}
	if _, err := h.svc.VerifyEmail(ctx, second); err != nil {
		t.Fatalf("VerifyEmail: %v", err)
	}
}

func TestResendInvalidatesPreviousToken(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.register(t, "ann")
	first := h.mailedToken(t, u.Email)
	if err := h.svc.ResendVerification(ctx, u.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := h.svc.VerifyEmail(ctx, first); !errors.Is(err, auth.ErrUnauthorized) {
		t.Fatalf("superseded token accepted: %v", err)
	}
}

func TestPasswordResetFlow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.register(t, "ann")
	sess, _ := h.svc.Login(ctx, "ann", "password-ann")

	if err := h.svc.ForgotPassword(ctx, "nobody@example.com"); err != nil {
		t.Fatalf("unknown email should succeed silently: %v", err)
	}
	if err := h.svc.ForgotPassword(ctx, u.Email); err != nil {
		t.Fatal(err)
	}
	msg, _ := h.outbox.Last(u.Email)
	tok := mail.TokenFromLink(msg.Text)

	if err := h.svc.ResetPassword(ctx, tok, "short"); !errors.Is(err, auth.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if err := h.svc.ResetPassword(ctx, tok, "brand-new-password"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}
	if err := h.svc.ResetPassword(ctx, tok, "another-password"); !errors.Is(err, auth.ErrUnauthorized) {
		t.Fatalf("reset token reused: %v", err)
	}
	if _, err := h.svc.Refresh(ctx, sess.Tokens.RefreshToken); !errors.Is(err, auth.ErrUnauthorized) {
		t.Fatalf("session survived password reset: %v", err)
	}
	if _, err := h.svc.Login(ctx, "ann", "brand-new-password"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.register(t, "ann")
	sess, err := h.svc.Login(ctx, "ann", "password-ann")
	if err != nil {
		t.Fatal(err)
	}

	if err := h.svc.ChangePassword(ctx, u.ID, "wrong-password", "next-password"); !errors.Is(err, auth.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if err := h.svc.ChangePassword(ctx, u.ID, "password-ann", "password-ann"); !errors.Is(err, auth.ErrInvalidInput) {
		t.Fatalf("same password accepted: %v", err)
	}
	if err := h.svc.ChangePassword(ctx, u.ID, "password-ann", "next-password"); err != nil {
		t.Fatal(err)
	}
	if _, err := h.svc.Refresh(ctx, sess.Tokens.RefreshToken); !errors.Is(err, auth.ErrTokenRevoked) {
		t.Fatalf("refresh token outlived password change: %v", err)
	}
	if _, err := h.svc.Login(ctx, "ann", "next-password"); err != nil {
		t.Fatalf("login with changed password: %v", err)
	}
}

func TestUserIDByEmail(t *testing.T) {
	h := newHarness(t)
	u := h.register(t, "ann")
	id, err := h.svc.UserIDByEmail(context.Background(), " Ann@Example.com ")
	if err != nil || id != u.ID {
		t.Fatalf("UserIDByEmail: id=%q err=%v", id, err)
	}
	if _, err := h.svc.UserIDByEmail(context.Background(), "ghost@example.com"); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
