package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/linkify/go-social-backend/internal/repo"
)

// fakeTokenIssuer mints deterministic tokens and records reset rounds.
type fakeTokenIssuer struct {
	resetSubject string // returned by VerifyReset
	resetErr     error
	issued       []string
}

func (f *fakeTokenIssuer) Issue(userID, username string) (string, error) {
	tok := "session:" + userID
	f.issued = append(f.issued, tok)
	return tok, nil
}

func (f *fakeTokenIssuer) IssueReset(userID string, ttl time.Duration) (string, error) {
	return "reset:" + userID, nil
}

func (f *fakeTokenIssuer) VerifyReset(token string) (string, error) {
	if f.resetErr != nil {
		return "", f.resetErr
	}
	if f.resetSubject != "" {
		return f.resetSubject, nil
	}
	return strings.TrimPrefix(token, "reset:"), nil
}

// fakeNotifier records deliveries; safe for the fire-and-forget goroutine.
type fakeNotifier struct {
	mu   sync.Mutex
	sent []string // "to|subject"
	done chan struct{}
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{done: make(chan struct{}, 4)}
}

func (f *fakeNotifier) Send(to, subject, body string) error {
	f.mu.Lock()
	f.sent = append(f.sent, to+"|"+subject)
	f.mu.Unlock()
	f.done <- struct{}{}
	return nil
}

func newAccountService(t *testing.T) (*AccountService, *fakeTokenIssuer, *fakeNotifier) {
	t.Helper()
	db := newServiceDB(t)
	tokens := &fakeTokenIssuer{}
	mailer := newFakeNotifier()
	svc := NewAccountService(db, tokens, mailer)
	return svc, tokens, mailer
}

func TestRegister_SuccessAndDuplicates(t *testing.T) {
	svc, tokens, _ := newAccountService(t)
	ctx := context.Background()

	tok, user, err := svc.Register(ctx, "alice", "alice@example.com", "s3cretpass")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.ID == "" || tok != "session:"+user.ID {
		t.Fatalf("unexpected result: tok=%q user=%+v", tok, user)
	}
	if len(tokens.issued) != 1 {
		t.Fatalf("issued = %d tokens, want 1", len(tokens.issued))
	}
	// The stored hash verifies against the password and is not plaintext.
	if user.PasswordHash == "s3cretpass" {
		t.Fatal("password stored in plaintext")
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("s3cretpass")) != nil {
		t.Fatal("stored hash does not verify")
	}

	if _, _, err := svc.Register(ctx, "alice", "other@example.com", "p"); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("duplicate username: err = %v, want ErrUsernameTaken", err)
	}
	if _, _, err := svc.Register(ctx, "bob", "alice@example.com", "p"); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("duplicate email: err = %v, want ErrEmailTaken", err)
	}
	if _, _, err := svc.Register(ctx, "", "x@example.com", "p"); !errors.Is(err, ErrMissingFields) {
		t.Fatalf("blank username: err = %v, want ErrMissingFields", err)
	}
}

func TestLogin(t *testing.T) {
	svc, _, _ := newAccountService(t)
	ctx := context.Background()

	_, user, err := svc.Register(ctx, "alice", "alice@example.com", "s3cretpass")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	tok, err := svc.Login(ctx, "alice", "s3cretpass")
	if err != nil || tok != "session:"+user.ID {
		t.Fatalf("Login: %q, %v", tok, err)
	}

	// Wrong password and unknown user collapse into the same error.
	if _, err := svc.Login(ctx, "alice", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password: err = %v, want ErrInvalidCredentials", err)
	}
	if _, err := svc.Login(ctx, "nobody", "s3cretpass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown user: err = %v, want ErrInvalidCredentials", err)
	}
	if _, err := svc.Login(ctx, "", ""); !errors.Is(err, ErrMissingFields) {
		t.Fatalf("blank credentials: err = %v, want ErrMissingFields", err)
	}
}

func TestProfile(t *testing.T) {
	svc, _, _ := newAccountService(t)
	ctx := context.Background()

	_, user, err := svc.Register(ctx, "alice", "alice@example.com", "s3cretpass")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	got, err := svc.Profile(ctx, user.ID)
	if err != nil || got.Username != "alice" {
		t.Fatalf("Profile: %+v, %v", got, err)
	}
	if _, err := svc.Profile(ctx, "missing"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("missing: err = %v, want ErrUserNotFound", err)
	}
}

func TestRequestPasswordReset_StoresTokenAndMails(t *testing.T) {
	svc, _, mailer := newAccountService(t)
	ctx := context.Background()

	_, user, err := svc.Register(ctx, "alice", "alice@example.com", "s3cretpass")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	tok, err := svc.RequestPasswordReset(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("RequestPasswordReset: %v", err)
	}
	if tok != "reset:"+user.ID {
		t.Fatalf("token = %q", tok)
	}

	// The token and expiry landed on the account row.
	stored, err := repo.GetUser(ctx, svc.DB, user.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.ResetToken == nil || *stored.ResetToken != tok {
		t.Fatalf("stored token = %v", stored.ResetToken)
	}
	if stored.ResetTokenExpires == nil || !stored.ResetTokenExpires.After(time.Now().UTC()) {
		t.Fatalf("stored expiry = %v", stored.ResetTokenExpires)
	}

	// Delivery happens asynchronously.
	select {
	case <-mailer.done:
	case <-time.After(2 * time.Second):
		t.Fatal("reset mail never sent")
	}
	mailer.mu.Lock()
	defer mailer.mu.Unlock()
	if len(mailer.sent) != 1 || !strings.HasPrefix(mailer.sent[0], "alice@example.com|") {
		t.Fatalf("deliveries = %v", mailer.sent)
	}

	if _, err := svc.RequestPasswordReset(ctx, "nobody@example.com"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("unknown email: err = %v, want ErrUserNotFound", err)
	}
}

func TestConfirmPasswordReset(t *testing.T) {
	svc, tokens, _ := newAccountService(t)
	ctx := context.Background()

	_, _, err := svc.Register(ctx, "alice", "alice@example.com", "oldpassword")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	tok, err := svc.RequestPasswordReset(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	if err := svc.ConfirmPasswordReset(ctx, tok, "newpassword"); err != nil {
		t.Fatalf("ConfirmPasswordReset: %v", err)
	}

	// New password works, old one does not, token is single-use.
	if _, err := svc.Login(ctx, "alice", "newpassword"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
	if _, err := svc.Login(ctx, "alice", "oldpassword"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password still valid: %v", err)
	}
	if err := svc.ConfirmPasswordReset(ctx, tok, "again"); !errors.Is(err, ErrInvalidResetToken) {
		t.Fatalf("token replay: err = %v, want ErrInvalidResetToken", err)
	}

	// A token that fails signature verification is rejected outright.
	tokens.resetErr = errors.New("bad signature")
	if err := svc.ConfirmPasswordReset(ctx, "garbage", "x"); !errors.Is(err, ErrInvalidResetToken) {
		t.Fatalf("bad token: err = %v, want ErrInvalidResetToken", err)
	}
	tokens.resetErr = nil

	if err := svc.ConfirmPasswordReset(ctx, tok, ""); !errors.Is(err, ErrMissingFields) {
		t.Fatalf("blank password: err = %v, want ErrMissingFields", err)
	}
}

func TestConfirmPasswordReset_ExpiredToken(t *testing.T) {
	svc, _, _ := newAccountService(t)
	ctx := context.Background()

	_, user, err := svc.Register(ctx, "alice", "alice@example.com", "oldpassword")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	tok, err := svc.RequestPasswordReset(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	// Rewind the stored expiry so the token is stale.
	past := time.Now().UTC().Add(-time.Minute)
	if err := repo.SetResetToken(ctx, svc.DB, user.ID, tok, past); err != nil {
		t.Fatalf("rewind expiry: %v", err)
	}

	if err := svc.ConfirmPasswordReset(ctx, tok, "newpassword"); !errors.Is(err, ErrInvalidResetToken) {
		t.Fatalf("expired token: err = %v, want ErrInvalidResetToken", err)
	}
}
