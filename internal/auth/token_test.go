package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestIssueVerify_RoundTrip(t *testing.T) {
	m := NewTokenManager("test-secret", time.Hour)

	tok, err := m.Issue("user-1", "alice")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	uid, uname, err := m.Verify(tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if uid != "user-1" || uname != "alice" {
		t.Fatalf("identity = (%q, %q)", uid, uname)
	}
}

func TestVerify_RejectsWrongSecret(t *testing.T) {
	tok, err := NewTokenManager("secret-a", 0).Issue("user-1", "alice")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, _, err := NewTokenManager("secret-b", 0).Verify(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}

func TestVerify_RejectsGarbageAndExpired(t *testing.T) {
	m := NewTokenManager("test-secret", time.Hour)

	if _, _, err := m.Verify("not.a.jwt"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("garbage: err = %v, want ErrInvalidToken", err)
	}

	// Hand-craft an already-expired session token with the same secret.
	now := time.Now().UTC()
	expired := sessionClaims{
		Username: "alice",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			IssuedAt:  jwt.NewNumericDate(now.Add(-2 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(now.Add(-time.Hour)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, expired).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, _, err := m.Verify(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired: err = %v, want ErrInvalidToken", err)
	}
}

func TestVerify_ZeroTTLNeverExpires(t *testing.T) {
	m := NewTokenManager("test-secret", 0)
	tok, err := m.Issue("user-1", "alice")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, _, err := m.Verify(tok); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestResetTokens_ScopeIsolation(t *testing.T) {
	m := NewTokenManager("test-secret", time.Hour)

	reset, err := m.IssueReset("user-1", time.Hour)
	if err != nil {
		t.Fatalf("IssueReset: %v", err)
	}

	// A reset token authorizes a reset...
	uid, err := m.VerifyReset(reset)
	if err != nil || uid != "user-1" {
		t.Fatalf("VerifyReset: %q, %v", uid, err)
	}
	// ...but never a session.
	if _, _, err := m.Verify(reset); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("reset token accepted as session: %v", err)
	}

	// And a session token never authorizes a reset.
	session, err := m.Issue("user-1", "alice")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := m.VerifyReset(session); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("session token accepted as reset: %v", err)
	}
}

func TestVerifyReset_Expired(t *testing.T) {
	m := NewTokenManager("test-secret", 0)
	tok, err := m.IssueReset("user-1", -time.Minute)
	if err != nil {
		t.Fatalf("IssueReset: %v", err)
	}
	if _, err := m.VerifyReset(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired reset token: err = %v, want ErrInvalidToken", err)
	}
}
