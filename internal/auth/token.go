// Package auth implements the identity and session concern: minting and
// verifying the JWT bearer tokens that authenticate API callers, plus the
// short-lived tokens used by the password-reset flow. The rest of the
// application only ever sees a stable user identifier; credentials and
// token mechanics stay behind this package.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for tokens that fail signature, expiry, or
// scope checks.
var ErrInvalidToken = errors.New("invalid token")

const resetScope = "password_reset"

// TokenManager issues and verifies HMAC-signed JWTs.
type TokenManager struct {
	secret     []byte
	sessionTTL time.Duration
}

// NewTokenManager builds a TokenManager signing with secret. sessionTTL
// of zero means session tokens do not expire (reset tokens always do).
func NewTokenManager(secret string, sessionTTL time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), sessionTTL: sessionTTL}
}

type sessionClaims struct {
	Username string `json:"username"`
	// Scope is only present on reset tokens; Verify uses it to reject them.
	Scope string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

type resetClaims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// Issue mints a session token for the given user.
func (m *TokenManager) Issue(userID, username string) (string, error) {
	now := time.Now().UTC()
	claims := sessionClaims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  userID,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if m.sessionTTL > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(m.sessionTTL))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Verify validates a session token and returns the subject user id and
// username.
func (m *TokenManager) Verify(token string) (userID, username string, err error) {
	var claims sessionClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, m.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return "", "", ErrInvalidToken
	}
	// Reset tokens must not double as session tokens.
	if claims.Scope == resetScope {
		return "", "", ErrInvalidToken
	}
	return claims.Subject, claims.Username, nil
}

// IssueReset mints a password-reset token valid for ttl.
func (m *TokenManager) IssueReset(userID string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := resetClaims{
		Scope: resetScope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// VerifyReset validates a reset token and returns the subject user id.
// Session tokens are rejected here by the scope check.
func (m *TokenManager) VerifyReset(token string) (string, error) {
	var claims resetClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, m.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid || claims.Subject == "" || claims.Scope != resetScope {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

func (m *TokenManager) keyFunc(*jwt.Token) (any, error) {
	return m.secret, nil
}
