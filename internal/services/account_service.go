// Package services – AccountService
//
// This file implements AccountService: registration, login, profile
// lookup, and the password-reset flow. Credential verification is
// delegated to bcrypt; session and reset tokens come from a TokenIssuer
// collaborator so the service never mints or parses tokens itself, and
// reset emails go through the Notifier collaborator fire-and-forget —
// delivery failure is logged, never surfaced into the reset flow.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/linkify/go-social-backend/internal/domain"
	"github.com/linkify/go-social-backend/internal/repo"
)

// TokenIssuer is the Identity & Session collaborator contract: it turns a
// verified account into a bearer token and handles reset-token rounds.
type TokenIssuer interface {
	// Issue mints a session token for the authenticated user.
	Issue(userID, username string) (string, error)
	// IssueReset mints a short-lived password-reset token.
	IssueReset(userID string, ttl time.Duration) (string, error)
	// VerifyReset validates a reset token and returns the subject user id.
	VerifyReset(token string) (string, error)
}

// Notifier delivers outbound messages (reset links). Implementations
// report failure via the returned error; the core never blocks on it.
type Notifier interface {
	Send(to, subject, body string) error
}

// AccountService owns user registration, authentication, and password
// recovery.
type AccountService struct {
	DB     *gorm.DB
	Tokens TokenIssuer
	Mailer Notifier

	// ResetTTL bounds reset-token validity; defaults to one hour.
	ResetTTL time.Duration
	// ResetBaseURL is the public page the emailed link points at.
	ResetBaseURL string
}

// NewAccountService constructs an AccountService with a one-hour reset
// window.
func NewAccountService(db *gorm.DB, tokens TokenIssuer, mailer Notifier) *AccountService {
	return &AccountService{
		DB:           db,
		Tokens:       tokens,
		Mailer:       mailer,
		ResetTTL:     time.Hour,
		ResetBaseURL: "https://ourlinkify.com/reset-password",
	}
}

// Register creates an account and returns a session token for it.
// Username and email must both be unused.
func (s *AccountService) Register(ctx context.Context, username, email, password string) (string, *domain.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || email == "" || password == "" {
		return "", nil, ErrMissingFields
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", nil, err
	}

	user, err := repo.CreateUser(ctx, s.DB, username, email, string(hash), false)
	if errors.Is(err, repo.ErrDuplicate) {
		// Distinguish which unique field collided for the caller.
		if _, uerr := repo.GetUserByUsername(ctx, s.DB, username); uerr == nil {
			return "", nil, ErrUsernameTaken
		}
		return "", nil, ErrEmailTaken
	}
	if err != nil {
		return "", nil, err
	}

	token, err := s.Tokens.Issue(user.ID, user.Username)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// Login verifies credentials and returns a session token. Unknown
// usernames and wrong passwords are indistinguishable to the caller.
func (s *AccountService) Login(ctx context.Context, username, password string) (string, error) {
	if username == "" || password == "" {
		return "", ErrMissingFields
	}
	user, err := repo.GetUserByUsername(ctx, s.DB, username)
	if errors.Is(err, repo.ErrNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", ErrInvalidCredentials
	}
	return s.Tokens.Issue(user.ID, user.Username)
}

// Profile returns the account record for userID (secrets excluded by the
// model's serialization rules).
func (s *AccountService) Profile(ctx context.Context, userID string) (*domain.User, error) {
	user, err := repo.GetUser(ctx, s.DB, userID)
	if err != nil {
		return nil, userErr(err)
	}
	return user, nil
}

// RequestPasswordReset stores a fresh reset token on the account behind
// email and mails the reset link. The token is also returned so callers
// that deliver it out of band (tests, support tooling) can use it.
func (s *AccountService) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	user, err := repo.GetUserByEmail(ctx, s.DB, email)
	if err != nil {
		return "", userErr(err)
	}

	ttl := s.ResetTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	token, err := s.Tokens.IssueReset(user.ID, ttl)
	if err != nil {
		return "", err
	}
	expires := time.Now().UTC().Add(ttl)
	if err := repo.SetResetToken(ctx, s.DB, user.ID, token, expires); err != nil {
		return "", err
	}

	if s.Mailer != nil {
		to := user.Email
		link := fmt.Sprintf("%s?resetToken=%s", s.ResetBaseURL, token)
		go func() {
			subject := "Password Reset Request for your linkify account"
			body := "Click this link to reset your password: " + link
			if err := s.Mailer.Send(to, subject, body); err != nil {
				log.Error().Err(err).Str("email", to).Msg("reset mail delivery failed")
			}
		}()
	}
	return token, nil
}

// ConfirmPasswordReset verifies the token against both its signature and
// the stored copy on the account, then replaces the password and clears
// the token so it cannot be replayed.
func (s *AccountService) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	if newPassword == "" {
		return ErrMissingFields
	}
	userID, err := s.Tokens.VerifyReset(token)
	if err != nil {
		return ErrInvalidResetToken
	}
	user, err := repo.GetUser(ctx, s.DB, userID)
	if err != nil {
		return ErrInvalidResetToken
	}
	now := time.Now().UTC()
	if user.ResetToken == nil || *user.ResetToken != token ||
		user.ResetTokenExpires == nil || !user.ResetTokenExpires.After(now) {
		return ErrInvalidResetToken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return repo.UpdatePassword(ctx, s.DB, user.ID, string(hash))
}
