// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the User model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a user is not found, functions return gorm.ErrRecordNotFound
//     (also exported in this package as ErrNotFound).
//   - Unique-index violations on username/email surface as ErrDuplicate.
//   - On other DB errors the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/linkify/go-social-backend/internal/domain"
)

// CreateUser inserts a new user row with a UUID primary key and UTC
// timestamp. A username or email collision returns ErrDuplicate.
func CreateUser(ctx context.Context, db *gorm.DB, username, email, passwordHash string, isPrivate bool) (*domain.User, error) {
	u := &domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		IsPrivate:    isPrivate,
		CreatedAt:    time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(u).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return u, nil
}

// GetUser fetches a user by ID, or ErrNotFound.
func GetUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByUsername fetches a user by their unique username, or ErrNotFound.
func GetUserByUsername(ctx context.Context, db *gorm.DB, username string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("username = ?", username).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByEmail fetches a user by their unique email address, or ErrNotFound.
func GetUserByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// SetResetToken stores the password-reset token and its expiry on the user.
func SetResetToken(ctx context.Context, db *gorm.DB, userID, token string, expires time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{"reset_token": token, "reset_token_expires": expires})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdatePassword replaces the password hash and clears any reset token.
func UpdatePassword(ctx context.Context, db *gorm.DB, userID, passwordHash string) error {
	res := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"password_hash":       passwordHash,
			"reset_token":         nil,
			"reset_token_expires": nil,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListUserRefs resolves a set of user ids to identity projections.
// Missing ids are silently skipped; order follows username ascending.
func ListUserRefs(ctx context.Context, db *gorm.DB, ids []string) ([]domain.UserRef, error) {
	if len(ids) == 0 {
		return []domain.UserRef{}, nil
	}
	var users []domain.User
	err := db.WithContext(ctx).
		Where("id IN ?", ids).
		Order("username asc").
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.UserRef, 0, len(users))
	for _, u := range users {
		out = append(out, u.Ref())
	}
	return out, nil
}
