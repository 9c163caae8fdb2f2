// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Chat model
// and its participant edges.
//
// Error semantics:
//   - When a chat is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - CreateDirectChat maps a pair-key uniqueness violation to ErrDuplicate;
//     callers losing a creation race retry as a lookup.
//   - On other DB errors the raw gorm error is propagated.
//
// Functions:
//
//   - CreateDirectChat(ctx, db, userA, userB) -> *domain.Chat, error
//     Inserts a two-party chat plus both participant rows. The canonical
//     sorted pair key enforces at most one direct chat per unordered pair.
//
//   - FindDirectChat(ctx, db, userA, userB) -> *domain.Chat, error
//     Looks up the direct chat for the unordered pair, or ErrNotFound.
//
//   - CreateGroupChat(ctx, db, creatorID, memberIDs, name) -> *domain.Chat, error
//     Inserts a group chat; the creator becomes a participant and admin.
//
//   - GetChat / IsParticipant / ListParticipants
//     Membership reads used by the message ledger's access checks.
//
//   - ListChatsForUser(ctx, db, userID) -> []domain.Chat, error
//     All chats the user belongs to, most recent activity first.
//
//   - SetLastMessage(ctx, db, chatID, messageID) -> error
//     Advances the denormalized last-message pointer and the activity time.
//
// This repository is designed to be wrapped by a higher-level service
// (see services.ChatService) which enforces business rules and runs the
// multi-row writes inside transactions.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/linkify/go-social-backend/internal/domain"
)

// CreateDirectChat inserts a non-group chat between userA and userB along
// with both participant rows. The chat row carries the canonical pair key;
// a concurrent creation of the same pair fails with ErrDuplicate.
func CreateDirectChat(ctx context.Context, db *gorm.DB, userA, userB string) (*domain.Chat, error) {
	now := time.Now().UTC()
	key := domain.DirectPairKey(userA, userB)
	c := &domain.Chat{
		ID:        uuid.NewString(),
		IsGroup:   false,
		PairKey:   &key,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(c).Error; err != nil {
			return err
		}
		for _, uid := range []string{userA, userB} {
			p := &domain.ChatParticipant{
				ID:        uuid.NewString(),
				ChatID:    c.ID,
				UserID:    uid,
				CreatedAt: now,
			}
			if err := tx.Create(p).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return c, nil
}

// FindDirectChat returns the direct chat for the unordered pair, or ErrNotFound.
func FindDirectChat(ctx context.Context, db *gorm.DB, userA, userB string) (*domain.Chat, error) {
	var c domain.Chat
	key := domain.DirectPairKey(userA, userB)
	if err := db.WithContext(ctx).Where("pair_key = ?", key).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateGroupChat inserts a group chat named name. memberIDs is expected to
// be deduplicated by the caller and to include the creator; the creator's
// participant row is flagged as admin.
func CreateGroupChat(ctx context.Context, db *gorm.DB, creatorID string, memberIDs []string, name string) (*domain.Chat, error) {
	now := time.Now().UTC()
	c := &domain.Chat{
		ID:        uuid.NewString(),
		IsGroup:   true,
		GroupName: name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(c).Error; err != nil {
			return err
		}
		for _, uid := range memberIDs {
			p := &domain.ChatParticipant{
				ID:        uuid.NewString(),
				ChatID:    c.ID,
				UserID:    uid,
				IsAdmin:   uid == creatorID,
				CreatedAt: now,
			}
			if err := tx.Create(p).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// GetChat fetches a chat by ID, or ErrNotFound.
func GetChat(ctx context.Context, db *gorm.DB, id string) (*domain.Chat, error) {
	var c domain.Chat
	if err := db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// IsParticipant reports whether userID belongs to chatID.
func IsParticipant(ctx context.Context, db *gorm.DB, chatID, userID string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.ChatParticipant{}).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		Count(&n).Error
	return n > 0, err
}

// ListParticipants returns identity projections of a chat's members,
// ordered by username.
func ListParticipants(ctx context.Context, db *gorm.DB, chatID string) ([]domain.UserRef, error) {
	var users []domain.User
	err := db.WithContext(ctx).
		Joins("JOIN chat_participants ON chat_participants.user_id = users.id").
		Where("chat_participants.chat_id = ?", chatID).
		Order("users.username asc").
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

// ListChatsForUser returns all chats userID participates in, ordered by
// most recent activity (updated_at) descending.
func ListChatsForUser(ctx context.Context, db *gorm.DB, userID string) ([]domain.Chat, error) {
	var out []domain.Chat
	err := db.WithContext(ctx).
		Joins("JOIN chat_participants ON chat_participants.chat_id = chats.id").
		Where("chat_participants.user_id = ?", userID).
		Order("chats.updated_at desc").
		Find(&out).Error
	return out, err
}

// SetLastMessage advances the denormalized pointer to messageID and bumps
// the chat's activity timestamp. Returns ErrNotFound if the chat is gone.
func SetLastMessage(ctx context.Context, db *gorm.DB, chatID, messageID string) error {
	res := db.WithContext(ctx).
		Model(&domain.Chat{}).
		Where("id = ?", chatID).
		Updates(map[string]any{
			"last_message_id": messageID,
			"updated_at":      time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
