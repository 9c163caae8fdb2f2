// Package services – ChatService
//
// This file implements the ChatService, which manages conversation
// lifecycle: direct-chat lookup-or-create with pair deduplication, group
// creation, and the per-user chat listing enriched with participant and
// last-message summaries.
//
// The direct-chat race (two concurrent creates for the same pair) is
// resolved by the storage layer's unique pair-key index: the loser's
// insert fails with a duplicate error and is retried as a lookup, so both
// callers end up with the same chat.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/linkify/go-social-backend/internal/domain"
	"github.com/linkify/go-social-backend/internal/repo"
)

// ConversationRepo defines the repository contract required by ChatService.
// Implementations are responsible for persistence of chat aggregates.
type ConversationRepo interface {
	// FindDirect returns the direct chat for an unordered user pair.
	FindDirect(ctx context.Context, db *gorm.DB, userA, userB string) (*domain.Chat, error)

	// CreateDirect inserts a direct chat plus both participant rows.
	CreateDirect(ctx context.Context, db *gorm.DB, userA, userB string) (*domain.Chat, error)

	// CreateGroup inserts a group chat with the given member set.
	CreateGroup(ctx context.Context, db *gorm.DB, creatorID string, memberIDs []string, name string) (*domain.Chat, error)

	// ListForUser returns every chat the user participates in,
	// most recent activity first.
	ListForUser(ctx context.Context, db *gorm.DB, userID string) ([]domain.Chat, error)

	// Participants resolves a chat's member identity projections.
	Participants(ctx context.Context, db *gorm.DB, chatID string) ([]domain.UserRef, error)
}

// LastMessage is the denormalized summary of a chat's newest message as it
// appears in chat listings.
type LastMessage struct {
	ID        string         `json:"id"`
	Sender    domain.UserRef `json:"sender"`
	Content   string         `json:"content"`
	CreatedAt time.Time      `json:"created_at"`
}

// ChatSummary is a chat enriched for listing: member projections plus the
// last-message summary when one exists.
type ChatSummary struct {
	ID           string           `json:"id"`
	IsGroup      bool             `json:"is_group"`
	GroupName    string           `json:"group_name,omitempty"`
	Participants []domain.UserRef `json:"participants"`
	LastMessage  *LastMessage     `json:"last_message,omitempty"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// ChatService provides conversation-level operations. It enforces the
// direct-chat uniqueness invariant and group-creation rules.
type ChatService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the conversation repository used by this service.
	Repo ConversationRepo
}

// NewChatService constructs a ChatService.
func NewChatService(db *gorm.DB, r ConversationRepo) *ChatService {
	return &ChatService{DB: db, Repo: r}
}

// GetOrCreateDirect returns the direct chat between userA and userB,
// creating it if absent. Calling it twice for the same pair, in either
// order and from concurrent callers, yields the same chat.
func (s *ChatService) GetOrCreateDirect(ctx context.Context, userA, userB string) (*domain.Chat, error) {
	if userA == userB {
		return nil, ErrSelfReference
	}
	chat, err := s.Repo.FindDirect(ctx, s.DB, userA, userB)
	if err == nil {
		return chat, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}

	chat, err = s.Repo.CreateDirect(ctx, s.DB, userA, userB)
	if errors.Is(err, repo.ErrDuplicate) {
		// Lost the creation race; the winner's chat is authoritative.
		return s.Repo.FindDirect(ctx, s.DB, userA, userB)
	}
	return chat, err
}

// CreateGroup creates a group chat owned by creatorID. The creator is
// always a member and the sole initial admin; duplicate participant ids
// collapse to one membership row.
func (s *ChatService) CreateGroup(ctx context.Context, creatorID string, participantIDs []string, groupName string) (*domain.Chat, error) {
	if len(participantIDs) == 0 {
		return nil, ErrNoParticipants
	}
	members := dedupeWith(participantIDs, creatorID)
	return s.Repo.CreateGroup(ctx, s.DB, creatorID, members, strings.TrimSpace(groupName))
}

// ListForUser returns summaries of every chat userID belongs to, most
// recent activity first. A chat whose last-message pointer trails behind
// a concurrent append still lists; the summary simply shows the older
// message until the next read.
func (s *ChatService) ListForUser(ctx context.Context, userID string) ([]ChatSummary, error) {
	chats, err := s.Repo.ListForUser(ctx, s.DB, userID)
	if err != nil {
		return nil, err
	}
	out := make([]ChatSummary, 0, len(chats))
	for _, c := range chats {
		sum := ChatSummary{
			ID:        c.ID,
			IsGroup:   c.IsGroup,
			GroupName: c.GroupName,
			UpdatedAt: c.UpdatedAt,
		}
		sum.Participants, err = s.Repo.Participants(ctx, s.DB, c.ID)
		if err != nil {
			return nil, err
		}
		if c.LastMessageID != nil {
			lm, err := s.lastMessage(ctx, *c.LastMessageID)
			if err != nil {
				return nil, err
			}
			sum.LastMessage = lm
		}
		out = append(out, sum)
	}
	return out, nil
}

// lastMessage resolves the pointed-at message and its sender projection.
// A pointer to a vanished message yields nil rather than an error; the
// pointer is a cache of derived data, not a source of truth.
func (s *ChatService) lastMessage(ctx context.Context, messageID string) (*LastMessage, error) {
	m, err := repo.GetMessage(s.DB.WithContext(ctx), messageID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sender, err := repo.GetUser(ctx, s.DB, m.SenderID)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}
	lm := &LastMessage{ID: m.ID, Content: m.Content, CreatedAt: m.CreatedAt}
	if sender != nil {
		lm.Sender = sender.Ref()
	}
	return lm, nil
}

// dedupeWith returns ids plus extra with duplicates removed, preserving
// first-seen order.
func dedupeWith(ids []string, extra string) []string {
	seen := make(map[string]struct{}, len(ids)+1)
	out := make([]string, 0, len(ids)+1)
	for _, id := range append(append([]string{}, ids...), extra) {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
