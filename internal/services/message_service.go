// Package services – MessageService
//
// This file implements MessageService, the application-level component
// that owns the append-only message ledger. Append validates input,
// checks chat membership, and persists the message together with the
// chat's denormalized last-message pointer in one transaction, so the
// pointer can never reference a message that was not durably stored.
//
// Page returns reverse-chronological slices. HasMore is computed from an
// exact COUNT rather than from "returned == pageSize", which misreports
// the boundary when the remaining count is an exact multiple of the page
// size.
package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/linkify/go-social-backend/internal/domain"
	"github.com/linkify/go-social-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// MessageView is a message enriched with its sender's identity projection.
type MessageView struct {
	domain.Message
	Sender domain.UserRef `json:"sender"`
}

// MessagePage is one page of a chat's history, newest first.
type MessagePage struct {
	Messages []MessageView `json:"messages"`
	Total    int64         `json:"total"`
	HasMore  bool          `json:"has_more"`
}

// MessageService coordinates message persistence and paginated retrieval.
type MessageService struct {
	DB *gorm.DB

	// MaxContentRunes caps message length; <= 0 disables the cap.
	MaxContentRunes int
}

// ErrTooLong is returned when message content exceeds MaxContentRunes.
var ErrTooLong = errors.New("content too long")

// Append validates and persists a message from senderID into chatID, then
// advances the chat's last-message pointer. Both writes commit in one
// transaction.
func (s *MessageService) Append(ctx context.Context, senderID, chatID, content string) (*MessageView, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "Append",
		trace.WithAttributes(
			attribute.String("chat.id", chatID),
			attribute.String("user.id", senderID),
		),
	)
	defer span.End()

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	if s.MaxContentRunes > 0 && utf8.RuneCountInString(content) > s.MaxContentRunes {
		return nil, ErrTooLong
	}

	if _, err := repo.GetChat(ctx, s.DB, chatID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrChatNotFound
		}
		return nil, err
	}
	member, err := repo.IsParticipant(ctx, s.DB, chatID, senderID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, ErrAccessDenied
	}

	var msg *domain.Message
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m, err := repo.CreateMessage(tx, chatID, senderID, content)
		if err != nil {
			return err
		}
		msg = m
		return repo.SetLastMessage(ctx, tx, chatID, m.ID)
	})
	if err != nil {
		return nil, err
	}

	sender, err := repo.GetUser(ctx, s.DB, senderID)
	if err != nil {
		return nil, err
	}
	return &MessageView{Message: *msg, Sender: sender.Ref()}, nil
}

// Page returns messages for chatID ordered newest first, skipping
// (page-1)*pageSize and taking pageSize. Each page is a snapshot at query
// time; inserts between fetches may shift entries across pages, but never
// reorder them within one.
func (s *MessageService) Page(ctx context.Context, chatID string, page, pageSize int) (*MessagePage, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "Page",
		trace.WithAttributes(
			attribute.String("chat.id", chatID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	if _, err := repo.GetChat(ctx, s.DB, chatID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrChatNotFound
		}
		return nil, err
	}

	total, err := repo.CountMessages(s.DB.WithContext(ctx), chatID)
	if err != nil {
		return nil, err
	}
	result := &MessagePage{
		Messages: []MessageView{},
		Total:    total,
		HasMore:  int64(page)*int64(pageSize) < total,
	}
	if total == 0 || int64(offset) >= total {
		result.HasMore = int64(offset) < total
		return result, nil
	}

	items, err := repo.ListMessagesPage(s.DB.WithContext(ctx), chatID, offset, pageSize)
	if err != nil {
		return nil, err
	}
	views, err := s.enrichSenders(ctx, items)
	if err != nil {
		return nil, err
	}
	result.Messages = views
	return result, nil
}

// enrichSenders attaches sender projections, resolving each distinct
// sender once per page.
func (s *MessageService) enrichSenders(ctx context.Context, items []domain.Message) ([]MessageView, error) {
	refs := make(map[string]domain.UserRef)
	out := make([]MessageView, 0, len(items))
	for _, m := range items {
		ref, ok := refs[m.SenderID]
		if !ok {
			u, err := repo.GetUser(ctx, s.DB, m.SenderID)
			if err != nil && !errors.Is(err, repo.ErrNotFound) {
				return nil, err
			}
			if u != nil {
				ref = u.Ref()
			} else {
				ref = domain.UserRef{ID: m.SenderID}
			}
			refs[m.SenderID] = ref
		}
		out = append(out, MessageView{Message: m, Sender: ref})
	}
	return out, nil
}
