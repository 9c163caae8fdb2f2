// Message HTTP handlers.
//
// This file exposes REST endpoints for chat messages:
//   - POST /chats/{id}/messages   (append a message to a chat)
//   - GET  /chats/{id}/messages   (list paginated messages, newest first)
//
// Handlers are transport-thin:
//   - validate & normalize inputs (including newline and length constraints)
//   - delegate to application services (MessageService)
//   - implement idempotency semantics for sends
//
// Idempotency:
// If the client supplies an Idempotency-Key header and a previous
// successful send exists for (user, chat, key), the handler returns the
// recorded message and sets `Idempotency-Replayed: true` instead of
// appending again.
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/linkify/go-social-backend/internal/domain"
	"github.com/linkify/go-social-backend/internal/http/middleware"
	"github.com/linkify/go-social-backend/internal/repo"
	"github.com/linkify/go-social-backend/internal/services"
	"github.com/linkify/go-social-backend/internal/utils"
)

//
// DTOs
//

// PostMessageRequest is the JSON payload for sending a message.
//
// Content is normalized by the handler (line endings and excessive blank
// lines) before being passed to the service layer. The service also
// enforces a maximum rune count, configured in MessageService.
type PostMessageRequest struct {
	// Content is the message body. It must be non-empty.
	Content string `json:"content" binding:"required,min=1"`
}

// PostMessageResponse is the JSON envelope for a newly created message.
type PostMessageResponse struct {
	Message *services.MessageView `json:"message"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasMore    bool  `json:"has_more"`
}

// ListMessagesResponse contains a page of chat messages and pagination
// metadata. Messages are ordered newest first.
type ListMessagesResponse struct {
	Messages   []services.MessageView `json:"messages"`
	Pagination Pagination             `json:"pagination"`
}

//
// Helpers
//

// clampMsgPagination parses page/page_size from query parameters, applies
// sane defaults and caps, and returns the validated (page, pageSize).
func clampMsgPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

// nlCollapseRE collapses runs of 3+ newlines to two, preserving paragraphs.
var nlCollapseRE = regexp.MustCompile(`\n{3,}`)

// sanitizeContent normalizes user text for consistent downstream behavior:
//   - converts CRLF/CR to LF,
//   - collapses runs of 3+ LFs to exactly two (paragraph separation),
//   - trims surrounding whitespace.
func sanitizeContent(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = nlCollapseRE.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// discoverMaxContentRunes inspects the concrete MessageService for a
// configured length limit. If unavailable, it returns a conservative
// fallback.
func discoverMaxContentRunes(msgSvc MessageService) int {
	const fallback = 4000
	if ms, ok := msgSvc.(*services.MessageService); ok {
		if ms.MaxContentRunes > 0 {
			return ms.MaxContentRunes
		}
	}
	return fallback
}

//
// Handlers
//

// PostMessage appends a message to the chat on behalf of the caller.
// Supports idempotency via the Idempotency-Key header (same key → same
// result).
func (h *Handlers) PostMessage(c *gin.Context) {
	ctx := c.Request.Context()
	chatID, okID := requireChatID(c)
	if !okID {
		return
	}

	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content required")
		return
	}

	// Sanitize + early size cap to fail fast at the edge.
	content := sanitizeContent(req.Content)
	maxRunes := discoverMaxContentRunes(h.msgSvc)
	if maxRunes > 0 && utf8.RuneCountInString(content) > maxRunes {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, fmt.Sprintf("content too long: max %d runes", maxRunes))
		return
	}
	if content == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content required")
		return
	}

	currentUser := userID(c)

	// Idempotency (replay path) – read validated key if present.
	idemKey, _ := middleware.GetIdempotencyKey(c)
	if idemKey != "" {
		if db := discoverDB(h.msgSvc); db != nil {
			if rec, err := repo.GetIdempotency(ctx, db, currentUser, chatID, idemKey, time.Now().UTC()); err == nil && rec != nil {
				if prev := replayMessage(ctx, db, rec.MessageID); prev != nil {
					c.Header("Idempotency-Replayed", "true")
					ok(c, http.StatusOK, PostMessageResponse{Message: prev})
					return
				}
			}
		}
	}

	// Normal processing (service has a second guard for length).
	m, err := h.msgSvc.Append(ctx, currentUser, chatID, content)
	if err != nil {
		switch err {
		case services.ErrChatNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "chat not found")
		case services.ErrAccessDenied:
			fail(c, http.StatusForbidden, ErrCodeForbidden, "not a participant of this chat")
		case services.ErrTooLong:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, fmt.Sprintf("content too long: max %d runes", maxRunes))
		case services.ErrEmptyContent:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content required")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeSendFailed, err.Error())
		}
		return
	}

	// Idempotency (store path) – best effort.
	if idemKey != "" {
		if db := discoverDB(h.msgSvc); db != nil {
			ttl := 24 * time.Hour
			_, _ = repo.CreateIdempotency(ctx, db, currentUser, chatID, idemKey, m.ID, http.StatusCreated, ttl)
		}
	}

	ok(c, http.StatusCreated, PostMessageResponse{Message: m})
}

// ListMessages returns a paginated list of messages for the given chat,
// newest first.
func (h *Handlers) ListMessages(c *gin.Context) {
	ctx := c.Request.Context()
	chatID, okID := requireChatID(c)
	if !okID {
		return
	}

	page, pageSize := clampMsgPagination(c)

	p, err := h.msgSvc.Page(ctx, chatID, page, pageSize)
	if err != nil {
		switch err {
		case services.ErrChatNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "chat not found")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		}
		return
	}

	totalPages := int((p.Total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListMessagesResponse{
		Messages: p.Messages,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      p.Total,
			TotalPages: totalPages,
			HasMore:    p.HasMore,
		},
	})
}

// discoverDB extracts the GORM handle from the concrete MessageService so
// idempotency records can be consulted. Returns nil for fakes.
func discoverDB(msgSvc MessageService) *gorm.DB {
	if ms, ok := msgSvc.(*services.MessageService); ok {
		return ms.DB
	}
	return nil
}

// replayMessage loads a previously recorded message with its sender
// projection. Any failure yields nil so the send proceeds normally.
func replayMessage(ctx context.Context, db *gorm.DB, messageID string) *services.MessageView {
	m, err := repo.GetMessage(db.WithContext(ctx), messageID)
	if err != nil {
		return nil
	}
	view := &services.MessageView{Message: *m}
	if u, err := repo.GetUser(ctx, db, m.SenderID); err == nil {
		view.Sender = u.Ref()
	} else {
		view.Sender = domain.UserRef{ID: m.SenderID}
	}
	return view
}
