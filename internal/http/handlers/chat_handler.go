// Chat HTTP handlers.
//
// This file exposes REST endpoints for conversation resources:
//   - POST /chats/direct   (get-or-create the direct chat with another user)
//   - POST /chats/group    (create a group chat)
//   - GET  /chats          (list the caller's chats, enriched)
//
// Handlers are transport-thin: they validate input, call application
// services, and translate results into HTTP responses.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/linkify/go-social-backend/internal/services"
)

//
// DTOs
//

// CreateDirectChatRequest is the JSON payload for opening a direct chat.
type CreateDirectChatRequest struct {
	// UserID is the other participant.
	UserID string `json:"user_id" binding:"required"`
}

// CreateGroupChatRequest is the JSON payload for creating a group chat.
type CreateGroupChatRequest struct {
	// Name optionally labels the group.
	Name string `json:"name" binding:"max=255"`
	// ParticipantIDs are the initial members besides the creator.
	ParticipantIDs []string `json:"participant_ids" binding:"required,min=1"`
}

// ListChatsResponse wraps the caller's enriched chat summaries, most
// recent activity first.
type ListChatsResponse struct {
	Chats []services.ChatSummary `json:"chats"`
}

//
// Handlers
//

// CreateDirectChat returns the direct chat between the caller and the
// requested user, creating it if absent. Repeating the call for the same
// pair, in either order, yields the same chat.
func (h *Handlers) CreateDirectChat(c *gin.Context) {
	var req CreateDirectChatRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.UserID) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "user_id required")
		return
	}

	chat, err := h.chatSvc.GetOrCreateDirect(c.Request.Context(), userID(c), strings.TrimSpace(req.UserID))
	if err != nil {
		switch err {
		case services.ErrSelfReference:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "cannot open a chat with yourself")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, chat)
}

// CreateGroupChat creates a group chat owned by the caller. The caller is
// always a member and the initial admin.
func (h *Handlers) CreateGroupChat(c *gin.Context) {
	var req CreateGroupChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "participant_ids required")
		return
	}

	chat, err := h.chatSvc.CreateGroup(c.Request.Context(), userID(c), req.ParticipantIDs, req.Name)
	if err != nil {
		switch err {
		case services.ErrNoParticipants:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		}
		return
	}
	ok(c, http.StatusCreated, chat)
}

// ListChats returns summaries of every chat the caller belongs to:
// participants, the last message when one exists, ordered by most recent
// activity.
func (h *Handlers) ListChats(c *gin.Context) {
	chats, err := h.chatSvc.ListForUser(c.Request.Context(), userID(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, ListChatsResponse{Chats: chats})
}

// requireChatID validates the :id path parameter as a UUID, failing the
// request when it is not. The bool reports validity.
func requireChatID(c *gin.Context) (string, bool) {
	chatID := c.Param("id")
	if _, err := uuid.Parse(chatID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "chat id must be a UUID")
		return "", false
	}
	return chatID, true
}
