// Package services defines the business logic for accounts, the social
// graph, conversations, and messages. This file centralizes common
// service-level error values so that they can be consistently returned by
// service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and
// translation into user-facing messages or HTTP status codes should be
// performed at the handler layer. None of them are fatal: a business-rule
// violation never terminates the process, and raw storage errors propagate
// untouched so callers can retry.
package services

import "errors"

// Account-related errors.
var (
	// ErrUserNotFound indicates that the referenced user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrUsernameTaken is returned on registration when the username is
	// already registered.
	ErrUsernameTaken = errors.New("username is already taken")

	// ErrEmailTaken is returned on registration when the email is already
	// registered.
	ErrEmailTaken = errors.New("email is already registered")

	// ErrMissingFields is returned when a required registration field is
	// empty.
	ErrMissingFields = errors.New("missing required fields")

	// ErrInvalidCredentials is returned when login fails; it deliberately
	// does not reveal whether the username or the password was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidResetToken is returned when a password-reset token is
	// unknown, superseded, or expired.
	ErrInvalidResetToken = errors.New("invalid or expired reset token")
)

// Social-graph errors (state-machine precondition violations).
var (
	// ErrSelfReference is returned for any follow operation where actor
	// and target are the same user.
	ErrSelfReference = errors.New("cannot follow yourself")

	// ErrAlreadyRequested indicates a pending follow request already exists.
	ErrAlreadyRequested = errors.New("follow request already sent")

	// ErrAlreadyFollowing indicates the follow edge already exists.
	ErrAlreadyFollowing = errors.New("already following this user")

	// ErrNotFollowing indicates an unfollow with no edge to remove.
	ErrNotFollowing = errors.New("not following this user")

	// ErrNoPendingRequest indicates an accept/reject with nothing pending.
	ErrNoPendingRequest = errors.New("no follow request found")
)

// Conversation and message errors.
var (
	// ErrChatNotFound indicates that the requested chat does not exist.
	ErrChatNotFound = errors.New("chat not found")

	// ErrAccessDenied indicates a privacy or membership violation: reading
	// a private user's relations without following them, or touching a
	// chat the caller does not participate in.
	ErrAccessDenied = errors.New("access denied")

	// ErrNoParticipants is returned when a group is created with an empty
	// participant list.
	ErrNoParticipants = errors.New("participants are required")

	// ErrEmptyContent is returned when a message is sent with no content.
	ErrEmptyContent = errors.New("content is required")
)
