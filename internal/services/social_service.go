// Package services – SocialService
//
// This file implements SocialService, which owns all mutation of the
// follow graph. Every operation loads the current relationship state,
// asks the pure transition function (relationship.go) what should happen,
// and applies the resulting effect inside a single storage transaction,
// so a crash can never leave the pair half-updated: either both the
// request removal and the edge insert commit, or neither does.
//
// Operations are idempotent under retry. Re-running a follow that already
// committed surfaces ErrAlreadyFollowing/ErrAlreadyRequested; a lost
// insert race inside the transaction maps to the same errors, so two
// concurrent identical calls converge on one edge.
package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/linkify/go-social-backend/internal/domain"
	"github.com/linkify/go-social-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// SocialService mutates and reads follow relationships between users.
type SocialService struct {
	DB *gorm.DB
}

// NewSocialService constructs a SocialService over the given DB handle.
func NewSocialService(db *gorm.DB) *SocialService {
	return &SocialService{DB: db}
}

// State returns the current relationship of the ordered pair
// (actorID, targetID) without mutating anything.
func (s *SocialService) State(ctx context.Context, actorID, targetID string) (RelState, error) {
	following, err := repo.FollowExists(ctx, s.DB, actorID, targetID)
	if err != nil {
		return RelNone, err
	}
	if following {
		return RelFollowing, nil
	}
	requested, err := repo.FollowRequestExists(ctx, s.DB, actorID, targetID)
	if err != nil {
		return RelNone, err
	}
	if requested {
		return RelRequested, nil
	}
	return RelNone, nil
}

// Follow initiates a follow of targetID by actorID. Public targets gain a
// follower immediately; private targets receive a pending request.
func (s *SocialService) Follow(ctx context.Context, actorID, targetID string) (RelState, error) {
	tr := otel.Tracer("services/SocialService")
	ctx, span := tr.Start(ctx, "Follow",
		trace.WithAttributes(
			attribute.String("actor.id", actorID),
			attribute.String("target.id", targetID),
		),
	)
	defer span.End()

	if actorID == targetID {
		return RelNone, ErrSelfReference
	}
	target, err := repo.GetUser(ctx, s.DB, targetID)
	if err != nil {
		return RelNone, userErr(err)
	}
	if _, err := repo.GetUser(ctx, s.DB, actorID); err != nil {
		return RelNone, userErr(err)
	}

	state, err := s.State(ctx, actorID, targetID)
	if err != nil {
		return RelNone, err
	}
	next, eff, err := transition(state, evFollow, target.IsPrivate)
	if err != nil {
		return state, err
	}
	if err := s.apply(ctx, eff, actorID, targetID); err != nil {
		return state, err
	}
	return next, nil
}

// Accept promotes the pending request from requesterID into a follow of
// recipientID. Only the recipient of the request may accept it.
func (s *SocialService) Accept(ctx context.Context, recipientID, requesterID string) (RelState, error) {
	if recipientID == requesterID {
		return RelNone, ErrSelfReference
	}
	if _, err := repo.GetUser(ctx, s.DB, requesterID); err != nil {
		return RelNone, userErr(err)
	}

	state, err := s.State(ctx, requesterID, recipientID)
	if err != nil {
		return RelNone, err
	}
	next, eff, err := transition(state, evAccept, false)
	if err != nil {
		return state, err
	}
	if err := s.apply(ctx, eff, requesterID, recipientID); err != nil {
		return state, err
	}
	return next, nil
}

// Reject drops the pending request from requesterID without creating an
// edge.
func (s *SocialService) Reject(ctx context.Context, recipientID, requesterID string) (RelState, error) {
	if recipientID == requesterID {
		return RelNone, ErrSelfReference
	}
	if _, err := repo.GetUser(ctx, s.DB, requesterID); err != nil {
		return RelNone, userErr(err)
	}

	state, err := s.State(ctx, requesterID, recipientID)
	if err != nil {
		return RelNone, err
	}
	next, eff, err := transition(state, evReject, false)
	if err != nil {
		return state, err
	}
	if err := s.apply(ctx, eff, requesterID, recipientID); err != nil {
		return state, err
	}
	return next, nil
}

// Unfollow removes actorID from targetID's followers.
func (s *SocialService) Unfollow(ctx context.Context, actorID, targetID string) (RelState, error) {
	if actorID == targetID {
		return RelNone, ErrSelfReference
	}
	if _, err := repo.GetUser(ctx, s.DB, targetID); err != nil {
		return RelNone, userErr(err)
	}

	state, err := s.State(ctx, actorID, targetID)
	if err != nil {
		return RelNone, err
	}
	next, eff, err := transition(state, evUnfollow, false)
	if err != nil {
		return state, err
	}
	if err := s.apply(ctx, eff, actorID, targetID); err != nil {
		return state, err
	}
	return next, nil
}

// Followers lists subjectID's followers as identity projections. Private
// subjects are visible only to viewers already following them.
func (s *SocialService) Followers(ctx context.Context, viewerID, subjectID string) ([]domain.UserRef, error) {
	if err := s.gateRelationRead(ctx, viewerID, subjectID); err != nil {
		return nil, err
	}
	return repo.ListFollowers(ctx, s.DB, subjectID)
}

// Following lists who subjectID follows, under the same privacy gate as
// Followers.
func (s *SocialService) Following(ctx context.Context, viewerID, subjectID string) ([]domain.UserRef, error) {
	if err := s.gateRelationRead(ctx, viewerID, subjectID); err != nil {
		return nil, err
	}
	return repo.ListFollowing(ctx, s.DB, subjectID)
}

// gateRelationRead enforces the privacy rule for relation listings:
// public subjects are always readable, private subjects only by viewers
// who follow them.
func (s *SocialService) gateRelationRead(ctx context.Context, viewerID, subjectID string) error {
	subject, err := repo.GetUser(ctx, s.DB, subjectID)
	if err != nil {
		return userErr(err)
	}
	if !subject.IsPrivate {
		return nil
	}
	following, err := repo.FollowExists(ctx, s.DB, viewerID, subjectID)
	if err != nil {
		return err
	}
	if !following {
		return ErrAccessDenied
	}
	return nil
}

// apply executes a transition effect for the ordered pair
// (followerID, followeeID) atomically. Unique-index losses inside the
// transaction are translated back to the state-machine errors so that
// concurrent duplicate calls converge.
func (s *SocialService) apply(ctx context.Context, eff relEffect, followerID, followeeID string) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		switch eff {
		case effNone:
			return nil
		case effCreateRequest:
			return repo.CreateFollowRequest(ctx, tx, followerID, followeeID)
		case effCreateEdge:
			return repo.CreateFollow(ctx, tx, followerID, followeeID)
		case effPromoteRequest:
			if err := repo.DeleteFollowRequest(ctx, tx, followerID, followeeID); err != nil {
				return err
			}
			return repo.CreateFollow(ctx, tx, followerID, followeeID)
		case effDeleteRequest:
			return repo.DeleteFollowRequest(ctx, tx, followerID, followeeID)
		case effDeleteEdge:
			return repo.DeleteFollow(ctx, tx, followerID, followeeID)
		}
		return nil
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repo.ErrDuplicate) && eff == effCreateRequest:
		return ErrAlreadyRequested
	case errors.Is(err, repo.ErrDuplicate):
		return ErrAlreadyFollowing
	case errors.Is(err, repo.ErrNotFound) && (eff == effDeleteRequest || eff == effPromoteRequest):
		return ErrNoPendingRequest
	case errors.Is(err, repo.ErrNotFound) && eff == effDeleteEdge:
		return ErrNotFollowing
	}
	return err
}

// userErr maps a repo-level miss to the service-level sentinel.
func userErr(err error) error {
	if errors.Is(err, repo.ErrNotFound) {
		return ErrUserNotFound
	}
	return err
}
