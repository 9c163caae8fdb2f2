// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the follow
// graph: Follow edges and pending FollowRequest rows.
//
// Edge existence checks use COUNT queries rather than First so that a
// missing row is not conflated with a storage failure. Creation functions
// map unique-index violations to ErrDuplicate, which callers rely on for
// idempotent retries: re-running a follow that already committed converges
// instead of inserting a second edge.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/linkify/go-social-backend/internal/domain"
)

// CreateFollow inserts the directed edge follower -> followee.
// Returns ErrDuplicate if the edge already exists.
func CreateFollow(ctx context.Context, db *gorm.DB, followerID, followeeID string) error {
	f := &domain.Follow{
		ID:         uuid.NewString(),
		FollowerID: followerID,
		FolloweeID: followeeID,
		CreatedAt:  time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(f).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// DeleteFollow removes the edge follower -> followee. Returns ErrNotFound
// when no such edge exists.
func DeleteFollow(ctx context.Context, db *gorm.DB, followerID, followeeID string) error {
	res := db.WithContext(ctx).
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		Delete(&domain.Follow{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// FollowExists reports whether follower -> followee is present.
func FollowExists(ctx context.Context, db *gorm.DB, followerID, followeeID string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Follow{}).
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		Count(&n).Error
	return n > 0, err
}

// CreateFollowRequest inserts a pending request requester -> target.
// Returns ErrDuplicate if one is already pending.
func CreateFollowRequest(ctx context.Context, db *gorm.DB, requesterID, targetID string) error {
	r := &domain.FollowRequest{
		ID:          uuid.NewString(),
		RequesterID: requesterID,
		TargetID:    targetID,
		CreatedAt:   time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(r).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// DeleteFollowRequest removes the pending request requester -> target.
// Returns ErrNotFound when none is pending.
func DeleteFollowRequest(ctx context.Context, db *gorm.DB, requesterID, targetID string) error {
	res := db.WithContext(ctx).
		Where("requester_id = ? AND target_id = ?", requesterID, targetID).
		Delete(&domain.FollowRequest{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// FollowRequestExists reports whether requester -> target is pending.
func FollowRequestExists(ctx context.Context, db *gorm.DB, requesterID, targetID string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.FollowRequest{}).
		Where("requester_id = ? AND target_id = ?", requesterID, targetID).
		Count(&n).Error
	return n > 0, err
}

// ListFollowers returns identity projections of everyone following userID,
// ordered by username.
func ListFollowers(ctx context.Context, db *gorm.DB, userID string) ([]domain.UserRef, error) {
	var users []domain.User
	err := db.WithContext(ctx).
		Joins("JOIN follows ON follows.follower_id = users.id").
		Where("follows.followee_id = ?", userID).
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

// ListFollowing returns identity projections of everyone userID follows,
// ordered by username.
func ListFollowing(ctx context.Context, db *gorm.DB, userID string) ([]domain.UserRef, error) {
	var users []domain.User
	err := db.WithContext(ctx).
		Joins("JOIN follows ON follows.followee_id = users.id").
		Where("follows.follower_id = ?", userID).
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
