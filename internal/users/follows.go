package users

import (
	"context"
	"errors"
	"time"

	"github.com/AbassKoyang/swirl-backend/internal/ledger"
	"github.com/AbassKoyang/swirl-backend/internal/notifications"
	"github.com/AbassKoyang/swirl-backend/internal/paging"
	"github.com/AbassKoyang/swirl-backend/internal/target"
	"github.com/AbassKoyang/swirl-backend/internal/toggle"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type followRelation struct {
	followerID  uint
	followingID uint
	now         func() time.Time
}

func (r followRelation) Name() string { return "follow" }

func (r followRelation) scope(tx *gorm.DB) *gorm.DB {
	return tx.Where("follower_id = ? AND following_id = ?", r.followerID, r.followingID)
}

func (r followRelation) Find(_ context.Context, tx *gorm.DB) (toggle.State, error) {
	var follow Follow
	err := r.scope(tx).Take(&follow).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return toggle.Absent, nil
	}
	if err != nil {
		return toggle.State{}, err
	}
	return toggle.Present(""), nil
}

func (r followRelation) Create(_ context.Context, tx *gorm.DB, _ string) error {
	return tx.Create(&Follow{FollowerID: r.followerID, FollowingID: r.followingID, CreatedAt: r.now()}).Error
}

func (r followRelation) Delete(_ context.Context, tx *gorm.DB) (bool, error) {
	result := r.scope(tx).Delete(&Follow{})
	return result.RowsAffected > 0, result.Error
}

func (r followRelation) SetPayload(context.Context, *gorm.DB, string) error { return nil }

func (r followRelation) Counters() []toggle.CounterRef {
	return []toggle.CounterRef{
		{Counter: ledger.UserFollowers, ID: r.followingID},
		{Counter: ledger.UserFollowing, ID: r.followerID},
	}
}

func (r followRelation) Notification() (notifications.Event, bool) {
	return notifications.Event{
		Recipient: r.followingID,
		Actor:     r.followerID,
		Action:    notifications.ActionFollow,
		Target:    target.User(r.followingID),
	}, true
}

// Follow toggles the follow relation from followerID to followingID. Following
// oneself is rejected before any row or counter changes.
func (s *Service) Follow(ctx context.Context, followerID, followingID uint) (toggle.Outcome, error) {
	if followerID == followingID {
		return toggle.Outcome{}, newServiceError(opFollow, "self_follow", ErrSelfFollow)
	}
	if err := s.requireUser(ctx, opFollow, followingID); err != nil {
		return toggle.Outcome{}, err
	}
	outcome, err := s.toggles.Apply(ctx, s.followRelation(followerID, followingID), "")
	if err != nil {
		s.logError(opFollow, "toggle_failed", err, zap.Uint("follower_id", followerID), zap.Uint("following_id", followingID))
		return toggle.Outcome{}, newServiceError(opFollow, "toggle_failed", err)
	}
	return outcome, nil
}

// Unfollow removes an existing follow relation.
func (s *Service) Unfollow(ctx context.Context, followerID, followingID uint) error {
	if followerID == followingID {
		return newServiceError(opUnfollow, "self_follow", ErrSelfFollow)
	}
	if err := s.requireUser(ctx, opUnfollow, followingID); err != nil {
		return err
	}
	err := s.toggles.Remove(ctx, s.followRelation(followerID, followingID))
	if errors.Is(err, toggle.ErrRelationNotFound) {
		return newServiceError(opUnfollow, "not_following", ErrFollowNotFound)
	}
	if err != nil {
		s.logError(opUnfollow, "remove_failed", err, zap.Uint("follower_id", followerID), zap.Uint("following_id", followingID))
		return newServiceError(opUnfollow, "remove_failed", err)
	}
	return nil
}

// IsFollowing reports whether followerID follows followingID.
func (s *Service) IsFollowing(ctx context.Context, followerID, followingID uint) (bool, error) {
	state, err := s.followRelation(followerID, followingID).Find(ctx, s.db.WithContext(ctx))
	if err != nil {
		return false, newServiceError(opIsFollowing, "query_failed", err)
	}
	return state.Present, nil
}

// Followers lists the users following userID, most recent first.
func (s *Service) Followers(ctx context.Context, userID uint, page paging.Page) ([]User, error) {
	return s.listRelated(ctx, opListFollowers, userID, "follows.follower_id", "follows.following_id", page)
}

// Following lists the users userID follows, most recent first.
func (s *Service) Following(ctx context.Context, userID uint, page paging.Page) ([]User, error) {
	return s.listRelated(ctx, opListFollowing, userID, "follows.following_id", "follows.follower_id", page)
}

// FollowingIDs returns the ids of every user that userID follows.
func (s *Service) FollowingIDs(ctx context.Context, userID uint) ([]uint, error) {
	var ids []uint
	err := s.db.WithContext(ctx).
		Model(&Follow{}).
		Where("follower_id = ?", userID).
		Pluck("following_id", &ids).Error
	if err != nil {
		s.logError(opFollowingIDs, "query_failed", err, zap.Uint("user_id", userID))
		return nil, newServiceError(opFollowingIDs, "query_failed", err)
	}
	return ids, nil
}

func (s *Service) listRelated(ctx context.Context, operation string, userID uint, joinColumn, filterColumn string, page paging.Page) ([]User, error) {
	if err := s.requireUser(ctx, operation, userID); err != nil {
		return nil, err
	}
	var related []User
	err := s.db.WithContext(ctx).
		Model(&User{}).
		Joins("JOIN follows ON "+joinColumn+" = users.id").
		Where(filterColumn+" = ?", userID).
		Order("follows.created_at DESC").
		Order("follows.id DESC").
		Scopes(page.Scope).
		Find(&related).Error
	if err != nil {
		s.logError(operation, "query_failed", err, zap.Uint("user_id", userID))
		return nil, newServiceError(operation, "query_failed", err)
	}
	return related, nil
}

func (s *Service) requireUser(ctx context.Context, operation string, userID uint) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
		return newServiceError(operation, "query_failed", err)
	}
	if count == 0 {
		return newServiceError(operation, "user_not_found", ErrUserNotFound)
	}
	return nil
}

func (s *Service) followRelation(followerID, followingID uint) followRelation {
	return followRelation{followerID: followerID, followingID: followingID, now: s.now}
}
