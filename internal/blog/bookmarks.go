package blog

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

const (
	opToggleBookmark = "blog.toggle_bookmark"
	opRemoveBookmark = "blog.remove_bookmark"
	opListBookmarks  = "blog.list_bookmarks"
)

type bookmarkRelation struct {
	userID  uint
	postID  uint
	ownerID uint
	now     func() time.Time
}

func (r bookmarkRelation) Name() string { return "bookmark" }

func (r bookmarkRelation) scope(tx *gorm.DB) *gorm.DB {
	return tx.Where("user_id = ? AND post_id = ?", r.userID, r.postID)
}

func (r bookmarkRelation) Find(_ context.Context, tx *gorm.DB) (toggle.State, error) {
	var bookmark Bookmark
	err := r.scope(tx).Take(&bookmark).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return toggle.Absent, nil
	}
	if err != nil {
		return toggle.State{}, err
	}
	return toggle.Present(""), nil
}

func (r bookmarkRelation) Create(_ context.Context, tx *gorm.DB, _ string) error {
	return tx.Create(&Bookmark{UserID: r.userID, PostID: r.postID, CreatedAt: r.now()}).Error
}

func (r bookmarkRelation) Delete(_ context.Context, tx *gorm.DB) (bool, error) {
	result := r.scope(tx).Delete(&Bookmark{})
	return result.RowsAffected > 0, result.Error
}

func (r bookmarkRelation) SetPayload(context.Context, *gorm.DB, string) error { return nil }

func (r bookmarkRelation) Counters() []toggle.CounterRef {
	return []toggle.CounterRef{{Counter: ledger.PostBookmarks, ID: r.postID}}
}

func (r bookmarkRelation) Notification() (notifications.Event, bool) {
	if r.ownerID == 0 {
		return notifications.Event{}, false
	}
	return notifications.Event{
		Recipient: r.ownerID,
		Actor:     r.userID,
		Action:    notifications.ActionBookmark,
		Target:    target.Post(r.postID),
	}, true
}

// ToggleBookmark saves an active post for actorID, or unsaves it when already saved.
func (s *Service) ToggleBookmark(ctx context.Context, actorID, postID uint) (toggle.Outcome, error) {
	post, err := s.activePost(ctx, s.db, opToggleBookmark, postID)
	if err != nil {
		return toggle.Outcome{}, err
	}
	relation := bookmarkRelation{userID: actorID, postID: post.ID, ownerID: post.AuthorID, now: s.clock}
	outcome, err := s.toggles.Apply(ctx, relation, "")
	if err != nil {
		s.logError(opToggleBookmark, "toggle_failed", err, zap.Uint("post_id", postID))
		return toggle.Outcome{}, newServiceError(opToggleBookmark, "toggle_failed", err)
	}
	return outcome, nil
}

// RemoveBookmark unsaves postID for actorID. The post may since have been deleted.
func (s *Service) RemoveBookmark(ctx context.Context, actorID, postID uint) error {
	err := s.toggles.Remove(ctx, bookmarkRelation{userID: actorID, postID: postID, now: s.clock})
	if errors.Is(err, toggle.ErrRelationNotFound) {
		return newServiceError(opRemoveBookmark, "not_found", ErrBookmarkNotFound)
	}
	if err != nil {
		s.logError(opRemoveBookmark, "remove_failed", err, zap.Uint("post_id", postID))
		return newServiceError(opRemoveBookmark, "remove_failed", err)
	}
	return nil
}

// RemoveBookmarkByID deletes one of actorID's bookmarks by its id. Bookmarks of
// other users are reported as not found.
func (s *Service) RemoveBookmarkByID(ctx context.Context, actorID, bookmarkID uint) error {
	var bookmark Bookmark
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", bookmarkID, actorID).Take(&bookmark).Error
	if err != nil {
		return s.queryError(opRemoveBookmark, err, ErrBookmarkNotFound, zap.Uint("bookmark_id", bookmarkID))
	}
	return s.RemoveBookmark(ctx, actorID, bookmark.PostID)
}

// ListBookmarks returns userID's bookmarks of active posts, newest first.
func (s *Service) ListBookmarks(ctx context.Context, userID uint, page paging.Page) ([]Bookmark, error) {
	var bookmarks []Bookmark
	err := s.db.WithContext(ctx).
		Joins("JOIN posts ON posts.id = bookmarks.post_id").
		Where("bookmarks.user_id = ?", userID).
		Scopes(Active).
		Preload("Post").
		Preload("Post.Author").
		Preload("Post.Category").
		Preload("Post.Tags").
		Order("bookmarks.created_at DESC").
		Order("bookmarks.id DESC").
		Scopes(page.Scope).
		Find(&bookmarks).Error
	if err != nil {
		s.logError(opListBookmarks, "query_failed", err, zap.Uint("user_id", userID))
		return nil, newServiceError(opListBookmarks, "query_failed", err)
	}
	return bookmarks, nil
}
