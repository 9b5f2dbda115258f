package blog

import (
	"context"
	"fmt"
	"strings"

	"github.com/AbassKoyang/swirl-backend/internal/ledger"
	"github.com/AbassKoyang/swirl-backend/internal/notifications"
	"github.com/AbassKoyang/swirl-backend/internal/paging"
	"github.com/AbassKoyang/swirl-backend/internal/ranking"
	"github.com/AbassKoyang/swirl-backend/internal/target"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	opCreateComment = "blog.create_comment"
	opCreateReply   = "blog.create_reply"
	opViewComment   = "blog.view_comment"
	opUpdateComment = "blog.update_comment"
	opDeleteComment = "blog.delete_comment"
	opListComments  = "blog.list_comments"
	opListReplies   = "blog.list_replies"
)

// CommentOrdering selects how top-level comments are listed.
type CommentOrdering string

// Comment orderings.
const (
	OrderRecent CommentOrdering = "recent"
	OrderTop    CommentOrdering = "top"
)

// ParseCommentOrdering falls back to recent for unknown values.
func ParseCommentOrdering(raw string) CommentOrdering {
	if CommentOrdering(strings.ToLower(strings.TrimSpace(raw))) == OrderTop {
		return OrderTop
	}
	return OrderRecent
}

// CommentInput carries a new comment. A non-nil ParentID makes it a reply.
type CommentInput struct {
	Content  string
	ParentID *uint
}

// CreateComment adds a comment to an active post. When input names a parent
// the comment is created as a reply to it.
func (s *Service) CreateComment(ctx context.Context, actorID, postID uint, input CommentInput) (Comment, error) {
	content, err := commentContent(opCreateComment, input.Content)
	if err != nil {
		return Comment{}, err
	}
	if input.ParentID != nil {
		return s.createReply(ctx, actorID, *input.ParentID, content, &postID)
	}

	post, err := s.activePost(ctx, s.db, opCreateComment, postID)
	if err != nil {
		return Comment{}, err
	}

	now := s.clock()
	comment := Comment{PostID: post.ID, UserID: actorID, Content: content, CreatedAt: now, UpdatedAt: now}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&comment).Error; err != nil {
			return err
		}
		_, err := s.ledger.Increment(ctx, tx, ledger.PostComments, post.ID)
		return err
	})
	if err != nil {
		s.logError(opCreateComment, "insert_failed", err, zap.Uint("post_id", postID))
		return Comment{}, newServiceError(opCreateComment, "insert_failed", err)
	}

	s.emit(ctx, notifications.Event{
		Recipient: post.AuthorID,
		Actor:     actorID,
		Action:    notifications.ActionComment,
		Target:    target.Post(post.ID),
	})
	return s.loadComment(ctx, opCreateComment, comment.ID)
}

// CreateReply answers a top-level comment.
func (s *Service) CreateReply(ctx context.Context, actorID, parentID uint, content string) (Comment, error) {
	content, err := commentContent(opCreateReply, content)
	if err != nil {
		return Comment{}, err
	}
	return s.createReply(ctx, actorID, parentID, content, nil)
}

// createReply validates nesting before anything is written: the parent must
// be a top-level comment and, when expectedPostID is set, belong to that post.
func (s *Service) createReply(ctx context.Context, actorID, parentID uint, content string, expectedPostID *uint) (Comment, error) {
	parent, err := s.findComment(ctx, opCreateReply, parentID)
	if err != nil {
		return Comment{}, err
	}
	if parent.IsReply() {
		return Comment{}, newServiceError(opCreateReply, "reply_depth", ErrReplyDepth)
	}
	if expectedPostID != nil && parent.PostID != *expectedPostID {
		return Comment{}, newServiceError(opCreateReply, "parent_mismatch", ErrParentMismatch)
	}
	if _, err := s.activePost(ctx, s.db, opCreateReply, parent.PostID); err != nil {
		return Comment{}, err
	}

	now := s.clock()
	reply := Comment{
		PostID:    parent.PostID,
		UserID:    actorID,
		Content:   content,
		ParentID:  &parent.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&reply).Error; err != nil {
			return err
		}
		_, err := s.ledger.Increment(ctx, tx, ledger.CommentReplies, parent.ID)
		return err
	})
	if err != nil {
		s.logError(opCreateReply, "insert_failed", err, zap.Uint("parent_id", parentID))
		return Comment{}, newServiceError(opCreateReply, "insert_failed", err)
	}

	s.emit(ctx, notifications.Event{
		Recipient: parent.UserID,
		Actor:     actorID,
		Action:    notifications.ActionReply,
		Target:    target.Comment(parent.ID),
	})
	return s.loadComment(ctx, opCreateReply, reply.ID)
}

// ViewComment loads a comment and counts the view.
func (s *Service) ViewComment(ctx context.Context, commentID uint) (Comment, error) {
	comment, err := s.findComment(ctx, opViewComment, commentID)
	if err != nil {
		return Comment{}, err
	}
	if _, err := s.ledger.Increment(ctx, s.db, ledger.CommentViews, comment.ID); err != nil {
		s.logError(opViewComment, "view_count_failed", err, zap.Uint("comment_id", comment.ID))
	}
	return s.loadComment(ctx, opViewComment, comment.ID)
}

// UpdateComment replaces the content of a comment owned by actorID.
func (s *Service) UpdateComment(ctx context.Context, actorID, commentID uint, content string) (Comment, error) {
	content, err := commentContent(opUpdateComment, content)
	if err != nil {
		return Comment{}, err
	}
	comment, err := s.ownedComment(ctx, opUpdateComment, actorID, commentID)
	if err != nil {
		return Comment{}, err
	}
	err = s.db.WithContext(ctx).Model(&Comment{}).Where("id = ?", comment.ID).
		UpdateColumns(map[string]interface{}{"content": content, "updated_at": s.clock()}).Error
	if err != nil {
		s.logError(opUpdateComment, "update_failed", err, zap.Uint("comment_id", commentID))
		return Comment{}, newServiceError(opUpdateComment, "update_failed", err)
	}
	return s.loadComment(ctx, opUpdateComment, comment.ID)
}

// DeleteComment removes a comment owned by actorID and releases the counter it
// contributed to. Deleting a top-level comment removes its replies too.
func (s *Service) DeleteComment(ctx context.Context, actorID, commentID uint) error {
	comment, err := s.ownedComment(ctx, opDeleteComment, actorID, commentID)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		removed := []uint{comment.ID}
		if !comment.IsReply() {
			var replyIDs []uint
			if err := tx.Model(&Comment{}).Where("parent_id = ?", comment.ID).Pluck("id", &replyIDs).Error; err != nil {
				return err
			}
			removed = append(removed, replyIDs...)
		}

		if err := tx.Where("target_type = ? AND target_id IN ?", string(target.KindComment), removed).Delete(&Reaction{}).Error; err != nil {
			return err
		}
		if err := tx.Where("parent_id = ?", comment.ID).Delete(&Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&Comment{}, comment.ID).Error; err != nil {
			return err
		}

		if comment.IsReply() {
			_, err := s.ledger.Decrement(ctx, tx, ledger.CommentReplies, *comment.ParentID)
			return err
		}
		_, err := s.ledger.Decrement(ctx, tx, ledger.PostComments, comment.PostID)
		return err
	})
	if err != nil {
		s.logError(opDeleteComment, "delete_failed", err, zap.Uint("comment_id", commentID))
		return newServiceError(opDeleteComment, "delete_failed", err)
	}
	return nil
}

// ListComments returns the top-level comments of an active post.
func (s *Service) ListComments(ctx context.Context, postID uint, ordering CommentOrdering, page paging.Page) ([]Comment, error) {
	if _, err := s.activePost(ctx, s.db, opListComments, postID); err != nil {
		return nil, err
	}
	query := s.db.WithContext(ctx).Preload("User").Where("post_id = ? AND parent_id IS NULL", postID)

	if ordering == OrderTop {
		var comments []Comment
		if err := query.Find(&comments).Error; err != nil {
			s.logError(opListComments, "query_failed", err, zap.Uint("post_id", postID))
			return nil, newServiceError(opListComments, "query_failed", err)
		}
		ranking.SortByEngagement(comments, CommentRankEntry)
		return paging.Slice(comments, page), nil
	}

	var comments []Comment
	if err := query.Order("created_at DESC").Order("id DESC").Scopes(page.Scope).Find(&comments).Error; err != nil {
		s.logError(opListComments, "query_failed", err, zap.Uint("post_id", postID))
		return nil, newServiceError(opListComments, "query_failed", err)
	}
	return comments, nil
}

// ListReplies returns the replies to a comment, newest first.
func (s *Service) ListReplies(ctx context.Context, commentID uint, page paging.Page) ([]Comment, error) {
	if _, err := s.findComment(ctx, opListReplies, commentID); err != nil {
		return nil, err
	}
	var replies []Comment
	err := s.db.WithContext(ctx).
		Preload("User").
		Where("parent_id = ?", commentID).
		Order("created_at DESC").
		Order("id DESC").
		Scopes(page.Scope).
		Find(&replies).Error
	if err != nil {
		s.logError(opListReplies, "query_failed", err, zap.Uint("comment_id", commentID))
		return nil, newServiceError(opListReplies, "query_failed", err)
	}
	return replies, nil
}

func (s *Service) findComment(ctx context.Context, operation string, commentID uint) (Comment, error) {
	var comment Comment
	if err := s.db.WithContext(ctx).Take(&comment, commentID).Error; err != nil {
		return Comment{}, s.queryError(operation, err, ErrCommentNotFound, zap.Uint("comment_id", commentID))
	}
	return comment, nil
}

func (s *Service) loadComment(ctx context.Context, operation string, commentID uint) (Comment, error) {
	var comment Comment
	if err := s.db.WithContext(ctx).Preload("User").Take(&comment, commentID).Error; err != nil {
		return Comment{}, s.queryError(operation, err, ErrCommentNotFound, zap.Uint("comment_id", commentID))
	}
	return comment, nil
}

func (s *Service) ownedComment(ctx context.Context, operation string, actorID, commentID uint) (Comment, error) {
	comment, err := s.findComment(ctx, operation, commentID)
	if err != nil {
		return Comment{}, err
	}
	if comment.UserID != actorID {
		return Comment{}, newServiceError(operation, "forbidden", ErrNotCommentOwner)
	}
	return comment, nil
}

func commentContent(operation, raw string) (string, error) {
	content := strings.TrimSpace(raw)
	if content == "" {
		return "", newServiceError(operation, "invalid_content", fmt.Errorf("%w: content is required", ErrInvalidComment))
	}
	return content, nil
}
