package blog

import (
	"errors"
	"fmt"
)

var (
	// ErrPostNotFound indicates the post does not exist or is hidden from the caller.
	ErrPostNotFound = errors.New("blog: post not found")
	// ErrCommentNotFound indicates the comment does not exist.
	ErrCommentNotFound = errors.New("blog: comment not found")
	// ErrCategoryNotFound indicates the referenced category does not exist.
	ErrCategoryNotFound = errors.New("blog: category not found")
	// ErrBookmarkNotFound indicates the caller has not bookmarked the post.
	ErrBookmarkNotFound = errors.New("blog: bookmark not found")
	// ErrInvalidPost rejects post input that fails validation.
	ErrInvalidPost = errors.New("blog: invalid post")
	// ErrInvalidComment rejects comment input that fails validation.
	ErrInvalidComment = errors.New("blog: invalid comment")
	// ErrInvalidStatus rejects a post status other than draft or published.
	ErrInvalidStatus = errors.New("blog: invalid status")
	// ErrInvalidCategory rejects a category name that fails validation.
	ErrInvalidCategory = errors.New("blog: invalid category")
	// ErrInvalidTag rejects a tag name that fails validation.
	ErrInvalidTag = errors.New("blog: invalid tag")
	// ErrInvalidReactionType rejects a reaction type other than upvote or downvote.
	ErrInvalidReactionType = errors.New("blog: reaction_type must be upvote or downvote")
	// ErrUnsupportedTarget rejects reactions aimed at anything but a post or comment.
	ErrUnsupportedTarget = errors.New("blog: reactions apply to posts and comments only")
	// ErrReplyDepth rejects replies to replies.
	ErrReplyDepth = errors.New("blog: replies cannot be nested more than one level")
	// ErrParentMismatch rejects a reply whose parent sits under a different post.
	ErrParentMismatch = errors.New("blog: parent comment belongs to another post")
	// ErrNotPostOwner rejects post changes by someone other than the author.
	ErrNotPostOwner = errors.New("blog: only the author may modify this post")
	// ErrNotCommentOwner rejects comment changes by someone other than the author.
	ErrNotCommentOwner = errors.New("blog: only the author may modify this comment")
	// ErrCategoryExists indicates a category with the same name or slug already exists.
	ErrCategoryExists = errors.New("blog: category already exists")
)

// ServiceError captures a stable error code alongside the underlying cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e == nil {
		return ""
	}
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

// Unwrap exposes the underlying cause.
func (e *ServiceError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

// Code returns the stable error code.
func (e *ServiceError) Code() string {
	if e == nil {
		return ""
	}
	return e.code
}

func newServiceError(operation, reason string, cause error) error {
	return &ServiceError{code: fmt.Sprintf("%s.%s", operation, reason), err: cause}
}
