// Package search filters posts, comments and bookmarks by free text and
// structured parameters.
package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/AbassKoyang/swirl-backend/internal/blog"
	"github.com/AbassKoyang/swirl-backend/internal/paging"
	"github.com/AbassKoyang/swirl-backend/internal/users"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	opPosts     = "search.posts"
	opComments  = "search.comments"
	opBookmarks = "search.bookmarks"

	defaultPostOrdering = "-created_at"
)

var postOrderings = map[string]string{
	"created_at":     "posts.created_at",
	"updated_at":     "posts.updated_at",
	"title":          "posts.title",
	"reaction_count": "posts.reaction_count",
	"comment_count":  "posts.comment_count",
	"bookmark_count": "posts.bookmark_count",
}

// PostQuery filters posts. Drafts are only matched for the viewer's own posts.
type PostQuery struct {
	Text       string
	Status     string
	CategoryID uint
	AuthorID   uint
	Tags       []string
	Ordering   string
	Viewer     uint
}

// CommentQuery filters comments on active posts.
type CommentQuery struct {
	Text     string
	PostID   uint
	UserID   uint
	ParentID *uint
}

// ServiceConfig describes the dependencies of the search service.
type ServiceConfig struct {
	Database *gorm.DB
	Logger   *zap.Logger
}

// Service runs search queries against the post store.
type Service struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewService constructs the search service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("search: database connection required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: cfg.Database, logger: logger}, nil
}

// Posts returns active posts matching query.
func (s *Service) Posts(ctx context.Context, query PostQuery, page paging.Page) ([]blog.Post, error) {
	db := s.db.WithContext(ctx).Model(&blog.Post{}).Scopes(blog.Active)

	switch status := strings.ToLower(strings.TrimSpace(query.Status)); status {
	case "", string(blog.StatusPublished):
		db = db.Scopes(blog.Published)
	case string(blog.StatusDraft):
		db = db.Where("posts.status = ? AND posts.author_id = ?", blog.StatusDraft, query.Viewer)
	default:
		return nil, newServiceError(opPosts, "invalid_status", fmt.Errorf("%w: status %q", ErrInvalidFilter, query.Status))
	}
	if query.CategoryID != 0 {
		db = db.Where("posts.category_id = ?", query.CategoryID)
	}
	if query.AuthorID != 0 {
		db = db.Where("posts.author_id = ?", query.AuthorID)
	}
	if tags := normalizeTerms(query.Tags); len(tags) > 0 {
		db = db.Where("posts.id IN (?)", s.taggedPosts(ctx).Where("tags.name IN ?", tags))
	}
	if pattern := likePattern(query.Text); pattern != "" {
		db = db.Where(s.postText(ctx, pattern))
	}

	column, direction, err := postOrdering(query.Ordering)
	if err != nil {
		return nil, newServiceError(opPosts, "invalid_ordering", err)
	}

	var posts []blog.Post
	err = db.Order(column + " " + direction).
		Order("posts.id " + direction).
		Scopes(blog.WithRelations, page.Scope).
		Find(&posts).Error
	if err != nil {
		s.logError(opPosts, "query_failed", err)
		return nil, newServiceError(opPosts, "query_failed", err)
	}
	return posts, nil
}

// Comments returns comments on active posts matching query, newest first.
func (s *Service) Comments(ctx context.Context, query CommentQuery, page paging.Page) ([]blog.Comment, error) {
	db := s.db.WithContext(ctx).
		Model(&blog.Comment{}).
		Where("comments.post_id IN (?)", s.db.WithContext(ctx).Model(&blog.Post{}).Select("posts.id").Where("posts.is_deleted = ?", false))

	if query.PostID != 0 {
		db = db.Where("comments.post_id = ?", query.PostID)
	}
	if query.UserID != 0 {
		db = db.Where("comments.user_id = ?", query.UserID)
	}
	if query.ParentID != nil {
		db = db.Where("comments.parent_id = ?", *query.ParentID)
	}
	if pattern := likePattern(query.Text); pattern != "" {
		db = db.Where(
			s.db.Where("LOWER(comments.content) LIKE ?", pattern).
				Or("comments.user_id IN (?)", s.matchingUsers(ctx, pattern)).
				Or("comments.post_id IN (?)", s.db.WithContext(ctx).Model(&blog.Post{}).Select("posts.id").Where("LOWER(posts.title) LIKE ?", pattern)),
		)
	}

	var comments []blog.Comment
	err := db.Preload("User").
		Order("comments.created_at DESC").
		Order("comments.id DESC").
		Scopes(page.Scope).
		Find(&comments).Error
	if err != nil {
		s.logError(opComments, "query_failed", err)
		return nil, newServiceError(opComments, "query_failed", err)
	}
	return comments, nil
}

// Bookmarks searches userID's bookmarks of active posts by post title and content.
func (s *Service) Bookmarks(ctx context.Context, userID uint, text string, page paging.Page) ([]blog.Bookmark, error) {
	db := s.db.WithContext(ctx).
		Joins("JOIN posts ON posts.id = bookmarks.post_id").
		Where("bookmarks.user_id = ?", userID).
		Scopes(blog.Active)
	if pattern := likePattern(text); pattern != "" {
		db = db.Where("LOWER(posts.title) LIKE ? OR LOWER(posts.content) LIKE ?", pattern, pattern)
	}

	var bookmarks []blog.Bookmark
	err := db.Preload("Post").
		Preload("Post.Author").
		Preload("Post.Category").
		Preload("Post.Tags").
		Order("bookmarks.created_at DESC").
		Order("bookmarks.id DESC").
		Scopes(page.Scope).
		Find(&bookmarks).Error
	if err != nil {
		s.logError(opBookmarks, "query_failed", err, zap.Uint("user_id", userID))
		return nil, newServiceError(opBookmarks, "query_failed", err)
	}
	return bookmarks, nil
}

// postText matches the text against the post and everything rendered with it.
func (s *Service) postText(ctx context.Context, pattern string) *gorm.DB {
	return s.db.Where("LOWER(posts.title) LIKE ?", pattern).
		Or("LOWER(posts.content) LIKE ?", pattern).
		Or("posts.author_id IN (?)", s.matchingUsers(ctx, pattern)).
		Or("posts.category_id IN (?)", s.db.WithContext(ctx).Model(&blog.Category{}).Select("id").Where("LOWER(name) LIKE ?", pattern)).
		Or("posts.id IN (?)", s.taggedPosts(ctx).Where("tags.name LIKE ?", pattern))
}

func (s *Service) matchingUsers(ctx context.Context, pattern string) *gorm.DB {
	return s.db.WithContext(ctx).
		Model(&users.User{}).
		Select("id").
		Where("LOWER(email) LIKE ? OR LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ?", pattern, pattern, pattern)
}

func (s *Service) taggedPosts(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Table("post_tags").
		Select("post_tags.post_id").
		Joins("JOIN tags ON tags.id = post_tags.tag_id")
}

// postOrdering resolves a field name with an optional leading "-" for
// descending order.
func postOrdering(raw string) (string, string, error) {
	ordering := strings.TrimSpace(raw)
	if ordering == "" {
		ordering = defaultPostOrdering
	}
	direction := "ASC"
	if strings.HasPrefix(ordering, "-") {
		direction = "DESC"
		ordering = ordering[1:]
	}
	column, ok := postOrderings[ordering]
	if !ok {
		return "", "", fmt.Errorf("%w: ordering %q", ErrInvalidFilter, raw)
	}
	return column, direction, nil
}

func likePattern(text string) string {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return ""
	}
	return "%" + text + "%"
}

// normalizeTerms lower-cases and trims tag names, dropping empties.
func normalizeTerms(values []string) []string {
	terms := make([]string, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if term := strings.ToLower(strings.TrimSpace(part)); term != "" {
				terms = append(terms, term)
			}
		}
	}
	return terms
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	if err == nil {
		return
	}
	allFields := append([]zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}, fields...)
	allFields = append(allFields, zap.Error(err))
	s.logger.Error("search operation failed", allFields...)
}
