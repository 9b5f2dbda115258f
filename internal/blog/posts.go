package blog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/AbassKoyang/swirl-backend/internal/ledger"
	"github.com/AbassKoyang/swirl-backend/internal/paging"
	"github.com/AbassKoyang/swirl-backend/internal/toggle"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	opCreatePost    = "blog.create_post"
	opGetPost       = "blog.get_post"
	opViewPost      = "blog.view_post"
	opUpdatePost    = "blog.update_post"
	opDeletePost    = "blog.delete_post"
	opListPosts     = "blog.list_posts"
	maxTitleLength  = 225
	slugAttemptsMax = 2
)

// PostInput carries the fields of a new post.
type PostInput struct {
	Title      string
	Content    string
	CategoryID uint
	Tags       []string
	Status     string
}

// PostPatch carries a partial post update. Nil fields are left unchanged.
type PostPatch struct {
	Title      *string
	Content    *string
	CategoryID *uint
	Status     *string
	Tags       *[]string
}

// PostFilter narrows post listings. Only published posts are listed unless
// IncludeDrafts is set.
type PostFilter struct {
	Status        PostStatus
	CategoryID    uint
	AuthorID      uint
	IncludeDrafts bool
}

// CreatePost stores a post authored by authorID.
func (s *Service) CreatePost(ctx context.Context, authorID uint, input PostInput) (Post, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" || len([]rune(title)) > maxTitleLength {
		return Post{}, newServiceError(opCreatePost, "invalid_title", fmt.Errorf("%w: title must be 1-%d characters", ErrInvalidPost, maxTitleLength))
	}
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return Post{}, newServiceError(opCreatePost, "invalid_content", fmt.Errorf("%w: content is required", ErrInvalidPost))
	}
	status, err := ParseStatus(input.Status)
	if err != nil {
		return Post{}, newServiceError(opCreatePost, "invalid_status", err)
	}
	if err := s.requireCategory(ctx, opCreatePost, input.CategoryID); err != nil {
		return Post{}, err
	}

	var post Post
	for attempt := 0; attempt < slugAttemptsMax; attempt++ {
		post, err = s.insertPost(ctx, authorID, title, content, status, input)
		if !toggle.IsDuplicateKey(err) {
			break
		}
	}
	if err != nil {
		s.logError(opCreatePost, "insert_failed", err, zap.Uint("author_id", authorID))
		return Post{}, newServiceError(opCreatePost, "insert_failed", err)
	}
	return s.GetPost(ctx, post.ID)
}

func (s *Service) insertPost(ctx context.Context, authorID uint, title, content string, status PostStatus, input PostInput) (Post, error) {
	var post Post
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		slug, err := s.uniqueSlug(tx, title)
		if err != nil {
			return err
		}
		tags, err := s.resolveTags(tx, input.Tags)
		if err != nil {
			return err
		}
		now := s.clock()
		post = Post{
			AuthorID:   authorID,
			CategoryID: input.CategoryID,
			Tags:       tags,
			Title:      title,
			Slug:       slug,
			Content:    content,
			Status:     status,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		return tx.Create(&post).Error
	})
	return post, err
}

func (s *Service) uniqueSlug(tx *gorm.DB, title string) (string, error) {
	base := Slugify(title)
	if base == "" {
		base = fallbackSlug
	}
	var taken int64
	if err := tx.Model(&Post{}).Where("slug = ?", base).Count(&taken).Error; err != nil {
		return "", err
	}
	if taken == 0 {
		return base, nil
	}
	return base + "-" + s.idProvider(), nil
}

// GetPost loads an active post with its relations without counting a view.
func (s *Service) GetPost(ctx context.Context, postID uint) (Post, error) {
	var post Post
	err := s.db.WithContext(ctx).Scopes(Active, WithRelations).Take(&post, postID).Error
	if err != nil {
		return Post{}, s.queryError(opGetPost, err, ErrPostNotFound, zap.Uint("post_id", postID))
	}
	return post, nil
}

// ViewPostBySlug loads an active post by slug and counts the view.
func (s *Service) ViewPostBySlug(ctx context.Context, slug string) (Post, error) {
	var post Post
	err := s.db.WithContext(ctx).Scopes(Active).Where("slug = ?", strings.TrimSpace(slug)).Take(&post).Error
	if err != nil {
		return Post{}, s.queryError(opViewPost, err, ErrPostNotFound, zap.String("slug", slug))
	}
	if _, err := s.ledger.Increment(ctx, s.db, ledger.PostViews, post.ID); err != nil {
		s.logError(opViewPost, "view_count_failed", err, zap.Uint("post_id", post.ID))
	}
	return s.GetPost(ctx, post.ID)
}

// UpdatePost applies patch to a post owned by actorID. Counter columns are
// never part of the update.
func (s *Service) UpdatePost(ctx context.Context, actorID, postID uint, patch PostPatch) (Post, error) {
	post, err := s.ownedPost(ctx, opUpdatePost, actorID, postID)
	if err != nil {
		return Post{}, err
	}

	updates := map[string]interface{}{}
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" || len([]rune(title)) > maxTitleLength {
			return Post{}, newServiceError(opUpdatePost, "invalid_title", fmt.Errorf("%w: title must be 1-%d characters", ErrInvalidPost, maxTitleLength))
		}
		updates["title"] = title
	}
	if patch.Content != nil {
		content := strings.TrimSpace(*patch.Content)
		if content == "" {
			return Post{}, newServiceError(opUpdatePost, "invalid_content", fmt.Errorf("%w: content is required", ErrInvalidPost))
		}
		updates["content"] = content
	}
	if patch.Status != nil {
		status, err := ParseStatus(*patch.Status)
		if err != nil {
			return Post{}, newServiceError(opUpdatePost, "invalid_status", err)
		}
		updates["status"] = status
	}
	if patch.CategoryID != nil {
		if err := s.requireCategory(ctx, opUpdatePost, *patch.CategoryID); err != nil {
			return Post{}, err
		}
		updates["category_id"] = *patch.CategoryID
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(updates) > 0 {
			updates["updated_at"] = s.clock()
			if err := tx.Model(&Post{}).Where("id = ?", post.ID).UpdateColumns(updates).Error; err != nil {
				return err
			}
		}
		if patch.Tags != nil {
			tags, err := s.resolveTags(tx, *patch.Tags)
			if err != nil {
				return err
			}
			if err := tx.Model(&post).Association("Tags").Replace(tags); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logError(opUpdatePost, "update_failed", err, zap.Uint("post_id", postID))
		return Post{}, newServiceError(opUpdatePost, "update_failed", err)
	}
	return s.GetPost(ctx, post.ID)
}

// DeletePost soft-deletes a post owned by actorID.
func (s *Service) DeletePost(ctx context.Context, actorID, postID uint) error {
	post, err := s.ownedPost(ctx, opDeletePost, actorID, postID)
	if err != nil {
		return err
	}
	err = s.db.WithContext(ctx).Model(&Post{}).Where("id = ?", post.ID).
		UpdateColumns(map[string]interface{}{"is_deleted": true, "updated_at": s.clock()}).Error
	if err != nil {
		s.logError(opDeletePost, "update_failed", err, zap.Uint("post_id", postID))
		return newServiceError(opDeletePost, "update_failed", err)
	}
	return nil
}

// ListPosts returns active posts matching filter, newest first.
func (s *Service) ListPosts(ctx context.Context, filter PostFilter, page paging.Page) ([]Post, error) {
	query := s.db.WithContext(ctx).Model(&Post{}).Scopes(Active)
	switch {
	case filter.Status == StatusDraft && filter.IncludeDrafts:
		query = query.Where("posts.status = ?", StatusDraft)
	case filter.Status == "" && filter.IncludeDrafts:
	default:
		query = query.Scopes(Published)
	}
	if filter.CategoryID != 0 {
		query = query.Where("posts.category_id = ?", filter.CategoryID)
	}
	if filter.AuthorID != 0 {
		query = query.Where("posts.author_id = ?", filter.AuthorID)
	}

	var posts []Post
	if err := query.Scopes(NewestFirst, WithRelations, page.Scope).Find(&posts).Error; err != nil {
		s.logError(opListPosts, "query_failed", err)
		return nil, newServiceError(opListPosts, "query_failed", err)
	}
	return posts, nil
}

func (s *Service) ownedPost(ctx context.Context, operation string, actorID, postID uint) (Post, error) {
	var post Post
	err := s.db.WithContext(ctx).Scopes(Active).Take(&post, postID).Error
	if err != nil {
		return Post{}, s.queryError(operation, err, ErrPostNotFound, zap.Uint("post_id", postID))
	}
	if post.AuthorID != actorID {
		return Post{}, newServiceError(operation, "forbidden", ErrNotPostOwner)
	}
	return post, nil
}

func (s *Service) activePost(ctx context.Context, db *gorm.DB, operation string, postID uint) (Post, error) {
	var post Post
	err := db.WithContext(ctx).Scopes(Active).Take(&post, postID).Error
	if err != nil {
		return Post{}, s.queryError(operation, err, ErrPostNotFound, zap.Uint("post_id", postID))
	}
	return post, nil
}

func (s *Service) requireCategory(ctx context.Context, operation string, categoryID uint) error {
	if categoryID == 0 {
		return newServiceError(operation, "category_required", fmt.Errorf("%w: category is required", ErrInvalidPost))
	}
	var category Category
	err := s.db.WithContext(ctx).Take(&category, categoryID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return newServiceError(operation, "category_not_found", ErrCategoryNotFound)
	}
	if err != nil {
		return newServiceError(operation, "query_failed", err)
	}
	return nil
}
