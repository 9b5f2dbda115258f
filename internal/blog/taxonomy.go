package blog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/AbassKoyang/swirl-backend/internal/toggle"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	opListCategories  = "blog.list_categories"
	opCreateCategory  = "blog.create_category"
	opListTags        = "blog.list_tags"
	opCreateTag       = "blog.create_tag"
	maxCategoryLength = 100
	maxTagLength      = 50
)

// ListCategories returns all categories ordered by name.
func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	var categories []Category
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&categories).Error; err != nil {
		s.logError(opListCategories, "query_failed", err)
		return nil, newServiceError(opListCategories, "query_failed", err)
	}
	return categories, nil
}

// CreateCategory stores a new category with a slug derived from its name.
func (s *Service) CreateCategory(ctx context.Context, name, description string) (Category, error) {
	name = strings.TrimSpace(name)
	if name == "" || len([]rune(name)) > maxCategoryLength {
		return Category{}, newServiceError(opCreateCategory, "invalid_name", fmt.Errorf("%w: name must be 1-%d characters", ErrInvalidCategory, maxCategoryLength))
	}
	slug := Slugify(name)
	if slug == "" {
		return Category{}, newServiceError(opCreateCategory, "invalid_name", fmt.Errorf("%w: name must contain letters or digits", ErrInvalidCategory))
	}
	category := Category{
		Name:        name,
		Slug:        slug,
		Description: strings.TrimSpace(description),
		CreatedAt:   s.clock(),
	}
	err := s.db.WithContext(ctx).Create(&category).Error
	if toggle.IsDuplicateKey(err) {
		return Category{}, newServiceError(opCreateCategory, "exists", ErrCategoryExists)
	}
	if err != nil {
		s.logError(opCreateCategory, "insert_failed", err, zap.String("name", name))
		return Category{}, newServiceError(opCreateCategory, "insert_failed", err)
	}
	return category, nil
}

// ListTags returns tags ordered by name, optionally filtered by a name fragment.
func (s *Service) ListTags(ctx context.Context, query string) ([]Tag, error) {
	db := s.db.WithContext(ctx).Order("name ASC")
	if fragment := normalizeTagName(query); fragment != "" {
		db = db.Where("name LIKE ?", "%"+fragment+"%")
	}
	var tags []Tag
	if err := db.Find(&tags).Error; err != nil {
		s.logError(opListTags, "query_failed", err)
		return nil, newServiceError(opListTags, "query_failed", err)
	}
	return tags, nil
}

// CreateTag returns the tag with the normalized name, creating it when missing.
func (s *Service) CreateTag(ctx context.Context, name string) (Tag, error) {
	tags, err := s.resolveTags(s.db.WithContext(ctx), []string{name})
	if err != nil {
		return Tag{}, newServiceError(opCreateTag, "resolve_failed", err)
	}
	if len(tags) == 0 {
		return Tag{}, newServiceError(opCreateTag, "invalid_name", fmt.Errorf("%w: name must be 1-%d characters", ErrInvalidTag, maxTagLength))
	}
	return tags[0], nil
}

// resolveTags gets or creates each distinct normalized tag name in order.
func (s *Service) resolveTags(tx *gorm.DB, names []string) ([]Tag, error) {
	seen := make(map[string]struct{}, len(names))
	tags := make([]Tag, 0, len(names))
	for _, raw := range names {
		name := normalizeTagName(raw)
		if name == "" || len([]rune(name)) > maxTagLength {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}

		tag, err := s.resolveTag(tx, name)
		if err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

// resolveTag returns the tag named name, creating it when missing. A slug
// already held by a differently named tag gets a short random suffix.
func (s *Service) resolveTag(tx *gorm.DB, name string) (Tag, error) {
	var tag Tag
	err := tx.Where("name = ?", name).Take(&tag).Error
	if err == nil {
		return tag, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return Tag{}, err
	}

	slug, err := s.uniqueTagSlug(tx, name)
	if err != nil {
		return Tag{}, err
	}
	tag = Tag{Name: name, Slug: slug, CreatedAt: s.clock()}
	err = tx.Create(&tag).Error
	if toggle.IsDuplicateKey(err) {
		var existing Tag
		if lookupErr := tx.Where("name = ?", name).Take(&existing).Error; lookupErr == nil {
			return existing, nil
		}
	}
	if err != nil {
		return Tag{}, err
	}
	return tag, nil
}

func (s *Service) uniqueTagSlug(tx *gorm.DB, name string) (string, error) {
	base := tagSlug(name)
	var taken int64
	if err := tx.Model(&Tag{}).Where("slug = ?", base).Count(&taken).Error; err != nil {
		return "", err
	}
	if taken == 0 {
		return base, nil
	}
	return base + "-" + s.idProvider(), nil
}
