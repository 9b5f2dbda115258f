package blog

import "gorm.io/gorm"

// Active excludes soft-deleted posts.
func Active(db *gorm.DB) *gorm.DB {
	return db.Where("posts.is_deleted = ?", false)
}

// Published keeps published posts only.
func Published(db *gorm.DB) *gorm.DB {
	return db.Where("posts.status = ?", StatusPublished)
}

// NewestFirst orders posts by creation time, newest first.
func NewestFirst(db *gorm.DB) *gorm.DB {
	return db.Order("posts.created_at DESC").Order("posts.id DESC")
}

// WithRelations preloads the associations rendered with a post.
func WithRelations(db *gorm.DB) *gorm.DB {
	return db.Preload("Author").Preload("Category").Preload("Tags")
}
