package blog

import (
	"fmt"
	"strings"
	"time"

	"github.com/AbassKoyang/swirl-backend/internal/ranking"
	"github.com/AbassKoyang/swirl-backend/internal/users"
)

// PostStatus is the publication state of a post.
type PostStatus string

// Post statuses.
const (
	StatusDraft     PostStatus = "draft"
	StatusPublished PostStatus = "published"
)

// ParseStatus validates a status value. An empty value yields draft.
func ParseStatus(raw string) (PostStatus, error) {
	switch PostStatus(strings.ToLower(strings.TrimSpace(raw))) {
	case "", StatusDraft:
		return StatusDraft, nil
	case StatusPublished:
		return StatusPublished, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
}

// ReactionType is the payload of a reaction.
type ReactionType string

// Reaction types.
const (
	ReactionUpvote   ReactionType = "upvote"
	ReactionDownvote ReactionType = "downvote"
)

// ParseReactionType validates a reaction type.
func ParseReactionType(raw string) (ReactionType, error) {
	switch ReactionType(strings.ToLower(strings.TrimSpace(raw))) {
	case ReactionUpvote:
		return ReactionUpvote, nil
	case ReactionDownvote:
		return ReactionDownvote, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidReactionType, raw)
	}
}

// Category groups posts.
type Category struct {
	ID          uint      `gorm:"column:id;primaryKey" json:"id"`
	Name        string    `gorm:"column:name;size:100;not null;uniqueIndex" json:"name"`
	Slug        string    `gorm:"column:slug;size:120;not null;uniqueIndex" json:"slug"`
	Description string    `gorm:"column:description;type:text" json:"description"`
	CreatedAt   time.Time `gorm:"column:created_at" json:"created_at"`
}

// TableName exposes the table backing categories.
func (Category) TableName() string {
	return "categories"
}

// Tag labels posts.
type Tag struct {
	ID        uint      `gorm:"column:id;primaryKey" json:"id"`
	Name      string    `gorm:"column:name;size:50;not null;uniqueIndex" json:"name"`
	Slug      string    `gorm:"column:slug;size:60;not null;uniqueIndex" json:"slug"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

// TableName exposes the table backing tags.
func (Tag) TableName() string {
	return "tags"
}

// Post is an authored article. Counter columns are written only through the ledger.
type Post struct {
	ID            uint        `gorm:"column:id;primaryKey" json:"id"`
	AuthorID      uint        `gorm:"column:author_id;not null;index" json:"author_id"`
	Author        *users.User `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	CategoryID    uint        `gorm:"column:category_id;not null;index" json:"category_id"`
	Category      *Category   `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	Tags          []Tag       `gorm:"many2many:post_tags" json:"tags"`
	Title         string      `gorm:"column:title;size:225;not null" json:"title"`
	Slug          string      `gorm:"column:slug;size:255;not null;uniqueIndex" json:"slug"`
	Content       string      `gorm:"column:content;type:text;not null" json:"content"`
	Status        PostStatus  `gorm:"column:status;size:20;not null;default:'draft';index" json:"status"`
	CommentCount  int64       `gorm:"column:comment_count;not null;default:0" json:"comment_count"`
	ReactionCount int64       `gorm:"column:reaction_count;not null;default:0" json:"reaction_count"`
	BookmarkCount int64       `gorm:"column:bookmark_count;not null;default:0" json:"bookmark_count"`
	ViewsCount    int64       `gorm:"column:views_count;not null;default:0" json:"views_count"`
	IsDeleted     bool        `gorm:"column:is_deleted;not null;default:false;index" json:"-"`
	CreatedAt     time.Time   `gorm:"column:created_at;not null;index" json:"created_at"`
	UpdatedAt     time.Time   `gorm:"column:updated_at" json:"updated_at"`
	IsLiked       bool        `gorm:"-" json:"is_liked"`
	IsBookmarked  bool        `gorm:"-" json:"is_bookmarked"`
}

// TableName exposes the table backing posts.
func (Post) TableName() string {
	return "posts"
}

// EngagementScore sums the counters that rank a post.
func (p Post) EngagementScore() int64 {
	return ranking.PostScore(p.ReactionCount, p.CommentCount, p.BookmarkCount)
}

// RankEntry projects the post for the ranker.
func RankEntry(p Post) ranking.Entry {
	return ranking.Entry{ID: p.ID, Score: p.EngagementScore(), CreatedAt: p.CreatedAt}
}

// Comment is a top-level comment on a post or a reply to one.
type Comment struct {
	ID            uint        `gorm:"column:id;primaryKey" json:"id"`
	PostID        uint        `gorm:"column:post_id;not null;index" json:"post_id"`
	Post          *Post       `gorm:"foreignKey:PostID" json:"-"`
	UserID        uint        `gorm:"column:user_id;not null;index" json:"user_id"`
	User          *users.User `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Content       string      `gorm:"column:content;type:text;not null" json:"content"`
	ParentID      *uint       `gorm:"column:parent_id;index" json:"parent_id"`
	Parent        *Comment    `gorm:"foreignKey:ParentID" json:"-"`
	ReplyCount    int64       `gorm:"column:reply_count;not null;default:0" json:"reply_count"`
	ReactionCount int64       `gorm:"column:reaction_count;not null;default:0" json:"reaction_count"`
	ViewsCount    int64       `gorm:"column:views_count;not null;default:0" json:"views_count"`
	CreatedAt     time.Time   `gorm:"column:created_at;not null;index" json:"created_at"`
	UpdatedAt     time.Time   `gorm:"column:updated_at" json:"updated_at"`
	IsLiked       bool        `gorm:"-" json:"is_liked"`
}

// TableName exposes the table backing comments.
func (Comment) TableName() string {
	return "comments"
}

// IsReply reports whether the comment answers another comment.
func (c Comment) IsReply() bool {
	return c.ParentID != nil
}

// CommentRankEntry projects the comment for the ranker.
func CommentRankEntry(c Comment) ranking.Entry {
	return ranking.Entry{
		ID:        c.ID,
		Score:     ranking.CommentScore(c.ReactionCount, c.ReplyCount, c.ViewsCount),
		CreatedAt: c.CreatedAt,
	}
}

// Reaction is one user's vote on a post or comment.
type Reaction struct {
	ID         uint         `gorm:"column:id;primaryKey" json:"id"`
	UserID     uint         `gorm:"column:user_id;not null;uniqueIndex:idx_reactions_user_target,priority:1" json:"user_id"`
	User       *users.User  `gorm:"foreignKey:UserID" json:"user,omitempty"`
	TargetType string       `gorm:"column:target_type;size:20;not null;uniqueIndex:idx_reactions_user_target,priority:2;index:idx_reactions_target,priority:1" json:"target_type"`
	TargetID   uint         `gorm:"column:target_id;not null;uniqueIndex:idx_reactions_user_target,priority:3;index:idx_reactions_target,priority:2" json:"target_id"`
	Type       ReactionType `gorm:"column:reaction_type;size:10;not null" json:"reaction_type"`
	CreatedAt  time.Time    `gorm:"column:created_at;not null" json:"created_at"`
}

// TableName exposes the table backing reactions.
func (Reaction) TableName() string {
	return "reactions"
}

// Bookmark saves a post for a user.
type Bookmark struct {
	ID        uint      `gorm:"column:id;primaryKey" json:"id"`
	UserID    uint      `gorm:"column:user_id;not null;uniqueIndex:idx_bookmarks_user_post,priority:1" json:"user_id"`
	PostID    uint      `gorm:"column:post_id;not null;uniqueIndex:idx_bookmarks_user_post,priority:2;index" json:"post_id"`
	Post      *Post     `gorm:"foreignKey:PostID" json:"post,omitempty"`
	CreatedAt time.Time `gorm:"column:created_at;not null" json:"created_at"`
}

// TableName exposes the table backing bookmarks.
func (Bookmark) TableName() string {
	return "bookmarks"
}

// Models lists every blog table for schema migration.
func Models() []any {
	return []any{&Category{}, &Tag{}, &Post{}, &Comment{}, &Reaction{}, &Bookmark{}}
}
