// Package feeds assembles the read-only post feeds. Only published,
// non-deleted posts are ever eligible.
package feeds

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/AbassKoyang/swirl-backend/internal/blog"
	"github.com/AbassKoyang/swirl-backend/internal/paging"
	"github.com/AbassKoyang/swirl-backend/internal/ranking"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	opPersonalized = "feeds.personalized"
	opTrending     = "feeds.trending"
	opRecent       = "feeds.recent"
	opCombined     = "feeds.combined"
	opCompose      = "feeds.compose"

	// CombinedTrendingLimit is how many trending posts the combined feed mixes in.
	CombinedTrendingLimit = 10
)

// Kind names a feed.
type Kind string

// Feed kinds.
const (
	KindPersonalized Kind = "personalized"
	KindTrending     Kind = "trending"
	KindRecent       Kind = "recent"
	KindCombined     Kind = "combined"
)

// ParseKind resolves a feed name.
func ParseKind(raw string) (Kind, error) {
	switch kind := Kind(strings.ToLower(strings.TrimSpace(raw))); kind {
	case KindPersonalized, KindTrending, KindRecent, KindCombined:
		return kind, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFeed, raw)
	}
}

// RequiresViewer reports whether the feed is built around the requester.
func (k Kind) RequiresViewer() bool {
	return k == KindPersonalized || k == KindCombined
}

// FollowGraph resolves the accounts a user follows.
type FollowGraph interface {
	FollowingIDs(ctx context.Context, userID uint) ([]uint, error)
}

// ComposerConfig describes the dependencies of the feed composer.
type ComposerConfig struct {
	Database *gorm.DB
	Follows  FollowGraph
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Composer builds feeds from the post store.
type Composer struct {
	db      *gorm.DB
	follows FollowGraph
	clock   func() time.Time
	logger  *zap.Logger
}

// Request selects a feed and its parameters.
type Request struct {
	Kind   Kind
	Viewer uint
	Window ranking.Window
	Page   paging.Page
}

// NewComposer constructs a feed composer.
func NewComposer(cfg ComposerConfig) (*Composer, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("feeds: database connection required")
	}
	if cfg.Follows == nil {
		return nil, fmt.Errorf("feeds: follow graph required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Composer{db: cfg.Database, follows: cfg.Follows, clock: clock, logger: logger}, nil
}

// Compose dispatches the request to the matching feed.
func (c *Composer) Compose(ctx context.Context, request Request) ([]blog.Post, error) {
	if request.Kind.RequiresViewer() && request.Viewer == 0 {
		return nil, newServiceError(opCompose, "viewer_required", ErrViewerRequired)
	}
	switch request.Kind {
	case KindPersonalized:
		return c.Personalized(ctx, request.Viewer, request.Page)
	case KindTrending:
		return c.Trending(ctx, request.Window, request.Page)
	case KindRecent:
		return c.Recent(ctx, request.Page)
	case KindCombined:
		return c.Combined(ctx, request.Viewer, request.Page)
	default:
		return nil, newServiceError(opCompose, "unknown_feed", ErrUnknownFeed)
	}
}

// Personalized lists posts by the accounts viewer follows and by viewer,
// newest first.
func (c *Composer) Personalized(ctx context.Context, viewer uint, page paging.Page) ([]blog.Post, error) {
	authors, err := c.audience(ctx, opPersonalized, viewer)
	if err != nil {
		return nil, err
	}
	var posts []blog.Post
	err = c.eligible(ctx).
		Where("posts.author_id IN ?", authors).
		Scopes(blog.NewestFirst, blog.WithRelations, page.Scope).
		Find(&posts).Error
	if err != nil {
		c.logError(opPersonalized, "query_failed", err, zap.Uint("viewer_id", viewer))
		return nil, newServiceError(opPersonalized, "query_failed", err)
	}
	return posts, nil
}

// Trending lists posts created inside window, highest engagement first.
func (c *Composer) Trending(ctx context.Context, window ranking.Window, page paging.Page) ([]blog.Post, error) {
	ranked, err := c.rankedSince(ctx, opTrending, window.Since(c.clock()))
	if err != nil {
		return nil, err
	}
	return c.hydrate(ctx, opTrending, paging.Slice(ranked, page))
}

// Recent lists every eligible post, newest first.
func (c *Composer) Recent(ctx context.Context, page paging.Page) ([]blog.Post, error) {
	var posts []blog.Post
	err := c.eligible(ctx).
		Scopes(blog.NewestFirst, blog.WithRelations, page.Scope).
		Find(&posts).Error
	if err != nil {
		c.logError(opRecent, "query_failed", err)
		return nil, newServiceError(opRecent, "query_failed", err)
	}
	return posts, nil
}

// Combined merges the personalized candidates with the current top trending
// posts of the last day. Each post appears once and the result is newest first.
func (c *Composer) Combined(ctx context.Context, viewer uint, page paging.Page) ([]blog.Post, error) {
	authors, err := c.audience(ctx, opCombined, viewer)
	if err != nil {
		return nil, err
	}
	ranked, err := c.rankedSince(ctx, opCombined, ranking.DefaultWindow.Since(c.clock()))
	if err != nil {
		return nil, err
	}
	trendingIDs := ids(ranking.TopN(ranked, CombinedTrendingLimit, blog.RankEntry))

	query := c.eligible(ctx)
	if len(trendingIDs) > 0 {
		query = query.Where(c.db.Where("posts.author_id IN ?", authors).Or("posts.id IN ?", trendingIDs))
	} else {
		query = query.Where("posts.author_id IN ?", authors)
	}

	var posts []blog.Post
	if err := query.Scopes(blog.NewestFirst, blog.WithRelations, page.Scope).Find(&posts).Error; err != nil {
		c.logError(opCombined, "query_failed", err, zap.Uint("viewer_id", viewer))
		return nil, newServiceError(opCombined, "query_failed", err)
	}
	return posts, nil
}

func (c *Composer) eligible(ctx context.Context) *gorm.DB {
	return c.db.WithContext(ctx).Model(&blog.Post{}).Scopes(blog.Active, blog.Published)
}

// audience is the viewer plus everyone they follow.
func (c *Composer) audience(ctx context.Context, operation string, viewer uint) ([]uint, error) {
	if viewer == 0 {
		return nil, newServiceError(operation, "viewer_required", ErrViewerRequired)
	}
	following, err := c.follows.FollowingIDs(ctx, viewer)
	if err != nil {
		c.logError(operation, "follow_graph_failed", err, zap.Uint("viewer_id", viewer))
		return nil, newServiceError(operation, "follow_graph_failed", err)
	}
	return append(following, viewer), nil
}

// rankedSince loads the counters of every eligible post created at or after
// since and orders them with the engagement ranker.
func (c *Composer) rankedSince(ctx context.Context, operation string, since time.Time) ([]blog.Post, error) {
	var candidates []blog.Post
	err := c.eligible(ctx).
		Select("posts.id", "posts.reaction_count", "posts.comment_count", "posts.bookmark_count", "posts.created_at").
		Where("posts.created_at >= ?", since).
		Find(&candidates).Error
	if err != nil {
		c.logError(operation, "query_failed", err, zap.Time("since", since))
		return nil, newServiceError(operation, "query_failed", err)
	}
	ranking.SortByEngagement(candidates, blog.RankEntry)
	return candidates, nil
}

// hydrate loads the full posts for a ranked page and restores the rank order.
func (c *Composer) hydrate(ctx context.Context, operation string, ranked []blog.Post) ([]blog.Post, error) {
	if len(ranked) == 0 {
		return []blog.Post{}, nil
	}
	var loaded []blog.Post
	err := c.db.WithContext(ctx).
		Scopes(blog.WithRelations).
		Where("posts.id IN ?", ids(ranked)).
		Find(&loaded).Error
	if err != nil {
		c.logError(operation, "hydrate_failed", err)
		return nil, newServiceError(operation, "hydrate_failed", err)
	}
	byID := make(map[uint]blog.Post, len(loaded))
	for _, post := range loaded {
		byID[post.ID] = post
	}
	posts := make([]blog.Post, 0, len(ranked))
	for _, candidate := range ranked {
		if post, ok := byID[candidate.ID]; ok {
			posts = append(posts, post)
		}
	}
	return posts, nil
}

func ids(posts []blog.Post) []uint {
	out := make([]uint, len(posts))
	for index, post := range posts {
		out[index] = post.ID
	}
	return out
}

func (c *Composer) logError(operation, reason string, err error, fields ...zap.Field) {
	if c.logger == nil || err == nil {
		return
	}
	logFields := append([]zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}, fields...)
	logFields = append(logFields, zap.Error(err))
	c.logger.Error("feed operation failed", logFields...)
}
