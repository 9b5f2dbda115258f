package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/AbassKoyang/swirl-backend/internal/auth"
	"github.com/AbassKoyang/swirl-backend/internal/blog"
	"github.com/AbassKoyang/swirl-backend/internal/feeds"
	"github.com/AbassKoyang/swirl-backend/internal/metrics"
	"github.com/AbassKoyang/swirl-backend/internal/notifications"
	"github.com/AbassKoyang/swirl-backend/internal/paging"
	"github.com/AbassKoyang/swirl-backend/internal/ratelimit"
	"github.com/AbassKoyang/swirl-backend/internal/search"
	"github.com/AbassKoyang/swirl-backend/internal/users"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var (
	errMissingSessionValidator = errors.New("session validator dependency required")
	errMissingUsersService     = errors.New("users service dependency required")
	errMissingBlogService      = errors.New("blog service dependency required")
	errMissingFeedComposer     = errors.New("feed composer dependency required")
	errMissingNotifications    = errors.New("notifications service dependency required")
	errMissingSearchService    = errors.New("search service dependency required")
)

// SessionValidator extracts the session principal from a request.
type SessionValidator interface {
	ValidateRequest(r *http.Request) (auth.SessionClaims, error)
}

// RateLimiter counts requests against a rule.
type RateLimiter interface {
	Allow(ctx context.Context, rule ratelimit.Rule, subject string) (ratelimit.Decision, error)
}

// Dependencies wires the HTTP surface to the services. Limiter, Metrics and
// Ready are optional.
type Dependencies struct {
	Sessions       SessionValidator
	Users          *users.Service
	Blog           *blog.Service
	Feeds          *feeds.Composer
	Notifications  *notifications.Service
	Search         *search.Service
	Limiter        RateLimiter
	Metrics        *metrics.Collectors
	Ready          func(context.Context) error
	Bounds         paging.Bounds
	AllowedOrigins []string
	Logger         *zap.Logger
}

type httpHandler struct {
	sessions      SessionValidator
	users         *users.Service
	blog          *blog.Service
	feeds         *feeds.Composer
	notifications *notifications.Service
	search        *search.Service
	limiter       RateLimiter
	metrics       *metrics.Collectors
	ready         func(context.Context) error
	bounds        paging.Bounds
	logger        *zap.Logger
}

// NewHTTPHandler builds the gin router serving the API.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	switch {
	case deps.Sessions == nil:
		return nil, errMissingSessionValidator
	case deps.Users == nil:
		return nil, errMissingUsersService
	case deps.Blog == nil:
		return nil, errMissingBlogService
	case deps.Feeds == nil:
		return nil, errMissingFeedComposer
	case deps.Notifications == nil:
		return nil, errMissingNotifications
	case deps.Search == nil:
		return nil, errMissingSearchService
	}
	if err := registerValidators(); err != nil {
		return nil, err
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	bounds := deps.Bounds
	if bounds.Default <= 0 {
		bounds = paging.DefaultBounds
	}

	handler := &httpHandler{
		sessions:      deps.Sessions,
		users:         deps.Users,
		blog:          deps.Blog,
		feeds:         deps.Feeds,
		notifications: deps.Notifications,
		search:        deps.Search,
		limiter:       deps.Limiter,
		metrics:       deps.Metrics,
		ready:         deps.Ready,
		bounds:        bounds,
		logger:        logger,
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestIDMiddleware)
	router.Use(handler.observeRequests)
	router.Use(corsMiddleware(deps.AllowedOrigins))

	router.GET("/healthz", handler.handleHealth)
	router.GET("/metrics", gin.WrapH(handler.metrics.Handler()))

	reads := handler.limit(ratelimit.Reads)
	public := router.Group("/", handler.identify(false))
	public.GET("/posts", reads, handler.handleListPosts)
	public.GET("/posts/:ref", reads, handler.handleViewPost)
	public.GET("/posts/:ref/comments", reads, handler.handleListComments)
	public.GET("/posts/:ref/reactions", reads, handler.handleListPostReactions)
	public.GET("/comments/:id", reads, handler.handleViewComment)
	public.GET("/comments/:id/replies", reads, handler.handleListReplies)
	public.GET("/comments/:id/reactions", reads, handler.handleListCommentReactions)
	public.GET("/categories", reads, handler.handleListCategories)
	public.GET("/tags", reads, handler.handleListTags)
	public.GET("/feeds/trending", handler.limit(ratelimit.Feeds), handler.handleFeed(feeds.KindTrending))
	public.GET("/feeds/recent", handler.limit(ratelimit.Feeds), handler.handleFeed(feeds.KindRecent))
	public.GET("/users/:id", reads, handler.handleGetUser)
	public.GET("/users/:id/followers", reads, handler.handleListFollowers)
	public.GET("/users/:id/following", reads, handler.handleListFollowing)
	public.GET("/search/posts", reads, handler.handleSearchPosts)
	public.GET("/search/comments", reads, handler.handleSearchComments)

	protected := router.Group("/", handler.identify(true))
	protected.POST("/auth/session", handler.handleRecordSession)

	protected.POST("/posts", handler.limit(ratelimit.PostCreate), handler.handleCreatePost)
	protected.PATCH("/posts/:ref", handler.limit(ratelimit.PostUpdate), handler.handleUpdatePost)
	protected.DELETE("/posts/:ref", handler.limit(ratelimit.PostUpdate), handler.handleDeletePost)
	protected.POST("/posts/:ref/comments", handler.limit(ratelimit.Comments), handler.handleCreateComment)
	protected.POST("/posts/:ref/reactions", handler.limit(ratelimit.Reactions), handler.handleReactToPost)
	protected.POST("/posts/:ref/bookmark", handler.limit(ratelimit.Bookmarks), handler.handleToggleBookmark)
	protected.DELETE("/posts/:ref/bookmark", handler.limit(ratelimit.Bookmarks), handler.handleRemoveBookmark)

	protected.PATCH("/comments/:id", handler.limit(ratelimit.Comments), handler.handleUpdateComment)
	protected.DELETE("/comments/:id", handler.limit(ratelimit.Comments), handler.handleDeleteComment)
	protected.POST("/comments/:id/replies", handler.limit(ratelimit.Comments), handler.handleCreateReply)
	protected.POST("/comments/:id/reactions", handler.limit(ratelimit.Reactions), handler.handleReactToComment)

	protected.DELETE("/bookmarks/:id", handler.limit(ratelimit.Bookmarks), handler.handleRemoveBookmarkByID)

	protected.GET("/users/:id/bookmarks", reads, handler.handleListBookmarks)
	protected.GET("/users/:id/posts", reads, handler.handleListUserPosts)
	protected.GET("/users/:id/is-following", reads, handler.handleIsFollowing)
	protected.POST("/users/:id/follow", handler.handleFollow)
	protected.DELETE("/users/:id/follow", handler.handleUnfollow)

	protected.GET("/feeds/personalized", handler.limit(ratelimit.Feeds), handler.handleFeed(feeds.KindPersonalized))
	protected.GET("/feeds/combined", handler.limit(ratelimit.Feeds), handler.handleFeed(feeds.KindCombined))

	protected.GET("/notifications", reads, handler.handleListNotifications)
	protected.GET("/notifications/unread-count", reads, handler.handleUnreadCount)
	protected.POST("/notifications/read-all", handler.handleMarkAllRead)
	protected.POST("/notifications/:id/read", handler.handleMarkRead)

	protected.GET("/search/bookmarks", reads, handler.handleSearchBookmarks)
	protected.POST("/categories", handler.handleCreateCategory)
	protected.POST("/tags", handler.handleCreateTag)

	return router, nil
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	if h.ready != nil {
		if err := h.ready(c.Request.Context()); err != nil {
			h.logger.Warn("readiness check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
