package server

import (
	"github.com/AbassKoyang/swirl-backend/internal/feeds"
	"github.com/AbassKoyang/swirl-backend/internal/ranking"
	"github.com/gin-gonic/gin"
)

// handleFeed serves one feed kind. The period query selects the trending
// window; unknown periods fall back to the default window.
func (h *httpHandler) handleFeed(kind feeds.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		page := h.page(c)
		posts, err := h.feeds.Compose(c.Request.Context(), feeds.Request{
			Kind:   kind,
			Viewer: viewerID(c),
			Window: ranking.ParseWindow(c.Query("period")),
			Page:   page,
		})
		if err != nil {
			h.respondError(c, err)
			return
		}
		h.respondPosts(c, posts, page)
	}
}
