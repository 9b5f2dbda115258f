package server

import (
	"net/http"
	"strings"

	"github.com/AbassKoyang/swirl-backend/internal/search"
	"github.com/gin-gonic/gin"
)

func (h *httpHandler) handleSearchPosts(c *gin.Context) {
	categoryID, err := queryID(c, "category")
	if err != nil {
		h.respondError(c, err)
		return
	}
	authorID, err := queryID(c, "author")
	if err != nil {
		h.respondError(c, err)
		return
	}
	var tags []string
	if raw := strings.TrimSpace(c.Query("tags")); raw != "" {
		tags = strings.Split(raw, ",")
	}

	page := h.page(c)
	posts, err := h.search.Posts(c.Request.Context(), search.PostQuery{
		Text:       c.Query("q"),
		Status:     c.Query("status"),
		CategoryID: categoryID,
		AuthorID:   authorID,
		Tags:       tags,
		Ordering:   c.Query("ordering"),
		Viewer:     viewerID(c),
	}, page)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondPosts(c, posts, page)
}

func (h *httpHandler) handleSearchComments(c *gin.Context) {
	query := search.CommentQuery{Text: c.Query("q")}
	var err error
	if query.PostID, err = queryID(c, "post"); err != nil {
		h.respondError(c, err)
		return
	}
	if query.UserID, err = queryID(c, "user"); err != nil {
		h.respondError(c, err)
		return
	}
	if raw := strings.TrimSpace(c.Query("parent")); raw != "" {
		parentID, err := parseID(raw)
		if err != nil {
			h.respondError(c, err)
			return
		}
		query.ParentID = &parentID
	}

	page := h.page(c)
	comments, err := h.search.Comments(c.Request.Context(), query, page)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondComments(c, comments, page)
}

func (h *httpHandler) handleSearchBookmarks(c *gin.Context) {
	page := h.page(c)
	bookmarks, err := h.search.Bookmarks(c.Request.Context(), viewerID(c), c.Query("q"), page)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newListResponse(bookmarks, page))
}
