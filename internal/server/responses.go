package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/AbassKoyang/swirl-backend/internal/blog"
	"github.com/AbassKoyang/swirl-backend/internal/paging"
	"github.com/gin-gonic/gin"
)

type listResponse[T any] struct {
	Results    []T  `json:"results"`
	Count      int  `json:"count"`
	NextOffset *int `json:"next_offset"`
}

func newListResponse[T any](items []T, page paging.Page) listResponse[T] {
	if items == nil {
		items = []T{}
	}
	response := listResponse[T]{Results: items, Count: len(items)}
	if page.Limit > 0 && len(items) == page.Limit {
		next := page.Offset + page.Limit
		response.NextOffset = &next
	}
	return response
}

func (h *httpHandler) page(c *gin.Context) paging.Page {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))
	return paging.New(limit, offset, h.bounds)
}

func parseID(raw string) (uint, error) {
	value, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil || value == 0 {
		return 0, fmt.Errorf("%w: %q is not a valid id", errInvalidRequest, raw)
	}
	return uint(value), nil
}

// pathID reads a numeric path parameter.
func pathID(c *gin.Context, name string) (uint, error) {
	return parseID(c.Param(name))
}

// queryID reads an optional numeric query parameter; absent means zero.
func queryID(c *gin.Context, name string) (uint, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0, nil
	}
	return parseID(raw)
}

// respondPosts writes a page of posts carrying the viewer's like and bookmark flags.
func (h *httpHandler) respondPosts(c *gin.Context, posts []blog.Post, page paging.Page) {
	if err := h.blog.AnnotatePosts(c.Request.Context(), viewerID(c), posts); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newListResponse(posts, page))
}

// respondComments writes a page of comments carrying the viewer's like flag.
func (h *httpHandler) respondComments(c *gin.Context, comments []blog.Comment, page paging.Page) {
	if err := h.blog.AnnotateComments(c.Request.Context(), viewerID(c), comments); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newListResponse(comments, page))
}
