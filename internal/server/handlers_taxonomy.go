package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type createCategoryRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	Description string `json:"description"`
}

type createTagRequest struct {
	Name string `json:"name" binding:"required,max=50"`
}

func (h *httpHandler) handleListCategories(c *gin.Context) {
	categories, err := h.blog.ListCategories(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": categories, "count": len(categories)})
}

func (h *httpHandler) handleCreateCategory(c *gin.Context) {
	var request createCategoryRequest
	if err := bindJSON(c, &request); err != nil {
		h.respondError(c, err)
		return
	}
	category, err := h.blog.CreateCategory(c.Request.Context(), request.Name, request.Description)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, category)
}

func (h *httpHandler) handleListTags(c *gin.Context) {
	tags, err := h.blog.ListTags(c.Request.Context(), c.Query("q"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": tags, "count": len(tags)})
}

func (h *httpHandler) handleCreateTag(c *gin.Context) {
	var request createTagRequest
	if err := bindJSON(c, &request); err != nil {
		h.respondError(c, err)
		return
	}
	tag, err := h.blog.CreateTag(c.Request.Context(), request.Name)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tag)
}
