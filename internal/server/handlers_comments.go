package server

import (
	"net/http"

	"github.com/AbassKoyang/swirl-backend/internal/blog"
	"github.com/gin-gonic/gin"
)

type createCommentRequest struct {
	Content  string `json:"content" binding:"required"`
	ParentID *uint  `json:"parent_id"`
}

type commentContentRequest struct {
	Content string `json:"content" binding:"required"`
}

func (h *httpHandler) handleListComments(c *gin.Context) {
	postID, err := pathID(c, "ref")
	if err != nil {
		h.respondError(c, err)
		return
	}
	page := h.page(c)
	comments, err := h.blog.ListComments(c.Request.Context(), postID, blog.ParseCommentOrdering(c.Query("ordering")), page)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondComments(c, comments, page)
}

func (h *httpHandler) handleCreateComment(c *gin.Context) {
	postID, err := pathID(c, "ref")
	if err != nil {
		h.respondError(c, err)
		return
	}
	var request createCommentRequest
	if err := bindJSON(c, &request); err != nil {
		h.respondError(c, err)
		return
	}
	comment, err := h.blog.CreateComment(c.Request.Context(), viewerID(c), postID, blog.CommentInput{
		Content:  request.Content,
		ParentID: request.ParentID,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

func (h *httpHandler) handleViewComment(c *gin.Context) {
	commentID, err := pathID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	comment, err := h.blog.ViewComment(c.Request.Context(), commentID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	annotated := []blog.Comment{comment}
	if err := h.blog.AnnotateComments(c.Request.Context(), viewerID(c), annotated); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, annotated[0])
}

func (h *httpHandler) handleUpdateComment(c *gin.Context) {
	commentID, err := pathID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	var request commentContentRequest
	if err := bindJSON(c, &request); err != nil {
		h.respondError(c, err)
		return
	}
	comment, err := h.blog.UpdateComment(c.Request.Context(), viewerID(c), commentID, request.Content)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, comment)
}

func (h *httpHandler) handleDeleteComment(c *gin.Context) {
	commentID, err := pathID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.blog.DeleteComment(c.Request.Context(), viewerID(c), commentID); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleListReplies(c *gin.Context) {
	commentID, err := pathID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	page := h.page(c)
	replies, err := h.blog.ListReplies(c.Request.Context(), commentID, page)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondComments(c, replies, page)
}

func (h *httpHandler) handleCreateReply(c *gin.Context) {
	commentID, err := pathID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	var request commentContentRequest
	if err := bindJSON(c, &request); err != nil {
		h.respondError(c, err)
		return
	}
	reply, err := h.blog.CreateReply(c.Request.Context(), viewerID(c), commentID, request.Content)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, reply)
}
