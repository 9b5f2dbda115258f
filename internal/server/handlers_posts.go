package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/AbassKoyang/swirl-backend/internal/blog"
	"github.com/AbassKoyang/swirl-backend/internal/target"
	"github.com/AbassKoyang/swirl-backend/internal/toggle"
	"github.com/gin-gonic/gin"
)

type createPostRequest struct {
	Title      string   `json:"title" binding:"required,max=225"`
	Content    string   `json:"content" binding:"required"`
	CategoryID uint     `json:"category_id" binding:"required"`
	Tags       []string `json:"tags" binding:"omitempty,max=20,dive,max=50"`
	Status     string   `json:"status" binding:"omitempty,oneof=draft published"`
}

type updatePostRequest struct {
	Title      *string   `json:"title" binding:"omitempty,max=225"`
	Content    *string   `json:"content"`
	CategoryID *uint     `json:"category_id"`
	Status     *string   `json:"status" binding:"omitempty,oneof=draft published"`
	Tags       *[]string `json:"tags" binding:"omitempty,max=20,dive,max=50"`
}

type reactionRequest struct {
	ReactionType string `json:"reaction_type" binding:"required,reaction_type"`
}

type toggleResponse struct {
	Transition toggle.Transition `json:"transition"`
	Present    bool              `json:"present"`
}

type reactionResponse struct {
	Transition    toggle.Transition `json:"transition"`
	Present       bool              `json:"present"`
	ReactionType  string            `json:"reaction_type,omitempty"`
	ReactionCount int64             `json:"reaction_count"`
}

func newToggleResponse(outcome toggle.Outcome) toggleResponse {
	return toggleResponse{Transition: outcome.Transition, Present: outcome.Present}
}

func (h *httpHandler) handleListPosts(c *gin.Context) {
	authorID, err := queryID(c, "author")
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.listPosts(c, authorID)
}

func (h *httpHandler) handleListUserPosts(c *gin.Context) {
	authorID, err := pathID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.listPosts(c, authorID)
}

// listPosts serves published posts. Authors also see their own drafts.
func (h *httpHandler) listPosts(c *gin.Context, authorID uint) {
	categoryID, err := queryID(c, "category")
	if err != nil {
		h.respondError(c, err)
		return
	}
	filter := blog.PostFilter{CategoryID: categoryID, AuthorID: authorID}
	viewer := viewerID(c)
	ownPosts := viewer != 0 && authorID == viewer

	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status, err := blog.ParseStatus(raw)
		if err != nil {
			h.respondError(c, fmt.Errorf("%w: %v", errInvalidRequest, err))
			return
		}
		if status == blog.StatusDraft && !ownPosts {
			h.respondError(c, fmt.Errorf("%w: drafts are only listed for their author", errForbidden))
			return
		}
		filter.Status = status
	}
	filter.IncludeDrafts = ownPosts

	page := h.page(c)
	posts, err := h.blog.ListPosts(c.Request.Context(), filter, page)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondPosts(c, posts, page)
}

func (h *httpHandler) handleViewPost(c *gin.Context) {
	post, err := h.blog.ViewPostBySlug(c.Request.Context(), c.Param("ref"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if post.Status == blog.StatusDraft && post.AuthorID != viewerID(c) {
		h.respondError(c, blog.ErrPostNotFound)
		return
	}
	annotated := []blog.Post{post}
	if err := h.blog.AnnotatePosts(c.Request.Context(), viewerID(c), annotated); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, annotated[0])
}

func (h *httpHandler) handleCreatePost(c *gin.Context) {
	var request createPostRequest
	if err := bindJSON(c, &request); err != nil {
		h.respondError(c, err)
		return
	}
	post, err := h.blog.CreatePost(c.Request.Context(), viewerID(c), blog.PostInput{
		Title:      request.Title,
		Content:    request.Content,
		CategoryID: request.CategoryID,
		Tags:       request.Tags,
		Status:     request.Status,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, post)
}

func (h *httpHandler) handleUpdatePost(c *gin.Context) {
	postID, err := pathID(c, "ref")
	if err != nil {
		h.respondError(c, err)
		return
	}
	var request updatePostRequest
	if err := bindJSON(c, &request); err != nil {
		h.respondError(c, err)
		return
	}
	post, err := h.blog.UpdatePost(c.Request.Context(), viewerID(c), postID, blog.PostPatch{
		Title:      request.Title,
		Content:    request.Content,
		CategoryID: request.CategoryID,
		Status:     request.Status,
		Tags:       request.Tags,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

func (h *httpHandler) handleDeletePost(c *gin.Context) {
	postID, err := pathID(c, "ref")
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.blog.DeletePost(c.Request.Context(), viewerID(c), postID); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleReactToPost(c *gin.Context) {
	h.react(c, target.Post)
}

func (h *httpHandler) handleReactToComment(c *gin.Context) {
	h.react(c, target.Comment)
}

func (h *httpHandler) react(c *gin.Context, ref func(uint) target.Ref) {
	id, err := h.targetID(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	var request reactionRequest
	if err := bindJSON(c, &request); err != nil {
		h.respondError(c, err)
		return
	}
	result, err := h.blog.React(c.Request.Context(), viewerID(c), ref(id), request.ReactionType)
	if err != nil {
		h.respondError(c, err)
		return
	}
	status := http.StatusOK
	if result.Outcome.Transition == toggle.TransitionCreated {
		status = http.StatusCreated
	}
	c.JSON(status, reactionResponse{
		Transition:    result.Outcome.Transition,
		Present:       result.Outcome.Present,
		ReactionType:  result.Outcome.Payload,
		ReactionCount: result.ReactionCount,
	})
}

func (h *httpHandler) handleListPostReactions(c *gin.Context) {
	h.listReactions(c, target.Post)
}

func (h *httpHandler) handleListCommentReactions(c *gin.Context) {
	h.listReactions(c, target.Comment)
}

func (h *httpHandler) listReactions(c *gin.Context, ref func(uint) target.Ref) {
	id, err := h.targetID(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	page := h.page(c)
	reactions, err := h.blog.ListReactions(c.Request.Context(), ref(id), c.Query("type"), page)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newListResponse(reactions, page))
}

// targetID reads the id of the post or comment named by the route.
func (h *httpHandler) targetID(c *gin.Context) (uint, error) {
	if raw := c.Param("ref"); raw != "" {
		return parseID(raw)
	}
	return pathID(c, "id")
}

func (h *httpHandler) handleToggleBookmark(c *gin.Context) {
	postID, err := pathID(c, "ref")
	if err != nil {
		h.respondError(c, err)
		return
	}
	outcome, err := h.blog.ToggleBookmark(c.Request.Context(), viewerID(c), postID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	status := http.StatusOK
	if outcome.Transition == toggle.TransitionCreated {
		status = http.StatusCreated
	}
	c.JSON(status, newToggleResponse(outcome))
}

func (h *httpHandler) handleRemoveBookmark(c *gin.Context) {
	postID, err := pathID(c, "ref")
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.blog.RemoveBookmark(c.Request.Context(), viewerID(c), postID); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleRemoveBookmarkByID(c *gin.Context) {
	bookmarkID, err := pathID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.blog.RemoveBookmarkByID(c.Request.Context(), viewerID(c), bookmarkID); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleListBookmarks(c *gin.Context) {
	userID, err := pathID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	if userID != viewerID(c) {
		h.respondError(c, fmt.Errorf("%w: bookmarks are private", errForbidden))
		return
	}
	page := h.page(c)
	bookmarks, err := h.blog.ListBookmarks(c.Request.Context(), userID, page)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newListResponse(bookmarks, page))
}
