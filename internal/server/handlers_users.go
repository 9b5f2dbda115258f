package server

import (
	"net/http"

	"github.com/AbassKoyang/swirl-backend/internal/notifications"
	"github.com/AbassKoyang/swirl-backend/internal/toggle"
	"github.com/AbassKoyang/swirl-backend/internal/users"
	"github.com/gin-gonic/gin"
)

type sessionResponse struct {
	User   users.User           `json:"user"`
	Action notifications.Action `json:"action"`
}

// handleRecordSession acknowledges a sign-in and reports whether it counted
// as a sign-up or a log-in.
func (h *httpHandler) handleRecordSession(c *gin.Context) {
	userID := viewerID(c)
	action, err := h.users.RecordSession(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	user, err := h.users.GetUser(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionResponse{User: user, Action: action})
}

func (h *httpHandler) handleGetUser(c *gin.Context) {
	userID, err := pathID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	user, err := h.users.GetUser(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *httpHandler) handleListFollowers(c *gin.Context) {
	userID, err := pathID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	page := h.page(c)
	followers, err := h.users.Followers(c.Request.Context(), userID, page)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newListResponse(followers, page))
}

func (h *httpHandler) handleListFollowing(c *gin.Context) {
	userID, err := pathID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	page := h.page(c)
	following, err := h.users.Following(c.Request.Context(), userID, page)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newListResponse(following, page))
}

func (h *httpHandler) handleFollow(c *gin.Context) {
	userID, err := pathID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	outcome, err := h.users.Follow(c.Request.Context(), viewerID(c), userID)
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

func (h *httpHandler) handleUnfollow(c *gin.Context) {
	userID, err := pathID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.users.Unfollow(c.Request.Context(), viewerID(c), userID); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleIsFollowing(c *gin.Context) {
	userID, err := pathID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	following, err := h.users.IsFollowing(c.Request.Context(), viewerID(c), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"is_following": following})
}
