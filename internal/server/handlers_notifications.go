package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

func (h *httpHandler) handleListNotifications(c *gin.Context) {
	unreadOnly, _ := strconv.ParseBool(c.Query("unread"))
	page := h.page(c)
	items, err := h.notifications.List(c.Request.Context(), viewerID(c), unreadOnly, page)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newListResponse(items, page))
}

func (h *httpHandler) handleUnreadCount(c *gin.Context) {
	count, err := h.notifications.UnreadCount(c.Request.Context(), viewerID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread_count": count})
}

func (h *httpHandler) handleMarkRead(c *gin.Context) {
	notificationID, err := pathID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	result, err := h.notifications.MarkRead(c.Request.Context(), viewerID(c), notificationID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"notification": result.Notification,
		"already_read": result.AlreadyRead,
	})
}

func (h *httpHandler) handleMarkAllRead(c *gin.Context) {
	updated, err := h.notifications.MarkAllRead(c.Request.Context(), viewerID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}
