package server

import (
	"errors"
	"net/http"

	"github.com/AbassKoyang/swirl-backend/internal/blog"
	"github.com/AbassKoyang/swirl-backend/internal/feeds"
	"github.com/AbassKoyang/swirl-backend/internal/notifications"
	"github.com/AbassKoyang/swirl-backend/internal/search"
	"github.com/AbassKoyang/swirl-backend/internal/toggle"
	"github.com/AbassKoyang/swirl-backend/internal/users"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var (
	errUnauthorized   = errors.New("authentication required")
	errForbidden      = errors.New("not allowed to access this resource")
	errInvalidRequest = errors.New("invalid request")
)

type errorClass struct {
	status int
	label  string
	errs   []error
}

var errorClasses = []errorClass{
	{
		status: http.StatusNotFound,
		label:  "not_found",
		errs: []error{
			blog.ErrPostNotFound, blog.ErrCommentNotFound, blog.ErrCategoryNotFound, blog.ErrBookmarkNotFound,
			users.ErrUserNotFound, users.ErrFollowNotFound, notifications.ErrNotificationNotFound,
			toggle.ErrRelationNotFound,
		},
	},
	{
		status: http.StatusBadRequest,
		label:  "invalid_request",
		errs: []error{
			errInvalidRequest,
			blog.ErrInvalidPost, blog.ErrInvalidComment, blog.ErrInvalidStatus, blog.ErrInvalidCategory,
			blog.ErrInvalidTag, blog.ErrInvalidReactionType, blog.ErrUnsupportedTarget, blog.ErrReplyDepth,
			blog.ErrParentMismatch, users.ErrSelfFollow, users.ErrInvalidIdentity, feeds.ErrUnknownFeed,
			search.ErrInvalidFilter,
		},
	},
	{
		status: http.StatusUnauthorized,
		label:  "unauthorized",
		errs:   []error{errUnauthorized, feeds.ErrViewerRequired},
	},
	{
		status: http.StatusForbidden,
		label:  "forbidden",
		errs:   []error{errForbidden, blog.ErrNotPostOwner, blog.ErrNotCommentOwner},
	},
	{
		status: http.StatusConflict,
		label:  "conflict",
		errs:   []error{blog.ErrCategoryExists},
	},
}

type codedError interface {
	Code() string
}

type errorResponse struct {
	Error  string `json:"error"`
	Code   string `json:"code,omitempty"`
	Detail string `json:"detail,omitempty"`
}

func classify(err error) (int, string) {
	for _, class := range errorClasses {
		for _, target := range class.errs {
			if errors.Is(err, target) {
				return class.status, class.label
			}
		}
	}
	return http.StatusInternalServerError, "internal_error"
}

// respondError writes err as a JSON error. Client errors carry the cause;
// server errors are logged and reported generically.
func (h *httpHandler) respondError(c *gin.Context, err error) {
	status, label := classify(err)
	response := errorResponse{Error: label}
	var coded codedError
	if errors.As(err, &coded) {
		response.Code = coded.Code()
	}
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("route", c.FullPath()),
			zap.String("code", response.Code),
			zap.Error(err),
		)
		response.Code = ""
	} else {
		response.Detail = err.Error()
	}
	c.AbortWithStatusJSON(status, response)
}
