package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/AbassKoyang/swirl-backend/internal/auth"
	"github.com/AbassKoyang/swirl-backend/internal/ratelimit"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	userIDContextKey    = "swirl_user_id"
	requestIDContextKey = "swirl_request_id"
	requestIDHeader     = "X-Request-ID"
)

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Authorization", "Content-Type", requestIDHeader},
		ExposeHeaders:    []string{requestIDHeader, "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowOriginFunc = func(string) bool { return true }
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}

func requestIDMiddleware(c *gin.Context) {
	requestID := strings.TrimSpace(c.GetHeader(requestIDHeader))
	if requestID == "" {
		if generated, err := uuid.NewV7(); err == nil {
			requestID = generated.String()
		} else {
			requestID = uuid.NewString()
		}
	}
	c.Set(requestIDContextKey, requestID)
	c.Header(requestIDHeader, requestID)
	c.Next()
}

func (h *httpHandler) observeRequests(c *gin.Context) {
	start := time.Now()
	c.Next()
	elapsed := time.Since(start)
	status := c.Writer.Status()

	h.metrics.ObserveRequest(c.Request.Method, c.FullPath(), status, elapsed)

	fields := []zap.Field{
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.String("route", c.FullPath()),
		zap.Int("status", status),
		zap.Duration("latency", elapsed),
		zap.String("request_id", c.GetString(requestIDContextKey)),
	}
	if status >= http.StatusInternalServerError {
		h.logger.Warn("http request", fields...)
		return
	}
	h.logger.Info("http request", fields...)
}

// identify resolves the session principal into a local user id. When
// required is false, requests without a valid session continue anonymously.
func (h *httpHandler) identify(required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := h.sessions.ValidateRequest(c.Request)
		if err != nil {
			if !errors.Is(err, auth.ErrMissingSessionToken) {
				h.logTokenFailure(err)
			}
			if required {
				h.respondError(c, fmt.Errorf("%w: %v", errUnauthorized, err))
				return
			}
			c.Next()
			return
		}

		userID, err := h.users.ResolveUserID(c.Request.Context(), claims)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.Set(userIDContextKey, userID)
		c.Next()
	}
}

func (h *httpHandler) logTokenFailure(err error) {
	if errors.Is(err, auth.ErrExpiredSessionToken) {
		h.logger.Info("token validation failed", zap.Error(err))
		return
	}
	h.logger.Warn("token validation failed", zap.Error(err))
}

// viewerID returns the authenticated user id, or zero for anonymous requests.
func viewerID(c *gin.Context) uint {
	value, ok := c.Get(userIDContextKey)
	if !ok {
		return 0
	}
	userID, _ := value.(uint)
	return userID
}

// limit applies rule per user, or per client address for anonymous requests.
// Limiter failures let the request through.
func (h *httpHandler) limit(rule ratelimit.Rule) gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.limiter == nil {
			c.Next()
			return
		}
		subject := "ip:" + c.ClientIP()
		if userID := viewerID(c); userID != 0 {
			subject = "user:" + strconv.FormatUint(uint64(userID), 10)
		}

		decision, err := h.limiter.Allow(c.Request.Context(), rule, subject)
		if err != nil {
			h.logger.Warn("rate limiter unavailable", zap.String("rule", rule.Name), zap.Error(err))
			c.Next()
			return
		}
		if !decision.Allowed {
			h.metrics.RateLimited(rule.Name)
			retryAfter := int(decision.RetryAfter.Round(time.Second) / time.Second)
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorResponse{Error: "rate_limited"})
			return
		}
		c.Next()
	}
}
