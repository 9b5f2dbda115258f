package server

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/AbassKoyang/swirl-backend/internal/auth"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type stubSessionValidator struct {
	claims auth.SessionClaims
	err    error
}

func (s stubSessionValidator) ValidateRequest(*http.Request) (auth.SessionClaims, error) {
	return s.claims, s.err
}

func runIdentify(t *testing.T, validateErr error, required bool) (*httptest.ResponseRecorder, *observer.ObservedLogs) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(recorder)
	request := httptest.NewRequest(http.MethodGet, "/notifications", http.NoBody)
	request.Header.Set("Authorization", "Bearer some-token")
	ctx.Request = request

	core, logs := observer.New(zapcore.DebugLevel)
	handler := &httpHandler{
		sessions: stubSessionValidator{err: validateErr},
		logger:   zap.New(core),
	}
	handler.identify(required)(ctx)
	return recorder, logs
}

func TestIdentifyLogsExpiredTokenAtInfoLevel(t *testing.T) {
	recorder, logs := runIdentify(t, auth.ErrExpiredSessionToken, true)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status code: got %d, want %d", recorder.Code, http.StatusUnauthorized)
	}
	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected exactly one log entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Level != zapcore.InfoLevel {
		t.Fatalf("expected info level for expired token, got %s", entry.Level)
	}
	if entry.Message != "token validation failed" {
		t.Fatalf("unexpected log message: %q", entry.Message)
	}
	hasExpired := false
	for _, field := range entry.Context {
		if field.Type == zapcore.ErrorType && errors.Is(field.Interface.(error), auth.ErrExpiredSessionToken) {
			hasExpired = true
			break
		}
	}
	if !hasExpired {
		t.Fatalf("expected expired token error context, got %v", entry.Context)
	}
}

func TestIdentifyLogsUnexpectedTokenErrorAtWarnLevel(t *testing.T) {
	recorder, logs := runIdentify(t, fmt.Errorf("%w: signature mismatch", auth.ErrInvalidSessionToken), true)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status code: got %d, want %d", recorder.Code, http.StatusUnauthorized)
	}
	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected exactly one log entry, got %d", len(entries))
	}
	if entries[0].Level != zapcore.WarnLevel {
		t.Fatalf("expected warn level for unexpected error, got %s", entries[0].Level)
	}
}

func TestIdentifyAllowsAnonymousWhenOptional(t *testing.T) {
	recorder, logs := runIdentify(t, auth.ErrMissingSessionToken, false)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected anonymous request to continue, got %d", recorder.Code)
	}
	if logs.Len() != 0 {
		t.Fatalf("expected no log entries for a missing token, got %d", logs.Len())
	}
}

func TestIdentifyRejectsMissingTokenWhenRequired(t *testing.T) {
	recorder, logs := runIdentify(t, auth.ErrMissingSessionToken, true)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status code: got %d, want %d", recorder.Code, http.StatusUnauthorized)
	}
	if logs.Len() != 0 {
		t.Fatalf("expected no log entries for a missing token, got %d", logs.Len())
	}
}
