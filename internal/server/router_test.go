package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/AbassKoyang/swirl-backend/internal/app"
	"github.com/AbassKoyang/swirl-backend/internal/auth"
	"github.com/AbassKoyang/swirl-backend/internal/blog"
	"github.com/AbassKoyang/swirl-backend/internal/database"
	"github.com/AbassKoyang/swirl-backend/internal/metrics"
	"github.com/AbassKoyang/swirl-backend/internal/ratelimit"
	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSigningSecret = "router-test-secret"
	testIssuer        = "swirl-auth"
	testCookieName    = "access_token"
)

type apiFixture struct {
	handler  http.Handler
	services *app.Services
	issuer   *auth.TokenIssuer
	redis    *miniredis.Miniredis
	metrics  *metrics.Collectors
	category blog.Category
}

func newAPIFixture(t *testing.T) apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "api.db")}, nil)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	registry := prometheus.NewRegistry()
	collectors := metrics.NewWithRegistry(registry, registry)
	services, err := app.NewServices(app.ServicesConfig{Database: db, Metrics: collectors})
	require.NoError(t, err)

	validator, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte(testSigningSecret),
		Issuer:        testIssuer,
		CookieName:    testCookieName,
	})
	require.NoError(t, err)
	issuer, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(testSigningSecret),
		Issuer:        testIssuer,
		TokenTTL:      time.Hour,
	})
	require.NoError(t, err)

	redisServer := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: redisServer.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	limiter, err := ratelimit.NewLimiter(ratelimit.LimiterConfig{Client: client})
	require.NoError(t, err)

	handler, err := NewHTTPHandler(Dependencies{
		Sessions:      validator,
		Users:         services.Users,
		Blog:          services.Blog,
		Feeds:         services.Feeds,
		Notifications: services.Notifications,
		Search:        services.Search,
		Limiter:       limiter,
		Metrics:       collectors,
		Ready:         func(ctx context.Context) error { return sqlDB.PingContext(ctx) },
	})
	require.NoError(t, err)

	category, err := services.Blog.CreateCategory(ctx, "Engineering", "")
	require.NoError(t, err)

	return apiFixture{
		handler:  handler,
		services: services,
		issuer:   issuer,
		redis:    redisServer,
		metrics:  collectors,
		category: category,
	}
}

func (f apiFixture) token(t *testing.T, subject string) string {
	t.Helper()
	token, _, err := f.issuer.Issue(auth.SessionClaims{UserID: subject, UserEmail: subject + "@example.com"})
	require.NoError(t, err)
	return token
}

func (f apiFixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader = http.NoBody
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	request := httptest.NewRequest(method, path, reader)
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	f.handler.ServeHTTP(recorder, request)
	return recorder
}

func decode[T any](t *testing.T, recorder *httptest.ResponseRecorder) T {
	t.Helper()
	var value T
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &value), recorder.Body.String())
	return value
}

func (f apiFixture) createPost(t *testing.T, token, title string) blog.Post {
	t.Helper()
	recorder := f.do(t, http.MethodPost, "/posts", token, map[string]any{
		"title":       title,
		"content":     "body of " + title,
		"category_id": f.category.ID,
		"tags":        []string{"Go", "backend"},
		"status":      "published",
	})
	require.Equal(t, http.StatusCreated, recorder.Code, recorder.Body.String())
	return decode[blog.Post](t, recorder)
}

func TestNewHTTPHandlerRequiresDependencies(t *testing.T) {
	_, err := NewHTTPHandler(Dependencies{})
	require.ErrorIs(t, err, errMissingSessionValidator)
}

func TestHealthAndMetricsEndpoints(t *testing.T) {
	fixture := newAPIFixture(t)

	health := fixture.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, health.Code)

	fixture.do(t, http.MethodGet, "/posts", "", nil)
	exposition := fixture.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, exposition.Code)
	assert.Contains(t, exposition.Body.String(), "swirl_http_requests_total")
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	fixture := newAPIFixture(t)

	recorder := fixture.do(t, http.MethodPost, "/posts", "", map[string]any{"title": "x"})
	require.Equal(t, http.StatusUnauthorized, recorder.Code)
	assert.Equal(t, "unauthorized", decode[errorResponse](t, recorder).Error)

	recorder = fixture.do(t, http.MethodGet, "/notifications", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestPostLifecycleOverHTTP(t *testing.T) {
	fixture := newAPIFixture(t)
	author := fixture.token(t, "author")
	reader := fixture.token(t, "reader")

	post := fixture.createPost(t, author, "Hello World")
	assert.Equal(t, "hello-world", post.Slug)
	assert.Len(t, post.Tags, 2)

	view := fixture.do(t, http.MethodGet, "/posts/hello-world", "", nil)
	require.Equal(t, http.StatusOK, view.Code)
	assert.EqualValues(t, 1, decode[blog.Post](t, view).ViewsCount)

	forbidden := fixture.do(t, http.MethodPatch, "/posts/"+itoa(post.ID), reader, map[string]any{"title": "Hijacked"})
	assert.Equal(t, http.StatusForbidden, forbidden.Code)

	updated := fixture.do(t, http.MethodPatch, "/posts/"+itoa(post.ID), author, map[string]any{"title": "Hello Again"})
	require.Equal(t, http.StatusOK, updated.Code, updated.Body.String())
	assert.Equal(t, "Hello Again", decode[blog.Post](t, updated).Title)

	deleted := fixture.do(t, http.MethodDelete, "/posts/"+itoa(post.ID), author, nil)
	require.Equal(t, http.StatusNoContent, deleted.Code)

	missing := fixture.do(t, http.MethodGet, "/posts/hello-world", "", nil)
	assert.Equal(t, http.StatusNotFound, missing.Code)
}

func TestCreatePostValidation(t *testing.T) {
	fixture := newAPIFixture(t)
	author := fixture.token(t, "author")

	testCases := []struct {
		name string
		body map[string]any
	}{
		{name: "missing-title", body: map[string]any{"content": "c", "category_id": fixture.category.ID}},
		{name: "unknown-status", body: map[string]any{"title": "t", "content": "c", "category_id": fixture.category.ID, "status": "archived"}},
		{name: "missing-category", body: map[string]any{"title": "t", "content": "c"}},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			recorder := fixture.do(t, http.MethodPost, "/posts", author, testCase.body)
			require.Equal(t, http.StatusBadRequest, recorder.Code, recorder.Body.String())
			assert.Equal(t, "invalid_request", decode[errorResponse](t, recorder).Error)
		})
	}

	unknownCategory := fixture.do(t, http.MethodPost, "/posts", author, map[string]any{
		"title": "t", "content": "c", "category_id": fixture.category.ID + 100,
	})
	assert.Equal(t, http.StatusNotFound, unknownCategory.Code)
}

func TestDraftListingIsOwnerOnly(t *testing.T) {
	fixture := newAPIFixture(t)
	author := fixture.token(t, "author")
	other := fixture.token(t, "other")

	draft := fixture.do(t, http.MethodPost, "/posts", author, map[string]any{
		"title": "Unfinished", "content": "c", "category_id": fixture.category.ID,
	})
	require.Equal(t, http.StatusCreated, draft.Code)
	draftPost := decode[blog.Post](t, draft)

	public := decode[listResponse[blog.Post]](t, fixture.do(t, http.MethodGet, "/posts", "", nil))
	assert.Zero(t, public.Count)

	own := fixture.do(t, http.MethodGet, "/users/"+itoa(draftPost.AuthorID)+"/posts?status=draft", author, nil)
	require.Equal(t, http.StatusOK, own.Code, own.Body.String())
	assert.Equal(t, 1, decode[listResponse[blog.Post]](t, own).Count)

	foreign := fixture.do(t, http.MethodGet, "/users/"+itoa(draftPost.AuthorID)+"/posts?status=draft", other, nil)
	assert.Equal(t, http.StatusForbidden, foreign.Code)
}

func TestReactionToggleOverHTTP(t *testing.T) {
	fixture := newAPIFixture(t)
	author := fixture.token(t, "author")
	reader := fixture.token(t, "reader")
	post := fixture.createPost(t, author, "Reactable")
	path := "/posts/" + itoa(post.ID) + "/reactions"

	first := fixture.do(t, http.MethodPost, path, reader, map[string]any{"reaction_type": "upvote"})
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())
	created := decode[reactionResponse](t, first)
	assert.Equal(t, "created", string(created.Transition))
	assert.EqualValues(t, 1, created.ReactionCount)

	switched := decode[reactionResponse](t, fixture.do(t, http.MethodPost, path, reader, map[string]any{"reaction_type": "downvote"}))
	assert.Equal(t, "switched", string(switched.Transition))
	assert.EqualValues(t, 1, switched.ReactionCount)

	removed := decode[reactionResponse](t, fixture.do(t, http.MethodPost, path, reader, map[string]any{"reaction_type": "downvote"}))
	assert.Equal(t, "removed", string(removed.Transition))
	assert.EqualValues(t, 0, removed.ReactionCount)

	invalid := fixture.do(t, http.MethodPost, path, reader, map[string]any{"reaction_type": "love"})
	assert.Equal(t, http.StatusBadRequest, invalid.Code)

	notifications := fixture.do(t, http.MethodGet, "/notifications/unread-count", author, nil)
	require.Equal(t, http.StatusOK, notifications.Code)
	assert.EqualValues(t, 1, decode[map[string]int64](t, notifications)["unread_count"])
}

func TestFollowAndPersonalizedFeed(t *testing.T) {
	fixture := newAPIFixture(t)
	author := fixture.token(t, "author")
	reader := fixture.token(t, "reader")
	post := fixture.createPost(t, author, "Followed Post")

	self := fixture.do(t, http.MethodPost, "/users/"+itoa(post.AuthorID)+"/follow", author, nil)
	assert.Equal(t, http.StatusBadRequest, self.Code)

	follow := fixture.do(t, http.MethodPost, "/users/"+itoa(post.AuthorID)+"/follow", reader, nil)
	require.Equal(t, http.StatusCreated, follow.Code, follow.Body.String())

	status := decode[map[string]bool](t, fixture.do(t, http.MethodGet, "/users/"+itoa(post.AuthorID)+"/is-following", reader, nil))
	assert.True(t, status["is_following"])

	feed := fixture.do(t, http.MethodGet, "/feeds/personalized", reader, nil)
	require.Equal(t, http.StatusOK, feed.Code, feed.Body.String())
	items := decode[listResponse[blog.Post]](t, feed)
	require.Equal(t, 1, items.Count)
	assert.Equal(t, post.ID, items.Results[0].ID)

	anonymous := fixture.do(t, http.MethodGet, "/feeds/personalized", "", nil)
	assert.Equal(t, http.StatusUnauthorized, anonymous.Code)

	trending := fixture.do(t, http.MethodGet, "/feeds/trending?period=bogus", "", nil)
	assert.Equal(t, http.StatusOK, trending.Code)

	unfollow := fixture.do(t, http.MethodDelete, "/users/"+itoa(post.AuthorID)+"/follow", reader, nil)
	assert.Equal(t, http.StatusNoContent, unfollow.Code)
	again := fixture.do(t, http.MethodDelete, "/users/"+itoa(post.AuthorID)+"/follow", reader, nil)
	assert.Equal(t, http.StatusNotFound, again.Code)
}

func TestBookmarksArePrivate(t *testing.T) {
	fixture := newAPIFixture(t)
	author := fixture.token(t, "author")
	reader := fixture.token(t, "reader")
	post := fixture.createPost(t, author, "Keep This")

	toggled := fixture.do(t, http.MethodPost, "/posts/"+itoa(post.ID)+"/bookmark", reader, nil)
	require.Equal(t, http.StatusCreated, toggled.Code, toggled.Body.String())

	session := decode[sessionResponse](t, fixture.do(t, http.MethodPost, "/auth/session", reader, nil))
	readerID := itoa(session.User.ID)

	own := fixture.do(t, http.MethodGet, "/users/"+readerID+"/bookmarks", reader, nil)
	require.Equal(t, http.StatusOK, own.Code)
	assert.Equal(t, 1, decode[listResponse[blog.Bookmark]](t, own).Count)

	foreign := fixture.do(t, http.MethodGet, "/users/"+readerID+"/bookmarks", author, nil)
	assert.Equal(t, http.StatusForbidden, foreign.Code)

	removed := fixture.do(t, http.MethodDelete, "/posts/"+itoa(post.ID)+"/bookmark", reader, nil)
	assert.Equal(t, http.StatusNoContent, removed.Code)
	missing := fixture.do(t, http.MethodDelete, "/posts/"+itoa(post.ID)+"/bookmark", reader, nil)
	assert.Equal(t, http.StatusNotFound, missing.Code)
}

func TestCommentsOverHTTP(t *testing.T) {
	fixture := newAPIFixture(t)
	author := fixture.token(t, "author")
	reader := fixture.token(t, "reader")
	post := fixture.createPost(t, author, "Discussed")

	created := fixture.do(t, http.MethodPost, "/posts/"+itoa(post.ID)+"/comments", reader, map[string]any{"content": "first"})
	require.Equal(t, http.StatusCreated, created.Code, created.Body.String())
	comment := decode[blog.Comment](t, created)

	reply := fixture.do(t, http.MethodPost, "/comments/"+itoa(comment.ID)+"/replies", author, map[string]any{"content": "thanks"})
	require.Equal(t, http.StatusCreated, reply.Code, reply.Body.String())
	replyComment := decode[blog.Comment](t, reply)

	nested := fixture.do(t, http.MethodPost, "/comments/"+itoa(replyComment.ID)+"/replies", reader, map[string]any{"content": "deeper"})
	assert.Equal(t, http.StatusBadRequest, nested.Code)

	listed := decode[listResponse[blog.Comment]](t, fixture.do(t, http.MethodGet, "/posts/"+itoa(post.ID)+"/comments", "", nil))
	assert.Equal(t, 1, listed.Count)

	replies := decode[listResponse[blog.Comment]](t, fixture.do(t, http.MethodGet, "/comments/"+itoa(comment.ID)+"/replies", "", nil))
	assert.Equal(t, 1, replies.Count)

	notOwner := fixture.do(t, http.MethodDelete, "/comments/"+itoa(comment.ID), author, nil)
	assert.Equal(t, http.StatusForbidden, notOwner.Code)
	deleted := fixture.do(t, http.MethodDelete, "/comments/"+itoa(comment.ID), reader, nil)
	assert.Equal(t, http.StatusNoContent, deleted.Code)
}

func TestNotificationsMarkRead(t *testing.T) {
	fixture := newAPIFixture(t)
	author := fixture.token(t, "author")
	reader := fixture.token(t, "reader")
	post := fixture.createPost(t, author, "Notify")

	fixture.do(t, http.MethodPost, "/posts/"+itoa(post.ID)+"/comments", reader, map[string]any{"content": "hi"})
	fixture.do(t, http.MethodPost, "/posts/"+itoa(post.ID)+"/bookmark", reader, nil)

	unread := decode[listResponse[map[string]any]](t, fixture.do(t, http.MethodGet, "/notifications?unread=true", author, nil))
	require.Equal(t, 2, unread.Count)

	firstID := uint(unread.Results[0]["id"].(float64))
	marked := decode[map[string]any](t, fixture.do(t, http.MethodPost, "/notifications/"+itoa(firstID)+"/read", author, nil))
	assert.Equal(t, false, marked["already_read"])
	repeated := decode[map[string]any](t, fixture.do(t, http.MethodPost, "/notifications/"+itoa(firstID)+"/read", author, nil))
	assert.Equal(t, true, repeated["already_read"])

	foreign := fixture.do(t, http.MethodPost, "/notifications/"+itoa(firstID)+"/read", reader, nil)
	assert.Equal(t, http.StatusNotFound, foreign.Code)

	all := decode[map[string]int64](t, fixture.do(t, http.MethodPost, "/notifications/read-all", author, nil))
	assert.EqualValues(t, 1, all["updated"])
}

func TestSearchRejectsUnknownOrdering(t *testing.T) {
	fixture := newAPIFixture(t)
	author := fixture.token(t, "author")
	fixture.createPost(t, author, "Searchable Gophers")

	found := decode[listResponse[blog.Post]](t, fixture.do(t, http.MethodGet, "/search/posts?q=gopher", "", nil))
	assert.Equal(t, 1, found.Count)

	rejected := fixture.do(t, http.MethodGet, "/search/posts?ordering=password", "", nil)
	assert.Equal(t, http.StatusBadRequest, rejected.Code)
}

func TestRateLimitedRequestsReturn429(t *testing.T) {
	fixture := newAPIFixture(t)
	author := fixture.token(t, "author")

	for attempt := 0; attempt < ratelimit.PostCreate.Limit; attempt++ {
		recorder := fixture.do(t, http.MethodPost, "/posts", author, map[string]any{"title": "t"})
		require.Equal(t, http.StatusBadRequest, recorder.Code)
	}
	limited := fixture.do(t, http.MethodPost, "/posts", author, map[string]any{"title": "t"})
	require.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.NotEmpty(t, limited.Header().Get("Retry-After"))

	fixture.redis.Close()
	recovered := fixture.do(t, http.MethodGet, "/posts", "", nil)
	assert.Equal(t, http.StatusOK, recovered.Code)
}

func itoa(value uint) string {
	return strconv.FormatUint(uint64(value), 10)
}

func TestResponsesCarryViewerFlags(t *testing.T) {
	fixture := newAPIFixture(t)
	author := fixture.token(t, "author")
	reader := fixture.token(t, "reader")
	post := fixture.createPost(t, author, "Flagged")

	fixture.do(t, http.MethodPost, "/posts/"+itoa(post.ID)+"/reactions", reader, map[string]any{"reaction_type": "upvote"})
	fixture.do(t, http.MethodPost, "/posts/"+itoa(post.ID)+"/bookmark", reader, nil)
	created := decode[blog.Comment](t, fixture.do(t, http.MethodPost, "/posts/"+itoa(post.ID)+"/comments", author, map[string]any{"content": "note"}))
	fixture.do(t, http.MethodPost, "/comments/"+itoa(created.ID)+"/reactions", reader, map[string]any{"reaction_type": "upvote"})

	viewed := decode[blog.Post](t, fixture.do(t, http.MethodGet, "/posts/flagged", reader, nil))
	assert.True(t, viewed.IsLiked)
	assert.True(t, viewed.IsBookmarked)

	recent := decode[listResponse[blog.Post]](t, fixture.do(t, http.MethodGet, "/feeds/recent", reader, nil))
	require.Equal(t, 1, recent.Count)
	assert.True(t, recent.Results[0].IsLiked)
	assert.True(t, recent.Results[0].IsBookmarked)

	comments := decode[listResponse[blog.Comment]](t, fixture.do(t, http.MethodGet, "/posts/"+itoa(post.ID)+"/comments", reader, nil))
	require.Equal(t, 1, comments.Count)
	assert.True(t, comments.Results[0].IsLiked)

	anonymous := decode[listResponse[blog.Post]](t, fixture.do(t, http.MethodGet, "/posts", "", nil))
	require.Equal(t, 1, anonymous.Count)
	assert.False(t, anonymous.Results[0].IsLiked)
	assert.False(t, anonymous.Results[0].IsBookmarked)

	anonymousComments := decode[listResponse[blog.Comment]](t, fixture.do(t, http.MethodGet, "/posts/"+itoa(post.ID)+"/comments", "", nil))
	require.Equal(t, 1, anonymousComments.Count)
	assert.False(t, anonymousComments.Results[0].IsLiked)
}
