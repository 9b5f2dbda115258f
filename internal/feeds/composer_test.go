package feeds

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/AbassKoyang/swirl-backend/internal/blog"
	"github.com/AbassKoyang/swirl-backend/internal/paging"
	"github.com/AbassKoyang/swirl-backend/internal/ranking"
	"github.com/AbassKoyang/swirl-backend/internal/users"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var feedNow = time.Date(2026, 10, 10, 12, 0, 0, 0, time.UTC)

type staticGraph map[uint][]uint

func (g staticGraph) FollowingIDs(_ context.Context, userID uint) ([]uint, error) {
	return append([]uint(nil), g[userID]...), nil
}

type failingGraph struct{}

func (failingGraph) FollowingIDs(context.Context, uint) ([]uint, error) {
	return nil, errors.New("graph offline")
}

type feedFixture struct {
	db       *gorm.DB
	category blog.Category
	serial   int
}

func newFeedFixture(t *testing.T) *feedFixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "feeds.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	models := append([]any{&users.User{}, &users.Follow{}}, blog.Models()...)
	if err := db.AutoMigrate(models...); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	category := blog.Category{Name: "General", Slug: "general", CreatedAt: feedNow}
	if err := db.Create(&category).Error; err != nil {
		t.Fatalf("failed to create category: %v", err)
	}
	return &feedFixture{db: db, category: category}
}

func (f *feedFixture) user(t *testing.T, subject string) uint {
	t.Helper()
	user := users.User{Provider: "default", Subject: subject, Email: subject + "@example.com", CreatedAt: feedNow}
	if err := f.db.Create(&user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return user.ID
}

type postRow struct {
	author  uint
	age     time.Duration
	score   int64
	status  blog.PostStatus
	deleted bool
}

func (f *feedFixture) post(t *testing.T, row postRow) uint {
	t.Helper()
	f.serial++
	status := row.status
	if status == "" {
		status = blog.StatusPublished
	}
	post := blog.Post{
		AuthorID:      row.author,
		CategoryID:    f.category.ID,
		Title:         fmt.Sprintf("post %d", f.serial),
		Slug:          fmt.Sprintf("post-%d", f.serial),
		Content:       "body",
		Status:        status,
		ReactionCount: row.score,
		IsDeleted:     row.deleted,
		CreatedAt:     feedNow.Add(-row.age),
		UpdatedAt:     feedNow.Add(-row.age),
	}
	if err := f.db.Create(&post).Error; err != nil {
		t.Fatalf("failed to create post: %v", err)
	}
	return post.ID
}

func (f *feedFixture) composer(t *testing.T, graph FollowGraph) *Composer {
	t.Helper()
	composer, err := NewComposer(ComposerConfig{
		Database: f.db,
		Follows:  graph,
		Clock:    func() time.Time { return feedNow },
	})
	if err != nil {
		t.Fatalf("failed to build composer: %v", err)
	}
	return composer
}

func postIDs(posts []blog.Post) []uint {
	out := make([]uint, len(posts))
	for index, post := range posts {
		out[index] = post.ID
	}
	return out
}

func equalIDs(got, want []uint) bool {
	if len(got) != len(want) {
		return false
	}
	for index := range got {
		if got[index] != want[index] {
			return false
		}
	}
	return true
}

func TestTrendingRespectsWindowAndRanking(t *testing.T) {
	fixture := newFeedFixture(t)
	author := fixture.user(t, "author")
	day := 24 * time.Hour

	twoDays := fixture.post(t, postRow{author: author, age: 2 * day, score: 5})
	sixDays := fixture.post(t, postRow{author: author, age: 6 * day, score: 5})
	fixture.post(t, postRow{author: author, age: 8 * day, score: 100})
	lastHour := fixture.post(t, postRow{author: author, age: 30 * time.Minute, score: 1})
	fixture.post(t, postRow{author: author, age: day, score: 50, status: blog.StatusDraft})
	fixture.post(t, postRow{author: author, age: day, score: 60, deleted: true})

	composer := fixture.composer(t, staticGraph{})
	posts, err := composer.Trending(context.Background(), ranking.ParseWindow("7d"), paging.Page{Limit: 10})
	if err != nil {
		t.Fatalf("trending failed: %v", err)
	}
	if want := []uint{twoDays, sixDays, lastHour}; !equalIDs(postIDs(posts), want) {
		t.Fatalf("expected %v, got %v", want, postIDs(posts))
	}
	if posts[0].Author == nil || posts[0].Category == nil {
		t.Fatalf("expected hydrated relations on trending posts")
	}

	hourly, err := composer.Trending(context.Background(), ranking.ParseWindow("1h"), paging.Page{Limit: 10})
	if err != nil {
		t.Fatalf("trending failed: %v", err)
	}
	if want := []uint{lastHour}; !equalIDs(postIDs(hourly), want) {
		t.Fatalf("expected %v for 1h, got %v", want, postIDs(hourly))
	}

	paged, err := composer.Trending(context.Background(), ranking.WindowWeek, paging.Page{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("trending failed: %v", err)
	}
	if want := []uint{sixDays}; !equalIDs(postIDs(paged), want) {
		t.Fatalf("expected %v for second page, got %v", want, postIDs(paged))
	}
}

func TestTrendingUnknownPeriodFallsBackToDay(t *testing.T) {
	fixture := newFeedFixture(t)
	author := fixture.user(t, "author")
	recent := fixture.post(t, postRow{author: author, age: 2 * time.Hour, score: 1})
	fixture.post(t, postRow{author: author, age: 48 * time.Hour, score: 9})

	posts, err := fixture.composer(t, staticGraph{}).Trending(context.Background(), ranking.ParseWindow("fortnight"), paging.Page{Limit: 10})
	if err != nil {
		t.Fatalf("trending failed: %v", err)
	}
	if want := []uint{recent}; !equalIDs(postIDs(posts), want) {
		t.Fatalf("expected %v, got %v", want, postIDs(posts))
	}
}

func TestPersonalizedIncludesFolloweesAndSelf(t *testing.T) {
	fixture := newFeedFixture(t)
	viewer := fixture.user(t, "viewer")
	followed := fixture.user(t, "followed")
	stranger := fixture.user(t, "stranger")

	own := fixture.post(t, postRow{author: viewer, age: 3 * time.Hour})
	theirs := fixture.post(t, postRow{author: followed, age: time.Hour})
	fixture.post(t, postRow{author: followed, age: 30 * time.Minute, status: blog.StatusDraft})
	fixture.post(t, postRow{author: stranger, age: 10 * time.Minute})

	composer := fixture.composer(t, staticGraph{viewer: {followed}})
	posts, err := composer.Personalized(context.Background(), viewer, paging.Page{Limit: 10})
	if err != nil {
		t.Fatalf("personalized failed: %v", err)
	}
	if want := []uint{theirs, own}; !equalIDs(postIDs(posts), want) {
		t.Fatalf("expected %v, got %v", want, postIDs(posts))
	}
}

func TestCombinedMergesFolloweesWithTrending(t *testing.T) {
	fixture := newFeedFixture(t)
	viewer := fixture.user(t, "viewer")
	x := fixture.user(t, "x")
	y := fixture.user(t, "y")
	z := fixture.user(t, "z")

	want := map[uint]bool{}
	want[fixture.post(t, postRow{author: x, age: 72 * time.Hour})] = true
	want[fixture.post(t, postRow{author: y, age: 30 * time.Hour})] = true
	want[fixture.post(t, postRow{author: viewer, age: 50 * time.Hour})] = true
	both := fixture.post(t, postRow{author: x, age: 90 * time.Minute, score: 100})
	want[both] = true

	var excluded []uint
	for index := 1; index <= 11; index++ {
		id := fixture.post(t, postRow{author: z, age: time.Duration(index) * time.Hour, score: int64(index)})
		if index >= 3 {
			want[id] = true
		} else {
			excluded = append(excluded, id)
		}
	}
	excluded = append(excluded, fixture.post(t, postRow{author: z, age: 72 * time.Hour, score: 500}))
	fixture.post(t, postRow{author: y, age: time.Hour, score: 90, status: blog.StatusDraft})

	composer := fixture.composer(t, staticGraph{viewer: {x, y}})
	posts, err := composer.Combined(context.Background(), viewer, paging.Page{Limit: 100})
	if err != nil {
		t.Fatalf("combined failed: %v", err)
	}
	if len(posts) != len(want) {
		t.Fatalf("expected %d posts, got %d: %v", len(want), len(posts), postIDs(posts))
	}
	seen := map[uint]bool{}
	for index, post := range posts {
		if seen[post.ID] {
			t.Fatalf("post %d appears twice", post.ID)
		}
		seen[post.ID] = true
		if !want[post.ID] {
			t.Fatalf("unexpected post %d in combined feed", post.ID)
		}
		if index > 0 && post.CreatedAt.After(posts[index-1].CreatedAt) {
			t.Fatalf("combined feed is not newest first at index %d", index)
		}
	}
	for _, id := range excluded {
		if seen[id] {
			t.Fatalf("post %d should not be part of the combined feed", id)
		}
	}
}

func TestRecentListsPublishedPostsNewestFirst(t *testing.T) {
	fixture := newFeedFixture(t)
	author := fixture.user(t, "author")
	older := fixture.post(t, postRow{author: author, age: 5 * time.Hour})
	newer := fixture.post(t, postRow{author: author, age: time.Hour})
	fixture.post(t, postRow{author: author, age: time.Minute, deleted: true})

	posts, err := fixture.composer(t, staticGraph{}).Recent(context.Background(), paging.Page{Limit: 10})
	if err != nil {
		t.Fatalf("recent failed: %v", err)
	}
	if want := []uint{newer, older}; !equalIDs(postIDs(posts), want) {
		t.Fatalf("expected %v, got %v", want, postIDs(posts))
	}
}

func TestComposeValidatesRequests(t *testing.T) {
	fixture := newFeedFixture(t)
	composer := fixture.composer(t, staticGraph{})
	ctx := context.Background()

	if _, err := composer.Compose(ctx, Request{Kind: KindPersonalized}); !errors.Is(err, ErrViewerRequired) {
		t.Fatalf("expected ErrViewerRequired, got %v", err)
	}
	if _, err := composer.Compose(ctx, Request{Kind: Kind("popular")}); !errors.Is(err, ErrUnknownFeed) {
		t.Fatalf("expected ErrUnknownFeed, got %v", err)
	}
	if _, err := ParseKind("Combined"); err != nil {
		t.Fatalf("expected combined to parse: %v", err)
	}
	if _, err := ParseKind("popular"); !errors.Is(err, ErrUnknownFeed) {
		t.Fatalf("expected ErrUnknownFeed, got %v", err)
	}

	broken := fixture.composer(t, failingGraph{})
	if _, err := broken.Personalized(ctx, 1, paging.Page{Limit: 10}); err == nil {
		t.Fatalf("expected follow graph failure to surface")
	}
}
