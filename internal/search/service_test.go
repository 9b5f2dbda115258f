package search

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/AbassKoyang/swirl-backend/internal/blog"
	"github.com/AbassKoyang/swirl-backend/internal/paging"
	"github.com/AbassKoyang/swirl-backend/internal/users"
	sqlite "github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var searchNow = time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)

type searchFixture struct {
	db      *gorm.DB
	service *Service
	ada     users.User
	linus   users.User
	backend blog.Category
	design  blog.Category
	golang  blog.Post
	rust    blog.Post
	draft   blog.Post
	removed blog.Post
}

func newSearchFixture(t *testing.T) searchFixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "search.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(append([]any{&users.User{}, &users.Follow{}}, blog.Models()...)...))

	f := searchFixture{db: db}
	f.ada = users.User{Provider: "default", Subject: "ada", Email: "ada@example.com", FirstName: "Ada", LastName: "Lovelace", CreatedAt: searchNow}
	f.linus = users.User{Provider: "default", Subject: "linus", Email: "linus@example.com", FirstName: "Linus", LastName: "Kernel", CreatedAt: searchNow}
	require.NoError(t, db.Create(&f.ada).Error)
	require.NoError(t, db.Create(&f.linus).Error)

	f.backend = blog.Category{Name: "Backend", Slug: "backend", CreatedAt: searchNow}
	f.design = blog.Category{Name: "Design", Slug: "design", CreatedAt: searchNow}
	require.NoError(t, db.Create(&f.backend).Error)
	require.NoError(t, db.Create(&f.design).Error)

	f.golang = f.post(t, blog.Post{
		AuthorID: f.ada.ID, CategoryID: f.backend.ID, Title: "Channels in practice", Content: "select statements",
		Tags: []blog.Tag{{Name: "golang", Slug: "golang"}}, ReactionCount: 3, CreatedAt: searchNow.Add(-3 * time.Hour),
	})
	f.rust = f.post(t, blog.Post{
		AuthorID: f.linus.ID, CategoryID: f.design.ID, Title: "Ownership explained", Content: "borrow checker",
		Tags: []blog.Tag{{Name: "rust", Slug: "rust"}}, ReactionCount: 7, CreatedAt: searchNow.Add(-2 * time.Hour),
	})
	f.draft = f.post(t, blog.Post{
		AuthorID: f.ada.ID, CategoryID: f.backend.ID, Title: "Channels draft", Content: "wip",
		Status: blog.StatusDraft, CreatedAt: searchNow.Add(-time.Hour),
	})
	f.removed = f.post(t, blog.Post{
		AuthorID: f.ada.ID, CategoryID: f.backend.ID, Title: "Channels removed", Content: "gone",
		IsDeleted: true, CreatedAt: searchNow.Add(-30 * time.Minute),
	})

	service, err := NewService(ServiceConfig{Database: db})
	require.NoError(t, err)
	f.service = service
	return f
}

func (f searchFixture) post(t *testing.T, post blog.Post) blog.Post {
	t.Helper()
	if post.Status == "" {
		post.Status = blog.StatusPublished
	}
	post.Slug = blog.Slugify(post.Title)
	post.UpdatedAt = post.CreatedAt
	require.NoError(t, f.db.Create(&post).Error)
	return post
}

func ids[T any](items []T, id func(T) uint) []uint {
	out := make([]uint, 0, len(items))
	for _, item := range items {
		out = append(out, id(item))
	}
	return out
}

func postID(p blog.Post) uint { return p.ID }
func commentID(c blog.Comment) uint { return c.ID }
func bookmarkID(b blog.Bookmark) uint { return b.ID }

func TestPostsTextMatchesRelatedFields(t *testing.T) {
	f := newSearchFixture(t)
	ctx := context.Background()
	page := paging.Page{Limit: 10}

	testCases := []struct {
		name string
		text string
		want []uint
	}{
		{name: "title", text: "channels", want: []uint{f.golang.ID}},
		{name: "content", text: "BORROW", want: []uint{f.rust.ID}},
		{name: "author-name", text: "lovelace", want: []uint{f.golang.ID}},
		{name: "author-email", text: "linus@", want: []uint{f.rust.ID}},
		{name: "category", text: "design", want: []uint{f.rust.ID}},
		{name: "tag", text: "gola", want: []uint{f.golang.ID}},
		{name: "no-match", text: "haskell", want: []uint{}},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			posts, err := f.service.Posts(ctx, PostQuery{Text: testCase.text}, page)
			require.NoError(t, err)
			require.Equal(t, testCase.want, ids(posts, postID))
		})
	}
}

func TestPostsStructuredFilters(t *testing.T) {
	f := newSearchFixture(t)
	ctx := context.Background()
	page := paging.Page{Limit: 10}

	posts, err := f.service.Posts(ctx, PostQuery{Tags: []string{"Rust, elixir"}}, page)
	require.NoError(t, err)
	require.Equal(t, []uint{f.rust.ID}, ids(posts, postID))

	posts, err = f.service.Posts(ctx, PostQuery{CategoryID: f.backend.ID}, page)
	require.NoError(t, err)
	require.Equal(t, []uint{f.golang.ID}, ids(posts, postID))

	posts, err = f.service.Posts(ctx, PostQuery{AuthorID: f.linus.ID}, page)
	require.NoError(t, err)
	require.Equal(t, []uint{f.rust.ID}, ids(posts, postID))

	posts, err = f.service.Posts(ctx, PostQuery{}, page)
	require.NoError(t, err)
	require.Equal(t, []uint{f.rust.ID, f.golang.ID}, ids(posts, postID), "default ordering is newest first")
	require.NotNil(t, posts[0].Author)
	require.Len(t, posts[0].Tags, 1)
}

func TestPostsDraftsOnlyForTheirAuthor(t *testing.T) {
	f := newSearchFixture(t)
	ctx := context.Background()
	page := paging.Page{Limit: 10}

	posts, err := f.service.Posts(ctx, PostQuery{Status: "draft", Viewer: f.ada.ID}, page)
	require.NoError(t, err)
	require.Equal(t, []uint{f.draft.ID}, ids(posts, postID))

	posts, err = f.service.Posts(ctx, PostQuery{Status: "draft", Viewer: f.linus.ID}, page)
	require.NoError(t, err)
	require.Empty(t, posts)

	_, err = f.service.Posts(ctx, PostQuery{Status: "archived"}, page)
	require.ErrorIs(t, err, ErrInvalidFilter)
}

func TestPostsOrdering(t *testing.T) {
	f := newSearchFixture(t)
	ctx := context.Background()
	page := paging.Page{Limit: 10}

	testCases := []struct {
		ordering string
		want     []uint
	}{
		{ordering: "-reaction_count", want: []uint{f.rust.ID, f.golang.ID}},
		{ordering: "reaction_count", want: []uint{f.golang.ID, f.rust.ID}},
		{ordering: "title", want: []uint{f.golang.ID, f.rust.ID}},
		{ordering: "created_at", want: []uint{f.golang.ID, f.rust.ID}},
	}
	for _, testCase := range testCases {
		posts, err := f.service.Posts(ctx, PostQuery{Ordering: testCase.ordering}, page)
		require.NoError(t, err, testCase.ordering)
		require.Equal(t, testCase.want, ids(posts, postID), testCase.ordering)
	}

	_, err := f.service.Posts(ctx, PostQuery{Ordering: "-views_count; DROP TABLE posts"}, page)
	require.ErrorIs(t, err, ErrInvalidFilter)
}

func TestCommentsFilters(t *testing.T) {
	f := newSearchFixture(t)
	ctx := context.Background()
	page := paging.Page{Limit: 10}

	top := blog.Comment{PostID: f.golang.ID, UserID: f.linus.ID, Content: "Great overview", CreatedAt: searchNow}
	require.NoError(t, f.db.Create(&top).Error)
	reply := blog.Comment{PostID: f.golang.ID, UserID: f.ada.ID, ParentID: &top.ID, Content: "thanks", CreatedAt: searchNow.Add(time.Minute)}
	require.NoError(t, f.db.Create(&reply).Error)
	onRust := blog.Comment{PostID: f.rust.ID, UserID: f.ada.ID, Content: "lifetimes?", CreatedAt: searchNow.Add(2 * time.Minute)}
	require.NoError(t, f.db.Create(&onRust).Error)
	hidden := blog.Comment{PostID: f.removed.ID, UserID: f.ada.ID, Content: "Great but gone", CreatedAt: searchNow.Add(3 * time.Minute)}
	require.NoError(t, f.db.Create(&hidden).Error)

	comments, err := f.service.Comments(ctx, CommentQuery{Text: "great"}, page)
	require.NoError(t, err)
	require.Equal(t, []uint{top.ID}, ids(comments, commentID))

	comments, err = f.service.Comments(ctx, CommentQuery{Text: "ownership"}, page)
	require.NoError(t, err)
	require.Equal(t, []uint{onRust.ID}, ids(comments, commentID), "post title matches")

	comments, err = f.service.Comments(ctx, CommentQuery{Text: "kernel"}, page)
	require.NoError(t, err)
	require.Equal(t, []uint{top.ID}, ids(comments, commentID), "user name matches")

	comments, err = f.service.Comments(ctx, CommentQuery{ParentID: &top.ID}, page)
	require.NoError(t, err)
	require.Equal(t, []uint{reply.ID}, ids(comments, commentID))

	comments, err = f.service.Comments(ctx, CommentQuery{UserID: f.ada.ID}, page)
	require.NoError(t, err)
	require.Equal(t, []uint{onRust.ID, reply.ID}, ids(comments, commentID))

	comments, err = f.service.Comments(ctx, CommentQuery{PostID: f.rust.ID}, page)
	require.NoError(t, err)
	require.Equal(t, []uint{onRust.ID}, ids(comments, commentID))
}

func TestBookmarksAreScopedToTheUser(t *testing.T) {
	f := newSearchFixture(t)
	ctx := context.Background()
	page := paging.Page{Limit: 10}

	mine := blog.Bookmark{UserID: f.ada.ID, PostID: f.rust.ID, CreatedAt: searchNow}
	require.NoError(t, f.db.Create(&mine).Error)
	gone := blog.Bookmark{UserID: f.ada.ID, PostID: f.removed.ID, CreatedAt: searchNow.Add(time.Minute)}
	require.NoError(t, f.db.Create(&gone).Error)
	theirs := blog.Bookmark{UserID: f.linus.ID, PostID: f.golang.ID, CreatedAt: searchNow}
	require.NoError(t, f.db.Create(&theirs).Error)

	bookmarks, err := f.service.Bookmarks(ctx, f.ada.ID, "", page)
	require.NoError(t, err)
	require.Equal(t, []uint{mine.ID}, ids(bookmarks, bookmarkID))
	require.NotNil(t, bookmarks[0].Post)
	require.Equal(t, f.rust.ID, bookmarks[0].Post.ID)

	bookmarks, err = f.service.Bookmarks(ctx, f.ada.ID, "channels", page)
	require.NoError(t, err)
	require.Empty(t, bookmarks)

	bookmarks, err = f.service.Bookmarks(ctx, f.ada.ID, "checker", page)
	require.NoError(t, err)
	require.Equal(t, []uint{mine.ID}, ids(bookmarks, bookmarkID))
}
