// Package seed fills a database with demo content through the domain
// services, so seeded data carries consistent counters and notifications.
package seed

import (
	"context"
	"fmt"
	"strings"

	"github.com/AbassKoyang/swirl-backend/internal/app"
	"github.com/AbassKoyang/swirl-backend/internal/auth"
	"github.com/AbassKoyang/swirl-backend/internal/blog"
	"github.com/AbassKoyang/swirl-backend/internal/target"
	"github.com/brianvoe/gofakeit/v6"
	"go.uber.org/zap"
)

// Options sizes a seeding run. A fixed Seed reproduces the same content.
type Options struct {
	Users           int
	PostsPerUser    int
	CommentsPerPost int
	Seed            int64
}

// DefaultOptions is a small but connected data set.
var DefaultOptions = Options{Users: 8, PostsPerUser: 3, CommentsPerPost: 2}

// Summary counts what a run created.
type Summary struct {
	Users     int `json:"users"`
	Posts     int `json:"posts"`
	Comments  int `json:"comments"`
	Reactions int `json:"reactions"`
	Follows   int `json:"follows"`
	Bookmarks int `json:"bookmarks"`
}

var defaultCategories = []string{"Engineering", "Design", "Product", "Culture"}

// Factory generates demo content.
type Factory struct {
	services *app.Services
	faker    *gofakeit.Faker
	logger   *zap.Logger
}

// NewFactory binds a factory to the services it writes through.
func NewFactory(services *app.Services, seed int64, logger *zap.Logger) (*Factory, error) {
	if services == nil {
		return nil, fmt.Errorf("seed: services required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Factory{services: services, faker: gofakeit.New(seed), logger: logger}, nil
}

// Run creates users, posts, comments, and engagement between them.
func (f *Factory) Run(ctx context.Context, opts Options) (Summary, error) {
	if opts.Users <= 0 {
		return Summary{}, fmt.Errorf("seed: at least one user required")
	}
	var summary Summary

	categories, err := f.categories(ctx)
	if err != nil {
		return summary, err
	}

	userIDs := make([]uint, 0, opts.Users)
	for index := 0; index < opts.Users; index++ {
		userID, err := f.CreateUser(ctx)
		if err != nil {
			return summary, err
		}
		userIDs = append(userIDs, userID)
		summary.Users++
	}

	for index, followerID := range userIDs {
		for offset := 1; offset <= 2 && offset < len(userIDs); offset++ {
			followingID := userIDs[(index+offset)%len(userIDs)]
			if _, err := f.services.Users.Follow(ctx, followerID, followingID); err != nil {
				return summary, fmt.Errorf("seed: follow: %w", err)
			}
			summary.Follows++
		}
	}

	for _, authorID := range userIDs {
		for index := 0; index < opts.PostsPerUser; index++ {
			category := categories[f.faker.Number(0, len(categories)-1)]
			post, err := f.CreatePost(ctx, authorID, category.ID)
			if err != nil {
				return summary, err
			}
			summary.Posts++

			for comment := 0; comment < opts.CommentsPerPost; comment++ {
				commenter := userIDs[f.faker.Number(0, len(userIDs)-1)]
				if _, err := f.services.Blog.CreateComment(ctx, commenter, post.ID, blog.CommentInput{Content: f.faker.Sentence(12)}); err != nil {
					return summary, fmt.Errorf("seed: comment: %w", err)
				}
				summary.Comments++
			}

			reactor := userIDs[f.faker.Number(0, len(userIDs)-1)]
			reaction := blog.ReactionUpvote
			if f.faker.Number(0, 3) == 0 {
				reaction = blog.ReactionDownvote
			}
			if _, err := f.services.Blog.React(ctx, reactor, target.Post(post.ID), string(reaction)); err != nil {
				return summary, fmt.Errorf("seed: react: %w", err)
			}
			summary.Reactions++

			if f.faker.Bool() {
				reader := userIDs[f.faker.Number(0, len(userIDs)-1)]
				if _, err := f.services.Blog.ToggleBookmark(ctx, reader, post.ID); err != nil {
					return summary, fmt.Errorf("seed: bookmark: %w", err)
				}
				summary.Bookmarks++
			}
		}
	}

	f.logger.Info("seed completed",
		zap.Int("users", summary.Users),
		zap.Int("posts", summary.Posts),
		zap.Int("comments", summary.Comments),
	)
	return summary, nil
}

// CreateUser provisions a user the way a first sign-in does.
func (f *Factory) CreateUser(ctx context.Context) (uint, error) {
	first := f.faker.FirstName()
	last := f.faker.LastName()
	claims := auth.SessionClaims{
		UserID:        "seed-" + f.faker.UUID(),
		UserEmail:     strings.ToLower(first + "." + last + "@example.com"),
		UserFirstName: first,
		UserLastName:  last,
		UserAvatarURL: "https://i.pravatar.cc/150?u=" + f.faker.UUID(),
	}
	userID, err := f.services.Users.ResolveUserID(ctx, claims)
	if err != nil {
		return 0, fmt.Errorf("seed: user: %w", err)
	}
	if _, err := f.services.Users.RecordSession(ctx, userID); err != nil {
		return 0, fmt.Errorf("seed: session: %w", err)
	}
	return userID, nil
}

// CreatePost publishes a generated post with a couple of tags.
func (f *Factory) CreatePost(ctx context.Context, authorID, categoryID uint) (blog.Post, error) {
	post, err := f.services.Blog.CreatePost(ctx, authorID, blog.PostInput{
		Title:      strings.TrimSuffix(f.faker.Sentence(6), "."),
		Content:    f.faker.Paragraph(3, 4, 12, "\n\n"),
		CategoryID: categoryID,
		Tags:       []string{f.faker.Word(), f.faker.Word()},
		Status:     string(blog.StatusPublished),
	})
	if err != nil {
		return blog.Post{}, fmt.Errorf("seed: post: %w", err)
	}
	return post, nil
}

func (f *Factory) categories(ctx context.Context) ([]blog.Category, error) {
	existing, err := f.services.Blog.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("seed: categories: %w", err)
	}
	if len(existing) > 0 {
		return existing, nil
	}
	categories := make([]blog.Category, 0, len(defaultCategories))
	for _, name := range defaultCategories {
		category, err := f.services.Blog.CreateCategory(ctx, name, f.faker.Sentence(8))
		if err != nil {
			return nil, fmt.Errorf("seed: category %s: %w", name, err)
		}
		categories = append(categories, category)
	}
	return categories, nil
}
