package blog

import (
	"context"

	"github.com/AbassKoyang/swirl-backend/internal/target"
	"go.uber.org/zap"
)

const (
	opAnnotatePosts    = "blog.annotate_posts"
	opAnnotateComments = "blog.annotate_comments"
)

// AnnotatePosts sets IsLiked and IsBookmarked on posts for viewer with one
// query per relation. Anonymous viewers see both flags false.
func (s *Service) AnnotatePosts(ctx context.Context, viewer uint, posts []Post) error {
	for index := range posts {
		posts[index].IsLiked = false
		posts[index].IsBookmarked = false
	}
	if viewer == 0 || len(posts) == 0 {
		return nil
	}
	ids := make([]uint, len(posts))
	for index, post := range posts {
		ids[index] = post.ID
	}

	liked, err := s.reactedTargets(ctx, viewer, target.KindPost, ids)
	if err != nil {
		s.logError(opAnnotatePosts, "reactions_failed", err, zap.Uint("viewer", viewer))
		return newServiceError(opAnnotatePosts, "reactions_failed", err)
	}
	var bookmarked []uint
	err = s.db.WithContext(ctx).
		Model(&Bookmark{}).
		Where("user_id = ? AND post_id IN ?", viewer, ids).
		Pluck("post_id", &bookmarked).Error
	if err != nil {
		s.logError(opAnnotatePosts, "bookmarks_failed", err, zap.Uint("viewer", viewer))
		return newServiceError(opAnnotatePosts, "bookmarks_failed", err)
	}
	saved := idSet(bookmarked)

	for index := range posts {
		_, posts[index].IsLiked = liked[posts[index].ID]
		_, posts[index].IsBookmarked = saved[posts[index].ID]
	}
	return nil
}

// AnnotateComments sets IsLiked on comments for viewer with a single query.
func (s *Service) AnnotateComments(ctx context.Context, viewer uint, comments []Comment) error {
	for index := range comments {
		comments[index].IsLiked = false
	}
	if viewer == 0 || len(comments) == 0 {
		return nil
	}
	ids := make([]uint, len(comments))
	for index, comment := range comments {
		ids[index] = comment.ID
	}

	liked, err := s.reactedTargets(ctx, viewer, target.KindComment, ids)
	if err != nil {
		s.logError(opAnnotateComments, "reactions_failed", err, zap.Uint("viewer", viewer))
		return newServiceError(opAnnotateComments, "reactions_failed", err)
	}
	for index := range comments {
		_, comments[index].IsLiked = liked[comments[index].ID]
	}
	return nil
}

// reactedTargets returns the ids among ids that viewer reacted to, whatever
// the reaction type.
func (s *Service) reactedTargets(ctx context.Context, viewer uint, kind target.Kind, ids []uint) (map[uint]struct{}, error) {
	var reacted []uint
	err := s.db.WithContext(ctx).
		Model(&Reaction{}).
		Where("user_id = ? AND target_type = ? AND target_id IN ?", viewer, string(kind), ids).
		Pluck("target_id", &reacted).Error
	if err != nil {
		return nil, err
	}
	return idSet(reacted), nil
}

func idSet(ids []uint) map[uint]struct{} {
	set := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
