package ledger

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// View counters have no backing relation and are left untouched.
var reconcileStatements = []struct {
	counter   Counter
	statement string
}{
	{
		counter:   PostComments,
		statement: "UPDATE posts SET comment_count = (SELECT COUNT(*) FROM comments WHERE comments.post_id = posts.id AND comments.parent_id IS NULL)",
	},
	{
		counter:   PostReactions,
		statement: "UPDATE posts SET reaction_count = (SELECT COUNT(*) FROM reactions WHERE reactions.target_type = 'post' AND reactions.target_id = posts.id)",
	},
	{
		counter:   PostBookmarks,
		statement: "UPDATE posts SET bookmark_count = (SELECT COUNT(*) FROM bookmarks WHERE bookmarks.post_id = posts.id)",
	},
	{
		counter:   CommentReplies,
		statement: "UPDATE comments SET reply_count = (SELECT COUNT(*) FROM comments AS replies WHERE replies.parent_id = comments.id)",
	},
	{
		counter:   CommentReactions,
		statement: "UPDATE comments SET reaction_count = (SELECT COUNT(*) FROM reactions WHERE reactions.target_type = 'comment' AND reactions.target_id = comments.id)",
	},
	{
		counter:   UserFollowers,
		statement: "UPDATE users SET followers_count = (SELECT COUNT(*) FROM follows WHERE follows.following_id = users.id)",
	},
	{
		counter:   UserFollowing,
		statement: "UPDATE users SET following_count = (SELECT COUNT(*) FROM follows WHERE follows.follower_id = users.id)",
	},
}

// Reconcile recomputes every relation-backed counter from the underlying rows.
// It returns the number of rows each statement touched, keyed by counter.
func (l *Ledger) Reconcile(ctx context.Context, db *gorm.DB) (map[string]int64, error) {
	touched := make(map[string]int64, len(reconcileStatements))
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, entry := range reconcileStatements {
			result := tx.Exec(entry.statement)
			if result.Error != nil {
				return fmt.Errorf("ledger: reconcile %s: %w", entry.counter, result.Error)
			}
			touched[entry.counter.String()] = result.RowsAffected
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	l.logger.Info("engagement counters reconciled", zap.Any("rows", touched))
	return touched, nil
}
