// Package ledger owns every mutation of the denormalized engagement counters.
// Each adjustment is a single conditional UPDATE evaluated by the database, so
// concurrent writers never lose updates and no counter is driven below zero.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrUnknownCounter indicates the counter is not part of the closed counter set.
var ErrUnknownCounter = errors.New("ledger: unknown counter")

// Counter names one counter column on one table.
type Counter struct {
	table  string
	column string
}

// Table returns the table holding the counter.
func (c Counter) Table() string { return c.table }

// Column returns the counter column.
func (c Counter) Column() string { return c.column }

// String renders the counter as table.column.
func (c Counter) String() string { return c.table + "." + c.column }

// The closed set of engagement counters.
var (
	PostComments     = Counter{table: "posts", column: "comment_count"}
	PostReactions    = Counter{table: "posts", column: "reaction_count"}
	PostBookmarks    = Counter{table: "posts", column: "bookmark_count"}
	PostViews        = Counter{table: "posts", column: "views_count"}
	CommentReplies   = Counter{table: "comments", column: "reply_count"}
	CommentReactions = Counter{table: "comments", column: "reaction_count"}
	CommentViews     = Counter{table: "comments", column: "views_count"}
	UserFollowers    = Counter{table: "users", column: "followers_count"}
	UserFollowing    = Counter{table: "users", column: "following_count"}
)

var knownCounters = map[Counter]struct{}{
	PostComments:     {},
	PostReactions:    {},
	PostBookmarks:    {},
	PostViews:        {},
	CommentReplies:   {},
	CommentReactions: {},
	CommentViews:     {},
	UserFollowers:    {},
	UserFollowing:    {},
}

// RejectionRecorder observes decrements refused by the non-negative guard.
type RejectionRecorder interface {
	CounterGuardRejected(counter string)
}

// Config describes optional collaborators for a Ledger.
type Config struct {
	Logger   *zap.Logger
	Recorder RejectionRecorder
}

// Ledger applies guarded counter deltas.
type Ledger struct {
	logger   *zap.Logger
	recorder RejectionRecorder
}

// New constructs a Ledger.
func New(cfg Config) *Ledger {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{logger: logger, recorder: cfg.Recorder}
}

// Adjust adds delta to the counter of the row identified by id. The database
// evaluates the addition; a negative delta only applies while the result stays
// non-negative. Adjust reports whether a row was changed. A missing row or a
// refused decrement yields false with a nil error.
//
// db may be a transaction handle; the update then commits or rolls back with it.
func (l *Ledger) Adjust(ctx context.Context, db *gorm.DB, counter Counter, id uint, delta int64) (bool, error) {
	if _, ok := knownCounters[counter]; !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownCounter, counter)
	}
	if delta == 0 {
		return true, nil
	}

	query := db.WithContext(ctx).Table(counter.table).Where("id = ?", id)
	if delta < 0 {
		query = query.Where(fmt.Sprintf("%s + ? >= 0", counter.column), delta)
	}
	result := query.UpdateColumn(counter.column, gorm.Expr(fmt.Sprintf("%s + ?", counter.column), delta))
	if result.Error != nil {
		return false, fmt.Errorf("ledger: adjust %s: %w", counter, result.Error)
	}
	if result.RowsAffected == 0 {
		if delta < 0 {
			l.logger.Debug("counter decrement skipped",
				zap.String("counter", counter.String()),
				zap.Uint("id", id),
				zap.Int64("delta", delta),
			)
			if l.recorder != nil {
				l.recorder.CounterGuardRejected(counter.String())
			}
		}
		return false, nil
	}
	return true, nil
}

// Increment adds one to the counter.
func (l *Ledger) Increment(ctx context.Context, db *gorm.DB, counter Counter, id uint) (bool, error) {
	return l.Adjust(ctx, db, counter, id, 1)
}

// Decrement subtracts one from the counter, flooring at zero.
func (l *Ledger) Decrement(ctx context.Context, db *gorm.DB, counter Counter, id uint) (bool, error) {
	return l.Adjust(ctx, db, counter, id, -1)
}
