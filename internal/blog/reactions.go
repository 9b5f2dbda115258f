package blog

import (
	"context"
	"errors"
	"time"

	"github.com/AbassKoyang/swirl-backend/internal/ledger"
	"github.com/AbassKoyang/swirl-backend/internal/notifications"
	"github.com/AbassKoyang/swirl-backend/internal/paging"
	"github.com/AbassKoyang/swirl-backend/internal/target"
	"github.com/AbassKoyang/swirl-backend/internal/toggle"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	opReact         = "blog.react"
	opListReactions = "blog.list_reactions"
)

// ReactionResult is the toggle outcome plus the target's fresh reaction count.
type ReactionResult struct {
	Outcome       toggle.Outcome
	ReactionCount int64
}

type reactionRelation struct {
	userID  uint
	ref     target.Ref
	ownerID uint
	counter ledger.Counter
	now     func() time.Time
}

func (r reactionRelation) Name() string { return "reaction" }

func (r reactionRelation) scope(tx *gorm.DB) *gorm.DB {
	return tx.Model(&Reaction{}).Where("user_id = ? AND target_type = ? AND target_id = ?", r.userID, string(r.ref.Kind), r.ref.ID)
}

func (r reactionRelation) Find(_ context.Context, tx *gorm.DB) (toggle.State, error) {
	var reaction Reaction
	err := r.scope(tx).Take(&reaction).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return toggle.Absent, nil
	}
	if err != nil {
		return toggle.State{}, err
	}
	return toggle.Present(string(reaction.Type)), nil
}

func (r reactionRelation) Create(_ context.Context, tx *gorm.DB, payload string) error {
	return tx.Create(&Reaction{
		UserID:     r.userID,
		TargetType: string(r.ref.Kind),
		TargetID:   r.ref.ID,
		Type:       ReactionType(payload),
		CreatedAt:  r.now(),
	}).Error
}

func (r reactionRelation) Delete(_ context.Context, tx *gorm.DB) (bool, error) {
	result := tx.Where("user_id = ? AND target_type = ? AND target_id = ?", r.userID, string(r.ref.Kind), r.ref.ID).Delete(&Reaction{})
	return result.RowsAffected > 0, result.Error
}

func (r reactionRelation) SetPayload(_ context.Context, tx *gorm.DB, payload string) error {
	return r.scope(tx).UpdateColumn("reaction_type", payload).Error
}

func (r reactionRelation) Counters() []toggle.CounterRef {
	return []toggle.CounterRef{{Counter: r.counter, ID: r.ref.ID}}
}

func (r reactionRelation) Notification() (notifications.Event, bool) {
	return notifications.Event{
		Recipient: r.ownerID,
		Actor:     r.userID,
		Action:    notifications.ActionReaction,
		Target:    r.ref,
	}, true
}

// React toggles actorID's reaction on a post or comment: a new reaction is
// created, repeating the same type removes it, and a different type replaces
// it in place.
func (s *Service) React(ctx context.Context, actorID uint, ref target.Ref, rawType string) (ReactionResult, error) {
	reactionType, err := ParseReactionType(rawType)
	if err != nil {
		return ReactionResult{}, newServiceError(opReact, "invalid_type", err)
	}
	relation, err := s.reactionRelation(ctx, actorID, ref)
	if err != nil {
		return ReactionResult{}, err
	}

	outcome, err := s.toggles.Apply(ctx, relation, string(reactionType))
	if err != nil {
		s.logError(opReact, "toggle_failed", err, zap.String("target", ref.String()))
		return ReactionResult{}, newServiceError(opReact, "toggle_failed", err)
	}

	count, err := s.reactionCount(ctx, relation.counter, ref.ID)
	if err != nil {
		return ReactionResult{}, newServiceError(opReact, "query_failed", err)
	}
	return ReactionResult{Outcome: outcome, ReactionCount: count}, nil
}

// ListReactions returns the reactions on a target, optionally of one type.
func (s *Service) ListReactions(ctx context.Context, ref target.Ref, rawType string, page paging.Page) ([]Reaction, error) {
	if _, err := s.reactionRelation(ctx, 0, ref); err != nil {
		return nil, err
	}
	query := s.db.WithContext(ctx).
		Preload("User").
		Where("target_type = ? AND target_id = ?", string(ref.Kind), ref.ID)
	if rawType != "" {
		reactionType, err := ParseReactionType(rawType)
		if err != nil {
			return nil, newServiceError(opListReactions, "invalid_type", err)
		}
		query = query.Where("reaction_type = ?", reactionType)
	}
	var reactions []Reaction
	if err := query.Order("created_at DESC").Order("id DESC").Scopes(page.Scope).Find(&reactions).Error; err != nil {
		s.logError(opListReactions, "query_failed", err, zap.String("target", ref.String()))
		return nil, newServiceError(opListReactions, "query_failed", err)
	}
	return reactions, nil
}

// reactionRelation resolves the target, its owner and its counter.
func (s *Service) reactionRelation(ctx context.Context, actorID uint, ref target.Ref) (reactionRelation, error) {
	relation := reactionRelation{userID: actorID, ref: ref, now: s.clock}
	switch ref.Kind {
	case target.KindPost:
		post, err := s.activePost(ctx, s.db, opReact, ref.ID)
		if err != nil {
			return reactionRelation{}, err
		}
		relation.ownerID = post.AuthorID
		relation.counter = ledger.PostReactions
	case target.KindComment:
		comment, err := s.findComment(ctx, opReact, ref.ID)
		if err != nil {
			return reactionRelation{}, err
		}
		relation.ownerID = comment.UserID
		relation.counter = ledger.CommentReactions
	default:
		return reactionRelation{}, newServiceError(opReact, "unsupported_target", ErrUnsupportedTarget)
	}
	return relation, nil
}

func (s *Service) reactionCount(ctx context.Context, counter ledger.Counter, id uint) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Table(counter.Table()).
		Where("id = ?", id).
		Select(counter.Column()).
		Row().
		Scan(&count)
	return count, err
}
