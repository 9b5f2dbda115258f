package toggle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/AbassKoyang/swirl-backend/internal/ledger"
	"github.com/AbassKoyang/swirl-backend/internal/notifications"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrRelationNotFound indicates a removal targeted a relation that is absent.
var ErrRelationNotFound = errors.New("toggle: relation not found")

// CounterRef addresses one counter on one row.
type CounterRef struct {
	Counter ledger.Counter
	ID      uint
}

// Relation adapts one user-to-target relation row for the engine. All methods
// receive the transaction handle the engine is running in.
type Relation interface {
	// Name labels the relation in logs and metrics.
	Name() string
	Find(ctx context.Context, tx *gorm.DB) (State, error)
	Create(ctx context.Context, tx *gorm.DB, payload string) error
	// Delete reports false when no row was removed.
	Delete(ctx context.Context, tx *gorm.DB) (bool, error)
	SetPayload(ctx context.Context, tx *gorm.DB, payload string) error
	// Counters lists the counters that track the relation's presence.
	Counters() []CounterRef
	// Notification returns the event recorded when the relation is created.
	Notification() (notifications.Event, bool)
}

// Emitter records notification events.
type Emitter interface {
	Emit(ctx context.Context, event notifications.Event)
}

// TransitionRecorder observes applied transitions.
type TransitionRecorder interface {
	ToggleTransition(relation, transition string)
}

// Outcome describes the final state after a toggle.
type Outcome struct {
	Transition Transition
	Present    bool
	Payload    string
}

// EngineConfig describes dependencies for the Engine.
type EngineConfig struct {
	Database *gorm.DB
	Ledger   *ledger.Ledger
	Emitter  Emitter
	Recorder TransitionRecorder
	Logger   *zap.Logger
}

// Engine executes relation toggles inside a single transaction per attempt.
type Engine struct {
	db       *gorm.DB
	ledger   *ledger.Ledger
	emitter  Emitter
	recorder TransitionRecorder
	logger   *zap.Logger
}

// NewEngine constructs an Engine.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("toggle: database connection required")
	}
	counters := cfg.Ledger
	if counters == nil {
		counters = ledger.New(ledger.Config{Logger: cfg.Logger})
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		db:       cfg.Database,
		ledger:   counters,
		emitter:  cfg.Emitter,
		recorder: cfg.Recorder,
		logger:   logger,
	}, nil
}

// Apply toggles the relation towards payload. When a concurrent request wins
// the uniqueness race on create, the request is treated as already applied:
// the relation is re-read and reported unchanged.
func (e *Engine) Apply(ctx context.Context, relation Relation, payload string) (Outcome, error) {
	outcome, err := e.applyOnce(ctx, relation, payload)
	if IsDuplicateKey(err) {
		e.logger.Debug("toggle create collided with a concurrent writer",
			zap.String("relation", relation.Name()),
		)
		outcome, err = e.settle(ctx, relation)
	}
	if err != nil {
		return Outcome{}, err
	}

	e.observe(relation, outcome.Transition)
	if outcome.Transition == TransitionCreated && e.emitter != nil {
		if event, ok := relation.Notification(); ok {
			e.emitter.Emit(ctx, event)
		}
	}
	return outcome, nil
}

func (e *Engine) settle(ctx context.Context, relation Relation) (Outcome, error) {
	state, err := relation.Find(ctx, e.db.WithContext(ctx))
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Transition: TransitionNone, Present: state.Present, Payload: state.Payload}, nil
}

// Remove deletes the relation. An absent relation, including one removed by a
// concurrent request, yields ErrRelationNotFound.
func (e *Engine) Remove(ctx context.Context, relation Relation) error {
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		state, err := relation.Find(ctx, tx)
		if err != nil {
			return err
		}
		if !state.Present {
			return ErrRelationNotFound
		}
		deleted, err := relation.Delete(ctx, tx)
		if err != nil {
			return err
		}
		if !deleted {
			return ErrRelationNotFound
		}
		return e.adjustCounters(ctx, tx, relation, -1)
	})
	if err != nil {
		return err
	}
	e.observe(relation, TransitionRemoved)
	return nil
}

func (e *Engine) applyOnce(ctx context.Context, relation Relation, payload string) (Outcome, error) {
	var outcome Outcome
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		state, err := relation.Find(ctx, tx)
		if err != nil {
			return err
		}

		transition := Decide(state, payload)
		switch transition {
		case TransitionCreated:
			if err := relation.Create(ctx, tx, payload); err != nil {
				return err
			}
			outcome = Outcome{Transition: transition, Present: true, Payload: payload}
		case TransitionRemoved:
			deleted, err := relation.Delete(ctx, tx)
			if err != nil {
				return err
			}
			if !deleted {
				outcome = Outcome{Transition: TransitionNone}
				return nil
			}
			outcome = Outcome{Transition: transition}
		case TransitionSwitched:
			if err := relation.SetPayload(ctx, tx, payload); err != nil {
				return err
			}
			outcome = Outcome{Transition: transition, Present: true, Payload: payload}
			return nil
		}
		return e.adjustCounters(ctx, tx, relation, transition.CounterDelta())
	})
	if err != nil {
		return Outcome{}, err
	}
	return outcome, nil
}

func (e *Engine) adjustCounters(ctx context.Context, tx *gorm.DB, relation Relation, delta int64) error {
	if delta == 0 {
		return nil
	}
	for _, ref := range relation.Counters() {
		if _, err := e.ledger.Adjust(ctx, tx, ref.Counter, ref.ID, delta); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) observe(relation Relation, transition Transition) {
	if e.recorder != nil {
		e.recorder.ToggleTransition(relation.Name(), string(transition))
	}
}

// IsDuplicateKey reports whether err is a unique-constraint violation. gorm
// translates driver errors when TranslateError is enabled; the message checks
// cover connections opened without it.
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key value")
}
