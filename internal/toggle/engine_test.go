package toggle

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/AbassKoyang/swirl-backend/internal/notifications"
	"github.com/AbassKoyang/swirl-backend/internal/target"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type memoryRelation struct {
	state         State
	createErrs    []error
	deleteMissing bool
	creates       int
	deletes       int
	switches      int
}

func (r *memoryRelation) Name() string { return "memory" }

func (r *memoryRelation) Find(context.Context, *gorm.DB) (State, error) {
	return r.state, nil
}

func (r *memoryRelation) Create(_ context.Context, _ *gorm.DB, payload string) error {
	if len(r.createErrs) > 0 {
		err := r.createErrs[0]
		r.createErrs = r.createErrs[1:]
		if err != nil {
			r.state = Present("winner")
			return err
		}
	}
	r.creates++
	r.state = Present(payload)
	return nil
}

func (r *memoryRelation) Delete(context.Context, *gorm.DB) (bool, error) {
	if r.deleteMissing {
		return false, nil
	}
	r.deletes++
	r.state = Absent
	return true, nil
}

func (r *memoryRelation) SetPayload(_ context.Context, _ *gorm.DB, payload string) error {
	r.switches++
	r.state = Present(payload)
	return nil
}

func (r *memoryRelation) Counters() []CounterRef { return nil }

func (r *memoryRelation) Notification() (notifications.Event, bool) {
	return notifications.Event{Recipient: 2, Actor: 1, Action: notifications.ActionReaction, Target: target.Post(1)}, true
}

type recordingEmitter struct {
	events []notifications.Event
}

func (e *recordingEmitter) Emit(_ context.Context, event notifications.Event) {
	e.events = append(e.events, event)
}

type recordingTransitions struct {
	seen []string
}

func (r *recordingTransitions) ToggleTransition(relation, transition string) {
	r.seen = append(r.seen, relation+":"+transition)
}

func newTestEngine(t *testing.T, emitter Emitter, recorder TransitionRecorder) *Engine {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "toggle.db")), &gorm.Config{
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

	engine, err := NewEngine(EngineConfig{Database: db, Emitter: emitter, Recorder: recorder})
	if err != nil {
		t.Fatalf("failed to build engine: %v", err)
	}
	return engine
}

func TestApplyCyclesThroughTransitions(t *testing.T) {
	emitter := &recordingEmitter{}
	recorder := &recordingTransitions{}
	engine := newTestEngine(t, emitter, recorder)
	relation := &memoryRelation{}
	ctx := context.Background()

	steps := []struct {
		payload string
		want    Transition
		present bool
	}{
		{payload: "upvote", want: TransitionCreated, present: true},
		{payload: "downvote", want: TransitionSwitched, present: true},
		{payload: "downvote", want: TransitionRemoved, present: false},
		{payload: "upvote", want: TransitionCreated, present: true},
	}
	for index, step := range steps {
		outcome, err := engine.Apply(ctx, relation, step.payload)
		if err != nil {
			t.Fatalf("step %d: unexpected error: %v", index, err)
		}
		if outcome.Transition != step.want || outcome.Present != step.present {
			t.Fatalf("step %d: expected %s present=%v, got %+v", index, step.want, step.present, outcome)
		}
	}

	if len(emitter.events) != 2 {
		t.Fatalf("expected notifications only on creation, got %d", len(emitter.events))
	}
	if len(recorder.seen) != len(steps) || recorder.seen[1] != "memory:switched" {
		t.Fatalf("unexpected recorded transitions %v", recorder.seen)
	}
}

func TestApplySettlesDuplicateKeyAsAlreadyApplied(t *testing.T) {
	emitter := &recordingEmitter{}
	engine := newTestEngine(t, emitter, nil)
	relation := &memoryRelation{createErrs: []error{gorm.ErrDuplicatedKey}}

	outcome, err := engine.Apply(context.Background(), relation, "upvote")
	if err != nil {
		t.Fatalf("duplicate key must not surface, got %v", err)
	}
	if outcome.Transition != TransitionNone || !outcome.Present || outcome.Payload != "winner" {
		t.Fatalf("expected settled outcome reporting the winner, got %+v", outcome)
	}
	if relation.creates != 0 || relation.deletes != 0 {
		t.Fatalf("expected no further writes, creates=%d deletes=%d", relation.creates, relation.deletes)
	}
	if len(emitter.events) != 0 {
		t.Fatalf("losing writer must not notify")
	}
}

func TestApplyPropagatesOtherErrors(t *testing.T) {
	engine := newTestEngine(t, nil, nil)
	boom := errors.New("boom")
	relation := &memoryRelation{createErrs: []error{boom}}

	if _, err := engine.Apply(context.Background(), relation, ""); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestApplyConcurrentDeleteSettlesAsNone(t *testing.T) {
	engine := newTestEngine(t, nil, nil)
	relation := &memoryRelation{state: Present(""), deleteMissing: true}

	outcome, err := engine.Apply(context.Background(), relation, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Transition != TransitionNone || outcome.Present {
		t.Fatalf("expected none/absent, got %+v", outcome)
	}
}

func TestRemove(t *testing.T) {
	engine := newTestEngine(t, nil, nil)
	ctx := context.Background()

	if err := engine.Remove(ctx, &memoryRelation{}); !errors.Is(err, ErrRelationNotFound) {
		t.Fatalf("expected not found for absent relation, got %v", err)
	}
	if err := engine.Remove(ctx, &memoryRelation{state: Present(""), deleteMissing: true}); !errors.Is(err, ErrRelationNotFound) {
		t.Fatalf("expected not found for raced delete, got %v", err)
	}

	relation := &memoryRelation{state: Present("")}
	if err := engine.Remove(ctx, relation); err != nil {
		t.Fatalf("unexpected remove error: %v", err)
	}
	if relation.state.Present || relation.deletes != 1 {
		t.Fatalf("expected relation removed, got %+v", relation)
	}
}

func TestIsDuplicateKey(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "translated", err: gorm.ErrDuplicatedKey, want: true},
		{name: "sqlite-message", err: errors.New("constraint failed: UNIQUE constraint failed: follows.follower_id (2067)"), want: true},
		{name: "postgres-message", err: errors.New(`ERROR: duplicate key value violates unique constraint "idx_follows_pair"`), want: true},
		{name: "other", err: errors.New("connection reset"), want: false},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if got := IsDuplicateKey(testCase.err); got != testCase.want {
				t.Fatalf("expected %v, got %v", testCase.want, got)
			}
		})
	}
}
