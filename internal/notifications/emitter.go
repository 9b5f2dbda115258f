package notifications

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// FailureRecorder observes emission failures.
type FailureRecorder interface {
	NotificationFailed(action string)
}

// EmitterConfig describes dependencies for an Emitter.
type EmitterConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
	Recorder FailureRecorder
}

// Emitter records notification events on a best-effort basis.
type Emitter struct {
	db       *gorm.DB
	clock    func() time.Time
	logger   *zap.Logger
	recorder FailureRecorder
}

// NewEmitter constructs an Emitter.
func NewEmitter(cfg EmitterConfig) (*Emitter, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("notifications: database connection required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Emitter{db: cfg.Database, clock: clock, logger: logger, recorder: cfg.Recorder}, nil
}

// Emit records the event unless it is a suppressed self-action. Failures are
// logged and counted, never returned: the caller's primary action has already
// succeeded.
func (e *Emitter) Emit(ctx context.Context, event Event) {
	if event.Suppressed() {
		return
	}
	defer func() {
		if recovered := recover(); recovered != nil {
			e.fail(event, fmt.Errorf("panic: %v", recovered))
		}
	}()

	notification := event.record(e.clock())
	if err := e.db.WithContext(ctx).Create(&notification).Error; err != nil {
		e.fail(event, err)
	}
}

func (e *Emitter) fail(event Event, err error) {
	e.logger.Warn("notification emission failed",
		zap.String("action", string(event.Action)),
		zap.Uint("recipient_id", event.Recipient),
		zap.Uint("actor_id", event.Actor),
		zap.String("target", event.Target.String()),
		zap.Error(err),
	)
	if e.recorder != nil {
		e.recorder.NotificationFailed(string(event.Action))
	}
}
