package blog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AbassKoyang/swirl-backend/internal/ledger"
	"github.com/AbassKoyang/swirl-backend/internal/notifications"
	"github.com/AbassKoyang/swirl-backend/internal/toggle"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ServiceConfig describes the dependencies required by the blog service.
type ServiceConfig struct {
	Database   *gorm.DB
	Ledger     *ledger.Ledger
	Toggles    *toggle.Engine
	Emitter    toggle.Emitter
	Clock      func() time.Time
	IDProvider func() string
	Logger     *zap.Logger
}

// Service implements posts, comments, reactions, bookmarks and taxonomy.
type Service struct {
	db         *gorm.DB
	ledger     *ledger.Ledger
	toggles    *toggle.Engine
	emitter    toggle.Emitter
	clock      func() time.Time
	idProvider func() string
	logger     *zap.Logger
}

// NewService constructs the blog service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("blog: database connection required")
	}
	if cfg.Toggles == nil {
		return nil, fmt.Errorf("blog: toggle engine required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	counters := cfg.Ledger
	if counters == nil {
		counters = ledger.New(ledger.Config{Logger: logger})
	}
	clock := cfg.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	idProvider := cfg.IDProvider
	if idProvider == nil {
		idProvider = func() string { return strings.ReplaceAll(uuid.NewString(), "-", "")[:8] }
	}
	return &Service{
		db:         cfg.Database,
		ledger:     counters,
		toggles:    cfg.Toggles,
		emitter:    cfg.Emitter,
		clock:      clock,
		idProvider: idProvider,
		logger:     logger,
	}, nil
}

func (s *Service) emit(ctx context.Context, event notifications.Event) {
	if s.emitter != nil {
		s.emitter.Emit(ctx, event)
	}
}

// queryError converts a lookup failure to a service error, mapping missing rows to notFound.
func (s *Service) queryError(operation string, err error, notFound error, fields ...zap.Field) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return newServiceError(operation, "not_found", notFound)
	}
	s.logError(operation, "query_failed", err, fields...)
	return newServiceError(operation, "query_failed", err)
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	if err == nil {
		return
	}
	allFields := append([]zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}, fields...)
	allFields = append(allFields, zap.Error(err))
	s.logger.Error("blog operation failed", allFields...)
}
