// Package app assembles the domain services over a shared database handle.
package app

import (
	"fmt"
	"time"

	"github.com/AbassKoyang/swirl-backend/internal/blog"
	"github.com/AbassKoyang/swirl-backend/internal/feeds"
	"github.com/AbassKoyang/swirl-backend/internal/ledger"
	"github.com/AbassKoyang/swirl-backend/internal/metrics"
	"github.com/AbassKoyang/swirl-backend/internal/notifications"
	"github.com/AbassKoyang/swirl-backend/internal/search"
	"github.com/AbassKoyang/swirl-backend/internal/toggle"
	"github.com/AbassKoyang/swirl-backend/internal/users"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ServicesConfig describes the shared dependencies of the domain services.
// Metrics and Clock are optional.
type ServicesConfig struct {
	Database *gorm.DB
	Metrics  *metrics.Collectors
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Services holds one instance of every domain service.
type Services struct {
	Ledger        *ledger.Ledger
	Emitter       *notifications.Emitter
	Toggles       *toggle.Engine
	Users         *users.Service
	Blog          *blog.Service
	Feeds         *feeds.Composer
	Notifications *notifications.Service
	Search        *search.Service
}

// NewServices wires the domain services together.
func NewServices(cfg ServicesConfig) (*Services, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("app: database connection required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	emitterConfig := notifications.EmitterConfig{
		Database: cfg.Database,
		Clock:    cfg.Clock,
		Logger:   logger.Named("notifications"),
	}
	ledgerConfig := ledger.Config{Logger: logger.Named("ledger")}
	engineConfig := toggle.EngineConfig{Database: cfg.Database, Logger: logger.Named("toggle")}
	if cfg.Metrics != nil {
		emitterConfig.Recorder = cfg.Metrics
		ledgerConfig.Recorder = cfg.Metrics
		engineConfig.Recorder = cfg.Metrics
	}

	emitter, err := notifications.NewEmitter(emitterConfig)
	if err != nil {
		return nil, err
	}
	counters := ledger.New(ledgerConfig)
	engineConfig.Ledger = counters
	engineConfig.Emitter = emitter
	engine, err := toggle.NewEngine(engineConfig)
	if err != nil {
		return nil, err
	}

	userService, err := users.NewService(users.ServiceConfig{
		Database: cfg.Database,
		Toggles:  engine,
		Emitter:  emitter,
		Clock:    cfg.Clock,
		Logger:   logger.Named("users"),
	})
	if err != nil {
		return nil, err
	}
	blogService, err := blog.NewService(blog.ServiceConfig{
		Database: cfg.Database,
		Ledger:   counters,
		Toggles:  engine,
		Emitter:  emitter,
		Clock:    cfg.Clock,
		Logger:   logger.Named("blog"),
	})
	if err != nil {
		return nil, err
	}
	composer, err := feeds.NewComposer(feeds.ComposerConfig{
		Database: cfg.Database,
		Follows:  userService,
		Clock:    cfg.Clock,
		Logger:   logger.Named("feeds"),
	})
	if err != nil {
		return nil, err
	}
	notificationService, err := notifications.NewService(notifications.ServiceConfig{
		Database: cfg.Database,
		Logger:   logger.Named("notifications"),
	})
	if err != nil {
		return nil, err
	}
	searchService, err := search.NewService(search.ServiceConfig{
		Database: cfg.Database,
		Logger:   logger.Named("search"),
	})
	if err != nil {
		return nil, err
	}

	return &Services{
		Ledger:        counters,
		Emitter:       emitter,
		Toggles:       engine,
		Users:         userService,
		Blog:          blogService,
		Feeds:         composer,
		Notifications: notificationService,
		Search:        searchService,
	}, nil
}
