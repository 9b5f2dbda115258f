package database

import (
	"context"
	"errors"
	"time"

	"github.com/AbassKoyang/swirl-backend/internal/ledger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationReconcileEngagementCounters = "2026-10-01_reconcile_engagement_counters"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(context.Context, *gorm.DB, *zap.Logger) error
}

func migrations() []migrationDefinition {
	return []migrationDefinition{
		{name: migrationReconcileEngagementCounters, apply: reconcileEngagementCounters},
	}
}

func applyMigrations(ctx context.Context, db *gorm.DB, logger *zap.Logger) error {
	for _, migration := range migrations() {
		var record migrationRecord
		err := db.WithContext(ctx).Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(ctx, db, logger); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.WithContext(ctx).Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		logger.Info("database migration applied", zap.String("migration", migration.name))
	}
	return nil
}

// reconcileEngagementCounters rebuilds the stored counters from relation rows
// for databases populated before counters were maintained atomically.
func reconcileEngagementCounters(ctx context.Context, db *gorm.DB, logger *zap.Logger) error {
	updated, err := ledger.New(ledger.Config{Logger: logger}).Reconcile(ctx, db)
	if err != nil {
		return err
	}
	for counter, rows := range updated {
		logger.Debug("counter reconciled", zap.String("counter", counter), zap.Int64("rows", rows))
	}
	return nil
}
