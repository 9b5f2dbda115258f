package notifications

import (
	"context"
	"errors"
	"fmt"

	"github.com/AbassKoyang/swirl-backend/internal/paging"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	opList        = "notifications.list"
	opMarkRead    = "notifications.mark_read"
	opMarkAllRead = "notifications.mark_all_read"
	opUnreadCount = "notifications.unread_count"
	opHasAny      = "notifications.has_any"
)

// ServiceConfig describes dependencies for the notification read service.
type ServiceConfig struct {
	Database *gorm.DB
	Logger   *zap.Logger
}

// Service exposes a recipient's notifications.
type Service struct {
	db     *gorm.DB
	logger *zap.Logger
}

// MarkReadResult reports the outcome of marking one notification read.
type MarkReadResult struct {
	Notification Notification
	AlreadyRead  bool
}

// NewService constructs the notification service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("notifications: database connection required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: cfg.Database, logger: logger}, nil
}

// List returns the recipient's notifications newest first.
func (s *Service) List(ctx context.Context, recipientID uint, unreadOnly bool, page paging.Page) ([]Notification, error) {
	query := s.db.WithContext(ctx).Where("recipient_id = ?", recipientID)
	if unreadOnly {
		query = query.Where("is_read = ?", false)
	}
	var notifications []Notification
	if err := query.Order("created_at DESC").Order("id DESC").Scopes(page.Scope).Find(&notifications).Error; err != nil {
		s.logError(opList, "query_failed", err, zap.Uint("recipient_id", recipientID))
		return nil, newServiceError(opList, "query_failed", err)
	}
	return notifications, nil
}

// MarkRead flips is_read on one of the recipient's notifications.
func (s *Service) MarkRead(ctx context.Context, recipientID, notificationID uint) (MarkReadResult, error) {
	var notification Notification
	err := s.db.WithContext(ctx).
		Where("id = ? AND recipient_id = ?", notificationID, recipientID).
		Take(&notification).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return MarkReadResult{}, newServiceError(opMarkRead, "not_found", ErrNotificationNotFound)
	}
	if err != nil {
		s.logError(opMarkRead, "query_failed", err, zap.Uint("notification_id", notificationID))
		return MarkReadResult{}, newServiceError(opMarkRead, "query_failed", err)
	}
	if notification.IsRead {
		return MarkReadResult{Notification: notification, AlreadyRead: true}, nil
	}
	if err := s.db.WithContext(ctx).Model(&notification).UpdateColumn("is_read", true).Error; err != nil {
		s.logError(opMarkRead, "update_failed", err, zap.Uint("notification_id", notificationID))
		return MarkReadResult{}, newServiceError(opMarkRead, "update_failed", err)
	}
	notification.IsRead = true
	return MarkReadResult{Notification: notification}, nil
}

// MarkAllRead marks every unread notification of the recipient and returns how many changed.
func (s *Service) MarkAllRead(ctx context.Context, recipientID uint) (int64, error) {
	result := s.db.WithContext(ctx).
		Model(&Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		UpdateColumn("is_read", true)
	if result.Error != nil {
		s.logError(opMarkAllRead, "update_failed", result.Error, zap.Uint("recipient_id", recipientID))
		return 0, newServiceError(opMarkAllRead, "update_failed", result.Error)
	}
	return result.RowsAffected, nil
}

// UnreadCount returns the number of unread notifications.
func (s *Service) UnreadCount(ctx context.Context, recipientID uint) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Count(&count).Error
	if err != nil {
		s.logError(opUnreadCount, "query_failed", err, zap.Uint("recipient_id", recipientID))
		return 0, newServiceError(opUnreadCount, "query_failed", err)
	}
	return count, nil
}

// HasAny reports whether the recipient has ever received a notification.
func (s *Service) HasAny(ctx context.Context, recipientID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&Notification{}).
		Where("recipient_id = ?", recipientID).
		Count(&count).Error
	if err != nil {
		return false, newServiceError(opHasAny, "query_failed", err)
	}
	return count > 0, nil
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
	s.logger.Error("notification operation failed", allFields...)
}
