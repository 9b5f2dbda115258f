package users

import (
	"context"

	"github.com/AbassKoyang/swirl-backend/internal/notifications"
	"github.com/AbassKoyang/swirl-backend/internal/target"
	"go.uber.org/zap"
)

// RecordSession records the session event for userID: sign_up for a user who
// has never been notified, log_in otherwise. The event has no target, so it is
// recorded even though the user is both actor and recipient.
func (s *Service) RecordSession(ctx context.Context, userID uint) (notifications.Action, error) {
	if err := s.requireUser(ctx, opRecordSession, userID); err != nil {
		return "", err
	}

	var previous int64
	err := s.db.WithContext(ctx).
		Model(&notifications.Notification{}).
		Where("recipient_id = ?", userID).
		Count(&previous).Error
	if err != nil {
		s.logError(opRecordSession, "query_failed", err, zap.Uint("user_id", userID))
		return "", newServiceError(opRecordSession, "query_failed", err)
	}

	action := notifications.ActionLogIn
	if previous == 0 {
		action = notifications.ActionSignUp
	}
	if s.emitter != nil {
		s.emitter.Emit(ctx, notifications.Event{
			Recipient: userID,
			Actor:     userID,
			Action:    action,
			Target:    target.None(),
		})
	}
	return action, nil
}
