package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AbassKoyang/swirl-backend/internal/auth"
	"github.com/AbassKoyang/swirl-backend/internal/toggle"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	opResolve        = "users.resolve"
	opGet            = "users.get"
	opFollow         = "users.follow"
	opUnfollow       = "users.unfollow"
	opIsFollowing    = "users.is_following"
	opListFollowers  = "users.list_followers"
	opListFollowing  = "users.list_following"
	opFollowingIDs   = "users.following_ids"
	opRecordSession  = "users.record_session"
	defaultProvider  = "default"
	nameColumnLength = 30
)

// ServiceConfig describes the dependencies required for user operations.
type ServiceConfig struct {
	Database *gorm.DB
	Toggles  *toggle.Engine
	Emitter  toggle.Emitter
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service manages accounts, follow relations and session events.
type Service struct {
	db      *gorm.DB
	toggles *toggle.Engine
	emitter toggle.Emitter
	now     func() time.Time
	logger  *zap.Logger
}

// NewService constructs the user service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("users: database connection required")
	}
	if cfg.Toggles == nil {
		return nil, fmt.Errorf("users: toggle engine required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:      cfg.Database,
		toggles: cfg.Toggles,
		emitter: cfg.Emitter,
		now:     clock,
		logger:  logger,
	}, nil
}

// ResolveUserID returns the user id for the provided session claims. It
// provisions a user the first time a provider+subject pair is seen and
// refreshes the stored profile from the claims on every later call.
func (s *Service) ResolveUserID(ctx context.Context, claims auth.SessionClaims) (uint, error) {
	provider, subject := deriveProviderSubject(claims)
	if subject == "" {
		return 0, newServiceError(opResolve, "invalid_identity", ErrInvalidIdentity)
	}

	user, err := s.findByPrincipal(ctx, provider, subject)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user, err = s.provision(ctx, provider, subject, claims)
	} else if err == nil {
		s.syncProfile(ctx, user, claims)
	}
	if err != nil {
		s.logError(opResolve, "lookup_failed", err, zap.String("provider", provider))
		return 0, newServiceError(opResolve, "lookup_failed", err)
	}
	return user.ID, nil
}

func (s *Service) findByPrincipal(ctx context.Context, provider, subject string) (User, error) {
	var user User
	err := s.db.WithContext(ctx).
		Where("provider = ? AND subject = ?", provider, subject).
		Take(&user).
		Error
	return user, err
}

func (s *Service) provision(ctx context.Context, provider, subject string, claims auth.SessionClaims) (User, error) {
	now := s.now()
	user := User{
		Provider:      provider,
		Subject:       subject,
		Email:         normalize(claims.UserEmail),
		FirstName:     truncate(normalize(claims.UserFirstName), nameColumnLength),
		LastName:      truncate(normalize(claims.UserLastName), nameColumnLength),
		ProfilePicURL: normalize(claims.UserAvatarURL),
		LastSeenAt:    now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	err := s.db.WithContext(ctx).Create(&user).Error
	if toggle.IsDuplicateKey(err) {
		return s.findByPrincipal(ctx, provider, subject)
	}
	return user, err
}

func (s *Service) syncProfile(ctx context.Context, user User, claims auth.SessionClaims) {
	updates := map[string]interface{}{}
	if email := normalize(claims.UserEmail); email != "" && email != user.Email {
		updates["email"] = email
	}
	if first := truncate(normalize(claims.UserFirstName), nameColumnLength); first != "" && first != user.FirstName {
		updates["first_name"] = first
	}
	if last := truncate(normalize(claims.UserLastName), nameColumnLength); last != "" && last != user.LastName {
		updates["last_name"] = last
	}
	if avatar := normalize(claims.UserAvatarURL); avatar != "" && avatar != user.ProfilePicURL {
		updates["profile_pic_url"] = avatar
	}
	updates["last_seen_at"] = s.now()
	if err := s.db.WithContext(ctx).Model(&User{}).Where("id = ?", user.ID).Updates(updates).Error; err != nil {
		s.logger.Warn("user profile sync failed", zap.Uint("user_id", user.ID), zap.Error(err))
	}
}

// GetUser loads a user by id.
func (s *Service) GetUser(ctx context.Context, userID uint) (User, error) {
	var user User
	err := s.db.WithContext(ctx).Take(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, newServiceError(opGet, "not_found", ErrUserNotFound)
	}
	if err != nil {
		s.logError(opGet, "query_failed", err, zap.Uint("user_id", userID))
		return User{}, newServiceError(opGet, "query_failed", err)
	}
	return user, nil
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
	s.logger.Error("user operation failed", allFields...)
}

func deriveProviderSubject(claims auth.SessionClaims) (string, string) {
	provider := defaultProvider
	subject := normalize(claims.Subject)

	raw := normalize(claims.UserID)
	if raw != "" {
		if strings.Contains(raw, ":") {
			segments := strings.SplitN(raw, ":", 2)
			if normalize(segments[0]) != "" && normalize(segments[1]) != "" {
				provider = normalize(segments[0])
				subject = normalize(segments[1])
			}
		} else {
			subject = raw
		}
	}

	if subject == "" {
		subject = normalize(claims.UserEmail)
	}

	return provider, subject
}
