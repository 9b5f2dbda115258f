// Package ratelimit implements fixed-window request limits backed by redis.
package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultKeyPrefix = "rl"

// Rule is a request budget for one resource.
type Rule struct {
	Name   string
	Limit  int
	Window time.Duration
}

// Budgets applied to the API surface.
var (
	Reactions  = Rule{Name: "reactions", Limit: 60, Window: time.Minute}
	Comments   = Rule{Name: "comments", Limit: 30, Window: time.Minute}
	Bookmarks  = Rule{Name: "bookmarks", Limit: 30, Window: time.Minute}
	PostCreate = Rule{Name: "post_create", Limit: 10, Window: time.Minute}
	PostUpdate = Rule{Name: "post_update", Limit: 20, Window: time.Minute}
	Reads      = Rule{Name: "reads", Limit: 100, Window: time.Minute}
	Feeds      = Rule{Name: "feeds", Limit: 60, Window: time.Minute}
)

// Decision reports the outcome of one request against a rule.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// LimiterConfig describes the dependencies of a Limiter.
type LimiterConfig struct {
	Client    redis.Cmdable
	KeyPrefix string
	Logger    *zap.Logger
}

// Limiter counts requests per rule and subject in redis.
type Limiter struct {
	client redis.Cmdable
	prefix string
	logger *zap.Logger
}

// NewLimiter constructs a limiter.
func NewLimiter(cfg LimiterConfig) (*Limiter, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("ratelimit: redis client required")
	}
	prefix := strings.TrimSpace(cfg.KeyPrefix)
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Limiter{client: cfg.Client, prefix: prefix, logger: logger}, nil
}

// Allow counts one request by subject against rule. The window starts with
// the first request and the counter expires with it.
func (l *Limiter) Allow(ctx context.Context, rule Rule, subject string) (Decision, error) {
	if rule.Limit <= 0 || rule.Window <= 0 {
		return Decision{}, fmt.Errorf("ratelimit: rule %q needs a positive limit and window", rule.Name)
	}
	key := l.key(rule, subject)

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit: incr %s: %w", key, err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, rule.Window).Err(); err != nil {
			return Decision{}, fmt.Errorf("ratelimit: expire %s: %w", key, err)
		}
	}

	if count <= int64(rule.Limit) {
		return Decision{Allowed: true, Remaining: rule.Limit - int(count)}, nil
	}

	retryAfter, err := l.client.TTL(ctx, key).Result()
	if err != nil || retryAfter < 0 {
		retryAfter = rule.Window
	}
	l.logger.Debug("rate limit exceeded",
		zap.String("rule", rule.Name),
		zap.String("subject", subject),
		zap.Int64("count", count),
	)
	return Decision{Allowed: false, RetryAfter: retryAfter}, nil
}

func (l *Limiter) key(rule Rule, subject string) string {
	return fmt.Sprintf("%s:%s:%s", l.prefix, rule.Name, subject)
}
