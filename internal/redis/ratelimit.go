package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Rate limit key patterns:
// - ratelimit:comments:{user_id} - comments posted in the current window
// - ratelimit:refresh:{ip}       - token refreshes in the current window

// fixedWindow counts one hit and starts the window on the first one. It
// returns {count, pttl}; the caller decides whether count is over the limit.
var fixedWindow = goredis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local pttl = redis.call('PTTL', KEYS[1])
if pttl < 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
	pttl = tonumber(ARGV[1])
end
return {count, pttl}
`)

type RateLimitConfig struct {
	CommentLimit  int
	CommentWindow time.Duration
	RefreshLimit  int
	RefreshWindow time.Duration
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		CommentLimit:  10,
		CommentWindow: time.Minute,
		RefreshLimit:  20,
		RefreshWindow: time.Minute,
	}
}

// RateLimiter enforces fixed-window limits shared by every API instance.
type RateLimiter struct {
	client *goredis.Client
	config RateLimitConfig
}

type RateLimitResult struct {
	Allowed   bool
	Remaining int
	ResetIn   time.Duration
	Limit     int
}

func NewRateLimiter(client *goredis.Client, config RateLimitConfig) *RateLimiter {
	return &RateLimiter{client: client, config: config}
}

// AllowComment counts a comment submission by userID.
func (r *RateLimiter) AllowComment(ctx context.Context, userID string) (*RateLimitResult, error) {
	return r.hit(ctx, "ratelimit:comments:"+userID, r.config.CommentLimit, r.config.CommentWindow)
}

// AllowRefresh counts a token refresh attempt from ip.
func (r *RateLimiter) AllowRefresh(ctx context.Context, ip string) (*RateLimitResult, error) {
	return r.hit(ctx, "ratelimit:refresh:"+ip, r.config.RefreshLimit, r.config.RefreshWindow)
}

func (r *RateLimiter) hit(ctx context.Context, key string, limit int, window time.Duration) (*RateLimitResult, error) {
	vals, err := fixedWindow.Run(ctx, r.client, []string{key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit %s: %w", key, err)
	}
	if len(vals) != 2 {
		return nil, fmt.Errorf("rate limit %s: unexpected reply %v", key, vals)
	}

	count := int(vals[0])
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return &RateLimitResult{
		Allowed:   count <= limit,
		Remaining: remaining,
		ResetIn:   time.Duration(vals[1]) * time.Millisecond,
		Limit:     limit,
	}, nil
}
