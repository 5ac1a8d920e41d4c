package services

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	lockoutKeyPrefix  = "lockout:"
	lockoutTTL        = 25 * time.Hour // auto-cleanup
	failThreshold     = 3
	maxLockoutMinutes = 24 * 60 // 24h cap
)

// Lockout throttles invite-token guessing per client key. It is backed
// by redis and degrades to a no-op when redis is not configured.
type Lockout struct {
	rdb *redis.Client
}

func NewLockout(rdb *redis.Client) *Lockout {
	return &Lockout{rdb: rdb}
}

// lockoutDuration returns the lockout duration based on cumulative fail count.
// Tier 1 (3 fails):  15 min
// Tier 2 (6 fails):  30 min
// Tier 3 (9 fails):  60 min
// ... doubles each tier, capped at 24h.
func lockoutDuration(failCount int) time.Duration {
	tier := failCount / failThreshold
	if tier <= 0 {
		return 0
	}
	minutes := 15 * (1 << (tier - 1))
	if minutes > maxLockoutMinutes {
		minutes = maxLockoutMinutes
	}
	return time.Duration(minutes) * time.Minute
}

// IsLocked checks if a key is currently locked out.
// Returns (locked, remaining seconds until unlock).
func (lo *Lockout) IsLocked(ctx context.Context, key string) (bool, int) {
	if lo.rdb == nil {
		return false, 0
	}
	lockedUntil, err := lo.rdb.HGet(ctx, lockoutKeyPrefix+key, "locked_until").Result()
	if err != nil {
		return false, 0
	}

	ts, err := strconv.ParseInt(lockedUntil, 10, 64)
	if err != nil {
		return false, 0
	}

	until := time.Unix(ts, 0)
	if time.Now().After(until) {
		return false, 0
	}

	remaining := int(time.Until(until).Seconds())
	return true, remaining
}

// RecordFailure increments the fail count and applies lockout if the
// threshold is reached.
func (lo *Lockout) RecordFailure(ctx context.Context, key string) {
	if lo.rdb == nil {
		return
	}
	rkey := lockoutKeyPrefix + key

	newCount, err := lo.rdb.HIncrBy(ctx, rkey, "fail_count", 1).Result()
	if err != nil {
		log.Printf("[Lockout] Redis HIncrBy failed for %s: %v", key, err)
		return
	}
	if err := lo.rdb.Expire(ctx, rkey, lockoutTTL).Err(); err != nil {
		log.Printf("[Lockout] Redis Expire failed for %s: %v", key, err)
	}

	if newCount >= failThreshold && newCount%failThreshold == 0 {
		dur := lockoutDuration(int(newCount))
		lockedUntil := time.Now().Add(dur).Unix()
		if err := lo.rdb.HSet(ctx, rkey, "locked_until", strconv.FormatInt(lockedUntil, 10)).Err(); err != nil {
			log.Printf("[Lockout] Redis HSet locked_until failed for %s: %v", key, err)
		}
	}
}

// RecordSuccess resets the fail count for a key.
func (lo *Lockout) RecordSuccess(ctx context.Context, key string) {
	if lo.rdb == nil {
		return
	}
	if err := lo.rdb.Del(ctx, lockoutKeyPrefix+key).Err(); err != nil {
		log.Printf("[Lockout] Redis Del failed for %s: %v", key, err)
	}
}
