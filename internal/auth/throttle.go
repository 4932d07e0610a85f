package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ThrottleError carries how long the caller should wait before asking for
// another code. It matches ErrOTPThrottled under errors.Is.
type ThrottleError struct {
	RetryAfter time.Duration
}

func (e *ThrottleError) Error() string {
	return fmt.Sprintf("%s; retry in %d seconds", ErrOTPThrottled, int(e.RetryAfter.Seconds()))
}

func (e *ThrottleError) Is(target error) bool {
	return target == ErrOTPThrottled
}

// Throttle limits how often codes are issued to one email address. Each
// issue starts a cooldown; more than max issues inside window blocks the
// address for three windows.
//
// The throttle fails open: when Redis cannot be reached the issue is
// allowed and a warning is logged.
type Throttle struct {
	rdb      *redis.Client
	log      *slog.Logger
	window   time.Duration
	max      int
	cooldown time.Duration
}

func NewThrottle(rdb *redis.Client, window time.Duration, max int, cooldown time.Duration, log *slog.Logger) *Throttle {
	if log == nil {
		log = slog.Default()
	}
	return &Throttle{rdb: rdb, log: log, window: window, max: max, cooldown: cooldown}
}

func (t *Throttle) Allow(ctx context.Context, email string) error {
	err := t.allow(ctx, strings.ToLower(strings.TrimSpace(email)))

	var te *ThrottleError
	if err == nil || errors.As(err, &te) {
		return err
	}
	t.log.Warn("otp throttle unavailable, allowing issue", "error", err)
	return nil
}

func (t *Throttle) allow(ctx context.Context, id string) error {
	blockKey := "otp:block:" + id
	lastKey := "otp:last:" + id
	countKey := "otp:count:" + id

	for _, key := range []string{blockKey, lastKey} {
		ttl, err := t.rdb.TTL(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("throttle lookup: %w", err)
		}
		if ttl > 0 {
			return &ThrottleError{RetryAfter: ttl}
		}
	}

	count, err := t.rdb.Incr(ctx, countKey).Result()
	if err != nil {
		return fmt.Errorf("throttle count: %w", err)
	}
	if count == 1 {
		if err := t.rdb.Expire(ctx, countKey, t.window).Err(); err != nil {
			return fmt.Errorf("throttle window: %w", err)
		}
	}

	if int(count) > t.max {
		block := t.window * 3
		if err := t.rdb.Set(ctx, blockKey, "1", block).Err(); err != nil {
			return fmt.Errorf("throttle block: %w", err)
		}
		return &ThrottleError{RetryAfter: block}
	}

	if t.cooldown > 0 {
		if err := t.rdb.Set(ctx, lastKey, "1", t.cooldown).Err(); err != nil {
			return fmt.Errorf("throttle cooldown: %w", err)
		}
	}

	return nil
}
