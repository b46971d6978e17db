// Package retry is the single place rate-limit handling is implemented:
// a bounded-retry wrapper for marketplace calls plus shared throttle
// state that background loops consult to stretch their own cadence.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mookor/rentbot/internal/marketplace"
	"github.com/mookor/rentbot/internal/ops"
)

// Limiter - общее состояние 429-троттлинга: момент последнего лимита и
// счётчик подряд идущих лимитов, общий для всех циклов процесса.
type Limiter struct {
	mu          sync.Mutex
	last        time.Time
	consecutive int

	now func() time.Time
}

func NewLimiter() *Limiter {
	return &Limiter{now: time.Now}
}

func (l *Limiter) Hit() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.last = l.now()
	l.consecutive++
	return l.consecutive
}

func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.consecutive = 0
}

// Throttled - был ли 429 в последние within.
func (l *Limiter) Throttled(within time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.last.IsZero() && l.now().Sub(l.last) < within
}

// Stretch удлиняет фоновый интервал опроса после недавнего 429: шквал
// лимитов замедляет будущие циклы, а не только повторённый вызов.
func (l *Limiter) Stretch(base time.Duration) time.Duration {
	if l.Throttled(5 * time.Minute) {
		return base * 2
	}
	return base
}

// Caller - ретраящая обёртка вокруг вызова площадки. Ретраится только
// 429-класс; прочие ошибки сразу уходят вызывающему.
type Caller struct {
	lim      *Limiter
	attempts int
	base     time.Duration
	ceiling  time.Duration
	log      *slog.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

func NewCaller(lim *Limiter, log *slog.Logger) *Caller {
	return &Caller{
		lim:      lim,
		attempts: 3,
		base:     30 * time.Second,
		ceiling:  180 * time.Second,
		log:      log,
		sleep:    sleepCtx,
	}
}

func (c *Caller) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		err = fn(ctx)
		if err == nil {
			c.lim.Reset()
			return nil
		}
		if !marketplace.IsRateLimited(err) {
			return err
		}

		consecutive := c.lim.Hit()
		ops.RateLimitHits.Inc()
		if attempt == c.attempts {
			break
		}
		wait := c.base * time.Duration(consecutive)
		if wait > c.ceiling {
			wait = c.ceiling
		}
		c.log.Warn("429 от площадки, ожидание перед повтором",
			"op", op, "attempt", attempt, "wait", wait)
		if serr := c.sleep(ctx, wait); serr != nil {
			return serr
		}
	}
	return fmt.Errorf("%s: исчерпаны попытки (%d): %w", op, c.attempts, err)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
