package rent

import (
	"context"
	"log/slog"
	"time"

	"github.com/mookor/rentbot/internal/retry"
)

// Sweep - один фоновый цикл: тикает с базовым интервалом, растянутым
// после недавних 429, паника итерации не валит цикл.
type Sweep struct {
	name     string
	interval time.Duration
	lim      *retry.Limiter
	fn       func(ctx context.Context) error
	log      *slog.Logger
}

func NewSweep(name string, interval time.Duration, lim *retry.Limiter, fn func(ctx context.Context) error, log *slog.Logger) *Sweep {
	return &Sweep{name: name, interval: interval, lim: lim, fn: fn, log: log}
}

func (s *Sweep) Run(ctx context.Context) {
	for {
		timer := time.NewTimer(s.lim.Stretch(s.interval))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		s.iterate(ctx)
	}
}

func (s *Sweep) iterate(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("паника в фоновом цикле", "sweep", s.name, "panic", r)
		}
	}()
	if err := s.fn(ctx); err != nil {
		s.log.Error("итерация фонового цикла", "sweep", s.name, "error", err)
	}
}
