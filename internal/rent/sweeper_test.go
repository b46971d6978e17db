package rent

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mookor/rentbot/internal/retry"
)

func TestSweepRunsAndSurvivesPanic(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var calls atomic.Int32
	s := NewSweep("test", time.Millisecond, retry.NewLimiter(), func(context.Context) error {
		if calls.Add(1) == 1 {
			panic("boom")
		}
		return nil
	}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return calls.Load() >= 3 }, 2*time.Second, time.Millisecond,
		"цикл переживает панику итерации")
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("цикл не остановился по отмене контекста")
	}
}
