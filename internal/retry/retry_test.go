package retry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mookor/rentbot/internal/marketplace"
)

func rateLimited() error {
	return &marketplace.APIError{Op: "GET /api/lots", StatusCode: http.StatusTooManyRequests}
}

func newTestCaller() (*Caller, *[]time.Duration) {
	c := NewCaller(NewLimiter(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	waits := &[]time.Duration{}
	c.sleep = func(_ context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return nil
	}
	return c, waits
}

func TestCallerRetriesRateLimit(t *testing.T) {
	c, waits := newTestCaller()
	calls := 0
	err := c.Do(context.Background(), "op", func(context.Context) error {
		calls++
		if calls < 3 {
			return rateLimited()
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{30 * time.Second, 60 * time.Second}, *waits)
}

func TestCallerGivesUpAfterAttempts(t *testing.T) {
	c, _ := newTestCaller()
	calls := 0
	err := c.Do(context.Background(), "op", func(context.Context) error {
		calls++
		return rateLimited()
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.True(t, marketplace.IsRateLimited(err), "исходная ошибка сохраняется в цепочке")
}

func TestCallerDoesNotRetryOtherErrors(t *testing.T) {
	c, waits := newTestCaller()
	boom := errors.New("boom")
	calls := 0
	err := c.Do(context.Background(), "op", func(context.Context) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *waits)
}

func TestCallerBackoffCeiling(t *testing.T) {
	c, waits := newTestCaller()
	for i := 0; i < 10; i++ {
		c.lim.Hit()
	}
	_ = c.Do(context.Background(), "op", func(context.Context) error {
		return rateLimited()
	})
	require.NotEmpty(t, *waits)
	for _, w := range *waits {
		assert.LessOrEqual(t, w, 180*time.Second)
	}
}

func TestCallerSuccessResetsLimiter(t *testing.T) {
	c, _ := newTestCaller()
	c.lim.Hit()
	require.NoError(t, c.Do(context.Background(), "op", func(context.Context) error { return nil }))
	assert.False(t, c.lim.Throttled(0))
	assert.Equal(t, 1, c.lim.Hit(), "счётчик подряд идущих лимитов сброшен")
}

func TestLimiterStretch(t *testing.T) {
	lim := NewLimiter()
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	lim.now = func() time.Time { return now }

	assert.Equal(t, time.Minute, lim.Stretch(time.Minute), "без 429 интервал не меняется")

	lim.Hit()
	assert.Equal(t, 2*time.Minute, lim.Stretch(time.Minute))

	now = now.Add(10 * time.Minute)
	assert.Equal(t, time.Minute, lim.Stretch(time.Minute), "давний 429 не растягивает интервал")
}
