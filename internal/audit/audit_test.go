package audit

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type captureProcessor struct {
	mu      sync.Mutex
	batches [][]Event
}

func (p *captureProcessor) Process(batch []Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := make([]Event, len(batch))
	copy(cp, batch)
	p.batches = append(p.batches, cp)
	return nil
}

func (p *captureProcessor) total() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, b := range p.batches {
		n += len(b)
	}
	return n
}

func TestRecorderFlushesBySize(t *testing.T) {
	proc := &captureProcessor{}
	rec := NewRecorder(PoolConfig{BatchSize: 2, Timeout: time.Hour, ChannelSize: 16},
		slog.New(slog.NewTextHandler(io.Discard, nil)), proc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rec.Start(ctx, 1)

	rec.Record(NewEvent(KindSale, "A1", "acc1", 7, ""))
	rec.Record(NewEvent(KindExtend, "A1", "acc1", 7, ""))

	assert.Eventually(t, func() bool { return proc.total() == 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestRecorderFlushesByTimeout(t *testing.T) {
	proc := &captureProcessor{}
	rec := NewRecorder(PoolConfig{BatchSize: 100, Timeout: 20 * time.Millisecond, ChannelSize: 16},
		slog.New(slog.NewTextHandler(io.Discard, nil)), proc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rec.Start(ctx, 1)

	rec.Record(NewEvent(KindExpire, "A1", "acc1", 7, ""))
	assert.Eventually(t, func() bool { return proc.total() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestRecorderDrainsOnShutdown(t *testing.T) {
	proc := &captureProcessor{}
	rec := NewRecorder(PoolConfig{BatchSize: 100, Timeout: time.Hour, ChannelSize: 16},
		slog.New(slog.NewTextHandler(io.Discard, nil)), proc)

	ctx, cancel := context.WithCancel(context.Background())
	rec.Start(ctx, 1)
	rec.Record(NewEvent(KindBan, "A1", "acc1", 7, ""))

	time.Sleep(50 * time.Millisecond)
	cancel()
	rec.Wait()
	assert.Equal(t, 1, proc.total(), "незаписанный батч сбрасывается при остановке")
}

func TestNewEventFillsIdentity(t *testing.T) {
	ev := NewEvent(KindSale, "A1", "acc1", 7, "detail")
	assert.NotEmpty(t, ev.ID)
	assert.False(t, ev.Timestamp.IsZero())
	assert.Equal(t, KindSale, ev.Kind)
}
