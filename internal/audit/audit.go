// Package audit - журнал событий жизненного цикла аренды. События
// пишутся батчами пулом воркеров: в таблицу журнала напрямую и в
// outbox для публикации в kafka.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mookor/rentbot/internal/store"
)

type Kind string

const (
	KindSale     Kind = "sale"
	KindExtend   Kind = "extend"
	KindRefund   Kind = "refund"
	KindExpire   Kind = "expire"
	KindBan      Kind = "ban"
	KindBonus    Kind = "bonus"
	KindCodeSent Kind = "code_sent"
)

type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Kind      Kind      `json:"kind"`
	OrderID   string    `json:"order_id"`
	Login     string    `json:"login,omitempty"`
	BuyerID   int64     `json:"buyer_id,omitempty"`
	Detail    string    `json:"detail,omitempty"`
}

func NewEvent(kind Kind, orderID, login string, buyerID int64, detail string) Event {
	return Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Kind:      kind,
		OrderID:   orderID,
		Login:     login,
		BuyerID:   buyerID,
		Detail:    detail,
	}
}

type Processor interface {
	Process(batch []Event) error
}

// DBProcessor пишет батч одним INSERT в таблицу журнала.
type DBProcessor struct {
	db *sql.DB
}

func NewDBProcessor(db *sql.DB) *DBProcessor {
	return &DBProcessor{db: db}
}

func (p *DBProcessor) Process(batch []Event) error {
	var sb strings.Builder
	sb.WriteString(`INSERT INTO audit_events (id, timestamp, kind, order_id, login, buyer_id, detail) VALUES `)

	params := []interface{}{}
	idx := 1
	for i, ev := range batch {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(fmt.Sprintf("($%d,$%d,$%d,$%d,$%d,$%d,$%d)",
			idx, idx+1, idx+2, idx+3, idx+4, idx+5, idx+6))
		idx += 7
		params = append(params, ev.ID, ev.Timestamp, ev.Kind, ev.OrderID, ev.Login, ev.BuyerID, ev.Detail)
	}
	if _, err := p.db.Exec(sb.String(), params...); err != nil {
		return fmt.Errorf("audit insert: %w", err)
	}
	return nil
}

// OutboxProcessor складывает события в outbox для публикации в kafka.
type OutboxProcessor struct {
	tasks store.TaskRepository
}

func NewOutboxProcessor(tasks store.TaskRepository) *OutboxProcessor {
	return &OutboxProcessor{tasks: tasks}
}

func (p *OutboxProcessor) Process(batch []Event) error {
	for _, ev := range batch {
		data, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("marshal audit event: %w", err)
		}
		if err := p.tasks.CreateTask(context.Background(), data); err != nil {
			return fmt.Errorf("outbox task: %w", err)
		}
	}
	return nil
}

type PoolConfig struct {
	BatchSize   int
	Timeout     time.Duration
	ChannelSize int
}

// Recorder - пул воркеров, собирающий события в батчи по размеру либо
// по таймауту. Переполненный канал роняет событие, а не блокирует
// бизнес-поток.
type Recorder struct {
	inputCh    chan Event
	processors []Processor
	batchSize  int
	timeout    time.Duration
	log        *slog.Logger

	wg sync.WaitGroup
}

func NewRecorder(cfg PoolConfig, log *slog.Logger, processors ...Processor) *Recorder {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 16
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.ChannelSize <= 0 {
		cfg.ChannelSize = 256
	}
	return &Recorder{
		inputCh:    make(chan Event, cfg.ChannelSize),
		processors: processors,
		batchSize:  cfg.BatchSize,
		timeout:    cfg.Timeout,
		log:        log,
	}
}

func (r *Recorder) Start(ctx context.Context, numWorkers int) {
	for i := 0; i < numWorkers; i++ {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.worker(ctx)
		}()
	}
}

func (r *Recorder) worker(ctx context.Context) {
	var batch []Event
	timer := time.NewTimer(r.timeout)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			if len(batch) > 0 {
				r.processBatch(batch)
			}
			return
		case ev := <-r.inputCh:
			batch = append(batch, ev)
			if len(batch) >= r.batchSize {
				if !timer.Stop() {
					<-timer.C
				}
				r.processBatch(batch)
				batch = nil
				timer.Reset(r.timeout)
			}
		case <-timer.C:
			if len(batch) > 0 {
				r.processBatch(batch)
				batch = nil
			}
			timer.Reset(r.timeout)
		}
	}
}

func (r *Recorder) processBatch(batch []Event) {
	for _, proc := range r.processors {
		if err := proc.Process(batch); err != nil {
			r.log.Error("обработка audit-батча", "error", err)
		}
	}
}

// Record ставит событие в очередь без блокировки.
func (r *Recorder) Record(ev Event) {
	select {
	case r.inputCh <- ev:
	default:
		r.log.Warn("audit-канал переполнен, событие отброшено", "kind", ev.Kind, "order", ev.OrderID)
	}
}

func (r *Recorder) Wait() {
	r.wg.Wait()
}
