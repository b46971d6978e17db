package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/mookor/rentbot/internal/store"
)

type kafkaProducer interface {
	Publish(topic string, message []byte) error
}

// Publisher перекладывает события из outbox в kafka: берёт пачку
// ожидающих задач, помечает PROCESSING, публикует и удаляет. Неудача
// публикации увеличивает счётчик попыток, после трёх задача
// замораживается со статусом NO_ATTEMPTS_LEFT.
type Publisher struct {
	tasks        store.TaskRepository
	producer     kafkaProducer
	topic        string
	pollInterval time.Duration
	limit        int
	maxAttempts  int
	retryDelay   time.Duration
	log          *slog.Logger
}

func NewPublisher(tasks store.TaskRepository, producer kafkaProducer, topic string, pollInterval time.Duration, log *slog.Logger) *Publisher {
	return &Publisher{
		tasks:        tasks,
		producer:     producer,
		topic:        topic,
		pollInterval: pollInterval,
		limit:        64,
		maxAttempts:  3,
		retryDelay:   2 * time.Second,
		log:          log,
	}
}

func (p *Publisher) Start(ctx context.Context) {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.publishPending(ctx)
		}
	}
}

func (p *Publisher) publishPending(ctx context.Context) {
	tasks, err := p.tasks.GetPendingTasks(ctx, p.limit, p.maxAttempts)
	if err != nil {
		p.log.Error("выборка outbox-задач", "error", err)
		return
	}
	for _, task := range tasks {
		if err := p.tasks.MarkTaskProcessing(ctx, task.ID); err != nil {
			p.log.Error("пометка задачи PROCESSING", "task", task.ID, "error", err)
			continue
		}
		if err := p.producer.Publish(p.topic, task.EventData); err != nil {
			p.fail(ctx, task, err)
			continue
		}
		if err := p.tasks.DeleteTask(ctx, task.ID); err != nil {
			p.log.Error("удаление опубликованной задачи", "task", task.ID, "error", err)
		}
	}
}

func (p *Publisher) fail(ctx context.Context, task *store.Task, cause error) {
	attempt := task.AttemptCount + 1
	status := store.TaskStatusFailed
	if attempt >= p.maxAttempts {
		status = store.TaskStatusNoAttemptsLeft
	}
	next := time.Now().Add(p.retryDelay)
	if err := p.tasks.UpdateTaskFailure(ctx, task.ID, attempt, status, next); err != nil {
		p.log.Error("обновление задачи после неудачи", "task", task.ID, "error", err)
	}
	p.log.Warn("публикация audit-события не удалась",
		"task", task.ID, "attempt", attempt, "error", cause)
}
