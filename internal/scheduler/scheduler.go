// Package scheduler запускает периодические задачи по cron-расписанию:
// сверку лотов и обновление рангов. Паника задачи гасится, задачи
// пропускают запуск, пока площадка троттлит.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mookor/rentbot/internal/retry"
)

type Scheduler struct {
	cron *cron.Cron
	lim  *retry.Limiter
	log  *slog.Logger
}

func New(lim *retry.Limiter, log *slog.Logger) *Scheduler {
	cronLog := cron.PrintfLogger(printfAdapter{log: log})
	return &Scheduler{
		cron: cron.New(cron.WithChain(cron.Recover(cronLog))),
		lim:  lim,
		log:  log,
	}
}

// AddJob регистрирует задачу. Запуск пропускается, если площадка
// недавно отвечала 429.
func (s *Scheduler) AddJob(schedule, name string, fn func(ctx context.Context) error) error {
	_, err := s.cron.AddFunc(schedule, func() {
		if s.lim.Throttled(5 * time.Minute) {
			s.log.Warn("задача пропущена из-за троттлинга площадки", "job", name)
			return
		}
		if err := fn(context.Background()); err != nil {
			s.log.Error("периодическая задача", "job", name, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("расписание %q задачи %s: %w", schedule, name, err)
	}
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop останавливает планировщик и ждёт завершения запущенных задач.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

type printfAdapter struct {
	log *slog.Logger
}

func (a printfAdapter) Printf(format string, args ...interface{}) {
	a.log.Error(fmt.Sprintf(format, args...))
}
