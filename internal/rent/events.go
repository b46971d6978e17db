package rent

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/mookor/rentbot/internal/marketplace"
)

var feedbackPattern = regexp.MustCompile(`#([A-Z0-9]{8})`)

// EventLoop читает поток событий площадки и раздаёт их оркестратору и
// роутеру команд. Ошибка обработки одного события логируется, цикл
// продолжается.
type EventLoop struct {
	client marketplace.Client
	orch   *Orchestrator
	router *Router
	log    *slog.Logger
}

func NewEventLoop(client marketplace.Client, orch *Orchestrator, router *Router, log *slog.Logger) *EventLoop {
	return &EventLoop{client: client, orch: orch, router: router, log: log}
}

func (l *EventLoop) Run(ctx context.Context) {
	events := l.client.Listen(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := l.handle(ctx, ev); err != nil {
				l.log.Error("обработка события площадки", "type", ev.Type, "error", err)
			}
		}
	}
}

func (l *EventLoop) handle(ctx context.Context, ev marketplace.Event) error {
	switch ev.Type {
	case marketplace.EventNewOrder:
		if ev.Order == nil {
			return nil
		}
		return l.orch.HandleOrder(ctx, ev.Order)
	case marketplace.EventNewMessage:
		if ev.Message == nil {
			return nil
		}
		return l.handleMessage(ctx, ev.Message)
	case marketplace.EventNewFeedback:
		if ev.Order == nil {
			return nil
		}
		return l.orch.HandleFeedback(ctx, ev.Order.ID)
	default:
		return nil
	}
}

// handleMessage: отзыв с номером заказа "#XXXXXXXX" начисляет бонус,
// остальное уходит в роутер команд.
func (l *EventLoop) handleMessage(ctx context.Context, msg *marketplace.Message) error {
	isCommand := strings.HasPrefix(strings.TrimSpace(msg.Text), "!")
	if m := feedbackPattern.FindStringSubmatch(msg.Text); m != nil && !isCommand && msg.AuthorID != l.router.botID {
		if err := l.orch.HandleFeedback(ctx, m[1]); err != nil {
			return err
		}
	}
	return l.router.Dispatch(ctx, msg.AuthorID, msg.ChatID, msg.Text)
}
