package rent

import (
	"context"
	"log/slog"
	"strings"
)

// Router разбирает входящие сообщения чата: команды с префиксом "!"
// без учёта регистра, всё остальное игнорируется. Неверное число
// аргументов даёт подсказку формата, неизвестная команда - справку.
type Router struct {
	orch  *Orchestrator
	botID int64
	log   *slog.Logger

	commands map[string]func(ctx context.Context, buyerID int64, chatID string, args []string) error
}

func NewRouter(orch *Orchestrator, botID int64, log *slog.Logger) *Router {
	r := &Router{orch: orch, botID: botID, log: log}
	r.commands = map[string]func(ctx context.Context, buyerID int64, chatID string, args []string) error{
		"!время":    r.handleTime,
		"!продлить": r.handleExtend,
		"!code":     r.handleCode,
		"!ban":      r.handleBan,
		"!помощь":   r.handleHelp,
	}
	return r
}

// Dispatch обрабатывает одно сообщение. Сообщения самого бота и текст
// без командного префикса пропускаются молча.
func (r *Router) Dispatch(ctx context.Context, buyerID int64, chatID, text string) error {
	if buyerID == r.botID {
		return nil
	}
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "!") {
		return nil
	}
	cmd := strings.ToLower(fields[0])
	fn, ok := r.commands[cmd]
	if !ok {
		r.orch.send(ctx, chatID, "Неизвестная команда.\n"+helpText)
		return nil
	}
	return fn(ctx, buyerID, chatID, fields[1:])
}

func (r *Router) handleTime(ctx context.Context, buyerID int64, chatID string, args []string) error {
	if len(args) != 0 {
		r.orch.send(ctx, chatID, "Формат: !время")
		return nil
	}
	return r.orch.TimeRemaining(ctx, buyerID, chatID)
}

func (r *Router) handleExtend(ctx context.Context, buyerID int64, chatID string, args []string) error {
	if len(args) != 1 {
		r.orch.send(ctx, chatID, "Формат: !продлить <номер заказа>")
		return nil
	}
	return r.orch.RequestExtension(ctx, buyerID, chatID, normalizeOrderID(args[0]))
}

func (r *Router) handleCode(ctx context.Context, buyerID int64, chatID string, args []string) error {
	if len(args) != 1 {
		r.orch.send(ctx, chatID, "Формат: !code <номер заказа>")
		return nil
	}
	return r.orch.IssueCode(ctx, buyerID, chatID, normalizeOrderID(args[0]))
}

func (r *Router) handleBan(ctx context.Context, buyerID int64, chatID string, args []string) error {
	if len(args) != 1 {
		r.orch.send(ctx, chatID, "Формат: !ban <номер заказа>")
		return nil
	}
	return r.orch.Ban(ctx, buyerID, chatID, normalizeOrderID(args[0]))
}

func (r *Router) handleHelp(ctx context.Context, buyerID int64, chatID string, args []string) error {
	r.orch.send(ctx, chatID, helpText)
	return nil
}

// normalizeOrderID принимает номер заказа и с решёткой, и без.
func normalizeOrderID(raw string) string {
	return strings.ToUpper(strings.TrimPrefix(raw, "#"))
}
