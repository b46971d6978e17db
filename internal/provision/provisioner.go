// Package provision содержит игровые стратегии: выдача доступа,
// отзыв сессий, сверка лотов с состоянием аккаунтов и обновление рангов.
package provision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mookor/rentbot/internal/lots"
	"github.com/mookor/rentbot/internal/marketplace"
	"github.com/mookor/rentbot/internal/models"
	"github.com/mookor/rentbot/internal/store"
)

// ErrCodeUnavailable - для игры нет автоматической выдачи кода входа.
var ErrCodeUnavailable = errors.New("код входа для этой игры не выдаётся автоматически")

type Provisioner interface {
	GameType() models.GameType
	// IssueCode выдаёт одноразовый код входа либо ErrCodeUnavailable.
	IssueCode(ctx context.Context, a *models.Account) (string, error)
	// RevokeAccess сбрасывает доступ арендатора к аккаунту.
	RevokeAccess(ctx context.Context, a *models.Account) error
	// ReconcileListings приводит лоты площадки к состоянию аккаунтов.
	ReconcileListings(ctx context.Context) error
	// CreateExtensionLot публикует лот продления для заказа.
	CreateExtensionLot(ctx context.Context, orderID string, unitPrice float64) error
	// RefreshRanks обновляет ранги аккаунтов из внешнего источника.
	RefreshRanks(ctx context.Context) error
}

// Registry - неизменяемый набор стратегий по типу игры.
type Registry struct {
	byGame map[models.GameType]Provisioner
}

func NewRegistry(provisioners ...Provisioner) *Registry {
	byGame := make(map[models.GameType]Provisioner, len(provisioners))
	for _, p := range provisioners {
		byGame[p.GameType()] = p
	}
	return &Registry{byGame: byGame}
}

func (r *Registry) For(gt models.GameType) (Provisioner, error) {
	p, ok := r.byGame[gt]
	if !ok {
		return nil, fmt.Errorf("нет стратегии для игры %s", gt)
	}
	return p, nil
}

func (r *Registry) All() []Provisioner {
	out := make([]Provisioner, 0, len(r.byGame))
	for _, p := range r.byGame {
		out = append(out, p)
	}
	return out
}

// reconciler - общая для всех игр сверка лотов: свободный аккаунт должен
// быть выставлен активным лотом, занятый или забаненный - снят с продажи.
// Ошибка по одному аккаунту не прерывает проход по остальным.
type reconciler struct {
	gt       models.GameType
	lots     *lots.Manager
	accounts store.AccountStore
	log      *slog.Logger
}

func (r *reconciler) reconcile(ctx context.Context, build func(a *models.Account) *marketplace.LotFields) error {
	accounts, err := r.accounts.AccountsByGame(ctx, r.gt)
	if err != nil {
		return fmt.Errorf("аккаунты %s: %w", r.gt, err)
	}
	listed, err := r.lots.LotsForGame(ctx, r.gt)
	if err != nil {
		return fmt.Errorf("лоты %s: %w", r.gt, err)
	}

	byLogin := make(map[string]*marketplace.Lot, len(listed))
	for i := range listed {
		if login := lots.ExtractLogin(listed[i].Description); login != "" {
			byLogin[login] = &listed[i]
		}
	}

	var failed int
	for _, a := range accounts {
		if err := r.reconcileOne(ctx, a, byLogin[a.Login], build); err != nil {
			failed++
			r.log.Error("сверка лота не удалась",
				"game", r.gt, "login", a.Login, "error", err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("сверка %s: ошибок по аккаунтам: %d", r.gt, failed)
	}
	return nil
}

func (r *reconciler) reconcileOne(ctx context.Context, a *models.Account, lot *marketplace.Lot, build func(a *models.Account) *marketplace.LotFields) error {
	rentable := a.Rentable()
	switch {
	case lot == nil && rentable:
		return r.lots.SaveLot(ctx, build(a))
	case lot == nil:
		return nil
	case lot.Active != rentable:
		return r.lots.SetActive(ctx, lot.ID, rentable)
	default:
		return nil
	}
}
