package provision

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mookor/rentbot/internal/lots"
	"github.com/mookor/rentbot/internal/marketplace"
	"github.com/mookor/rentbot/internal/models"
	"github.com/mookor/rentbot/internal/store"
)

// Riot - аккаунты Valorant и LoL. Автоматической выдачи кода и сброса
// сессий у Riot нет, доступ выдаётся логином и паролем.
type Riot struct {
	rec      reconciler
	title    string
	minHours int
}

func NewRiot(gt models.GameType, lm *lots.Manager, accounts store.AccountStore, minHours int, log *slog.Logger) *Riot {
	return &Riot{
		rec:      reconciler{gt: gt, lots: lm, accounts: accounts, log: log},
		title:    riotTitle(gt),
		minHours: minHours,
	}
}

func riotTitle(gt models.GameType) string {
	if gt == models.GameLol {
		return "League of Legends"
	}
	return "Valorant"
}

func (r *Riot) GameType() models.GameType { return r.rec.gt }

func (r *Riot) IssueCode(ctx context.Context, a *models.Account) (string, error) {
	return "", ErrCodeUnavailable
}

// RevokeAccess - у Riot нет API сброса сессий, доступ гасится
// последующей ручной сменой пароля.
func (r *Riot) RevokeAccess(ctx context.Context, a *models.Account) error {
	return nil
}

func (r *Riot) ReconcileListings(ctx context.Context) error {
	return r.rec.reconcile(ctx, r.lotFields)
}

func (r *Riot) CreateExtensionLot(ctx context.Context, orderID string, unitPrice float64) error {
	return r.rec.lots.CreateExtendLot(ctx, r.rec.gt, orderID, unitPrice)
}

func (r *Riot) RefreshRanks(ctx context.Context) error { return nil }

func (r *Riot) lotFields(a *models.Account) *marketplace.LotFields {
	rank := "Unranked"
	profile := ""
	if a.Rank != nil {
		if a.Rank.Rank != "" {
			rank = a.Rank.Rank
		}
		profile = a.Rank.ProfileLink
	}
	categoryID, _ := r.rec.lots.CategoryFor(r.rec.gt)
	return &marketplace.LotFields{
		CategoryID: categoryID,
		TitleRU:    fmt.Sprintf("Аренда аккаунта %s | %s", r.title, rank),
		TitleEN:    fmt.Sprintf("%s account rent | %s", r.title, rank),
		DescRU: strings.TrimSpace(fmt.Sprintf(
			"Ранг: %s\nПрофиль: %s\nАренда от %d часов | %s, выдача после оплаты",
			rank, profile, r.minHours, a.Login)),
		DescEN: strings.TrimSpace(fmt.Sprintf(
			"Rank: %s\nProfile: %s\nMin rent %d hours | %s, issued after payment",
			rank, profile, r.minHours, a.Login)),
		Price:  float64(r.minHours),
		Active: true,
		Amount: 100,
	}
}
