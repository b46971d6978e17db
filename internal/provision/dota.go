package provision

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mookor/rentbot/internal/lots"
	"github.com/mookor/rentbot/internal/marketplace"
	"github.com/mookor/rentbot/internal/models"
	"github.com/mookor/rentbot/internal/steamauth"
	"github.com/mookor/rentbot/internal/store"
)

// Dota - аккаунты Steam: код входа и сброс сессий через helper,
// MMR подтягивается из OpenDota.
type Dota struct {
	rec      reconciler
	accounts store.AccountStore
	steam    *steamauth.Client
	rank     *RankClient
	minHours int
	log      *slog.Logger
}

func NewDota(lm *lots.Manager, accounts store.AccountStore, steam *steamauth.Client, rank *RankClient, minHours int, log *slog.Logger) *Dota {
	return &Dota{
		rec:      reconciler{gt: models.GameDota, lots: lm, accounts: accounts, log: log},
		accounts: accounts,
		steam:    steam,
		rank:     rank,
		minHours: minHours,
		log:      log,
	}
}

func (d *Dota) GameType() models.GameType { return models.GameDota }

func (d *Dota) IssueCode(ctx context.Context, a *models.Account) (string, error) {
	return d.steam.GuardCode(ctx, a.Login)
}

func (d *Dota) RevokeAccess(ctx context.Context, a *models.Account) error {
	return d.steam.KickSessions(ctx, a.Login, a.Password)
}

func (d *Dota) ReconcileListings(ctx context.Context) error {
	return d.rec.reconcile(ctx, d.lotFields)
}

func (d *Dota) CreateExtensionLot(ctx context.Context, orderID string, unitPrice float64) error {
	return d.rec.lots.CreateExtendLot(ctx, models.GameDota, orderID, unitPrice)
}

func (d *Dota) lotFields(a *models.Account) *marketplace.LotFields {
	var mmr, behavior int
	var profile string
	if a.Dota != nil {
		mmr = a.Dota.MMR
		behavior = a.Dota.BehaviorScore
		profile = a.Dota.ProfileLink
	}
	categoryID, _ := d.rec.lots.CategoryFor(models.GameDota)
	return &marketplace.LotFields{
		CategoryID: categoryID,
		TitleRU:    fmt.Sprintf("Аренда аккаунта Dota 2 | %d MMR", mmr),
		TitleEN:    fmt.Sprintf("Dota 2 account rent | %d MMR", mmr),
		DescRU: fmt.Sprintf(
			"MMR: %d\nПорядочность: %d\nПрофиль: %s\nАренда от %d часов | %s, выдача после оплаты",
			mmr, behavior, profile, d.minHours, a.Login),
		DescEN: fmt.Sprintf(
			"MMR: %d\nBehavior: %d\nProfile: %s\nMin rent %d hours | %s, issued after payment",
			mmr, behavior, profile, d.minHours, a.Login),
		Price:  float64(d.minHours),
		Active: true,
		Amount: 100,
	}
}

// RefreshRanks сверяет MMR аккаунтов с OpenDota и переименовывает лоты,
// у которых поменялся ранг. Ошибка по одному аккаунту не прерывает
// остальных.
func (d *Dota) RefreshRanks(ctx context.Context) error {
	accounts, err := d.accounts.AccountsByGame(ctx, models.GameDota)
	if err != nil {
		return fmt.Errorf("аккаунты dota: %w", err)
	}
	var failed int
	for _, a := range accounts {
		if a.Dota == nil || a.Dota.DotaID == 0 {
			continue
		}
		if err := d.refreshOne(ctx, a); err != nil {
			failed++
			d.log.Error("обновление MMR не удалось", "login", a.Login, "error", err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("обновление MMR: ошибок по аккаунтам: %d", failed)
	}
	return nil
}

func (d *Dota) refreshOne(ctx context.Context, a *models.Account) error {
	mmr, err := d.rank.MMR(ctx, a.Dota.DotaID)
	if err != nil {
		return err
	}
	if mmr == 0 || mmr == a.Dota.MMR {
		return nil
	}
	if err := d.accounts.SetDotaRank(ctx, a.Login, mmr); err != nil {
		return err
	}
	d.log.Info("MMR обновлён", "login", a.Login, "old", a.Dota.MMR, "new", mmr)

	lot, err := d.rec.lots.FindByLogin(ctx, models.GameDota, a.Login)
	if err != nil || lot == nil {
		return err
	}
	attrs := *a.Dota
	attrs.MMR = mmr
	refreshed := *a
	refreshed.Dota = &attrs
	fields := d.lotFields(&refreshed)
	fields.LotID = lot.ID
	fields.Active = lot.Active
	return d.rec.lots.SaveLot(ctx, fields)
}
