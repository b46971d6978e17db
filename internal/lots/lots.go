// Package lots keeps marketplace listings in line with account state:
// lookup by login, the synthetic extension-lot flow and relisting.
package lots

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/mookor/rentbot/internal/marketplace"
	"github.com/mookor/rentbot/internal/models"
	"github.com/mookor/rentbot/internal/retry"
)

var (
	minHoursPattern    = regexp.MustCompile(`(?i)от\s*(\d+)\s*час`)
	extendOrderPattern = regexp.MustCompile(`(?i)Продление заказа:?\s*([A-Z0-9]+)`)
)

// ExtractLogin достаёт логин аккаунта из описания лота или заказа:
// текст после последнего "|" до первой запятой.
func ExtractLogin(description string) string {
	parts := strings.Split(description, "|")
	tail := parts[len(parts)-1]
	login := strings.SplitN(tail, ",", 2)[0]
	return strings.ToLower(strings.TrimSpace(login))
}

// ParseMinHours - минимальное время аренды из описания ("от 6 часов").
func ParseMinHours(description string, def int) int {
	m := minHoursPattern.FindStringSubmatch(description)
	if m == nil {
		return def
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return def
	}
	return n
}

// ParseExtendOrder - номер исходного заказа из описания лота продления.
func ParseExtendOrder(description string) (string, bool) {
	m := extendOrderPattern.FindStringSubmatch(strings.ToUpper(description))
	if m == nil {
		return "", false
	}
	return m[1], true
}

type Manager struct {
	client     marketplace.Client
	call       *retry.Caller
	categories map[models.GameType]int64
}

func NewManager(client marketplace.Client, call *retry.Caller, categories map[models.GameType]int64) *Manager {
	return &Manager{client: client, call: call, categories: categories}
}

func (m *Manager) CategoryFor(gt models.GameType) (int64, error) {
	id, ok := m.categories[gt]
	if !ok || id == 0 {
		return 0, fmt.Errorf("категория площадки для %s не настроена", gt)
	}
	return id, nil
}

func (m *Manager) LotsForGame(ctx context.Context, gt models.GameType) ([]marketplace.Lot, error) {
	categoryID, err := m.CategoryFor(gt)
	if err != nil {
		return nil, err
	}
	var lots []marketplace.Lot
	err = m.call.Do(ctx, "my lots", func(ctx context.Context) error {
		var err error
		lots, err = m.client.MyLots(ctx, categoryID)
		return err
	})
	return lots, err
}

// FindByLogin ищет лот аккаунта по вхождению логина в описание.
func (m *Manager) FindByLogin(ctx context.Context, gt models.GameType, login string) (*marketplace.Lot, error) {
	lots, err := m.LotsForGame(ctx, gt)
	if err != nil {
		return nil, err
	}
	for i := range lots {
		if strings.Contains(strings.ToLower(lots[i].Description), strings.ToLower(login)) {
			return &lots[i], nil
		}
	}
	return nil, nil
}

// FindExtendLot ищет лот продления по номеру исходного заказа.
func (m *Manager) FindExtendLot(ctx context.Context, gt models.GameType, orderID string) (*marketplace.Lot, error) {
	lots, err := m.LotsForGame(ctx, gt)
	if err != nil {
		return nil, err
	}
	for i := range lots {
		if origin, ok := ParseExtendOrder(lots[i].Description); ok && origin == orderID {
			return &lots[i], nil
		}
	}
	return nil, nil
}

// ExtendLotFields - синтетический одноразовый лот продления,
// цена за единицу = цена за час исходного заказа.
func ExtendLotFields(categoryID int64, orderID string, unitPrice float64) *marketplace.LotFields {
	return &marketplace.LotFields{
		CategoryID: categoryID,
		TitleRU:    "Продление заказа " + orderID,
		TitleEN:    "Extend order " + orderID,
		DescRU:     fmt.Sprintf("Продление заказа: %s\n1шт = 1 час", orderID),
		DescEN:     fmt.Sprintf("Extend order: %s\n1pc = 1 hour", orderID),
		Price:      unitPrice,
		Active:     true,
		Amount:     100,
	}
}

func (m *Manager) CreateExtendLot(ctx context.Context, gt models.GameType, orderID string, unitPrice float64) error {
	categoryID, err := m.CategoryFor(gt)
	if err != nil {
		return err
	}
	fields := ExtendLotFields(categoryID, orderID, unitPrice)
	return m.call.Do(ctx, "create extend lot", func(ctx context.Context) error {
		return m.client.SaveLot(ctx, fields)
	})
}

func (m *Manager) SaveLot(ctx context.Context, fields *marketplace.LotFields) error {
	return m.call.Do(ctx, "save lot", func(ctx context.Context) error {
		return m.client.SaveLot(ctx, fields)
	})
}

func (m *Manager) DeleteLot(ctx context.Context, lotID int64) error {
	return m.call.Do(ctx, "delete lot", func(ctx context.Context) error {
		return m.client.DeleteLot(ctx, lotID)
	})
}

func (m *Manager) SetActive(ctx context.Context, lotID int64, active bool) error {
	return m.call.Do(ctx, "set lot active", func(ctx context.Context) error {
		fields, err := m.client.LotFields(ctx, lotID)
		if err != nil {
			return err
		}
		fields.Active = active
		return m.client.SaveLot(ctx, fields)
	})
}

// Recreate пересоздаёт лот аккаунта заново (после окончания аренды лот,
// деактивированный продажей, поднимается свежей копией). false - лот
// не найден и нужен полный reconcile.
func (m *Manager) Recreate(ctx context.Context, gt models.GameType, login string) (bool, error) {
	lot, err := m.FindByLogin(ctx, gt, login)
	if err != nil {
		return false, err
	}
	if lot == nil {
		return false, nil
	}
	var fields *marketplace.LotFields
	err = m.call.Do(ctx, "get lot fields", func(ctx context.Context) error {
		var err error
		fields, err = m.client.LotFields(ctx, lot.ID)
		return err
	})
	if err != nil {
		return false, err
	}
	if err := m.DeleteLot(ctx, lot.ID); err != nil {
		return false, err
	}
	fields.LotID = 0
	fields.Active = true
	fields.Amount = 100
	if err := m.SaveLot(ctx, fields); err != nil {
		return false, err
	}
	return true, nil
}
