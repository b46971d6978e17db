package store

import (
	"context"
	"errors"
	"time"

	"github.com/mookor/rentbot/internal/models"
)

var (
	ErrNotFound       = errors.New("запись не найдена")
	ErrDuplicateOrder = errors.New("заказ с таким ID уже существует")
	ErrDuplicateLogin = errors.New("аккаунт с таким логином уже существует")
)

// RentalStore - единственный источник истины о состоянии аренд.
// Все операции атомарны в пределах одной записи; повторное применение
// флаговых переходов - no-op, а не ошибка.
type RentalStore interface {
	CreateRental(ctx context.Context, r *models.Rental) error
	RentalByOrder(ctx context.Context, orderID string) (*models.Rental, error)
	ActiveRentalsByBuyer(ctx context.Context, buyerID int64) ([]*models.Rental, error)
	// DueRentals - активные аренды с истёкшим сроком.
	DueRentals(ctx context.Context, now time.Time) ([]*models.Rental, error)
	// RentalsExpiringWithin - активные неуведомлённые аренды, истекающие
	// в интервале (now, now+window].
	RentalsExpiringWithin(ctx context.Context, now time.Time, window time.Duration) ([]*models.Rental, error)
	// ExtendRental сдвигает срок на delta и сбрасывает notified, если
	// новый срок выходит за окно предупреждения warnWindow.
	ExtendRental(ctx context.Context, orderID string, delta, warnWindow time.Duration) error
	MarkNotified(ctx context.Context, orderID string) error
	MarkBonusGiven(ctx context.Context, orderID string) error
	MarkInactive(ctx context.Context, orderID string) error
	SetPaymentStatus(ctx context.Context, orderID string, status models.PaymentStatus) error
	AddIncome(ctx context.Context, orderID string, amount float64) error
	DeleteRental(ctx context.Context, orderID string) error
}

type AccountStore interface {
	AddAccount(ctx context.Context, a *models.Account) error
	AccountByLogin(ctx context.Context, login string) (*models.Account, error)
	AccountsByGame(ctx context.Context, gt models.GameType) ([]*models.Account, error)
	SetBusy(ctx context.Context, login string, busy bool) error
	SetBanned(ctx context.Context, login string, banned bool) error
	// SetRenter назначает арендатора; buyerID == 0 снимает привязку.
	SetRenter(ctx context.Context, login string, buyerID int64) error
	SetDotaRank(ctx context.Context, login string, mmr int) error
}
