package store

import (
	"context"
	"sync"
	"time"

	"github.com/mookor/rentbot/internal/models"
)

// Memory - потокобезопасная реализация RentalStore и AccountStore поверх
// map. Используется в тестах оркестратора и как стенд без postgres.
type Memory struct {
	mu       sync.RWMutex
	rentals  map[string]*models.Rental
	accounts map[string]*models.Account

	// Now подменяется в тестах; по умолчанию time.Now.
	Now func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		rentals:  make(map[string]*models.Rental),
		accounts: make(map[string]*models.Account),
		Now:      time.Now,
	}
}

func (m *Memory) CreateRental(_ context.Context, r *models.Rental) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.rentals[r.OrderID]; exists {
		return ErrDuplicateOrder
	}
	cp := *r
	m.rentals[r.OrderID] = &cp
	return nil
}

func (m *Memory) RentalByOrder(_ context.Context, orderID string) (*models.Rental, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rentals[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *Memory) ActiveRentalsByBuyer(_ context.Context, buyerID int64) ([]*models.Rental, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []*models.Rental
	for _, r := range m.rentals {
		if r.BuyerID == buyerID && r.InRent {
			cp := *r
			res = append(res, &cp)
		}
	}
	return res, nil
}

func (m *Memory) DueRentals(_ context.Context, now time.Time) ([]*models.Rental, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []*models.Rental
	for _, r := range m.rentals {
		if r.InRent && !r.EndRentTime.After(now) {
			cp := *r
			res = append(res, &cp)
		}
	}
	return res, nil
}

func (m *Memory) RentalsExpiringWithin(_ context.Context, now time.Time, window time.Duration) ([]*models.Rental, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	limit := now.Add(window)
	var res []*models.Rental
	for _, r := range m.rentals {
		if r.InRent && !r.Notified && r.EndRentTime.After(now) && !r.EndRentTime.After(limit) {
			cp := *r
			res = append(res, &cp)
		}
	}
	return res, nil
}

func (m *Memory) ExtendRental(_ context.Context, orderID string, delta, warnWindow time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rentals[orderID]
	if !ok {
		return ErrNotFound
	}
	r.EndRentTime = r.EndRentTime.Add(delta)
	if r.EndRentTime.After(m.Now().Add(warnWindow)) {
		r.Notified = false
	}
	return nil
}

func (m *Memory) MarkNotified(_ context.Context, orderID string) error {
	return m.setRental(orderID, func(r *models.Rental) { r.Notified = true })
}

func (m *Memory) MarkBonusGiven(_ context.Context, orderID string) error {
	return m.setRental(orderID, func(r *models.Rental) { r.BonusGiven = true })
}

func (m *Memory) MarkInactive(_ context.Context, orderID string) error {
	return m.setRental(orderID, func(r *models.Rental) { r.InRent = false })
}

func (m *Memory) SetPaymentStatus(_ context.Context, orderID string, status models.PaymentStatus) error {
	return m.setRental(orderID, func(r *models.Rental) { r.Payment = status })
}

func (m *Memory) AddIncome(_ context.Context, orderID string, amount float64) error {
	return m.setRental(orderID, func(r *models.Rental) { r.Income += amount })
}

func (m *Memory) DeleteRental(_ context.Context, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rentals[orderID]; !ok {
		return ErrNotFound
	}
	delete(m.rentals, orderID)
	return nil
}

func (m *Memory) setRental(orderID string, mutate func(*models.Rental)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rentals[orderID]
	if !ok {
		return ErrNotFound
	}
	mutate(r)
	return nil
}

func (m *Memory) AddAccount(_ context.Context, a *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.accounts[a.Login]; exists {
		return ErrDuplicateLogin
	}
	cp := *a
	m.accounts[a.Login] = &cp
	return nil
}

func (m *Memory) AccountByLogin(_ context.Context, login string) (*models.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.accounts[login]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *Memory) AccountsByGame(_ context.Context, gt models.GameType) ([]*models.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []*models.Account
	for _, a := range m.accounts {
		if a.GameType == gt {
			cp := *a
			res = append(res, &cp)
		}
	}
	return res, nil
}

func (m *Memory) SetBusy(_ context.Context, login string, busy bool) error {
	return m.setAccount(login, func(a *models.Account) { a.Busy = busy })
}

func (m *Memory) SetBanned(_ context.Context, login string, banned bool) error {
	return m.setAccount(login, func(a *models.Account) { a.Banned = banned })
}

func (m *Memory) SetRenter(_ context.Context, login string, buyerID int64) error {
	return m.setAccount(login, func(a *models.Account) { a.RentedBy = buyerID })
}

func (m *Memory) SetDotaRank(_ context.Context, login string, mmr int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[login]
	if !ok || a.Dota == nil {
		return ErrNotFound
	}
	a.Dota.MMR = mmr
	return nil
}

func (m *Memory) setAccount(login string, mutate func(*models.Account)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[login]
	if !ok {
		return ErrNotFound
	}
	mutate(a)
	return nil
}
