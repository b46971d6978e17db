package models

import "time"

type GameType string

const (
	GameDota     GameType = "dota"
	GameValorant GameType = "valorant"
	GameLol      GameType = "lol"
)

type PaymentStatus string

const (
	PaymentCaptured PaymentStatus = "captured"
	PaymentSettled  PaymentStatus = "settled"
	PaymentRefunded PaymentStatus = "refunded"
)

// Rental - один оплаченный период аренды аккаунта.
type Rental struct {
	OrderID       string        `json:"order_id"`
	BuyerID       int64         `json:"buyer_id"`
	Login         string        `json:"login"`
	GameType      GameType      `json:"game_type"`
	StartRentTime time.Time     `json:"start_rent_time"`
	EndRentTime   time.Time     `json:"end_rent_time"`
	Income        float64       `json:"income"`
	Hours         int           `json:"hours"`
	Notified      bool          `json:"notified"`
	BonusGiven    bool          `json:"bonus_given"`
	InRent        bool          `json:"in_rent"`
	Payment       PaymentStatus `json:"payment"`
	ChatID        string        `json:"chat_id,omitempty"`
}

func (r *Rental) Remaining(now time.Time) time.Duration {
	return r.EndRentTime.Sub(now)
}

// UnitPrice - цена за один час аренды, выведенная из заказа.
// false, если заказ пришёл с нулевым количеством часов.
func (r *Rental) UnitPrice() (float64, bool) {
	if r.Hours <= 0 {
		return 0, false
	}
	return r.Income / float64(r.Hours), true
}

// DotaAttrs - специфичные атрибуты Dota-аккаунта.
type DotaAttrs struct {
	DotaID        int64  `json:"dota_id"`
	MMR           int    `json:"mmr"`
	BehaviorScore int    `json:"behavior_score"`
	ProfileLink   string `json:"profile_link"`
}

// RankAttrs - атрибуты аккаунтов с текстовым рангом (Valorant, LoL).
type RankAttrs struct {
	Rank        string `json:"rank"`
	ProfileLink string `json:"profile_link"`
}

// Account - сдаваемый в аренду игровой аккаунт. Игровые атрибуты лежат
// в Dota либо Rank в зависимости от GameType.
type Account struct {
	Login    string     `json:"login"`
	Password string     `json:"password"`
	RentedBy int64      `json:"rented_by,omitempty"`
	GameType GameType   `json:"game_type"`
	Busy     bool       `json:"busy"`
	Banned   bool       `json:"banned"`
	Dota     *DotaAttrs `json:"dota,omitempty"`
	Rank     *RankAttrs `json:"rank,omitempty"`
}

// Rentable - может ли аккаунт быть выставлен на продажу.
func (a *Account) Rentable() bool {
	return !a.Busy && !a.Banned
}
