// Package rent owns the rental state machine: sale, extension, feedback
// bonus, expiry and buyer-initiated ban/refund, plus the chat command
// surface and the background sweeps that drive time-based transitions.
package rent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mookor/rentbot/internal/audit"
	"github.com/mookor/rentbot/internal/lots"
	"github.com/mookor/rentbot/internal/marketplace"
	"github.com/mookor/rentbot/internal/models"
	"github.com/mookor/rentbot/internal/ops"
	"github.com/mookor/rentbot/internal/provision"
	"github.com/mookor/rentbot/internal/retry"
	"github.com/mookor/rentbot/internal/store"
)

const helpText = `Команды:
!время - оставшееся время аренды
!продлить <заказ> - выставить лот продления аренды
!code <заказ> - получить код входа Steam Guard
!ban <заказ> - возврат средств, если аккаунт забанен
!помощь - эта справка`

// Settings - параметры жизненного цикла аренды.
type Settings struct {
	WarnWindow      time.Duration
	BanGrace        time.Duration
	FeedbackBonus   time.Duration
	DefaultMinHours int
	BotID           int64
	AdminName       string
	// GameByCategory сопоставляет категорию площадки типу игры.
	GameByCategory map[int64]models.GameType
}

// Orchestrator координирует хранилище, площадку и игровые стратегии.
// Авторитетное состояние всегда перечитывается из хранилища перед
// изменением.
type Orchestrator struct {
	rentals  store.RentalStore
	accounts store.AccountStore
	market   marketplace.Client
	call     *retry.Caller
	lots     *lots.Manager
	registry *provision.Registry
	audit    *audit.Recorder
	log      *slog.Logger
	set      Settings

	now func() time.Time
}

func NewOrchestrator(
	rentals store.RentalStore,
	accounts store.AccountStore,
	market marketplace.Client,
	call *retry.Caller,
	lm *lots.Manager,
	registry *provision.Registry,
	rec *audit.Recorder,
	set Settings,
	log *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		rentals:  rentals,
		accounts: accounts,
		market:   market,
		call:     call,
		lots:     lm,
		registry: registry,
		audit:    rec,
		log:      log,
		set:      set,
		now:      time.Now,
	}
}

// HandleOrder обрабатывает оплаченный заказ: либо продление по номеру
// исходного заказа в описании, либо продажа аренды.
func (o *Orchestrator) HandleOrder(ctx context.Context, order *marketplace.Order) error {
	if originID, ok := lots.ParseExtendOrder(order.Description); ok {
		return o.handleExtension(ctx, order, originID)
	}
	return o.handleSale(ctx, order)
}

func (o *Orchestrator) handleSale(ctx context.Context, order *marketplace.Order) error {
	gt, ok := o.set.GameByCategory[order.CategoryID]
	if !ok {
		return nil
	}
	chatID := o.chatFor(order)

	login := lots.ExtractLogin(order.Description)
	if login == "" {
		return o.refundSale(ctx, order, chatID,
			"Не удалось определить аккаунт по описанию заказа. Средства возвращены.")
	}

	account, err := o.accounts.AccountByLogin(ctx, login)
	if errors.Is(err, store.ErrNotFound) {
		return o.refundSale(ctx, order, chatID,
			"Аккаунт из заказа больше не сдаётся в аренду. Средства возвращены.")
	}
	if err != nil {
		return fmt.Errorf("аккаунт %s: %w", login, err)
	}
	if account.Banned {
		return o.refundSale(ctx, order, chatID,
			"Аккаунт недоступен для аренды. Средства возвращены.")
	}
	if account.Busy {
		return o.refundSale(ctx, order, chatID,
			"Аккаунт уже арендован другим покупателем. Средства возвращены.")
	}

	minHours := lots.ParseMinHours(order.Description, o.set.DefaultMinHours)
	if order.Hours < minHours {
		return o.refundSale(ctx, order, chatID,
			fmt.Sprintf("Минимальное время аренды этого аккаунта %d ч, оплачено %d ч. Средства возвращены.",
				minHours, order.Hours))
	}
	if order.Hours <= 0 {
		return o.refundSale(ctx, order, chatID,
			"В заказе нулевое количество часов. Средства возвращены.")
	}

	now := o.now()
	rental := &models.Rental{
		OrderID:       order.ID,
		BuyerID:       order.BuyerID,
		Login:         login,
		GameType:      gt,
		StartRentTime: now,
		EndRentTime:   now.Add(time.Duration(order.Hours) * time.Hour),
		Income:        order.Price,
		Hours:         order.Hours,
		InRent:        true,
		Payment:       models.PaymentCaptured,
		ChatID:        chatID,
	}
	if err := o.rentals.CreateRental(ctx, rental); err != nil {
		if errors.Is(err, store.ErrDuplicateOrder) {
			o.log.Warn("повторная доставка заказа", "order", order.ID)
			return nil
		}
		return fmt.Errorf("создание аренды %s: %w", order.ID, err)
	}
	if err := o.accounts.SetBusy(ctx, login, true); err != nil {
		return fmt.Errorf("занять аккаунт %s: %w", login, err)
	}
	if err := o.accounts.SetRenter(ctx, login, order.BuyerID); err != nil {
		return fmt.Errorf("назначить арендатора %s: %w", login, err)
	}

	o.hideListing(ctx, gt, login)

	o.send(ctx, chatID, fmt.Sprintf(
		"Спасибо за покупку!\nЛогин: %s\nПароль: %s\nАренда до %s.\n\n%s\n\nОставьте отзыв с номером заказа #%s и получите +%d минут аренды.",
		account.Login, account.Password,
		rental.EndRentTime.Format("15:04 02.01.2006"),
		helpText, order.ID, int(o.set.FeedbackBonus.Minutes())))

	ops.SalesTotal.Inc()
	o.audit.Record(audit.NewEvent(audit.KindSale, order.ID, login, order.BuyerID,
		fmt.Sprintf("часов: %d, цена: %.2f", order.Hours, order.Price)))
	o.log.Info("аренда оформлена", "order", order.ID, "login", login, "hours", order.Hours)
	return nil
}

// handleExtension применяет оплаченное продление к исходной аренде.
// Если исходная аренда не найдена или завершена, платёж возвращается.
func (o *Orchestrator) handleExtension(ctx context.Context, order *marketplace.Order, originID string) error {
	chatID := o.chatFor(order)

	rental, err := o.rentals.RentalByOrder(ctx, originID)
	if errors.Is(err, store.ErrNotFound) {
		return o.refundSale(ctx, order, chatID,
			fmt.Sprintf("Исходный заказ %s не найден. Средства за продление возвращены.", originID))
	}
	if err != nil {
		return fmt.Errorf("аренда %s: %w", originID, err)
	}
	if !rental.InRent {
		return o.refundSale(ctx, order, chatID,
			fmt.Sprintf("Аренда по заказу %s уже завершена. Средства за продление возвращены.", originID))
	}
	if rental.BuyerID != order.BuyerID {
		return o.refundSale(ctx, order, chatID,
			fmt.Sprintf("Заказ %s принадлежит другому покупателю. Средства возвращены.", originID))
	}
	if order.Hours <= 0 {
		return o.refundSale(ctx, order, chatID,
			"В заказе продления нулевое количество часов. Средства возвращены.")
	}

	delta := time.Duration(order.Hours) * time.Hour
	if err := o.rentals.ExtendRental(ctx, originID, delta, o.set.WarnWindow); err != nil {
		return fmt.Errorf("продление %s: %w", originID, err)
	}
	if err := o.rentals.AddIncome(ctx, originID, order.Price); err != nil {
		o.log.Error("учёт дохода продления", "order", originID, "error", err)
	}
	o.removeExtensionLot(ctx, rental.GameType, originID)

	updated, err := o.rentals.RentalByOrder(ctx, originID)
	until := ""
	if err == nil {
		until = " до " + updated.EndRentTime.Format("15:04 02.01.2006")
	}
	o.send(ctx, o.rentalChat(rental), fmt.Sprintf("Аренда по заказу %s продлена на %d ч%s.", originID, order.Hours, until))

	ops.ExtensionsTotal.Inc()
	o.audit.Record(audit.NewEvent(audit.KindExtend, originID, rental.Login, rental.BuyerID,
		fmt.Sprintf("часов: %d, цена: %.2f", order.Hours, order.Price)))
	return nil
}

// HandleFeedback начисляет бонус за отзыв: один раз на заказ, только
// пока аренда активна.
func (o *Orchestrator) HandleFeedback(ctx context.Context, orderID string) error {
	rental, err := o.rentals.RentalByOrder(ctx, orderID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("аренда %s: %w", orderID, err)
	}
	chatID := o.rentalChat(rental)
	if !rental.InRent {
		o.send(ctx, chatID, "Спасибо за отзыв! Аренда уже завершена, бонус не начислен.")
		return nil
	}
	if rental.BonusGiven {
		o.send(ctx, chatID, "Бонус за отзыв по этому заказу уже начислен.")
		return nil
	}
	if err := o.rentals.ExtendRental(ctx, orderID, o.set.FeedbackBonus, o.set.WarnWindow); err != nil {
		return fmt.Errorf("бонусное продление %s: %w", orderID, err)
	}
	if err := o.rentals.MarkBonusGiven(ctx, orderID); err != nil {
		return fmt.Errorf("отметка бонуса %s: %w", orderID, err)
	}
	o.send(ctx, chatID, fmt.Sprintf("Спасибо за отзыв! Аренда продлена на %d минут.",
		int(o.set.FeedbackBonus.Minutes())))
	o.audit.Record(audit.NewEvent(audit.KindBonus, orderID, rental.Login, rental.BuyerID, ""))
	return nil
}

// TimeRemaining отвечает покупателю оставшимся временем по всем его
// активным арендам.
func (o *Orchestrator) TimeRemaining(ctx context.Context, buyerID int64, chatID string) error {
	rentals, err := o.rentals.ActiveRentalsByBuyer(ctx, buyerID)
	if err != nil {
		return fmt.Errorf("аренды покупателя %d: %w", buyerID, err)
	}
	if len(rentals) == 0 {
		o.send(ctx, chatID, "У вас нет активных аренд.")
		return nil
	}
	now := o.now()
	text := "Ваши аренды:"
	for _, r := range rentals {
		text += fmt.Sprintf("\nЗаказ %s: осталось %s", r.OrderID, formatDuration(r.Remaining(now)))
	}
	o.send(ctx, chatID, text)
	return nil
}

// RequestExtension выставляет лот продления по цене часа исходного
// заказа.
func (o *Orchestrator) RequestExtension(ctx context.Context, buyerID int64, chatID, orderID string) error {
	rental, ok, err := o.ownedActiveRental(ctx, buyerID, chatID, orderID)
	if !ok || err != nil {
		return err
	}
	unitPrice, ok := rental.UnitPrice()
	if !ok {
		o.send(ctx, chatID, "Не удалось вычислить цену часа по этому заказу, обратитесь к администратору "+o.set.AdminName+".")
		return nil
	}
	p, err := o.registry.For(rental.GameType)
	if err != nil {
		return err
	}
	if err := p.CreateExtensionLot(ctx, orderID, unitPrice); err != nil {
		o.send(ctx, chatID, "Не удалось выставить лот продления, попробуйте позже.")
		return fmt.Errorf("лот продления %s: %w", orderID, err)
	}
	o.send(ctx, chatID, fmt.Sprintf(
		"Лот продления выставлен: %.2f за час. Купите нужное количество часов, продление применится автоматически.",
		unitPrice))
	return nil
}

// IssueCode выдаёт код входа. Состояние аренды не меняется, команду
// можно повторять.
func (o *Orchestrator) IssueCode(ctx context.Context, buyerID int64, chatID, orderID string) error {
	rental, ok, err := o.ownedActiveRental(ctx, buyerID, chatID, orderID)
	if !ok || err != nil {
		return err
	}
	account, err := o.accounts.AccountByLogin(ctx, rental.Login)
	if err != nil {
		return fmt.Errorf("аккаунт %s: %w", rental.Login, err)
	}
	p, err := o.registry.For(rental.GameType)
	if err != nil {
		return err
	}
	code, err := p.IssueCode(ctx, account)
	if errors.Is(err, provision.ErrCodeUnavailable) {
		o.send(ctx, chatID, "Для этой игры код входа не требуется, входите по логину и паролю.")
		return nil
	}
	if err != nil {
		o.send(ctx, chatID, "Не удалось получить код, попробуйте ещё раз через минуту.")
		return fmt.Errorf("код входа %s: %w", rental.Login, err)
	}
	o.send(ctx, chatID, "Код входа: "+code)
	o.audit.Record(audit.NewEvent(audit.KindCodeSent, orderID, rental.Login, buyerID, ""))
	return nil
}

// Ban - возврат по жалобе на бан. Доступен только покупателю аренды и
// только в пределах льготного окна после старта; аккаунт помечается
// забаненным и навсегда снимается с продажи.
func (o *Orchestrator) Ban(ctx context.Context, buyerID int64, chatID, orderID string) error {
	rental, err := o.rentals.RentalByOrder(ctx, orderID)
	if errors.Is(err, store.ErrNotFound) {
		o.send(ctx, chatID, fmt.Sprintf("Заказ %s не найден.", orderID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("аренда %s: %w", orderID, err)
	}
	if rental.BuyerID != buyerID {
		o.send(ctx, chatID, fmt.Sprintf("Заказ %s принадлежит другому покупателю.", orderID))
		return nil
	}
	if !rental.InRent {
		o.send(ctx, chatID, fmt.Sprintf("Аренда по заказу %s уже завершена.", orderID))
		return nil
	}
	if o.now().Sub(rental.StartRentTime) > o.set.BanGrace {
		o.send(ctx, chatID, fmt.Sprintf(
			"С начала аренды прошло больше %d минут. Обратитесь к администратору %s.",
			int(o.set.BanGrace.Minutes()), o.set.AdminName))
		return nil
	}

	if err := o.refund(ctx, orderID); err != nil {
		o.send(ctx, chatID, "Не удалось оформить возврат, обратитесь к администратору "+o.set.AdminName+".")
		return fmt.Errorf("возврат %s: %w", orderID, err)
	}
	if err := o.rentals.MarkInactive(ctx, orderID); err != nil {
		o.log.Error("завершение аренды после возврата", "order", orderID, "error", err)
	}
	if err := o.rentals.SetPaymentStatus(ctx, orderID, models.PaymentRefunded); err != nil {
		o.log.Error("статус платежа после возврата", "order", orderID, "error", err)
	}
	if err := o.accounts.SetBanned(ctx, rental.Login, true); err != nil {
		o.log.Error("пометка бана", "login", rental.Login, "error", err)
	}
	if err := o.accounts.SetBusy(ctx, rental.Login, false); err != nil {
		o.log.Error("освобождение аккаунта", "login", rental.Login, "error", err)
	}
	if err := o.accounts.SetRenter(ctx, rental.Login, 0); err != nil {
		o.log.Error("сброс арендатора", "login", rental.Login, "error", err)
	}
	o.hideListing(ctx, rental.GameType, rental.Login)

	o.send(ctx, chatID, "Средства возвращены, приносим извинения за неудобства.")
	o.audit.Record(audit.NewEvent(audit.KindBan, orderID, rental.Login, buyerID, ""))
	o.log.Warn("аккаунт забанен по жалобе", "order", orderID, "login", rental.Login)
	return nil
}

// ExpireDue завершает все аренды с истёкшим сроком. Ошибка по одной
// аренде не прерывает обработку остальных.
func (o *Orchestrator) ExpireDue(ctx context.Context) error {
	due, err := o.rentals.DueRentals(ctx, o.now())
	if err != nil {
		return fmt.Errorf("выборка истёкших аренд: %w", err)
	}
	for _, r := range due {
		if err := o.expireOne(ctx, r); err != nil {
			o.log.Error("завершение аренды", "order", r.OrderID, "error", err)
		}
	}
	return nil
}

// expireOne: терминальный переход в хранилище фиксируется первым, всё
// остальное best-effort. Аккаунт освобождается даже при неудавшемся
// отзыве доступа.
func (o *Orchestrator) expireOne(ctx context.Context, r *models.Rental) error {
	if err := o.rentals.MarkInactive(ctx, r.OrderID); err != nil {
		return fmt.Errorf("завершение %s: %w", r.OrderID, err)
	}
	if err := o.rentals.SetPaymentStatus(ctx, r.OrderID, models.PaymentSettled); err != nil {
		o.log.Error("статус платежа", "order", r.OrderID, "error", err)
	}
	if err := o.accounts.SetBusy(ctx, r.Login, false); err != nil {
		o.log.Error("освобождение аккаунта", "login", r.Login, "error", err)
	}
	if err := o.accounts.SetRenter(ctx, r.Login, 0); err != nil {
		o.log.Error("сброс арендатора", "login", r.Login, "error", err)
	}

	p, err := o.registry.For(r.GameType)
	if err != nil {
		o.log.Error("стратегия игры", "game", r.GameType, "error", err)
	} else {
		account, aerr := o.accounts.AccountByLogin(ctx, r.Login)
		if aerr != nil {
			o.log.Error("аккаунт для отзыва доступа", "login", r.Login, "error", aerr)
		} else if rerr := p.RevokeAccess(ctx, account); rerr != nil {
			o.log.Error("отзыв доступа", "login", r.Login, "error", rerr)
		}
		o.relist(ctx, p, r)
	}

	chatID := o.rentalChat(r)
	o.send(ctx, chatID, fmt.Sprintf("Аренда по заказу %s завершена, доступ к аккаунту закрыт.", r.OrderID))
	o.send(ctx, chatID, "Пожалуйста, подтвердите выполнение заказа на площадке.")

	ops.ExpiredTotal.Inc()
	o.audit.Record(audit.NewEvent(audit.KindExpire, r.OrderID, r.Login, r.BuyerID, ""))
	o.log.Info("аренда завершена по сроку", "order", r.OrderID, "login", r.Login)
	return nil
}

// relist пересоздаёт лот аккаунта, при неудаче запускает полную сверку.
func (o *Orchestrator) relist(ctx context.Context, p provision.Provisioner, r *models.Rental) {
	recreated, err := o.lots.Recreate(ctx, r.GameType, r.Login)
	if err == nil && recreated {
		return
	}
	if err != nil {
		o.log.Error("пересоздание лота", "login", r.Login, "error", err)
	}
	if err := p.ReconcileListings(ctx); err != nil {
		o.log.Error("сверка лотов после завершения аренды", "game", r.GameType, "error", err)
	}
}

// NotifyExpiring предупреждает об окончании аренды. Флаг ставится
// только после успешной отправки, иначе следующий проход повторит
// попытку.
func (o *Orchestrator) NotifyExpiring(ctx context.Context) error {
	expiring, err := o.rentals.RentalsExpiringWithin(ctx, o.now(), o.set.WarnWindow)
	if err != nil {
		return fmt.Errorf("выборка истекающих аренд: %w", err)
	}
	for _, r := range expiring {
		text := fmt.Sprintf("Аренда по заказу %s закончится через %s. Продлить: !продлить %s",
			r.OrderID, formatDuration(r.Remaining(o.now())), r.OrderID)
		if err := o.sendErr(ctx, o.rentalChat(r), text); err != nil {
			o.log.Error("предупреждение об окончании", "order", r.OrderID, "error", err)
			continue
		}
		if err := o.rentals.MarkNotified(ctx, r.OrderID); err != nil {
			o.log.Error("отметка уведомления", "order", r.OrderID, "error", err)
		}
	}
	return nil
}

// ownedActiveRental перечитывает аренду и проверяет владельца и
// активность, отвечая покупателю при любом отказе.
func (o *Orchestrator) ownedActiveRental(ctx context.Context, buyerID int64, chatID, orderID string) (*models.Rental, bool, error) {
	rental, err := o.rentals.RentalByOrder(ctx, orderID)
	if errors.Is(err, store.ErrNotFound) {
		o.send(ctx, chatID, fmt.Sprintf("Заказ %s не найден.", orderID))
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("аренда %s: %w", orderID, err)
	}
	if rental.BuyerID != buyerID {
		o.send(ctx, chatID, fmt.Sprintf("Заказ %s принадлежит другому покупателю.", orderID))
		return nil, false, nil
	}
	if !rental.InRent {
		o.send(ctx, chatID, fmt.Sprintf("Аренда по заказу %s уже завершена.", orderID))
		return nil, false, nil
	}
	return rental, true, nil
}

func (o *Orchestrator) refundSale(ctx context.Context, order *marketplace.Order, chatID, reason string) error {
	if err := o.refund(ctx, order.ID); err != nil {
		o.send(ctx, chatID, "Не удалось оформить возврат автоматически, обратитесь к администратору "+o.set.AdminName+".")
		return fmt.Errorf("возврат %s: %w", order.ID, err)
	}
	o.send(ctx, chatID, reason)
	o.audit.Record(audit.NewEvent(audit.KindRefund, order.ID, "", order.BuyerID, reason))
	o.log.Warn("заказ возвращён", "order", order.ID, "reason", reason)
	return nil
}

func (o *Orchestrator) refund(ctx context.Context, orderID string) error {
	err := o.call.Do(ctx, "refund", func(ctx context.Context) error {
		return o.market.Refund(ctx, orderID)
	})
	if err != nil {
		return err
	}
	ops.RefundsTotal.Inc()
	return nil
}

func (o *Orchestrator) hideListing(ctx context.Context, gt models.GameType, login string) {
	lot, err := o.lots.FindByLogin(ctx, gt, login)
	if err != nil {
		o.log.Error("поиск лота аккаунта", "login", login, "error", err)
		return
	}
	if lot == nil || !lot.Active {
		return
	}
	if err := o.lots.SetActive(ctx, lot.ID, false); err != nil {
		o.log.Error("скрытие лота", "login", login, "error", err)
	}
}

func (o *Orchestrator) removeExtensionLot(ctx context.Context, gt models.GameType, orderID string) {
	lot, err := o.lots.FindExtendLot(ctx, gt, orderID)
	if err != nil {
		o.log.Error("поиск лота продления", "order", orderID, "error", err)
		return
	}
	if lot == nil {
		return
	}
	if err := o.lots.DeleteLot(ctx, lot.ID); err != nil {
		o.log.Error("удаление лота продления", "order", orderID, "error", err)
	}
}

// send - отправка в чат best-effort: состояние уже зафиксировано,
// неудача отправки остаётся сигналом мониторинга.
func (o *Orchestrator) send(ctx context.Context, chatID, text string) {
	if err := o.sendErr(ctx, chatID, text); err != nil {
		ops.SendFailures.Inc()
		o.log.Error("отправка сообщения", "chat", chatID, "error", err)
	}
}

func (o *Orchestrator) sendErr(ctx context.Context, chatID, text string) error {
	return o.call.Do(ctx, "send message", func(ctx context.Context) error {
		return o.market.SendMessage(ctx, chatID, text)
	})
}

func (o *Orchestrator) chatFor(order *marketplace.Order) string {
	if order.ChatID != "" {
		return order.ChatID
	}
	return fmt.Sprintf("users-%d-%d", o.set.BotID, order.BuyerID)
}

func (o *Orchestrator) rentalChat(r *models.Rental) string {
	if r.ChatID != "" {
		return r.ChatID
	}
	return fmt.Sprintf("users-%d-%d", o.set.BotID, r.BuyerID)
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h == 0 {
		return fmt.Sprintf("%d мин", m)
	}
	return fmt.Sprintf("%d ч %d мин", h, m)
}
