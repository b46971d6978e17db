package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/mookor/rentbot/internal/models"
)

type RentalRepository struct {
	db *sql.DB
}

func NewRentalRepository(db *sql.DB) *RentalRepository {
	return &RentalRepository{db: db}
}

const rentalColumns = `order_id, buyer_id, login, game_type, start_rent_time, end_rent_time,
			income, hours, notified, bonus_given, in_rent, payment, chat_id`

func (r *RentalRepository) CreateRental(ctx context.Context, rental *models.Rental) error {
	query := `INSERT INTO rentals (` + rentalColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`

	_, err := r.db.ExecContext(ctx, query,
		rental.OrderID, rental.BuyerID, rental.Login, rental.GameType,
		rental.StartRentTime, rental.EndRentTime, rental.Income, rental.Hours,
		rental.Notified, rental.BonusGiven, rental.InRent, rental.Payment,
		nullString(rental.ChatID),
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
		return ErrDuplicateOrder
	}
	if err != nil {
		return fmt.Errorf("create rental: %w", err)
	}
	return nil
}

func (r *RentalRepository) RentalByOrder(ctx context.Context, orderID string) (*models.Rental, error) {
	query := `SELECT ` + rentalColumns + ` FROM rentals WHERE order_id=$1`
	rental, err := scanRental(r.db.QueryRowContext(ctx, query, orderID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get rental by order: %w", err)
	}
	return rental, nil
}

func (r *RentalRepository) ActiveRentalsByBuyer(ctx context.Context, buyerID int64) ([]*models.Rental, error) {
	query := `SELECT ` + rentalColumns + ` FROM rentals WHERE buyer_id=$1 AND in_rent`
	return r.queryRentals(ctx, query, buyerID)
}

func (r *RentalRepository) DueRentals(ctx context.Context, now time.Time) ([]*models.Rental, error) {
	query := `SELECT ` + rentalColumns + ` FROM rentals WHERE in_rent AND end_rent_time <= $1`
	return r.queryRentals(ctx, query, now)
}

func (r *RentalRepository) RentalsExpiringWithin(ctx context.Context, now time.Time, window time.Duration) ([]*models.Rental, error) {
	query := `SELECT ` + rentalColumns + ` FROM rentals
		WHERE in_rent AND NOT notified AND end_rent_time > $1 AND end_rent_time <= $2`
	return r.queryRentals(ctx, query, now, now.Add(window))
}

func (r *RentalRepository) ExtendRental(ctx context.Context, orderID string, delta, warnWindow time.Duration) error {
	// notified сбрасывается атомарно с продлением: иначе между UPDATE
	// и сбросом цикл уведомлений успел бы пропустить аренду навсегда.
	query := `UPDATE rentals SET
			end_rent_time = end_rent_time + make_interval(secs => $2),
			notified = CASE
				WHEN end_rent_time + make_interval(secs => $2) > NOW() + make_interval(secs => $3) THEN FALSE
				ELSE notified
			END
		WHERE order_id=$1`
	return r.exec(ctx, "extend rental", query, orderID, delta.Seconds(), warnWindow.Seconds())
}

func (r *RentalRepository) MarkNotified(ctx context.Context, orderID string) error {
	return r.exec(ctx, "mark notified", `UPDATE rentals SET notified = TRUE WHERE order_id=$1`, orderID)
}

func (r *RentalRepository) MarkBonusGiven(ctx context.Context, orderID string) error {
	return r.exec(ctx, "mark bonus given", `UPDATE rentals SET bonus_given = TRUE WHERE order_id=$1`, orderID)
}

func (r *RentalRepository) MarkInactive(ctx context.Context, orderID string) error {
	return r.exec(ctx, "mark inactive", `UPDATE rentals SET in_rent = FALSE WHERE order_id=$1`, orderID)
}

func (r *RentalRepository) SetPaymentStatus(ctx context.Context, orderID string, status models.PaymentStatus) error {
	return r.exec(ctx, "set payment status", `UPDATE rentals SET payment=$2 WHERE order_id=$1`, orderID, status)
}

func (r *RentalRepository) AddIncome(ctx context.Context, orderID string, amount float64) error {
	return r.exec(ctx, "add income", `UPDATE rentals SET income = income + $2 WHERE order_id=$1`, orderID, amount)
}

func (r *RentalRepository) DeleteRental(ctx context.Context, orderID string) error {
	return r.exec(ctx, "delete rental", `DELETE FROM rentals WHERE order_id=$1`, orderID)
}

func (r *RentalRepository) exec(ctx context.Context, op, query string, args ...interface{}) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *RentalRepository) queryRentals(ctx context.Context, query string, args ...interface{}) ([]*models.Rental, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list rentals: %w", err)
	}
	defer rows.Close()

	var res []*models.Rental
	for rows.Next() {
		rental, err := scanRental(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rental: %w", err)
		}
		res = append(res, rental)
	}
	return res, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRental(row rowScanner) (*models.Rental, error) {
	rental := &models.Rental{}
	var chatID sql.NullString
	err := row.Scan(
		&rental.OrderID, &rental.BuyerID, &rental.Login, &rental.GameType,
		&rental.StartRentTime, &rental.EndRentTime, &rental.Income, &rental.Hours,
		&rental.Notified, &rental.BonusGiven, &rental.InRent, &rental.Payment,
		&chatID,
	)
	if err != nil {
		return nil, err
	}
	rental.ChatID = chatID.String
	return rental, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
