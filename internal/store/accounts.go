package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/mookor/rentbot/internal/models"
)

type AccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) AddAccount(ctx context.Context, a *models.Account) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("add account: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO accounts (login, password, rented_by, game_type, is_busy, is_banned)
		 VALUES ($1,$2,$3,$4,$5,$6)`,
		a.Login, a.Password, nullInt64(a.RentedBy), a.GameType, a.Busy, a.Banned,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
		return ErrDuplicateLogin
	}
	if err != nil {
		return fmt.Errorf("add account: %w", err)
	}

	switch {
	case a.Dota != nil:
		_, err = tx.ExecContext(ctx,
			`INSERT INTO dota_accounts (login, dota_id, mmr, behavior_score, profile_link)
			 VALUES ($1,$2,$3,$4,$5)`,
			a.Login, a.Dota.DotaID, a.Dota.MMR, a.Dota.BehaviorScore, a.Dota.ProfileLink,
		)
	case a.Rank != nil:
		_, err = tx.ExecContext(ctx,
			`INSERT INTO rank_accounts (login, game_type, rank, profile_link)
			 VALUES ($1,$2,$3,$4)`,
			a.Login, a.GameType, a.Rank.Rank, a.Rank.ProfileLink,
		)
	}
	if err != nil {
		return fmt.Errorf("add account attrs: %w", err)
	}
	return tx.Commit()
}

func (r *AccountRepository) AccountByLogin(ctx context.Context, login string) (*models.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT login, password, rented_by, game_type, is_busy, is_banned
		 FROM accounts WHERE login=$1`, login)

	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account by login: %w", err)
	}
	if err := r.loadAttrs(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (r *AccountRepository) AccountsByGame(ctx context.Context, gt models.GameType) ([]*models.Account, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT login, password, rented_by, game_type, is_busy, is_banned
		 FROM accounts WHERE game_type=$1 ORDER BY login`, gt)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var res []*models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		res = append(res, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, a := range res {
		if err := r.loadAttrs(ctx, a); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (r *AccountRepository) loadAttrs(ctx context.Context, a *models.Account) error {
	switch a.GameType {
	case models.GameDota:
		attrs := &models.DotaAttrs{}
		err := r.db.QueryRowContext(ctx,
			`SELECT dota_id, mmr, behavior_score, profile_link FROM dota_accounts WHERE login=$1`,
			a.Login,
		).Scan(&attrs.DotaID, &attrs.MMR, &attrs.BehaviorScore, &attrs.ProfileLink)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return fmt.Errorf("load dota attrs: %w", err)
		}
		a.Dota = attrs
	case models.GameValorant, models.GameLol:
		attrs := &models.RankAttrs{}
		err := r.db.QueryRowContext(ctx,
			`SELECT rank, profile_link FROM rank_accounts WHERE login=$1`,
			a.Login,
		).Scan(&attrs.Rank, &attrs.ProfileLink)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return fmt.Errorf("load rank attrs: %w", err)
		}
		a.Rank = attrs
	}
	return nil
}

func (r *AccountRepository) SetBusy(ctx context.Context, login string, busy bool) error {
	return r.exec(ctx, "set busy", `UPDATE accounts SET is_busy=$2 WHERE login=$1`, login, busy)
}

func (r *AccountRepository) SetBanned(ctx context.Context, login string, banned bool) error {
	return r.exec(ctx, "set banned", `UPDATE accounts SET is_banned=$2 WHERE login=$1`, login, banned)
}

func (r *AccountRepository) SetRenter(ctx context.Context, login string, buyerID int64) error {
	return r.exec(ctx, "set renter", `UPDATE accounts SET rented_by=$2 WHERE login=$1`, login, nullInt64(buyerID))
}

func (r *AccountRepository) SetDotaRank(ctx context.Context, login string, mmr int) error {
	return r.exec(ctx, "set dota rank", `UPDATE dota_accounts SET mmr=$2 WHERE login=$1`, login, mmr)
}

func (r *AccountRepository) exec(ctx context.Context, op, query string, args ...interface{}) error {
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

func scanAccount(row rowScanner) (*models.Account, error) {
	a := &models.Account{}
	var rentedBy sql.NullInt64
	err := row.Scan(&a.Login, &a.Password, &rentedBy, &a.GameType, &a.Busy, &a.Banned)
	if err != nil {
		return nil, err
	}
	a.RentedBy = rentedBy.Int64
	return a, nil
}

func nullInt64(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: v != 0}
}
