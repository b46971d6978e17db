package store_test

import (
	"context"
	"database/sql"
	"log"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mookor/rentbot/internal/models"
	"github.com/mookor/rentbot/internal/store"
)

var (
	db       *sql.DB
	rentals  *store.RentalRepository
	accounts *store.AccountRepository
)

// Тесты репозитория гоняются против живого postgres из TEST_DSN,
// без него пакет проверяется только in-memory реализацией.
func TestMain(m *testing.M) {
	dsn := os.Getenv("TEST_DSN")
	if dsn == "" {
		os.Exit(m.Run())
	}
	var err error
	db, err = sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	if err = db.Ping(); err != nil {
		log.Fatalf("ping db: %v", err)
	}
	if err := goose.Up(db, "../../migrations"); err != nil {
		log.Fatalf("goose up: %v", err)
	}
	rentals = store.NewRentalRepository(db)
	accounts = store.NewAccountRepository(db)

	code := m.Run()

	db.Exec("DELETE FROM rentals")
	db.Exec("DELETE FROM accounts")
	os.Exit(code)
}

func requirePostgres(t *testing.T) {
	if db == nil {
		t.Skip("TEST_DSN не задан")
	}
}

func TestRentalLifecyclePG(t *testing.T) {
	requirePostgres(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	r := &models.Rental{
		OrderID:       "PG000001",
		BuyerID:       7,
		Login:         "pgacc1",
		GameType:      models.GameDota,
		StartRentTime: now,
		EndRentTime:   now.Add(10 * time.Hour),
		Income:        50,
		Hours:         10,
		InRent:        true,
		Payment:       models.PaymentCaptured,
		ChatID:        "chat-7",
	}
	require.NoError(t, rentals.CreateRental(ctx, r))
	assert.ErrorIs(t, rentals.CreateRental(ctx, r), store.ErrDuplicateOrder)

	got, err := rentals.RentalByOrder(ctx, "PG000001")
	require.NoError(t, err)
	assert.Equal(t, "pgacc1", got.Login)
	assert.Equal(t, "chat-7", got.ChatID)
	assert.True(t, got.InRent)

	require.NoError(t, rentals.ExtendRental(ctx, "PG000001", 2*time.Hour, 31*time.Minute))
	got, err = rentals.RentalByOrder(ctx, "PG000001")
	require.NoError(t, err)
	assert.WithinDuration(t, now.Add(12*time.Hour), got.EndRentTime, time.Second)

	require.NoError(t, rentals.AddIncome(ctx, "PG000001", 10))
	require.NoError(t, rentals.MarkNotified(ctx, "PG000001"))
	require.NoError(t, rentals.MarkBonusGiven(ctx, "PG000001"))
	require.NoError(t, rentals.MarkInactive(ctx, "PG000001"))
	require.NoError(t, rentals.MarkInactive(ctx, "PG000001"), "повторное завершение - no-op")
	require.NoError(t, rentals.SetPaymentStatus(ctx, "PG000001", models.PaymentSettled))

	got, err = rentals.RentalByOrder(ctx, "PG000001")
	require.NoError(t, err)
	assert.False(t, got.InRent)
	assert.Equal(t, 60.0, got.Income)
	assert.Equal(t, models.PaymentSettled, got.Payment)

	due, err := rentals.DueRentals(ctx, now.Add(100*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, due, "завершённые аренды не попадают в выборку")

	require.NoError(t, rentals.DeleteRental(ctx, "PG000001"))
	_, err = rentals.RentalByOrder(ctx, "PG000001")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAccountAttrsPG(t *testing.T) {
	requirePostgres(t)
	ctx := context.Background()

	require.NoError(t, accounts.AddAccount(ctx, &models.Account{
		Login:    "pgdota1",
		Password: "secret",
		GameType: models.GameDota,
		Dota:     &models.DotaAttrs{DotaID: 42, MMR: 3000, BehaviorScore: 9500},
	}))
	assert.ErrorIs(t, accounts.AddAccount(ctx, &models.Account{Login: "pgdota1", GameType: models.GameDota}),
		store.ErrDuplicateLogin)

	require.NoError(t, accounts.SetBusy(ctx, "pgdota1", true))
	require.NoError(t, accounts.SetRenter(ctx, "pgdota1", 7))
	require.NoError(t, accounts.SetDotaRank(ctx, "pgdota1", 3200))

	a, err := accounts.AccountByLogin(ctx, "pgdota1")
	require.NoError(t, err)
	assert.True(t, a.Busy)
	assert.Equal(t, int64(7), a.RentedBy)
	require.NotNil(t, a.Dota)
	assert.Equal(t, 3200, a.Dota.MMR)

	require.NoError(t, accounts.SetRenter(ctx, "pgdota1", 0))
	a, err = accounts.AccountByLogin(ctx, "pgdota1")
	require.NoError(t, err)
	assert.Zero(t, a.RentedBy)

	_, err = accounts.AccountByLogin(ctx, "pg-ghost")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
