package provision

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mookor/rentbot/internal/lots"
	"github.com/mookor/rentbot/internal/marketplace"
	"github.com/mookor/rentbot/internal/models"
	"github.com/mookor/rentbot/internal/retry"
	"github.com/mookor/rentbot/internal/store"
)

type stubMarket struct {
	mu     sync.Mutex
	fields map[int64]*marketplace.LotFields
	nextID int64
}

func newStubMarket() *stubMarket {
	return &stubMarket{fields: make(map[int64]*marketplace.LotFields), nextID: 10}
}

func (s *stubMarket) SendMessage(context.Context, string, string) error { return nil }
func (s *stubMarket) Refund(context.Context, string) error              { return nil }

func (s *stubMarket) MyLots(_ context.Context, categoryID int64) ([]marketplace.Lot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []marketplace.Lot
	for _, fl := range s.fields {
		if fl.CategoryID == categoryID {
			out = append(out, marketplace.Lot{
				ID:          fl.LotID,
				CategoryID:  fl.CategoryID,
				Title:       fl.TitleRU,
				Description: fl.DescRU,
				Price:       fl.Price,
				Active:      fl.Active,
			})
		}
	}
	return out, nil
}

func (s *stubMarket) LotFields(_ context.Context, lotID int64) (*marketplace.LotFields, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *s.fields[lotID]
	return &cp, nil
}

func (s *stubMarket) SaveLot(_ context.Context, fields *marketplace.LotFields) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *fields
	if cp.LotID == 0 {
		s.nextID++
		cp.LotID = s.nextID
	}
	s.fields[cp.LotID] = &cp
	return nil
}

func (s *stubMarket) DeleteLot(_ context.Context, lotID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.fields, lotID)
	return nil
}

func (s *stubMarket) Listen(context.Context) <-chan marketplace.Event {
	ch := make(chan marketplace.Event)
	close(ch)
	return ch
}

func TestRegistryFor(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mem := store.NewMemory()
	lm := lots.NewManager(newStubMarket(), retry.NewCaller(retry.NewLimiter(), logger),
		map[models.GameType]int64{models.GameValorant: 5})
	reg := NewRegistry(NewRiot(models.GameValorant, lm, mem, 3, logger))

	p, err := reg.For(models.GameValorant)
	require.NoError(t, err)
	assert.Equal(t, models.GameValorant, p.GameType())

	_, err = reg.For(models.GameDota)
	assert.Error(t, err)
	assert.Len(t, reg.All(), 1)
}

func TestRiotReconcileListings(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mem := store.NewMemory()
	market := newStubMarket()
	lm := lots.NewManager(market, retry.NewCaller(retry.NewLimiter(), logger),
		map[models.GameType]int64{models.GameValorant: 5})
	riot := NewRiot(models.GameValorant, lm, mem, 3, logger)

	ctx := context.Background()
	require.NoError(t, mem.AddAccount(ctx, &models.Account{
		Login:    "free1",
		GameType: models.GameValorant,
		Rank:     &models.RankAttrs{Rank: "Immortal"},
	}))
	require.NoError(t, mem.AddAccount(ctx, &models.Account{
		Login:    "busy1",
		GameType: models.GameValorant,
		Busy:     true,
	}))
	// лот занятого аккаунта остался активным после сбоя
	require.NoError(t, market.SaveLot(ctx, &marketplace.LotFields{
		CategoryID: 5,
		TitleRU:    "Аренда аккаунта Valorant | Gold",
		DescRU:     "Ранг: Gold\nАренда от 3 часов | busy1, выдача после оплаты",
		Active:     true,
	}))

	require.NoError(t, riot.ReconcileListings(ctx))

	all, err := market.MyLots(ctx, 5)
	require.NoError(t, err)
	require.Len(t, all, 2)
	for _, l := range all {
		login := lots.ExtractLogin(l.Description)
		switch login {
		case "free1":
			assert.True(t, l.Active, "свободный аккаунт выставлен")
			assert.Contains(t, l.Title, "Immortal")
		case "busy1":
			assert.False(t, l.Active, "занятый аккаунт снят с продажи")
		default:
			t.Fatalf("неожиданный лот: %q", l.Description)
		}
	}

	// повторный проход ничего не меняет
	require.NoError(t, riot.ReconcileListings(ctx))
	again, err := market.MyLots(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, again, 2)
}

func TestRiotCodeUnavailable(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	lm := lots.NewManager(newStubMarket(), retry.NewCaller(retry.NewLimiter(), logger),
		map[models.GameType]int64{models.GameLol: 6})
	riot := NewRiot(models.GameLol, lm, store.NewMemory(), 3, logger)

	_, err := riot.IssueCode(context.Background(), &models.Account{Login: "x"})
	assert.ErrorIs(t, err, ErrCodeUnavailable)
}
