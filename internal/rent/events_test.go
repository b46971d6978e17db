package rent

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mookor/rentbot/internal/marketplace"
)

func newEventLoop(f *fixture) *EventLoop {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewEventLoop(f.market, f.orch, f.router, logger)
}

func TestEventLoopOrderEvent(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t, "acc1")
	loop := newEventLoop(f)

	ev := marketplace.Event{Type: marketplace.EventNewOrder, Order: saleOrder("acc1", 10, 50)}
	require.NoError(t, loop.handle(context.Background(), ev))

	r, err := f.mem.RentalByOrder(context.Background(), testOrder)
	require.NoError(t, err)
	assert.True(t, r.InRent)
}

func TestEventLoopFeedbackInMessage(t *testing.T) {
	f := newFixture(t)
	f.sell(t, "acc1", 10, 50)
	loop := newEventLoop(f)

	ev := marketplace.Event{Type: marketplace.EventNewMessage, Message: &marketplace.Message{
		ChatID:   testChat,
		AuthorID: testBuyer,
		Text:     "Отличный аккаунт, рекомендую! #" + testOrder,
	}}
	require.NoError(t, loop.handle(context.Background(), ev))

	r, err := f.mem.RentalByOrder(context.Background(), testOrder)
	require.NoError(t, err)
	assert.True(t, r.BonusGiven, "отзыв с номером заказа начисляет бонус")
}

func TestEventLoopCommandWithHashNoBonus(t *testing.T) {
	f := newFixture(t)
	f.sell(t, "acc1", 10, 50)
	loop := newEventLoop(f)

	ev := marketplace.Event{Type: marketplace.EventNewMessage, Message: &marketplace.Message{
		ChatID:   testChat,
		AuthorID: testBuyer,
		Text:     "!code #" + testOrder,
	}}
	require.NoError(t, loop.handle(context.Background(), ev))

	r, err := f.mem.RentalByOrder(context.Background(), testOrder)
	require.NoError(t, err)
	assert.False(t, r.BonusGiven, "номер заказа в команде не считается отзывом")
}

func TestEventLoopIgnoresEmptyPayloads(t *testing.T) {
	f := newFixture(t)
	loop := newEventLoop(f)
	require.NoError(t, loop.handle(context.Background(), marketplace.Event{Type: marketplace.EventNewOrder}))
	require.NoError(t, loop.handle(context.Background(), marketplace.Event{Type: marketplace.EventNewMessage}))
	assert.Empty(t, f.market.messages)
}
