package rent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouterUsageHints(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		text string
		hint string
	}{
		{"!продлить", "Формат: !продлить"},
		{"!продлить a b", "Формат: !продлить"},
		{"!code", "Формат: !code"},
		{"!ban", "Формат: !ban"},
		{"!время лишнее", "Формат: !время"},
	}
	for _, tc := range cases {
		require.NoError(t, f.router.Dispatch(context.Background(), testBuyer, testChat, tc.text))
		assert.Contains(t, f.market.lastMessage(), tc.hint, "команда %q", tc.text)
	}
}

func TestRouterUnknownCommand(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.router.Dispatch(context.Background(), testBuyer, testChat, "!абракадабра"))
	assert.Contains(t, f.market.lastMessage(), "Неизвестная команда")
	assert.Contains(t, f.market.lastMessage(), "!продлить")
}

func TestRouterIgnoresPlainText(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.router.Dispatch(context.Background(), testBuyer, testChat, "привет, как дела?"))
	assert.Empty(t, f.market.messages)
}

func TestRouterIgnoresOwnMessages(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.router.Dispatch(context.Background(), 555, testChat, "!время"))
	assert.Empty(t, f.market.messages)
}

func TestRouterCaseInsensitiveWithHash(t *testing.T) {
	f := newFixture(t)
	f.sell(t, "acc1", 10, 50)

	require.NoError(t, f.router.Dispatch(context.Background(), testBuyer, testChat, "!CODE #"+testOrder))
	assert.Contains(t, f.market.lastMessage(), "XYZ12")
}

func TestRouterHelp(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.router.Dispatch(context.Background(), testBuyer, testChat, "!помощь"))
	assert.Contains(t, f.market.lastMessage(), "!время")
}
