package lots

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractLogin(t *testing.T) {
	cases := []struct {
		desc string
		want string
	}{
		{"MMR: 4000 | Порядочность: 9500 | acc1, выдача после оплаты", "acc1"},
		{"Аренда от 3 часов | MyLogin, пароль после оплаты", "mylogin"},
		{"просто текст без разделителя", "просто текст без разделителя"},
		{"| login,", "login"},
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ExtractLogin(tc.desc), "описание %q", tc.desc)
	}
}

func TestParseMinHours(t *testing.T) {
	assert.Equal(t, 6, ParseMinHours("Аренда от 6 часов", 3))
	assert.Equal(t, 12, ParseMinHours("аренда ОТ 12 ЧАСОВ минимум", 3))
	assert.Equal(t, 1, ParseMinHours("от 1 часа", 3))
	assert.Equal(t, 3, ParseMinHours("без ограничения", 3))
	assert.Equal(t, 3, ParseMinHours("", 3))
}

func TestParseExtendOrder(t *testing.T) {
	id, ok := ParseExtendOrder("Продление заказа: ABCD1234\n1шт = 1 час")
	assert.True(t, ok)
	assert.Equal(t, "ABCD1234", id)

	id, ok = ParseExtendOrder("продление заказа XY12ZW89")
	assert.True(t, ok)
	assert.Equal(t, "XY12ZW89", id)

	_, ok = ParseExtendOrder("обычный лот аренды | acc1,")
	assert.False(t, ok)
}

func TestExtendLotFields(t *testing.T) {
	fields := ExtendLotFields(81, "ABCD1234", 5)
	assert.Zero(t, fields.LotID)
	assert.Equal(t, int64(81), fields.CategoryID)
	assert.Equal(t, 5.0, fields.Price)
	assert.True(t, fields.Active)
	assert.Equal(t, 100, fields.Amount)

	origin, ok := ParseExtendOrder(fields.DescRU)
	assert.True(t, ok, "описание лота продления должно матчиться обратно")
	assert.Equal(t, "ABCD1234", origin)
}
