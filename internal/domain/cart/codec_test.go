package cart

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/candle-shop/internal/domain/catalog"
)

func TestDecode_Legacy(t *testing.T) {
	c, err := Decode([]byte(`{"12": 3, "7": "2", "9": 0}`))
	require.NoError(t, err)

	assert.Equal(t, []string{"12", "7"}, c.Keys())
	assert.Equal(t, 5, c.Count())

	line, ok := c.Line("12")
	require.True(t, ok)
	assert.Equal(t, int64(12), line.ProductID)
	assert.Equal(t, 3, line.Quantity)
	assert.Empty(t, line.Options)
	assert.True(t, line.PriceModifier.IsZero())
}

func TestDecode_QuantityBounds(t *testing.T) {
	c, err := Decode([]byte(`{"12": 1e30, "7": -1e30, "3_1:2": {"pk": 3, "qty": "99999999999999999999"}, "4": 2.7}`))
	require.NoError(t, err)

	assert.Equal(t, []string{"12", "3_1:2", "4"}, c.Keys())
	for key, want := range map[string]int{"12": MaxQuantity, "3_1:2": MaxQuantity, "4": 2} {
		line, ok := c.Line(key)
		require.True(t, ok, key)
		assert.Equal(t, want, line.Quantity, key)
	}
}

func TestDecode_Record(t *testing.T) {
	data := `{"12_5:9": {"pk": 12, "qty": 2, "options": {"5": 9}, "options_display": {"Аромат": "Ваніль"}, "price_modifier": "15.00"}}`

	c, err := Decode([]byte(data))
	require.NoError(t, err)

	line, ok := c.Line("12_5:9")
	require.True(t, ok)
	assert.Equal(t, int64(12), line.ProductID)
	assert.Equal(t, 2, line.Quantity)
	assert.Equal(t, []Selection{{OptionID: 5, ValueID: 9}}, line.Options)
	assert.Equal(t, []Label{{Option: "Аромат", Value: "Ваніль"}}, line.Labels)
	assert.True(t, dec("15").Equal(line.PriceModifier))
}

func TestDecode_RecordDefaults(t *testing.T) {
	c, err := Decode([]byte(`{"31_1:2": {"options": {"1": "2"}, "extra": [1, 2]}}`))
	require.NoError(t, err)

	line, ok := c.Line("31_1:2")
	require.True(t, ok)
	assert.Equal(t, int64(31), line.ProductID)
	assert.Equal(t, 1, line.Quantity)
	assert.Equal(t, []Selection{{OptionID: 1, ValueID: 2}}, line.Options)
	assert.True(t, line.PriceModifier.IsZero())
}

func TestDecode_Mixed(t *testing.T) {
	c, err := Decode([]byte(`{"7": 1, "12_5:9": {"pk": 12, "qty": 4, "price_modifier": "15.00"}, "bad": null}`))
	require.NoError(t, err)

	assert.Equal(t, []string{"7", "12_5:9"}, c.Keys())
	assert.Equal(t, 5, c.Count())
}

func TestDecode_EmptyAndNonObject(t *testing.T) {
	for _, input := range []string{"", "  ", "null", "[]", `"cart"`} {
		c, err := Decode([]byte(input))
		require.NoError(t, err, "input %q", input)
		assert.Equal(t, 0, c.Len(), "input %q", input)
	}
}

func TestDecode_Malformed(t *testing.T) {
	c, err := Decode([]byte(`{"12": `))
	require.Error(t, err)
	assert.Equal(t, 0, c.Len())
}

func TestEncodeDecode_PreservesOrderAndLines(t *testing.T) {
	p := scentedCandle()
	plain := plainCandle()

	c, _, err := AddItem(New(), &p, AddRequest{Quantity: 2, Options: map[string]string{"5": "9", "2": "7"}, Lang: catalog.LangUK})
	require.NoError(t, err)
	c, _, err = AddItem(c, &plain, AddRequest{Quantity: 1})
	require.NoError(t, err)
	c, _, err = AddItem(c, &p, AddRequest{Options: map[string]string{"5": "10", "2": "7"}, Lang: catalog.LangUK})
	require.NoError(t, err)

	decoded, err := Decode(Encode(c))
	require.NoError(t, err)

	require.Equal(t, c.Keys(), decoded.Keys())
	for _, key := range c.Keys() {
		want, _ := c.Line(key)
		got, _ := decoded.Line(key)
		assert.Equal(t, want.ProductID, got.ProductID, key)
		assert.Equal(t, want.Quantity, got.Quantity, key)
		assert.Equal(t, want.Options, got.Options, key)
		assert.Equal(t, want.Labels, got.Labels, key)
		assert.True(t, want.PriceModifier.Equal(got.PriceModifier), key)
	}
}

func TestEncode_UpgradesLegacy(t *testing.T) {
	c, err := Decode([]byte(`{"12": 3}`))
	require.NoError(t, err)

	assert.JSONEq(t,
		`{"12": {"pk": 12, "qty": 3, "options": {}, "options_display": {}, "price_modifier": "0.00"}}`,
		string(Encode(c)),
	)
}
