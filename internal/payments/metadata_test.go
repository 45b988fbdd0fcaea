package payments

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func priced(id, name, price string, qty int) MetadataItem {
	p := decimal.RequireFromString(price)
	return MetadataItem{ProductID: id, Name: name, Price: &p, Quantity: qty}
}

func TestEncodeOrderItems_AllFit(t *testing.T) {
	items := []MetadataItem{priced("p1", "Kelly 28", "120", 1), priced("p2", "Speedy", "80.5", 2)}

	raw, stats, err := EncodeOrderItems(items, MaxMetadataValueBytes)
	require.NoError(t, err)

	assert.False(t, stats.Truncated())
	assert.Equal(t, 2, stats.Full)

	decoded, err := DecodeOrderItems(raw)
	require.NoError(t, err)
	require.Len(t, decoded, 2)
	assert.Equal(t, "Kelly 28", decoded[0].Name)
	assert.True(t, decimal.RequireFromString("80.5").Equal(*decoded[1].Price))
	assert.Equal(t, 2, decoded[1].Quantity)
}

func TestEncodeOrderItems_StaysWithinBudgetAndParses(t *testing.T) {
	for n := 1; n <= 60; n++ {
		items := make([]MetadataItem, n)
		for i := range items {
			items[i] = priced(fmt.Sprintf("product-%03d", i), strings.Repeat("Ż", 12), "1234.56", i%3+1)
		}

		raw, stats, err := EncodeOrderItems(items, MaxMetadataValueBytes)
		require.NoError(t, err)

		assert.LessOrEqual(t, len(raw), MaxMetadataValueBytes, "n=%d", n)
		var parsed []map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(raw), &parsed), "n=%d", n)
		assert.Equal(t, n, stats.Full+stats.Compacted+stats.Dropped)
		assert.Len(t, parsed, stats.Full+stats.Compacted)
	}
}

func TestEncodeOrderItems_FallsBackToCompactForm(t *testing.T) {
	items := []MetadataItem{
		priced("p1", strings.Repeat("a", 300), "10", 1),
		priced("p2", strings.Repeat("b", 300), "10", 2),
	}

	raw, stats, err := EncodeOrderItems(items, MaxMetadataValueBytes)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Full)
	assert.Equal(t, 1, stats.Compacted)
	assert.Equal(t, 0, stats.Dropped)
	assert.True(t, stats.Truncated())

	decoded, err := DecodeOrderItems(raw)
	require.NoError(t, err)
	require.Len(t, decoded, 2)
	assert.Equal(t, "p2", decoded[1].ProductID)
	assert.Empty(t, decoded[1].Name)
	assert.Nil(t, decoded[1].Price)
	assert.Equal(t, 2, decoded[1].Quantity)
}

func TestEncodeOrderItems_Empty(t *testing.T) {
	raw, stats, err := EncodeOrderItems(nil, MaxMetadataValueBytes)
	require.NoError(t, err)
	assert.Equal(t, "[]", raw)
	assert.Equal(t, 0, stats.Total)
}

func TestDecodeOrderItems(t *testing.T) {
	items, err := DecodeOrderItems(`[{"productId":"p1","quantity":2},{"productId":"p2"},{"quantity":3}]`)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, 2, items[0].Quantity)
	assert.Equal(t, 1, items[1].Quantity)

	items, err = DecodeOrderItems("")
	require.NoError(t, err)
	assert.Empty(t, items)

	_, err = DecodeOrderItems(`[{"productId":`)
	assert.Error(t, err)
}

func TestTruncateValue(t *testing.T) {
	assert.Equal(t, "abc", TruncateValue("abc", 10))
	assert.Equal(t, "ab", TruncateValue("abcdef", 2))

	// "Ż" is two bytes; cutting at 3 must not split the second one
	out := TruncateValue("ŻŻŻ", 3)
	assert.Equal(t, "Ż", out)
}
