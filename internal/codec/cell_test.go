package codec

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/storefront/internal/domain/models"
)

func TestDecodeCell_AcceptedForms(t *testing.T) {
	tests := []struct {
		name string
		cell string
	}{
		{"canonical", `{"customerName":"Alice","grandTotal":100}`},
		{"padded", "  {\"customerName\":\"Alice\",\"grandTotal\":100}\n"},
		{"double encoded", `"{\"customerName\":\"Alice\",\"grandTotal\":100}"`},
		{"csv escaped twice", `"{""customerName"":""Alice"",""grandTotal"":100}"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			receipt, err := DecodeReceipt(tt.cell)
			require.NoError(t, err)
			assert.Equal(t, "Alice", receipt.CustomerName)
			assert.Equal(t, 100.0, receipt.GrandTotal)
		})
	}
}

func TestDecodeCell_EmptyAndMalformed(t *testing.T) {
	for _, cell := range []string{"", "   ", "null", `""`} {
		_, err := DecodeReceipt(cell)
		assert.True(t, errors.Is(err, ErrEmptyCell), "cell %q", cell)
	}

	for _, cell := range []string{"{oops", `"{"unterminated`, "receipt #4"} {
		_, err := DecodeReceipt(cell)
		assert.True(t, errors.Is(err, ErrMalformedCell), "cell %q", cell)
	}
}

func TestEncodeCell_IsCanonical(t *testing.T) {
	empty, err := EncodeCell(nil)
	require.NoError(t, err)
	assert.Equal(t, "", empty)

	receipt := models.Receipt{ID: "abc", CustomerName: "Alice", GrandTotal: 100}
	cell, err := EncodeCell(receipt)
	require.NoError(t, err)

	decoded, err := DecodeReceipt(cell)
	require.NoError(t, err)
	assert.Equal(t, receipt.ID, decoded.ID)
	assert.Equal(t, receipt.GrandTotal, decoded.GrandTotal)
}

func TestReceiptsFromRows(t *testing.T) {
	rows := [][]string{
		{"Customer", "Receipt 1", "Receipt 2"},
		{"Alice", `{"id":"a1","grandTotal":100}`, "", `{"id":"a2","grandTotal":50}`},
		{"Bob", `{"id":"b1","grandTotal":10}`, "garbage"},
		{"", `{"id":"orphan"}`},
	}

	receipts, skipped := ReceiptsFromRows(rows)
	require.Len(t, receipts, 3)
	assert.Equal(t, 1, skipped)

	assert.Equal(t, "a1", receipts[0].ID)
	assert.Equal(t, "Alice", receipts[0].CustomerName, "customer name is filled from the row")
	assert.Equal(t, 0, receipts[0].Ordinal)
	assert.Equal(t, "a2", receipts[1].ID)
	assert.Equal(t, 1, receipts[1].Ordinal, "blank cells do not consume an ordinal")
	assert.Equal(t, "b1", receipts[2].ID)
	assert.Equal(t, 0, receipts[2].Ordinal)
}

func TestOrdersFromRows_LatestWins(t *testing.T) {
	rows := [][]string{
		{"CUSTOMER", "ORDER"},
		{"Alice", `{"id":"o1","grandTotal":10}`},
		{"alice", `{"id":"o2","grandTotal":20}`},
		{"Bob", ""},
	}

	orders, skipped := OrdersFromRows(rows)
	require.Len(t, orders, 1)
	assert.Zero(t, skipped)
	assert.Equal(t, "o2", orders[0].ID)
}

func TestStringRows(t *testing.T) {
	rows := StringRows([][]interface{}{{"Milk", 40, 12.5}})
	assert.Equal(t, [][]string{{"Milk", "40", "12.5"}}, rows)
}
