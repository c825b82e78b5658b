package intake

import (
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeWorkbook(t *testing.T, rows [][]any) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)

	for i, row := range rows {
		for j, value := range row {
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, cell, value))
		}
	}

	path := filepath.Join(t.TempDir(), "order.xlsx")
	require.NoError(t, f.SaveAs(path))

	return path
}

func TestParseWorkbook(t *testing.T) {
	path := writeWorkbook(t, [][]any{
		{"Approved Purchase Order"},
		{"Order Number", "PO-2024-17"},
		{"Customer Name", "DALAY PETROL LTD."},
		{},
		{"Product Code", "Product Name", "Order Quantity", "Price Value"},
		{"MT-60AH", "Mutlu Akü 60Ah", 12, "1.234,50"},
		{"MT-72AH", "Mutlu Akü 72Ah", 0, "980,00"},
		{"MT-90AH", "Mutlu Akü 90Ah", 3, ""},
	})

	order, err := NewParser(slog.Default()).ParseWorkbook(path)
	require.NoError(t, err)

	assert.Equal(t, "PO-2024-17", order.OrderCode)
	assert.Equal(t, "DALAY PETROL LTD.", order.CustomerName)
	require.Len(t, order.Items, 2, "zero-quantity rows must be skipped")

	assert.Equal(t, "MT-60AH", order.Items[0].ProductCode)
	assert.Equal(t, "Mutlu Akü 60Ah", order.Items[0].ProductName)
	assert.Equal(t, 12, order.Items[0].Quantity)
	assert.InDelta(t, 1234.50, order.Items[0].UnitPrice, 0.001)

	assert.Equal(t, "MT-90AH", order.Items[1].ProductCode)
	assert.Zero(t, order.Items[1].UnitPrice)
}

func TestParseWorkbook_TurkishHeaders(t *testing.T) {
	path := writeWorkbook(t, [][]any{
		{"Sipariş Kodu:", "SIP-42"},
		{"Ürün Kodu", "Parça Adı", "Miktar"},
		{"AP139/2", "Hava Filtresi", 150},
	})

	order, err := NewParser(slog.Default()).ParseWorkbook(path)
	require.NoError(t, err)

	assert.Equal(t, "SIP-42", order.OrderCode)
	require.Len(t, order.Items, 1)
	assert.Equal(t, "AP139/2", order.Items[0].ProductCode)
	assert.Equal(t, 150, order.Items[0].Quantity)
}

func TestParseWorkbook_NoHeaderRow(t *testing.T) {
	path := writeWorkbook(t, [][]any{
		{"just", "random", "cells"},
		{"nothing", "useful"},
	})

	_, err := NewParser(slog.Default()).ParseWorkbook(path)
	assert.ErrorContains(t, err, "no header row")
}

func TestParseWorkbook_AllZeroQuantities(t *testing.T) {
	path := writeWorkbook(t, [][]any{
		{"Product Code", "Order Quantity"},
		{"MT-60AH", 0},
	})

	_, err := NewParser(slog.Default()).ParseWorkbook(path)
	assert.ErrorContains(t, err, "no line items")
}

func TestParsePrice(t *testing.T) {
	assert.InDelta(t, 1234.56, parsePrice("1.234,56"), 0.001)
	assert.InDelta(t, 1234.56, parsePrice("1,234.56"), 0.001)
	assert.InDelta(t, 980.0, parsePrice("980,00 TL"), 0.001)
	assert.Zero(t, parsePrice(""))
	assert.Zero(t, parsePrice("n/a"))
}
