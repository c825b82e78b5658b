package teccom

import (
	"encoding/csv"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dorumake/robot/pkg/models"
)

func TestRows_PreambleLayout(t *testing.T) {
	rows, err := Rows([]models.OrderItem{
		{ProductCode: "AP139/2", Quantity: 150, ProductName: "Hava Filtresi"},
	})
	require.NoError(t, err)
	require.Len(t, rows, 17)

	for i, row := range rows {
		assert.Len(t, row, 8, "row %d must have 8 columns", i)
	}

	// Five blank placeholder rows open the file.
	for i := range 5 {
		assert.Equal(t, "leer", rows[i][0], "row %d tag", i)
		assert.Empty(t, rows[i][1], "row %d must be blank", i)
	}

	// Title row with the localized form title in column 2.
	assert.Equal(t, "leer", rows[5][0])
	assert.Equal(t, "TecLocal/TecWeb Kanalı ile Sipariş Formu", rows[5][1])

	assert.Equal(t, "leer", rows[6][0])
	assert.Empty(t, rows[6][1])

	// Tracking-number prompt, then the head marker.
	assert.Equal(t, "leer", rows[7][0])
	assert.NotEmpty(t, rows[7][1])
	assert.Equal(t, "head", rows[8][0])

	for i := 9; i < 12; i++ {
		assert.Equal(t, "leer", rows[i][0], "row %d tag", i)
		assert.Empty(t, rows[i][1], "row %d must be blank", i)
	}

	// Two instruction rows, one untagged blank, then the column header.
	assert.NotEmpty(t, rows[12][1])
	assert.NotEmpty(t, rows[13][1])
	assert.Equal(t, make([]string, 8), rows[14])

	header := rows[15]
	assert.Equal(t, "Sıra No", header[1])
	assert.Equal(t, "Parça No", header[2])
	assert.Equal(t, "Adet", header[3])
	assert.Equal(t, "Parça Adı", header[7])

	// First data row.
	assert.Equal(t,
		[]string{"POS", "1", "AP139/2", "150", "", "", "", "Hava Filtresi"},
		rows[16])
}

func TestRows_SkipsZeroQuantityAndKeepsSequence(t *testing.T) {
	rows, err := Rows([]models.OrderItem{
		{ProductCode: "A-1", Quantity: 10},
		{ProductCode: "A-2", Quantity: 0},
		{ProductCode: "A-3", Quantity: 3},
	})
	require.NoError(t, err)
	require.Len(t, rows, 18)

	assert.Equal(t, []string{"POS", "1", "A-1", "10", "", "", "", ""}, rows[16])
	assert.Equal(t, []string{"POS", "2", "A-3", "3", "", "", "", ""}, rows[17])
}

func TestRows_TruncatesLongNames(t *testing.T) {
	long := strings.Repeat("Ç", 60)

	rows, err := Rows([]models.OrderItem{
		{ProductCode: "A-1", Quantity: 1, ProductName: long},
	})
	require.NoError(t, err)

	name := rows[16][7]
	assert.Len(t, []rune(name), 40)
	assert.Equal(t, strings.Repeat("Ç", 40), name)
}

func TestRows_NoPositiveQuantityItems(t *testing.T) {
	_, err := Rows([]models.OrderItem{{ProductCode: "A-1", Quantity: 0}})
	assert.ErrorIs(t, err, ErrNoItems)

	_, err = Rows(nil)
	assert.ErrorIs(t, err, ErrNoItems)
}

func TestRows_RowLimit(t *testing.T) {
	items := make([]models.OrderItem, MaxDataRows+1)
	for i := range items {
		items[i] = models.OrderItem{ProductCode: "A", Quantity: 1}
	}

	_, err := Rows(items)
	assert.ErrorIs(t, err, ErrTooManyRows)

	_, err = Rows(items[:MaxDataRows])
	assert.NoError(t, err)
}

func TestWriteOrderFile(t *testing.T) {
	dir := t.TempDir()

	path, err := WriteOrderFile(dir, "ORD-001", []models.OrderItem{
		{ProductCode: "AP139/2", Quantity: 150, ProductName: "Hava Filtresi"},
	})
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	// UTF-8 BOM for the portal's spreadsheet import.
	require.True(t, strings.HasPrefix(string(raw), "\xEF\xBB\xBF"))

	lines := strings.Split(strings.TrimRight(strings.TrimPrefix(string(raw), "\xEF\xBB\xBF"), "\n"), "\n")
	require.Len(t, lines, 17)
	assert.Equal(t, "POS;1;AP139/2;150;;;;Hava Filtresi", lines[16])

	r := csv.NewReader(strings.NewReader(strings.TrimPrefix(string(raw), "\xEF\xBB\xBF")))
	r.Comma = ';'

	rows, err := r.ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 17)
}

func TestWriteOrderFile_ValidationErrorsPropagate(t *testing.T) {
	_, err := WriteOrderFile(t.TempDir(), "ORD-002", nil)
	assert.ErrorIs(t, err, ErrNoItems)
}
