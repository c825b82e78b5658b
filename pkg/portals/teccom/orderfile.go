package teccom

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dorumake/robot/pkg/models"
)

// The portal's import template is positional: every row has exactly eight
// semicolon-separated columns and a row tag in the first column. The
// preamble rows must be reproduced byte-for-byte or the import silently
// maps columns wrong.
const (
	columnCount = 8

	tagBlank  = "leer"
	tagHead   = "head"
	tagData   = "POS"
	formTitle = "TecLocal/TecWeb Kanalı ile Sipariş Formu"

	// MaxDataRows is the portal's hard limit on POS rows per upload.
	MaxDataRows = 750

	// maxNameLen bounds the part name column; longer names are truncated,
	// never rejected.
	maxNameLen = 40
)

var (
	ErrNoItems     = errors.New("order has no items with positive quantity")
	ErrTooManyRows = errors.New("order exceeds the portal's data row limit")
)

// Rows renders the full order form as rows of eight columns: the fixed
// preamble, the column header, then one POS row per item with quantity > 0.
func Rows(items []models.OrderItem) ([][]string, error) {
	rows := make([][]string, 0, 16+len(items))

	blank := func(tag string) []string {
		row := make([]string, columnCount)
		row[0] = tag

		return row
	}

	text := func(tag, value string) []string {
		row := make([]string, columnCount)
		row[0] = tag
		row[1] = value

		return row
	}

	for range 5 {
		rows = append(rows, blank(tagBlank))
	}

	rows = append(rows,
		text(tagBlank, formTitle),
		blank(tagBlank),
		text(tagBlank, "Sipariş takip numaranız:"),
		blank(tagHead),
	)

	for range 3 {
		rows = append(rows, blank(tagBlank))
	}

	rows = append(rows,
		text(tagBlank, "Siparişinizi POS ile başlayan satırlara giriniz."),
		text(tagBlank, "Parça numarası ve adet alanları zorunludur."),
		blank(""),
		[]string{"", "Sıra No", "Parça No", "Adet", "", "", "", "Parça Adı"},
	)

	seq := 0

	for _, item := range items {
		if item.Quantity <= 0 {
			continue
		}

		seq++
		if seq > MaxDataRows {
			return nil, fmt.Errorf("%w (%d)", ErrTooManyRows, MaxDataRows)
		}

		row := make([]string, columnCount)
		row[0] = tagData
		row[1] = fmt.Sprintf("%d", seq)
		row[2] = item.ProductCode
		row[3] = fmt.Sprintf("%d", item.Quantity)
		row[7] = truncateName(item.ProductName)

		rows = append(rows, row)
	}

	if seq == 0 {
		return nil, ErrNoItems
	}

	return rows, nil
}

// WriteOrderFile writes the rendered order form into dir as a
// semicolon-delimited file with a UTF-8 BOM, which the portal's spreadsheet
// import expects. Returns the file path.
func WriteOrderFile(dir, orderCode string, items []models.OrderItem) (string, error) {
	rows, err := Rows(items)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create order file dir: %w", err)
	}

	name := fmt.Sprintf("teccom_order_%s_%s.csv", orderCode, time.Now().Format("20060102_150405"))
	path := filepath.Join(dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create order file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
		return "", fmt.Errorf("write order file: %w", err)
	}

	w := csv.NewWriter(f)
	w.Comma = ';'

	if err := w.WriteAll(rows); err != nil {
		return "", fmt.Errorf("write order file: %w", err)
	}

	return path, nil
}

func truncateName(name string) string {
	runes := []rune(name)
	if len(runes) <= maxNameLen {
		return name
	}

	return string(runes[:maxNameLen])
}
