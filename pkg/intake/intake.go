// Package intake parses supplier order workbooks into order payloads. The
// workbooks follow the "Approved Purchase Order" export layout: a few
// metadata cells, then a header row, then one line-item row per product.
package intake

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/dorumake/robot/pkg/models"
)

// ParsedOrder is the intake payload produced from one workbook.
type ParsedOrder struct {
	OrderCode    string
	CustomerCode string
	CustomerName string
	Items        []models.OrderItem
}

// Column headers appear in English or Turkish depending on the export
// locale; both are accepted.
var columnNames = map[string][]string{
	"product_code": {"Product Code", "Ürün Kodu", "Parça No"},
	"product_name": {"Product Name", "Ürün Adı", "Parça Adı"},
	"quantity":     {"Order Quantity", "Miktar", "Adet", "Sipariş Adedi"},
	"unit_price":   {"Price Value", "Birim Fiyat", "Fiyat"},
}

var headerKeywords = []string{"product code", "ürün kodu", "order quantity", "miktar"}

var metadataLabels = map[string][]string{
	"order_code":    {"Order Number", "Sipariş No", "Sipariş Kodu", "PO Number"},
	"customer_code": {"Customer Code", "Müşteri Kodu", "Sold To"},
	"customer_name": {"Customer Name", "Müşteri Adı", "Müşteri", "Sold To Name"},
}

type Parser struct {
	logger *slog.Logger
}

func NewParser(logger *slog.Logger) *Parser {
	return &Parser{logger: logger.With("module", "intake")}
}

// ParseWorkbook reads the first sheet of the workbook at path. Line items
// with zero quantity are skipped; a workbook without a recognizable header
// row or without any usable line item is an error.
func (p *Parser) ParseWorkbook(path string) (*ParsedOrder, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook %s has no sheets", path)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}

	return p.parseRows(rows, path)
}

func (p *Parser) parseRows(rows [][]string, path string) (*ParsedOrder, error) {
	headerIdx := findHeaderRow(rows)
	if headerIdx < 0 {
		return nil, fmt.Errorf("no header row found in %s", path)
	}

	order := &ParsedOrder{
		OrderCode:    findMetadata(rows[:headerIdx], metadataLabels["order_code"]),
		CustomerCode: findMetadata(rows[:headerIdx], metadataLabels["customer_code"]),
		CustomerName: findMetadata(rows[:headerIdx], metadataLabels["customer_name"]),
	}

	cols := mapColumns(rows[headerIdx])

	codeCol, ok := cols["product_code"]
	if !ok {
		return nil, fmt.Errorf("no product code column in %s", path)
	}

	qtyCol, ok := cols["quantity"]
	if !ok {
		return nil, fmt.Errorf("no quantity column in %s", path)
	}

	for _, row := range rows[headerIdx+1:] {
		code := cell(row, codeCol)
		if code == "" {
			continue
		}

		qty := parseInt(cell(row, qtyCol))
		if qty <= 0 {
			p.logger.Debug("skipping zero-quantity row", "product_code", code)

			continue
		}

		item := models.OrderItem{
			ProductCode: code,
			Quantity:    qty,
		}

		if nameCol, ok := cols["product_name"]; ok {
			item.ProductName = cell(row, nameCol)
		}

		if priceCol, ok := cols["unit_price"]; ok {
			item.UnitPrice = parsePrice(cell(row, priceCol))
		}

		order.Items = append(order.Items, item)
	}

	if len(order.Items) == 0 {
		return nil, fmt.Errorf("no line items with positive quantity in %s", path)
	}

	p.logger.Info("workbook parsed",
		"order_code", order.OrderCode, "items", len(order.Items), "path", path)

	return order, nil
}

// findHeaderRow locates the column header row within the first rows of the
// sheet: the first row containing at least two known header keywords.
func findHeaderRow(rows [][]string) int {
	limit := min(len(rows), 20)

	for i := range limit {
		text := strings.ToLower(strings.Join(rows[i], " "))

		matches := 0

		for _, kw := range headerKeywords {
			if strings.Contains(text, kw) {
				matches++
			}
		}

		if matches >= 2 {
			return i
		}
	}

	return -1
}

func mapColumns(header []string) map[string]int {
	cols := make(map[string]int)

	for field, names := range columnNames {
		for i, h := range header {
			h = strings.TrimSpace(h)

			for _, name := range names {
				if strings.EqualFold(h, name) {
					cols[field] = i
				}
			}
		}
	}

	return cols
}

// findMetadata scans label/value cell pairs above the header row: the value
// is the cell to the right of a matching label.
func findMetadata(rows [][]string, labels []string) string {
	for _, row := range rows {
		for i, c := range row {
			c = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(c), ":"))

			for _, label := range labels {
				if strings.EqualFold(c, label) && i+1 < len(row) {
					if v := strings.TrimSpace(row[i+1]); v != "" {
						return v
					}
				}
			}
		}
	}

	return ""
}

func cell(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}

	return strings.TrimSpace(row[idx])
}

var nonDigits = regexp.MustCompile(`[^\d]`)

func parseInt(s string) int {
	clean := nonDigits.ReplaceAllString(s, "")
	if clean == "" {
		return 0
	}

	n, err := strconv.Atoi(clean)
	if err != nil {
		return 0
	}

	return n
}

// parsePrice accepts both 1,234.56 and the Turkish 1.234,56 format.
func parsePrice(s string) float64 {
	clean := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' || r == '.' || r == ',' || r == '-' {
			return r
		}

		return -1
	}, s)

	// Whichever separator comes last is the decimal one.
	lastComma := strings.LastIndex(clean, ",")
	lastDot := strings.LastIndex(clean, ".")

	switch {
	case lastComma >= 0 && lastComma > lastDot:
		clean = strings.ReplaceAll(clean, ".", "")
		clean = strings.ReplaceAll(clean, ",", ".")
	case lastComma >= 0:
		clean = strings.ReplaceAll(clean, ",", "")
	}

	v, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0
	}

	return v
}
