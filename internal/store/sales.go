package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"b2b-analyst/internal/models"
)

// Transaction column headers as they appear in the sales export.
const (
	ColDate        = "매출일"
	ColProduct     = "제품명"
	ColCustomer    = "거래처"
	ColQuantity    = "수량"
	ColUnitCost    = "매입단가(3%)"
	ColUnitPrice   = "판매단가"
	ColSupplyValue = "공급가액"
	ColTax         = "부가세"
	ColTotal       = "합계"
	ColMargin      = "마진율"
)

const utf8BOM = "\ufeff"

var ErrMissingColumn = errors.New("missing required column")

var transactionColumns = []string{
	ColDate, ColProduct, ColCustomer, ColQuantity, ColUnitCost,
	ColUnitPrice, ColSupplyValue, ColTax, ColTotal, ColMargin,
}

// Single-digit layouts also accept zero-padded fields.
var dateLayouts = []string{
	"2006-1-2",
	"2006/1/2",
	"2006.1.2",
	"2006-1-2 15:04:05",
	"2006-1-2 15:04",
	"2006-1-2T15:04:05",
	"20060102",
}

// LoadTransactions reads the whole sales CSV at path.
func LoadTransactions(path string) ([]models.Transaction, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sales file: %w", err)
	}
	defer file.Close()

	txs, err := ReadTransactions(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return txs, nil
}

// ReadTransactions parses a sales CSV. Malformed numeric cells become 0; a
// missing column or an unparseable date is an error.
func ReadTransactions(r io.Reader) ([]models.Transaction, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty file")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	index, err := columnIndex(header, transactionColumns)
	if err != nil {
		return nil, err
	}

	var txs []models.Transaction
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", line, err)
		}
		if isBlank(record) {
			continue
		}

		cell := func(col string) string {
			i := index[col]
			if i >= len(record) {
				return ""
			}
			return record[i]
		}

		date, err := parseDate(cell(ColDate))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}

		txs = append(txs, models.Transaction{
			Date:        date,
			ProductName: strings.TrimSpace(cell(ColProduct)),
			Customer:    CleanName(cell(ColCustomer)),
			Quantity:    CleanNumber(cell(ColQuantity)),
			UnitCost:    CleanNumber(cell(ColUnitCost)),
			UnitPrice:   CleanNumber(cell(ColUnitPrice)),
			SupplyValue: CleanNumber(cell(ColSupplyValue)),
			Tax:         CleanNumber(cell(ColTax)),
			Total:       CleanNumber(cell(ColTotal)),
			MarginRate:  CleanPercentage(cell(ColMargin)),
			Year:        date.Year(),
			Month:       int(date.Month()),
			Quarter:     (int(date.Month())-1)/3 + 1,
		})
	}

	return txs, nil
}

// columnIndex maps each required header to its position. Headers are
// trimmed and a leading BOM is ignored.
func columnIndex(header []string, required []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, utf8BOM)
		}
		h = strings.TrimSpace(h)
		if _, dup := index[h]; !dup {
			index[h] = i
		}
	}
	for _, col := range required {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("%w %q", ErrMissingColumn, col)
		}
	}
	return index, nil
}

func parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", value)
}

func isBlank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
