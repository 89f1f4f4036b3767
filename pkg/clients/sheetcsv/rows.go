// Package sheetcsv reads spreadsheet tabs exported as CSV and binds them to
// domain records. Headers are matched after trimming and upper-casing.
package sheetcsv

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/spf13/cast"

	"github.com/mamadbah2/storefront/internal/codec"
	"github.com/mamadbah2/storefront/internal/domain/models"
)

func init() {
	gocsv.SetHeaderNormalizer(codec.NormalizeHeader)
}

// ErrNoHeader is returned for bodies without a header row.
var ErrNoHeader = errors.New("sheetcsv: missing header row")

type productRow struct {
	Name         string `csv:"NAME"`
	Rate         string `csv:"RATE"`
	PurchaseCost string `csv:"PURCHASE COST"`
	Stock        string `csv:"STOCK"`
}

type customerRow struct {
	Name     string `csv:"NAME"`
	Password string `csv:"PASSWORD"`
	Phone    string `csv:"PHONE"`
}

// ReadRows splits a CSV body into rows. Rows may have different lengths.
func ReadRows(body []byte) ([][]string, error) {
	reader := csv.NewReader(bytes.NewReader(body))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return rows, nil
}

// EncodeRows renders rows as a CSV body.
func EncodeRows(rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("write csv: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeProducts binds product rows. Rows without a name or with an unreadable
// or negative rate are dropped and counted in skipped.
func DecodeProducts(rows [][]string) (products []models.Product, skipped int, err error) {
	var raw []productRow
	if err := unmarshalRows(rows, &raw); err != nil {
		return nil, 0, err
	}

	products = make([]models.Product, 0, len(raw))
	for _, row := range raw {
		name := strings.TrimSpace(row.Name)
		if name == "" {
			skipped++
			continue
		}

		rate, err := parseAmount(row.Rate)
		if err != nil || rate < 0 {
			skipped++
			continue
		}

		product := models.Product{Name: name, Rate: rate}
		if cost, err := parseAmount(row.PurchaseCost); err == nil && cost >= 0 && strings.TrimSpace(row.PurchaseCost) != "" {
			product.PurchaseCost = &cost
		}
		if raw := strings.TrimSpace(row.Stock); raw != "" {
			// Leading zeros would make cast read the count as octal.
			digits := strings.TrimLeft(raw, "0")
			if digits == "" {
				digits = "0"
			}
			qty, err := cast.ToIntE(digits)
			if err != nil || qty < 0 {
				skipped++
				continue
			}
			product.Stock = &qty
		}

		products = append(products, product)
	}

	return products, skipped, nil
}

// DecodeCustomers binds customer rows, dropping rows without a name.
func DecodeCustomers(rows [][]string) (customers []models.Customer, skipped int, err error) {
	var raw []customerRow
	if err := unmarshalRows(rows, &raw); err != nil {
		return nil, 0, err
	}

	customers = make([]models.Customer, 0, len(raw))
	for _, row := range raw {
		name := strings.TrimSpace(row.Name)
		if name == "" {
			skipped++
			continue
		}
		customers = append(customers, models.Customer{
			Name:     name,
			Password: strings.TrimSpace(row.Password),
			Phone:    strings.TrimSpace(row.Phone),
		})
	}

	return customers, skipped, nil
}

func unmarshalRows(rows [][]string, out interface{}) error {
	if len(rows) == 0 {
		return ErrNoHeader
	}
	if err := gocsv.UnmarshalCSV(newRowsReader(rows), out); err != nil {
		return fmt.Errorf("bind csv rows: %w", err)
	}
	return nil
}

// parseAmount accepts sheet-formatted numbers such as "₹1,250.00".
func parseAmount(value string) (float64, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '-':
			return r
		default:
			return -1
		}
	}, value)
	if cleaned == "" {
		return 0, fmt.Errorf("no digits in %q", value)
	}
	return cast.ToFloat64E(cleaned)
}

// rowsReader feeds in-memory rows to gocsv, padding short rows to the header
// width because the Sheets API drops trailing empty cells.
type rowsReader struct {
	rows  [][]string
	width int
	pos   int
}

func newRowsReader(rows [][]string) *rowsReader {
	return &rowsReader{rows: rows, width: len(rows[0])}
}

func (r *rowsReader) Read() ([]string, error) {
	if r.pos >= len(r.rows) {
		return nil, io.EOF
	}
	row := r.rows[r.pos]
	r.pos++
	if len(row) >= r.width {
		return row[:r.width], nil
	}
	padded := make([]string, r.width)
	copy(padded, row)
	return padded, nil
}

func (r *rowsReader) ReadAll() ([][]string, error) {
	var out [][]string
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
}

