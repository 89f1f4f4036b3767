// Package codec is the single encode/decode contract for JSON documents stored
// inside spreadsheet cells.
//
// Canonical form: a cell holds compact JSON and nothing else; CSV quoting is the
// transport's business. An empty cell or the literal null means "no document".
// Two legacy forms are still accepted on read: a JSON string whose content is the
// document (double encoding), and a document wrapped in quotes with doubled inner
// quotes (CSV escaping applied twice).
package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mamadbah2/storefront/internal/domain/models"
)

var (
	// ErrEmptyCell is returned for cells that hold no document.
	ErrEmptyCell = errors.New("codec: empty cell")
	// ErrMalformedCell is returned when no accepted form parses.
	ErrMalformedCell = errors.New("codec: malformed cell")
)

// EncodeCell renders v in canonical form. A nil v encodes to the empty cell.
func EncodeCell(v any) (string, error) {
	if v == nil {
		return "", nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode cell: %w", err)
	}
	return string(data), nil
}

// DecodeCell parses cell into v.
func DecodeCell(cell string, v any) error {
	text := strings.TrimSpace(cell)
	if text == "" || text == "null" {
		return ErrEmptyCell
	}

	if strings.HasPrefix(text, `"`) {
		unwrapped, ok := unwrapLegacy(text)
		if !ok {
			return fmt.Errorf("%w: unbalanced quoting", ErrMalformedCell)
		}
		text = strings.TrimSpace(unwrapped)
		if text == "" || text == "null" {
			return ErrEmptyCell
		}
	}

	if err := json.Unmarshal([]byte(text), v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedCell, err)
	}
	return nil
}

func unwrapLegacy(text string) (string, bool) {
	var inner string
	if err := json.Unmarshal([]byte(text), &inner); err == nil {
		return inner, true
	}

	if len(text) < 2 || !strings.HasSuffix(text, `"`) {
		return "", false
	}
	return strings.ReplaceAll(text[1:len(text)-1], `""`, `"`), true
}

// DecodeReceipt parses a receipt cell.
func DecodeReceipt(cell string) (models.Receipt, error) {
	var receipt models.Receipt
	if err := DecodeCell(cell, &receipt); err != nil {
		return models.Receipt{}, err
	}
	return receipt, nil
}

// DecodePendingOrder parses a pending-order cell.
func DecodePendingOrder(cell string) (models.PendingOrder, error) {
	var order models.PendingOrder
	if err := DecodeCell(cell, &order); err != nil {
		return models.PendingOrder{}, err
	}
	return order, nil
}
