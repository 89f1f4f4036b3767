package codec

import (
	"errors"
	"strings"

	"github.com/spf13/cast"

	"github.com/mamadbah2/storefront/internal/domain/models"
)

const customerHeader = "CUSTOMER"

// NormalizeHeader is the header convention of every sheet: trimmed, upper case.
func NormalizeHeader(h string) string {
	return strings.ToUpper(strings.TrimSpace(h))
}

// StringRows converts Sheets API values to plain strings.
func StringRows(values [][]interface{}) [][]string {
	rows := make([][]string, 0, len(values))
	for _, raw := range values {
		row := make([]string, len(raw))
		for i, cell := range raw {
			row[i] = cast.ToString(cell)
		}
		rows = append(rows, row)
	}
	return rows
}

// ReceiptsFromRows decodes the receipts sheet. Each row starts with the customer
// name followed by one receipt per cell. Ordinals count a customer's non-empty
// receipt cells in sheet order, malformed ones included, since the webhook
// addresses cells by that position. Malformed cells are skipped and counted.
func ReceiptsFromRows(rows [][]string) ([]models.Receipt, int) {
	receipts := make([]models.Receipt, 0)
	ordinals := make(map[string]int)
	skipped := 0

	for i, row := range rows {
		if len(row) == 0 || (i == 0 && NormalizeHeader(row[0]) == customerHeader) {
			continue
		}
		customer := strings.TrimSpace(row[0])
		if customer == "" {
			continue
		}
		key := strings.ToLower(customer)

		for _, cell := range row[1:] {
			receipt, err := DecodeReceipt(cell)
			if errors.Is(err, ErrEmptyCell) {
				continue
			}
			ordinal := ordinals[key]
			ordinals[key]++
			if err != nil {
				skipped++
				continue
			}
			if strings.TrimSpace(receipt.CustomerName) == "" {
				receipt.CustomerName = customer
			}
			receipt.Ordinal = ordinal
			receipts = append(receipts, receipt)
		}
	}

	return receipts, skipped
}

// OrdersFromRows decodes the pending-orders sheet: customer name, then the order
// document. A later row for the same customer replaces an earlier one.
func OrdersFromRows(rows [][]string) ([]models.PendingOrder, int) {
	orders := make([]models.PendingOrder, 0)
	index := make(map[string]int)
	skipped := 0

	for i, row := range rows {
		if len(row) < 2 || (i == 0 && NormalizeHeader(row[0]) == customerHeader) {
			continue
		}
		customer := strings.TrimSpace(row[0])
		if customer == "" {
			continue
		}

		order, err := DecodePendingOrder(row[1])
		if errors.Is(err, ErrEmptyCell) {
			continue
		}
		if err != nil {
			skipped++
			continue
		}
		if strings.TrimSpace(order.CustomerName) == "" {
			order.CustomerName = customer
		}

		key := strings.ToLower(customer)
		if pos, ok := index[key]; ok {
			orders[pos] = order
			continue
		}
		index[key] = len(orders)
		orders = append(orders, order)
	}

	return orders, skipped
}
