package pos

import (
	"fmt"
	"strings"

	"github.com/mamadbah2/storefront/internal/domain/models"
)

const (
	receiptWidth = 40
	nameWidth    = 16
)

// FormatReceipt renders the fixed-width text layout shared with customers.
func FormatReceipt(r models.Receipt) string {
	var b strings.Builder
	rule := strings.Repeat("-", receiptWidth)

	b.WriteString(center(strings.ToUpper(r.StoreName)))
	b.WriteByte('\n')
	b.WriteString(rule + "\n")
	fmt.Fprintf(&b, "Customer: %s\n", r.CustomerName)
	fmt.Fprintf(&b, "Date: %s  Time: %s\n", r.Date, r.Time)
	b.WriteString(rule + "\n")
	fmt.Fprintf(&b, "%-*s %4s %8s %9s\n", nameWidth, "Item", "Qty", "Rate", "Total")
	b.WriteString(rule + "\n")

	for _, item := range r.Items {
		name := item.Name
		if runes := []rune(name); len(runes) > nameWidth {
			name = string(runes[:nameWidth-1]) + "."
		}
		total := item.Total
		if total == 0 {
			total = item.LineTotal()
		}
		fmt.Fprintf(&b, "%-*s %4d %8.2f %9.2f\n", nameWidth, name, item.Quantity, item.Rate, total)
	}

	b.WriteString(rule + "\n")
	writeAmount(&b, "Grand Total", r.GrandTotal)
	writeAmount(&b, "Cash", r.Payments.Cash)
	writeAmount(&b, "Online", r.Payments.Online)
	writeAmount(&b, "Balance Due", r.RemainingBalance)
	b.WriteString(rule + "\n")
	b.WriteString(center("Thank you for shopping!"))
	b.WriteByte('\n')

	return b.String()
}

func writeAmount(b *strings.Builder, label string, amount float64) {
	fmt.Fprintf(b, "%-*s%*.2f\n", receiptWidth-12, label+":", 12, amount)
}

func center(text string) string {
	if len(text) >= receiptWidth {
		return text
	}
	pad := (receiptWidth - len(text)) / 2
	return strings.Repeat(" ", pad) + text
}
