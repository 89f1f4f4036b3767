package models

import (
	"math"
	"strings"
)

// CartItem is one line of the active cart. Rate may differ from the catalog rate
// when the cashier overrides it.
type CartItem struct {
	Name         string  `json:"name"`
	Rate         float64 `json:"rate"`
	Quantity     int     `json:"quantity"`
	PurchaseCost float64 `json:"purchaseCost"`
	Stock        *int    `json:"stock,omitempty"`
}

// LineTotal is the line amount.
func (i CartItem) LineTotal() float64 {
	return RoundMoney(i.Rate * float64(i.Quantity))
}

// CostTotal is the purchase cost of the line.
func (i CartItem) CostTotal() float64 {
	return RoundMoney(i.PurchaseCost * float64(i.Quantity))
}

// ReceiptItem is a cart line frozen into a receipt with its computed total.
type ReceiptItem struct {
	CartItem
	Total float64 `json:"total"`
}

// Payments splits what the customer paid by channel.
type Payments struct {
	Cash   float64 `json:"cash"`
	Online float64 `json:"online"`
}

// Sum is the total amount paid.
func (p Payments) Sum() float64 {
	return RoundMoney(p.Cash + p.Online)
}

// Receipt is an immutable sale record; only Payments and RemainingBalance change
// after creation. Ordinal is the receipt's position among its customer's cells in
// the receipts sheet and is recomputed on every read.
type Receipt struct {
	ID               string        `json:"id,omitempty"`
	Ordinal          int           `json:"ordinal"`
	StoreName        string        `json:"storeName"`
	CustomerName     string        `json:"customerName"`
	Date             string        `json:"date"`
	Time             string        `json:"time"`
	Items            []ReceiptItem `json:"items"`
	GrandTotal       float64       `json:"grandTotal"`
	ProfitMargin     float64       `json:"profitMargin"`
	Payments         Payments      `json:"payments"`
	RemainingBalance float64       `json:"remainingBalance"`
}

// CostTotal sums the purchase cost snapshot of every line.
func (r Receipt) CostTotal() float64 {
	var total float64
	for _, item := range r.Items {
		total += item.CostTotal()
	}
	return RoundMoney(total)
}

// BelongsTo reports whether the receipt was issued to the named customer.
func (r Receipt) BelongsTo(customerName string) bool {
	return strings.EqualFold(strings.TrimSpace(r.CustomerName), strings.TrimSpace(customerName))
}

// PendingOrder is a customer-submitted order awaiting store approval. There is at
// most one per customer.
type PendingOrder struct {
	Receipt
	PlacedAt string `json:"placedAt,omitempty"`
}

// RoundMoney rounds to two decimal places.
func RoundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}
