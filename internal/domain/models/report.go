package models

import "time"

// SalesReport aggregates receipts over a period.
type SalesReport struct {
	From         time.Time        `json:"from"`
	To           time.Time        `json:"to"`
	Receipts     int              `json:"receipts"`
	Sales        float64          `json:"sales"`
	Cost         float64          `json:"cost"`
	Profit       float64          `json:"profit"`
	MarginPct    float64          `json:"marginPct"`
	Cash         float64          `json:"cash"`
	Online       float64          `json:"online"`
	Outstanding  float64          `json:"outstanding"`
	MeanTicket   float64          `json:"meanTicket"`
	MedianTicket float64          `json:"medianTicket"`
	Days         []DailySales     `json:"days"`
	Skipped      int              `json:"skipped"`
	TopProducts  []ProductSummary `json:"topProducts"`
}

// DailySales is one day of a SalesReport.
type DailySales struct {
	Date     string  `json:"date"`
	Receipts int     `json:"receipts"`
	Sales    float64 `json:"sales"`
	Profit   float64 `json:"profit"`
}

// ProductSummary aggregates quantities sold per product.
type ProductSummary struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Sales    float64 `json:"sales"`
}

// DailyReport represents the aggregated daily data to be stored in MongoDB.
type DailyReport struct {
	Date          time.Time `bson:"date" json:"date"`
	StoreName     string    `bson:"store_name" json:"store_name"`
	Receipts      int       `bson:"receipts" json:"receipts"`
	SalesAmount   float64   `bson:"sales_amount" json:"sales_amount"`
	CostAmount    float64   `bson:"cost_amount" json:"cost_amount"`
	Profit        float64   `bson:"profit" json:"profit"`
	CashCollected float64   `bson:"cash_collected" json:"cash_collected"`
	OnlinePaid    float64   `bson:"online_paid" json:"online_paid"`
	UnpaidBalance float64   `bson:"unpaid_balance" json:"unpaid_balance"`
	CreatedAt     time.Time `bson:"created_at" json:"created_at"`
}
