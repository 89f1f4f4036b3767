package reporting

import (
	"fmt"
	"io"

	"github.com/360EntSecGroup-Skylar/excelize"

	"github.com/mamadbah2/storefront/internal/domain/models"
)

const (
	summarySheet  = "Summary"
	daysSheet     = "Days"
	productsSheet = "Products"
)

// WriteXLSX renders the report as a workbook with summary, per-day and
// per-product sheets.
func WriteXLSX(w io.Writer, report models.SalesReport) error {
	book := excelize.NewFile()
	book.SetSheetName("Sheet1", summarySheet)

	summary := [][]interface{}{
		{"From", report.From.Format(dateLayout)},
		{"To", report.To.Format(dateLayout)},
		{"Receipts", report.Receipts},
		{"Sales", report.Sales},
		{"Cost", report.Cost},
		{"Profit", report.Profit},
		{"Margin %", report.MarginPct},
		{"Cash", report.Cash},
		{"Online", report.Online},
		{"Outstanding", report.Outstanding},
		{"Mean ticket", report.MeanTicket},
		{"Median ticket", report.MedianTicket},
	}
	writeRows(book, summarySheet, summary)

	book.NewSheet(daysSheet)
	days := [][]interface{}{{"Date", "Receipts", "Sales", "Profit"}}
	for _, d := range report.Days {
		days = append(days, []interface{}{d.Date, d.Receipts, d.Sales, d.Profit})
	}
	writeRows(book, daysSheet, days)

	book.NewSheet(productsSheet)
	products := [][]interface{}{{"Product", "Quantity", "Sales"}}
	for _, p := range report.TopProducts {
		products = append(products, []interface{}{p.Name, p.Quantity, p.Sales})
	}
	writeRows(book, productsSheet, products)

	if err := book.Write(w); err != nil {
		return fmt.Errorf("write report workbook: %w", err)
	}
	return nil
}

func writeRows(book *excelize.File, sheet string, rows [][]interface{}) {
	for r, row := range rows {
		for c, value := range row {
			book.SetCellValue(sheet, cellName(c, r), value)
		}
	}
}

// cellName converts zero-based column and row indexes to an A1 reference.
func cellName(col, row int) string {
	name := ""
	for col++; col > 0; col = (col - 1) / 26 {
		name = string(rune('A'+(col-1)%26)) + name
	}
	return fmt.Sprintf("%s%d", name, row+1)
}
