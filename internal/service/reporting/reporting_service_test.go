package reporting

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/360EntSecGroup-Skylar/excelize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/storefront/internal/config"
	"github.com/mamadbah2/storefront/internal/domain/models"
)

type staticSource struct {
	receipts []models.Receipt
	err      error
}

func (s staticSource) AllReceipts(context.Context) ([]models.Receipt, error) {
	return s.receipts, s.err
}

type memoryArchive struct {
	reports []models.DailyReport
	err     error
}

func (a *memoryArchive) SaveDailyReport(_ context.Context, r models.DailyReport) error {
	a.reports = append(a.reports, r)
	return a.err
}

type rowRecorder struct {
	rng  string
	rows [][]interface{}
}

func (r *rowRecorder) WriteRow(_ context.Context, rng string, values []interface{}) error {
	r.rng = rng
	r.rows = append(r.rows, values)
	return nil
}

func (r *rowRecorder) ReadRange(context.Context, string) ([][]interface{}, error) { return nil, nil }

func item(name string, rate, cost float64, qty int) models.ReceiptItem {
	ci := models.CartItem{Name: name, Rate: rate, Quantity: qty, PurchaseCost: cost}
	return models.ReceiptItem{CartItem: ci, Total: ci.LineTotal()}
}

func sampleReceipts() []models.Receipt {
	return []models.Receipt{
		{ID: "1", Date: "2024-03-09", GrandTotal: 100, ProfitMargin: 40, Items: []models.ReceiptItem{item("Milk", 50, 30, 2)},
			Payments: models.Payments{Cash: 100}},
		{ID: "2", Date: "10/03/2024", GrandTotal: 30, Items: []models.ReceiptItem{item("Bread", 15, 10, 2)},
			Payments: models.Payments{Online: 10}, RemainingBalance: 20},
		{ID: "3", Date: "March 10, 2024", GrandTotal: 50, ProfitMargin: 10, Items: []models.ReceiptItem{item("milk", 50, 40, 1)}},
		{ID: "4", Date: "2024-03-12", GrandTotal: 999},
		{ID: "5", Date: "yesterday-ish", GrandTotal: 1},
	}
}

func newTestService(source ReceiptSource, opts ...Option) *Service {
	svc := NewService(source, config.StoreConfig{Name: "Corner Store", Timezone: "UTC"}, nil, opts...)
	svc.now = func() time.Time { return time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC) }
	return svc
}

func TestBuild(t *testing.T) {
	svc := newTestService(staticSource{})
	from := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)

	report := svc.Build(sampleReceipts(), from, to)

	assert.Equal(t, 3, report.Receipts)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 180.0, report.Sales)
	assert.Equal(t, 120.0, report.Cost)
	assert.Equal(t, 60.0, report.Profit, "missing margins are derived from cost")
	assert.Equal(t, 33.33, report.MarginPct)
	assert.Equal(t, 100.0, report.Cash)
	assert.Equal(t, 10.0, report.Online)
	assert.Equal(t, 20.0, report.Outstanding)
	assert.Equal(t, 60.0, report.MeanTicket)
	assert.Equal(t, 50.0, report.MedianTicket)

	require.Len(t, report.Days, 2)
	assert.Equal(t, models.DailySales{Date: "2024-03-09", Receipts: 1, Sales: 100, Profit: 40}, report.Days[0])
	assert.Equal(t, models.DailySales{Date: "2024-03-10", Receipts: 2, Sales: 80, Profit: 20}, report.Days[1])

	require.Len(t, report.TopProducts, 2)
	assert.Equal(t, "Milk", report.TopProducts[0].Name)
	assert.Equal(t, 3, report.TopProducts[0].Quantity)
	assert.Equal(t, 150.0, report.TopProducts[0].Sales)
}

func TestBuild_Empty(t *testing.T) {
	svc := newTestService(staticSource{})
	report := svc.Build(nil, time.Now(), time.Now())
	assert.Zero(t, report.Receipts)
	assert.Zero(t, report.MarginPct)
	assert.Empty(t, report.Days)
}

func TestParseRange(t *testing.T) {
	svc := newTestService(staticSource{})

	from, to, err := svc.ParseRange("", "")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, from, to)

	from, to, err = svc.ParseRange("01/03/2024", "2024-03-05")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), from, "numeric dates are day first")
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), to)

	_, _, err = svc.ParseRange("2024-03-05", "2024-03-01")
	assert.ErrorIs(t, err, ErrInvalidRange)
	_, _, err = svc.ParseRange("not a date", "")
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestGenerate_PropagatesSourceErrors(t *testing.T) {
	svc := newTestService(staticSource{err: errors.New("offline")})
	_, err := svc.Generate(context.Background(), time.Now(), time.Now())
	assert.Error(t, err)
}

func TestArchiveDay(t *testing.T) {
	archive := &memoryArchive{}
	sheet := &rowRecorder{}
	svc := newTestService(staticSource{receipts: sampleReceipts()}, WithArchive(archive), WithSheetSummary(sheet, "Daily!A:H"))

	daily, err := svc.ArchiveDay(context.Background(), time.Date(2024, 3, 10, 23, 55, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 2, daily.Receipts)
	assert.Equal(t, 80.0, daily.SalesAmount)
	assert.Equal(t, "Corner Store", daily.StoreName)

	require.Len(t, archive.reports, 1)
	assert.Equal(t, daily, archive.reports[0])
	require.Len(t, sheet.rows, 1)
	assert.Equal(t, "Daily!A:H", sheet.rng)
	assert.Equal(t, "2024-03-10", sheet.rows[0][0])

	archive.err = errors.New("mongo down")
	daily, err = svc.ArchiveDay(context.Background(), time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC))
	assert.Error(t, err)
	assert.Equal(t, 2, daily.Receipts)
	assert.Len(t, sheet.rows, 2, "the sheet still receives the row")
}

func TestWriteXLSX(t *testing.T) {
	svc := newTestService(staticSource{})
	report := svc.Build(sampleReceipts(), time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC))

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, report))

	book, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, "Receipts", book.GetCellValue(summarySheet, "A3"))
	assert.Equal(t, "3", book.GetCellValue(summarySheet, "B3"))
	assert.Equal(t, "2024-03-10", book.GetCellValue(daysSheet, "A3"))
	assert.Equal(t, "Milk", book.GetCellValue(productsSheet, "A2"))
}

func TestCellName(t *testing.T) {
	assert.Equal(t, "A1", cellName(0, 0))
	assert.Equal(t, "Z2", cellName(25, 1))
	assert.Equal(t, "AA10", cellName(26, 9))
}
