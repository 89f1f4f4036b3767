package reporting

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/montanaflynn/stats"
	"go.uber.org/zap"

	"github.com/mamadbah2/storefront/internal/config"
	"github.com/mamadbah2/storefront/internal/domain/models"
	"github.com/mamadbah2/storefront/internal/repository/mongodb"
	repo "github.com/mamadbah2/storefront/internal/repository/sheets"
)

const (
	dateLayout  = "2006-01-02"
	topProducts = 5
)

// ErrInvalidRange is returned when the requested period cannot be parsed or is inverted.
var ErrInvalidRange = errors.New("invalid report range")

// ReceiptSource returns every receipt visible to the store.
type ReceiptSource interface {
	AllReceipts(ctx context.Context) ([]models.Receipt, error)
}

// Service builds sales and profit summaries from receipts.
type Service struct {
	source       ReceiptSource
	archive      mongodb.Repository
	sheet        repo.Repository
	summaryRange string
	storeName    string
	loc          *time.Location
	now          func() time.Time
	logger       *zap.Logger
}

// Option customizes the reporting service.
type Option func(*Service)

// WithArchive stores daily reports in MongoDB.
func WithArchive(archive mongodb.Repository) Option {
	return func(s *Service) { s.archive = archive }
}

// WithSheetSummary appends each daily report as a row of sheetRange.
func WithSheetSummary(sheet repo.Repository, sheetRange string) Option {
	return func(s *Service) {
		s.sheet = sheet
		s.summaryRange = sheetRange
	}
}

// NewService wires a new reporting service instance.
func NewService(source ReceiptSource, store config.StoreConfig, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		source:    source,
		storeName: store.Name,
		loc:       store.Location(),
		now:       time.Now,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ParseRange reads a reporting period from free-form dates. An empty from
// defaults to today, an empty to defaults to from. Both ends are whole days in
// the store timezone; to is inclusive.
func (s *Service) ParseRange(fromValue, toValue string) (time.Time, time.Time, error) {
	from := startOfDay(s.now().In(s.loc))
	if strings.TrimSpace(fromValue) != "" {
		parsed, err := s.parseDate(fromValue)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: from %q", ErrInvalidRange, fromValue)
		}
		from = parsed
	}

	to := from
	if strings.TrimSpace(toValue) != "" {
		parsed, err := s.parseDate(toValue)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: to %q", ErrInvalidRange, toValue)
		}
		to = parsed
	}

	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %s is before %s", ErrInvalidRange, to.Format(dateLayout), from.Format(dateLayout))
	}
	return from, to, nil
}

// Generate loads every receipt and summarizes the ones dated within [from, to].
func (s *Service) Generate(ctx context.Context, from, to time.Time) (models.SalesReport, error) {
	receipts, err := s.source.AllReceipts(ctx)
	if err != nil {
		return models.SalesReport{}, fmt.Errorf("load receipts: %w", err)
	}
	return s.Build(receipts, from, to), nil
}

// Build summarizes receipts dated within [from, to]. Receipts whose date cannot
// be read are counted in Skipped.
func (s *Service) Build(receipts []models.Receipt, from, to time.Time) models.SalesReport {
	from = startOfDay(from.In(s.loc))
	to = startOfDay(to.In(s.loc))
	end := to.AddDate(0, 0, 1)

	report := models.SalesReport{From: from, To: to}
	days := make(map[string]*models.DailySales)
	products := make(map[string]*models.ProductSummary)
	tickets := make([]float64, 0, len(receipts))

	for _, r := range receipts {
		day, err := s.parseDate(r.Date)
		if err != nil {
			report.Skipped++
			s.logger.Debug("skip receipt with invalid date", zap.String("date", r.Date), zap.String("receipt_id", r.ID))
			continue
		}
		if day.Before(from) || !day.Before(end) {
			continue
		}

		cost := r.CostTotal()
		profit := r.ProfitMargin
		if profit == 0 {
			profit = r.GrandTotal - cost
		}

		report.Receipts++
		report.Sales += r.GrandTotal
		report.Cost += cost
		report.Profit += profit
		report.Cash += r.Payments.Cash
		report.Online += r.Payments.Online
		report.Outstanding += r.RemainingBalance
		tickets = append(tickets, r.GrandTotal)

		key := day.Format(dateLayout)
		d, ok := days[key]
		if !ok {
			d = &models.DailySales{Date: key}
			days[key] = d
		}
		d.Receipts++
		d.Sales += r.GrandTotal
		d.Profit += profit

		for _, item := range r.Items {
			name := strings.ToLower(strings.TrimSpace(item.Name))
			p, ok := products[name]
			if !ok {
				p = &models.ProductSummary{Name: strings.TrimSpace(item.Name)}
				products[name] = p
			}
			total := item.Total
			if total == 0 {
				total = item.LineTotal()
			}
			p.Quantity += item.Quantity
			p.Sales += total
		}
	}

	report.Sales = models.RoundMoney(report.Sales)
	report.Cost = models.RoundMoney(report.Cost)
	report.Profit = models.RoundMoney(report.Profit)
	report.Cash = models.RoundMoney(report.Cash)
	report.Online = models.RoundMoney(report.Online)
	report.Outstanding = models.RoundMoney(report.Outstanding)
	if report.Sales > 0 {
		report.MarginPct = models.RoundMoney(report.Profit / report.Sales * 100)
	}
	if len(tickets) > 0 {
		mean, _ := stats.Mean(tickets)
		median, _ := stats.Median(tickets)
		report.MeanTicket = models.RoundMoney(mean)
		report.MedianTicket = models.RoundMoney(median)
	}

	report.Days = make([]models.DailySales, 0, len(days))
	for _, d := range days {
		d.Sales = models.RoundMoney(d.Sales)
		d.Profit = models.RoundMoney(d.Profit)
		report.Days = append(report.Days, *d)
	}
	sort.Slice(report.Days, func(i, j int) bool { return report.Days[i].Date < report.Days[j].Date })

	report.TopProducts = make([]models.ProductSummary, 0, len(products))
	for _, p := range products {
		p.Sales = models.RoundMoney(p.Sales)
		report.TopProducts = append(report.TopProducts, *p)
	}
	sort.Slice(report.TopProducts, func(i, j int) bool {
		a, b := report.TopProducts[i], report.TopProducts[j]
		if a.Sales != b.Sales {
			return a.Sales > b.Sales
		}
		return a.Name < b.Name
	})
	if len(report.TopProducts) > topProducts {
		report.TopProducts = report.TopProducts[:topProducts]
	}

	return report
}

// ArchiveDay summarizes day and stores it in the configured archives. Archive
// failures are joined into the returned error; the report is returned either way.
func (s *Service) ArchiveDay(ctx context.Context, day time.Time) (models.DailyReport, error) {
	report, err := s.Generate(ctx, day, day)
	if err != nil {
		return models.DailyReport{}, err
	}

	daily := models.DailyReport{
		Date:          report.From,
		StoreName:     s.storeName,
		Receipts:      report.Receipts,
		SalesAmount:   report.Sales,
		CostAmount:    report.Cost,
		Profit:        report.Profit,
		CashCollected: report.Cash,
		OnlinePaid:    report.Online,
		UnpaidBalance: report.Outstanding,
		CreatedAt:     s.now().UTC(),
	}

	var errs []error
	if s.archive != nil {
		if err := s.archive.SaveDailyReport(ctx, daily); err != nil {
			errs = append(errs, err)
		}
	}
	if s.sheet != nil && s.summaryRange != "" {
		row := []interface{}{
			daily.Date.Format(dateLayout), daily.Receipts, daily.SalesAmount, daily.CostAmount,
			daily.Profit, daily.CashCollected, daily.OnlinePaid, daily.UnpaidBalance,
		}
		if err := s.sheet.WriteRow(ctx, s.summaryRange, row); err != nil {
			errs = append(errs, fmt.Errorf("append summary row: %w", err))
		}
	}

	return daily, errors.Join(errs...)
}

// parseDate reads receipt dates leniently. Ambiguous numeric dates are read
// day first.
func (s *Service) parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	if t, err := time.ParseInLocation(dateLayout, value, s.loc); err == nil {
		return t, nil
	}
	t, err := dateparse.ParseIn(value, s.loc, dateparse.PreferMonthFirst(false))
	if err != nil {
		return time.Time{}, err
	}
	return startOfDay(t.In(s.loc)), nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
