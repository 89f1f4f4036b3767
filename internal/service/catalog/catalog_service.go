package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/mamadbah2/storefront/internal/cache"
	"github.com/mamadbah2/storefront/internal/codec"
	"github.com/mamadbah2/storefront/internal/domain/models"
	"github.com/mamadbah2/storefront/internal/fetch"
	"github.com/mamadbah2/storefront/pkg/clients/sheetcsv"
)

// Service loads sheet datasets through FetchWithFallback.
type Service struct {
	fetcher Fetcher
	runner  *fetch.Runner
	logger  *zap.Logger
}

// NewService wires a catalog service.
func NewService(fetcher Fetcher, runner *fetch.Runner, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{fetcher: fetcher, runner: runner, logger: logger}
}

// Runner exposes the shared fetch runner.
func (s *Service) Runner() *fetch.Runner {
	return s.runner
}

// Products loads the product list, writing through to c. c may be nil.
func (s *Service) Products(ctx context.Context, c fetch.Cache[[]models.Product], opts fetch.Options) ([]models.Product, error) {
	src := fetch.Source[[]models.Product]{
		Name:  string(DatasetProducts),
		Fetch: s.fetchFunc(DatasetProducts),
		Parse: func(body []byte) ([]models.Product, error) {
			rows, err := sheetcsv.ReadRows(body)
			if err != nil {
				return nil, err
			}
			products, skipped, err := sheetcsv.DecodeProducts(rows)
			if skipped > 0 {
				s.logger.Debug("skipped product rows", zap.Int("count", skipped))
			}
			return products, err
		},
		Validate: cache.ValidateProducts,
	}
	return fetch.Run(ctx, s.runner, src, c, opts)
}

// Customers loads the customers visible to identity: every customer for the
// store, only their own record for a customer.
func (s *Service) Customers(ctx context.Context, identity models.Identity, c fetch.Cache[[]models.Customer], opts fetch.Options) ([]models.Customer, error) {
	src := fetch.Source[[]models.Customer]{
		Name:  string(DatasetCustomers),
		Fetch: s.fetchFunc(DatasetCustomers),
		Parse: func(body []byte) ([]models.Customer, error) {
			rows, err := sheetcsv.ReadRows(body)
			if err != nil {
				return nil, err
			}
			customers, _, err := sheetcsv.DecodeCustomers(rows)
			if err != nil {
				return nil, err
			}
			return filterCustomers(customers, identity), nil
		},
		Validate: cache.ValidateCustomers,
	}
	return fetch.Run(ctx, s.runner, src, c, opts)
}

// Receipts loads the receipts visible to identity.
func (s *Service) Receipts(ctx context.Context, identity models.Identity, c fetch.Cache[[]models.Receipt], opts fetch.Options) ([]models.Receipt, error) {
	src := fetch.Source[[]models.Receipt]{
		Name:  string(DatasetReceipts),
		Fetch: s.fetchFunc(DatasetReceipts),
		Parse: func(body []byte) ([]models.Receipt, error) {
			rows, err := sheetcsv.ReadRows(body)
			if err != nil {
				return nil, err
			}
			receipts, skipped := codec.ReceiptsFromRows(rows)
			if skipped > 0 {
				s.logger.Warn("skipped malformed receipt cells", zap.Int("count", skipped))
			}
			return filterReceipts(receipts, identity), nil
		},
		Validate: cache.ValidateReceipts,
	}
	return fetch.Run(ctx, s.runner, src, c, opts)
}

// PendingOrders loads the pending orders visible to identity.
func (s *Service) PendingOrders(ctx context.Context, identity models.Identity, c fetch.Cache[[]models.PendingOrder], opts fetch.Options) ([]models.PendingOrder, error) {
	src := fetch.Source[[]models.PendingOrder]{
		Name:  string(DatasetOrders),
		Fetch: s.fetchFunc(DatasetOrders),
		Parse: func(body []byte) ([]models.PendingOrder, error) {
			rows, err := sheetcsv.ReadRows(body)
			if err != nil {
				return nil, err
			}
			orders, skipped := codec.OrdersFromRows(rows)
			if skipped > 0 {
				s.logger.Warn("skipped malformed order cells", zap.Int("count", skipped))
			}
			filtered := make([]models.PendingOrder, 0, len(orders))
			for _, order := range orders {
				if identity.CanAccessCustomer(order.CustomerName) {
					filtered = append(filtered, order)
				}
			}
			return filtered, nil
		},
		Validate: cache.ValidatePendingOrders,
	}
	return fetch.Run(ctx, s.runner, src, c, opts)
}

func (s *Service) fetchFunc(dataset Dataset) fetch.FetchFunc {
	return func(ctx context.Context) ([]byte, error) {
		body, err := s.fetcher.Fetch(ctx, dataset)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", fetch.ErrNetwork, err)
		}
		return body, nil
	}
}

// Search returns the products whose name contains every word of query,
// case-insensitively. Names starting with the query sort first; otherwise the
// sheet order is kept.
func Search(products []models.Product, query string) []models.Product {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return append([]models.Product(nil), products...)
	}
	terms := strings.Fields(query)

	matches := make([]models.Product, 0)
	for _, p := range products {
		name := strings.ToLower(p.Name)
		matched := true
		for _, term := range terms {
			if !strings.Contains(name, term) {
				matched = false
				break
			}
		}
		if matched {
			matches = append(matches, p)
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		pi := strings.HasPrefix(strings.ToLower(matches[i].Name), query)
		pj := strings.HasPrefix(strings.ToLower(matches[j].Name), query)
		return pi && !pj
	})

	return matches
}

func filterCustomers(customers []models.Customer, identity models.Identity) []models.Customer {
	if identity.IsStore() {
		return customers
	}
	filtered := make([]models.Customer, 0, 1)
	for _, c := range customers {
		if identity.CanAccessCustomer(c.Name) {
			filtered = append(filtered, c)
		}
	}
	return filtered
}

func filterReceipts(receipts []models.Receipt, identity models.Identity) []models.Receipt {
	if identity.IsStore() {
		return receipts
	}
	filtered := make([]models.Receipt, 0)
	for _, r := range receipts {
		if identity.CanAccessCustomer(r.CustomerName) {
			filtered = append(filtered, r)
		}
	}
	return filtered
}
