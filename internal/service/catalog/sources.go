package catalog

import (
	"context"
	"fmt"

	"github.com/mamadbah2/storefront/internal/config"
	"github.com/mamadbah2/storefront/internal/repository/sheets"
	"github.com/mamadbah2/storefront/pkg/clients/sheetcsv"
)

// Dataset names one spreadsheet tab.
type Dataset string

const (
	DatasetProducts  Dataset = "products"
	DatasetCustomers Dataset = "customers"
	DatasetReceipts  Dataset = "receipts"
	DatasetOrders    Dataset = "orders"
)

// Fetcher downloads a dataset as CSV.
type Fetcher interface {
	Fetch(ctx context.Context, dataset Dataset) ([]byte, error)
}

// CSVFetcher reads datasets from the CSV proxy endpoints.
type CSVFetcher struct {
	client *sheetcsv.Client
	urls   map[Dataset]string
}

// NewCSVFetcher maps every dataset to its proxy endpoint.
func NewCSVFetcher(client *sheetcsv.Client, cfg config.SourcesConfig) *CSVFetcher {
	return &CSVFetcher{
		client: client,
		urls: map[Dataset]string{
			DatasetProducts:  cfg.ProductsURL,
			DatasetCustomers: cfg.CustomersURL,
			DatasetReceipts:  cfg.ReceiptsURL,
			DatasetOrders:    cfg.OrdersURL,
		},
	}
}

// Fetch downloads dataset.
func (f *CSVFetcher) Fetch(ctx context.Context, dataset Dataset) ([]byte, error) {
	url, ok := f.urls[dataset]
	if !ok || url == "" {
		return nil, fmt.Errorf("no endpoint configured for %s", dataset)
	}
	return f.client.Fetch(ctx, url)
}

// SheetsFetcher reads datasets through the Sheets API.
type SheetsFetcher struct {
	repo   sheets.Repository
	ranges map[Dataset]string
}

// NewSheetsFetcher maps every dataset to its A1 range.
func NewSheetsFetcher(repo sheets.Repository, cfg config.SheetsConfig) *SheetsFetcher {
	return &SheetsFetcher{
		repo: repo,
		ranges: map[Dataset]string{
			DatasetProducts:  cfg.ProductsRange,
			DatasetCustomers: cfg.CustomersRange,
			DatasetReceipts:  cfg.ReceiptsRange,
			DatasetOrders:    cfg.OrdersRange,
		},
	}
}

// Fetch reads dataset and renders it as CSV.
func (f *SheetsFetcher) Fetch(ctx context.Context, dataset Dataset) ([]byte, error) {
	sheetRange, ok := f.ranges[dataset]
	if !ok || sheetRange == "" {
		return nil, fmt.Errorf("no range configured for %s", dataset)
	}
	return sheets.ReadRangeCSV(ctx, f.repo, sheetRange)
}
