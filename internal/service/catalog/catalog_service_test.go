package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/storefront/internal/cache"
	"github.com/mamadbah2/storefront/internal/domain/models"
	"github.com/mamadbah2/storefront/internal/fetch"
	"github.com/mamadbah2/storefront/internal/kvstore"
)

type stubFetcher struct {
	bodies map[Dataset]string
	err    error
	calls  int
}

func (f *stubFetcher) Fetch(_ context.Context, dataset Dataset) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []byte(f.bodies[dataset]), nil
}

const receiptsCSV = "CUSTOMER,R1,R2\n" +
	"Alice,\"{\"\"id\"\":\"\"a1\"\",\"\"grandTotal\"\":100}\",\"{\"\"id\"\":\"\"a2\"\",\"\"grandTotal\"\":20}\"\n" +
	"Bob,\"{\"\"id\"\":\"\"b1\"\",\"\"grandTotal\"\":5}\"\n"

func newService(f Fetcher) *Service {
	runner := fetch.NewRunner(nil, fetch.WithSleeper(func(context.Context, time.Duration) error { return nil }))
	return NewService(f, runner, nil)
}

func TestProducts_WritesThroughAndFallsBack(t *testing.T) {
	ctx := context.Background()
	fetcher := &stubFetcher{bodies: map[Dataset]string{DatasetProducts: "NAME,RATE\nMilk,40\n"}}
	svc := newService(fetcher)
	products := cache.NewProductCache(kvstore.NewMemoryStore())

	got, err := svc.Products(ctx, products, fetch.DefaultOptions())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Milk", got[0].Name)

	cached, ok := products.Load(ctx)
	require.True(t, ok)
	assert.Equal(t, got, cached)

	fetcher.err = errors.New("dial tcp: timeout")
	fetcher.calls = 0
	got, err = svc.Products(ctx, products, fetch.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, cached, got)
	assert.Equal(t, 1, fetcher.calls)
}

func TestProducts_EmptySheetIsAFailure(t *testing.T) {
	fetcher := &stubFetcher{bodies: map[Dataset]string{DatasetProducts: "NAME,RATE\n,1\n"}}
	svc := newService(fetcher)

	_, err := svc.Products(context.Background(), nil, fetch.Options{Silent: true, MaxRetries: 1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, fetch.ErrEmptyResult))
	assert.Equal(t, 2, fetcher.calls)
}

func TestProducts_NetworkErrorClassified(t *testing.T) {
	svc := newService(&stubFetcher{err: errors.New("connection reset")})

	_, err := svc.Products(context.Background(), nil, fetch.Options{Silent: true})
	require.Error(t, err)
	assert.True(t, errors.Is(err, fetch.ErrNetwork))
}

func TestReceipts_FilteredByIdentity(t *testing.T) {
	ctx := context.Background()
	svc := newService(&stubFetcher{bodies: map[Dataset]string{DatasetReceipts: receiptsCSV}})
	receipts := cache.NewReceiptsCache(kvstore.NewMemoryStore())

	alice := models.Identity{Type: models.IdentityCustomer, CustomerName: "alice"}
	got, err := svc.Receipts(ctx, alice, receipts.For(alice.Owner()), fetch.DefaultOptions())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a2", got[1].ID)
	assert.Equal(t, 1, got[1].Ordinal)

	_, ok := receipts.Load(ctx, "Bob")
	assert.False(t, ok)

	store := models.Identity{Type: models.IdentityStore}
	all, err := svc.Receipts(ctx, store, nil, fetch.DefaultOptions())
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestCustomers_CustomerSeesOnlyThemselves(t *testing.T) {
	svc := newService(&stubFetcher{bodies: map[Dataset]string{DatasetCustomers: "NAME,PASSWORD\nAlice,a\nBob,b\n"}})

	bob := models.Identity{Type: models.IdentityCustomer, CustomerName: "Bob"}
	got, err := svc.Customers(context.Background(), bob, nil, fetch.DefaultOptions())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Bob", got[0].Name)
}

func TestPendingOrders(t *testing.T) {
	svc := newService(&stubFetcher{bodies: map[Dataset]string{DatasetOrders: "CUSTOMER,ORDER\nAlice,\"{\"\"grandTotal\"\":12}\"\n"}})

	got, err := svc.PendingOrders(context.Background(), models.Identity{Type: models.IdentityStore}, nil, fetch.DefaultOptions())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Alice", got[0].CustomerName)
	assert.Equal(t, 12.0, got[0].GrandTotal)
}

func TestSearch(t *testing.T) {
	products := []models.Product{
		{Name: "Toned Milk"},
		{Name: "Milk Bread"},
		{Name: "Butter"},
		{Name: "milk powder"},
	}

	got := Search(products, "milk")
	require.Len(t, got, 3)
	assert.Equal(t, "Milk Bread", got[0].Name)
	assert.Equal(t, "milk powder", got[1].Name)
	assert.Equal(t, "Toned Milk", got[2].Name)

	assert.Len(t, Search(products, "  "), 4)
	assert.Len(t, Search(products, "milk bread"), 1)
	assert.Empty(t, Search(products, "cheese"))
}
