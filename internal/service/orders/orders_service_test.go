package orders

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/storefront/internal/cache"
	"github.com/mamadbah2/storefront/internal/config"
	"github.com/mamadbah2/storefront/internal/domain/models"
	"github.com/mamadbah2/storefront/internal/kvstore"
	"github.com/mamadbah2/storefront/internal/service/pos"
	"github.com/mamadbah2/storefront/pkg/clients/appscript"
)

type recordingWebhook struct {
	payments []appscript.PaymentUpdate
	orders   []models.PendingOrder
	approved []models.Receipt
	deleted  []string
	err      error
}

func (w *recordingWebhook) SaveReceipt(context.Context, models.Receipt) error { return w.err }

func (w *recordingWebhook) SaveOrder(_ context.Context, o models.PendingOrder) error {
	if w.err != nil {
		return w.err
	}
	w.orders = append(w.orders, o)
	return nil
}

func (w *recordingWebhook) UpdatePayment(_ context.Context, u appscript.PaymentUpdate) error {
	if w.err != nil {
		return w.err
	}
	w.payments = append(w.payments, u)
	return nil
}

func (w *recordingWebhook) ApproveOrder(_ context.Context, _ string, r models.Receipt) error {
	if w.err != nil {
		return w.err
	}
	w.approved = append(w.approved, r)
	return nil
}

func (w *recordingWebhook) DeleteOrder(_ context.Context, customer string) error {
	if w.err != nil {
		return w.err
	}
	w.deleted = append(w.deleted, customer)
	return nil
}

var (
	store = models.Identity{Type: models.IdentityStore}
	alice = models.Identity{Type: models.IdentityCustomer, CustomerName: "Alice"}
)

func newService(webhook appscript.Client) *Service {
	posSvc := pos.NewService(webhook, nil, config.StoreConfig{Name: "Corner Store", Timezone: "UTC"}, nil)
	return NewService(webhook, posSvc, nil)
}

func seedReceipts(t *testing.T) *cache.Bound[[]models.Receipt] {
	t.Helper()
	local := cache.NewReceiptsCache(kvstore.NewMemoryStore()).For(store.Owner())
	require.NoError(t, local.Save(context.Background(), []models.Receipt{
		{ID: "a0", CustomerName: "Alice", Ordinal: 0, GrandTotal: 40, RemainingBalance: 40},
		{ID: "b0", CustomerName: "Bob", Ordinal: 0, GrandTotal: 10, RemainingBalance: 10},
		{CustomerName: "Alice", Ordinal: 1, GrandTotal: 100, RemainingBalance: 100},
	}))
	return local
}

func TestRecordPayment_ByOrdinal(t *testing.T) {
	ctx := context.Background()
	webhook := &recordingWebhook{}
	svc := newService(webhook)
	local := seedReceipts(t)

	updated, err := svc.RecordPayment(ctx, store, "alice", 1, models.Payments{Cash: 30, Online: 20}, local)
	require.NoError(t, err)
	assert.Equal(t, 50.0, updated.RemainingBalance)

	require.Len(t, webhook.payments, 1)
	assert.Equal(t, 1, webhook.payments[0].Ordinal)
	assert.Equal(t, 50.0, webhook.payments[0].RemainingBalance)

	cached, ok := local.Load(ctx)
	require.True(t, ok)
	assert.Equal(t, 50.0, cached[2].RemainingBalance)
	assert.Equal(t, 40.0, cached[0].RemainingBalance)
}

func TestRecordPayment_ExceedingTotalIsRejectedBeforeAnyWrite(t *testing.T) {
	ctx := context.Background()
	webhook := &recordingWebhook{}
	svc := newService(webhook)
	local := seedReceipts(t)

	_, err := svc.RecordPayment(ctx, store, "Alice", 1, models.Payments{Cash: 80, Online: 30}, local)
	require.Error(t, err)
	assert.ErrorIs(t, err, pos.ErrPaymentExceedsTotal)

	assert.Empty(t, webhook.payments)
	cached, _ := local.Load(ctx)
	assert.Equal(t, 100.0, cached[2].RemainingBalance)
	assert.Zero(t, cached[2].Payments.Sum())
}

func TestRecordPayment_Errors(t *testing.T) {
	ctx := context.Background()
	local := seedReceipts(t)

	_, err := newService(&recordingWebhook{}).RecordPayment(ctx, store, "Alice", 5, models.Payments{}, local)
	assert.ErrorIs(t, err, ErrReceiptNotFound)

	_, err = newService(&recordingWebhook{}).RecordPayment(ctx, alice, "Alice", 0, models.Payments{}, local)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = newService(&recordingWebhook{}).RecordPayment(ctx, store, "Alice", 0, models.Payments{Online: -5}, local)
	assert.ErrorIs(t, err, pos.ErrNegativePayment)

	_, err = newService(&recordingWebhook{err: errors.New("503")}).RecordPayment(ctx, store, "Alice", 0, models.Payments{Cash: 10}, local)
	require.Error(t, err)
	cached, _ := local.Load(ctx)
	assert.Equal(t, 40.0, cached[0].RemainingBalance, "a failed webhook leaves the local copy untouched")
}

func TestRecordPaymentByID(t *testing.T) {
	ctx := context.Background()
	webhook := &recordingWebhook{}
	local := seedReceipts(t)

	updated, err := newService(webhook).RecordPaymentByID(ctx, store, "Alice", "a0", models.Payments{Online: 40}, local)
	require.NoError(t, err)
	assert.Zero(t, updated.RemainingBalance)
	require.Len(t, webhook.payments, 1)
	assert.Equal(t, "a0", webhook.payments[0].ReceiptID)

	_, err = newService(webhook).RecordPaymentByID(ctx, store, "Alice", "b0", models.Payments{}, local)
	assert.ErrorIs(t, err, ErrReceiptNotFound, "ids are matched within the named customer only")
}

func TestPlaceApproveDelete(t *testing.T) {
	ctx := context.Background()
	webhook := &recordingWebhook{}
	svc := newService(webhook)
	mem := kvstore.NewMemoryStore()
	pending := cache.NewPendingOrderCache(mem)
	receipts := cache.NewReceiptsCache(mem).For(store.Owner())
	require.NoError(t, receipts.Save(ctx, []models.Receipt{}))

	aliceOrders := pending.For(alice.Owner())
	require.NoError(t, aliceOrders.Save(ctx, []models.PendingOrder{}))

	cart := pos.NewCart()
	_, _ = cart.Add(models.Product{Name: "Milk", Rate: 40}, 2)

	_, err := svc.PlaceOrder(ctx, alice, "Bob", cart, aliceOrders)
	assert.ErrorIs(t, err, ErrForbidden)

	order, err := svc.PlaceOrder(ctx, alice, "Alice", cart, aliceOrders)
	require.NoError(t, err)
	assert.Equal(t, 80.0, order.GrandTotal)
	assert.Empty(t, cart.Items())
	require.Len(t, webhook.orders, 1)

	_, _ = cart.Add(models.Product{Name: "Bread", Rate: 25}, 1)
	_, err = svc.PlaceOrder(ctx, alice, "Alice", cart, aliceOrders)
	require.NoError(t, err)
	list, ok := aliceOrders.Load(ctx)
	require.True(t, ok)
	require.Len(t, list, 1, "a new order replaces the previous one")
	assert.Equal(t, 25.0, list[0].GrandTotal)

	storeOrders := pending.For(store.Owner())
	require.NoError(t, storeOrders.Save(ctx, list))

	_, err = svc.ApproveOrder(ctx, alice, "Alice", storeOrders, receipts)
	assert.ErrorIs(t, err, ErrForbidden)

	receipt, err := svc.ApproveOrder(ctx, store, "alice", storeOrders, receipts)
	require.NoError(t, err)
	assert.Equal(t, 25.0, receipt.GrandTotal)
	assert.Equal(t, 25.0, receipt.RemainingBalance)
	require.Len(t, webhook.approved, 1)

	left, _ := storeOrders.Load(ctx)
	assert.Empty(t, left)
	saved, _ := receipts.Load(ctx)
	assert.Len(t, saved, 1)

	_, err = svc.ApproveOrder(ctx, store, "Alice", storeOrders, receipts)
	assert.ErrorIs(t, err, ErrOrderNotFound)

	require.NoError(t, svc.DeleteOrder(ctx, store, "Alice", storeOrders))
	assert.Equal(t, []string{"Alice"}, webhook.deleted)
	assert.ErrorIs(t, svc.DeleteOrder(ctx, alice, "Bob", nil), ErrForbidden)
}
