package pos

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/storefront/internal/cache"
	"github.com/mamadbah2/storefront/internal/config"
	"github.com/mamadbah2/storefront/internal/domain/models"
	"github.com/mamadbah2/storefront/internal/kvstore"
	"github.com/mamadbah2/storefront/pkg/clients/appscript"
)

type fakeWebhook struct {
	receipts []models.Receipt
	err      error
}

func (f *fakeWebhook) SaveReceipt(_ context.Context, r models.Receipt) error {
	if f.err != nil {
		return f.err
	}
	f.receipts = append(f.receipts, r)
	return nil
}

func (f *fakeWebhook) SaveOrder(context.Context, models.PendingOrder) error { return f.err }
func (f *fakeWebhook) UpdatePayment(context.Context, appscript.PaymentUpdate) error { return f.err }
func (f *fakeWebhook) ApproveOrder(context.Context, string, models.Receipt) error { return f.err }
func (f *fakeWebhook) DeleteOrder(context.Context, string) error { return f.err }

type fakeSender struct {
	to, body string
	err      error
}

func (f *fakeSender) SendText(_ context.Context, to, body string) error {
	f.to, f.body = to, body
	return f.err
}

func ptr[T any](v T) *T { return &v }

func newTestService(webhook appscript.Client, sender MessageSender) *Service {
	svc := NewService(webhook, sender, config.StoreConfig{Name: "Corner Store", Timezone: "Asia/Kolkata"}, nil)
	svc.now = func() time.Time { return time.Date(2024, 3, 9, 18, 30, 0, 0, time.UTC) }
	svc.newID = func() string { return "r-1" }
	return svc
}

func TestCart_AddMergesAndDefaultsQuantity(t *testing.T) {
	cart := NewCart()
	milk := models.Product{Name: "Milk", Rate: 40, PurchaseCost: ptr(32.0), Stock: ptr(10)}

	item, err := cart.Add(milk, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, item.Quantity)
	assert.Equal(t, 32.0, item.PurchaseCost)

	item, err = cart.Add(models.Product{Name: "milk ", Rate: 40}, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, item.Quantity)
	assert.Len(t, cart.Items(), 1)

	_, err = cart.Add(milk, -1)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestCart_UpdateOverrideRemove(t *testing.T) {
	cart := NewCart()
	_, _ = cart.Add(models.Product{Name: "Milk", Rate: 40, PurchaseCost: ptr(30.0)}, 2)
	_, _ = cart.Add(models.Product{Name: "Bread", Rate: 25}, 1)

	require.NoError(t, cart.OverrideRate("milk", 38))
	assert.ErrorIs(t, cart.OverrideRate("milk", -1), ErrNegativeRate)
	require.NoError(t, cart.SetQuantity("Bread", 4))

	totals := cart.Totals()
	assert.Equal(t, 2, totals.Lines)
	assert.Equal(t, 6, totals.Quantity)
	assert.Equal(t, 176.0, totals.GrandTotal)
	assert.Equal(t, 60.0, totals.Cost)
	assert.Equal(t, 116.0, totals.ProfitMargin)

	require.NoError(t, cart.SetQuantity("bread", 0))
	assert.Len(t, cart.Items(), 1)
	assert.ErrorIs(t, cart.Remove("bread"), ErrItemNotFound)
	require.NoError(t, cart.Remove("Milk"))
	assert.Empty(t, cart.Items())
}

func TestCheckout_SavesAppendsAndClears(t *testing.T) {
	ctx := context.Background()
	webhook := &fakeWebhook{}
	svc := newTestService(webhook, nil)
	local := cache.NewReceiptsCache(kvstore.NewMemoryStore()).For("store")
	require.NoError(t, local.Save(ctx, []models.Receipt{{ID: "old", CustomerName: "Alice", GrandTotal: 10}}))

	cart := NewCart()
	_, _ = cart.Add(models.Product{Name: "Milk", Rate: 40, PurchaseCost: ptr(30.0)}, 2)
	_, _ = cart.Add(models.Product{Name: "Bread", Rate: 20}, 1)

	receipt, err := svc.Checkout(ctx, cart, " Alice ", models.Payments{Cash: 50, Online: 0}, local)
	require.NoError(t, err)

	assert.Equal(t, "r-1", receipt.ID)
	assert.Equal(t, "Corner Store", receipt.StoreName)
	assert.Equal(t, "Alice", receipt.CustomerName)
	assert.Equal(t, "2024-03-10", receipt.Date, "store-local date")
	assert.Equal(t, "12:00 AM", receipt.Time)
	assert.Equal(t, 100.0, receipt.GrandTotal)
	assert.Equal(t, 40.0, receipt.ProfitMargin)
	assert.Equal(t, 50.0, receipt.RemainingBalance)
	assert.Equal(t, 1, receipt.Ordinal)
	require.Len(t, receipt.Items, 2)
	assert.Equal(t, 80.0, receipt.Items[0].Total)

	assert.Empty(t, cart.Items())
	require.Len(t, webhook.receipts, 1)

	cached, ok := local.Load(ctx)
	require.True(t, ok)
	assert.Len(t, cached, 2)
}

func TestCheckout_FailuresKeepCart(t *testing.T) {
	ctx := context.Background()
	cart := NewCart()

	svc := newTestService(&fakeWebhook{}, nil)
	_, err := svc.Checkout(ctx, cart, "Alice", models.Payments{}, nil)
	assert.ErrorIs(t, err, ErrEmptyCart)

	_, _ = cart.Add(models.Product{Name: "Milk", Rate: 40}, 1)

	_, err = svc.Checkout(ctx, cart, "", models.Payments{}, nil)
	assert.ErrorIs(t, err, ErrCustomerRequired)
	assert.Len(t, cart.Items(), 1)

	_, err = svc.Checkout(ctx, cart, "Alice", models.Payments{Cash: 50}, nil)
	assert.ErrorIs(t, err, ErrPaymentExceedsTotal)
	assert.Len(t, cart.Items(), 1)

	offline := newTestService(&fakeWebhook{err: errors.New("503")}, nil)
	_, err = offline.Checkout(ctx, cart, "Alice", models.Payments{}, nil)
	assert.Error(t, err)
	assert.Len(t, cart.Items(), 1)
}

func TestApplyPayments(t *testing.T) {
	receipt := models.Receipt{GrandTotal: 100}

	require.NoError(t, ApplyPayments(&receipt, models.Payments{Cash: 30, Online: 20}))
	assert.Equal(t, 50.0, receipt.RemainingBalance)

	err := ApplyPayments(&receipt, models.Payments{Cash: 80, Online: 30})
	assert.ErrorIs(t, err, ErrPaymentExceedsTotal)
	assert.Equal(t, 50.0, receipt.RemainingBalance, "rejected payments leave the receipt unchanged")
	assert.Equal(t, 30.0, receipt.Payments.Cash)

	assert.ErrorIs(t, ApplyPayments(&receipt, models.Payments{Cash: -1}), ErrNegativePayment)

	require.NoError(t, ApplyPayments(&receipt, models.Payments{Online: 100}))
	assert.Zero(t, receipt.RemainingBalance)
}

func TestFormatReceipt(t *testing.T) {
	text := FormatReceipt(models.Receipt{
		StoreName:    "Corner Store",
		CustomerName: "Alice",
		Date:         "2024-03-10",
		Time:         "10:15 AM",
		Items: []models.ReceiptItem{
			{CartItem: models.CartItem{Name: "Extra Long Product Name Here", Rate: 12.5, Quantity: 2}, Total: 25},
		},
		GrandTotal:       25,
		Payments:         models.Payments{Cash: 20},
		RemainingBalance: 5,
	})

	assert.Contains(t, text, "CORNER STORE")
	assert.Contains(t, text, "Customer: Alice")
	assert.Contains(t, text, "Extra Long Prod.")
	assert.Contains(t, text, "25.00")
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		assert.LessOrEqual(t, len([]rune(line)), receiptWidth, line)
	}
	assert.Regexp(t, `Balance Due:\s+5\.00`, text)
}

func TestShare(t *testing.T) {
	ctx := context.Background()
	receipt := models.Receipt{ID: "r-1", StoreName: "Corner Store", CustomerName: "Alice"}

	assert.ErrorIs(t, newTestService(&fakeWebhook{}, nil).Share(ctx, "9199", receipt), ErrSharingDisabled)

	sender := &fakeSender{}
	require.NoError(t, newTestService(&fakeWebhook{}, sender).Share(ctx, "9199", receipt))
	assert.Equal(t, "9199", sender.to)
	assert.Contains(t, sender.body, "CORNER STORE")

	sender.err = errors.New("whatsapp down")
	assert.Error(t, newTestService(&fakeWebhook{}, sender).Share(ctx, "9199", receipt))
}
