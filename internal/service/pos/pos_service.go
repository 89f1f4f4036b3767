package pos

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mamadbah2/storefront/internal/config"
	"github.com/mamadbah2/storefront/internal/domain/models"
	"github.com/mamadbah2/storefront/pkg/clients/appscript"
)

// Date and time layouts written on new receipts.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "03:04 PM"
)

var (
	ErrNegativePayment     = errors.New("payments must not be negative")
	ErrPaymentExceedsTotal = errors.New("payments exceed the receipt total")
	ErrCustomerRequired    = errors.New("customer name is required")
	ErrSharingDisabled     = errors.New("receipt sharing is not configured")
)

// ReceiptStore is the terminal's local copy of the receipts list.
type ReceiptStore interface {
	Load(ctx context.Context) ([]models.Receipt, bool)
	Save(ctx context.Context, receipts []models.Receipt) error
}

// MessageSender delivers a text message to a phone number.
type MessageSender interface {
	SendText(ctx context.Context, to, body string) error
}

// Service turns carts into receipts and distributes them.
type Service struct {
	webhook   appscript.Client
	sender    MessageSender
	storeName string
	loc       *time.Location
	now       func() time.Time
	newID     func() string
	logger    *zap.Logger
}

// NewService wires the POS service. sender may be nil when sharing is disabled.
func NewService(webhook appscript.Client, sender MessageSender, store config.StoreConfig, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		webhook:   webhook,
		sender:    sender,
		storeName: store.Name,
		loc:       store.Location(),
		now:       time.Now,
		newID:     uuid.NewString,
		logger:    logger,
	}
}

// StoreName is printed on every receipt.
func (s *Service) StoreName() string {
	return s.storeName
}

// NewReceipt freezes items into a receipt for customerName stamped with the
// current store-local date and time.
func (s *Service) NewReceipt(customerName string, items []models.CartItem, payments models.Payments) (models.Receipt, error) {
	customerName = strings.TrimSpace(customerName)
	if customerName == "" {
		return models.Receipt{}, ErrCustomerRequired
	}
	if len(items) == 0 {
		return models.Receipt{}, ErrEmptyCart
	}

	totals := totalsOf(items)
	lines := make([]models.ReceiptItem, 0, len(items))
	for _, item := range items {
		lines = append(lines, models.ReceiptItem{CartItem: item, Total: item.LineTotal()})
	}

	stamp := s.now().In(s.loc)
	receipt := models.Receipt{
		ID:           s.newID(),
		StoreName:    s.storeName,
		CustomerName: customerName,
		Date:         stamp.Format(DateLayout),
		Time:         stamp.Format(TimeLayout),
		Items:        lines,
		GrandTotal:   totals.GrandTotal,
		ProfitMargin: totals.ProfitMargin,
	}

	if err := ApplyPayments(&receipt, payments); err != nil {
		return models.Receipt{}, err
	}
	return receipt, nil
}

// Checkout converts the cart into a receipt, saves it through the webhook and
// appends it to local. The cart is emptied only when the webhook accepts the
// receipt. local may be nil.
func (s *Service) Checkout(ctx context.Context, cart *Cart, customerName string, payments models.Payments, local ReceiptStore) (models.Receipt, error) {
	items := cart.take()

	receipt, err := s.NewReceipt(customerName, items, payments)
	if err != nil {
		cart.restore(items)
		return models.Receipt{}, err
	}

	if err := s.webhook.SaveReceipt(ctx, receipt); err != nil {
		cart.restore(items)
		return models.Receipt{}, fmt.Errorf("save receipt: %w", err)
	}

	if local != nil {
		receipts, _ := local.Load(ctx)
		receipt.Ordinal = nextOrdinal(receipts, receipt.CustomerName)
		if err := local.Save(ctx, append(receipts, receipt)); err != nil {
			s.logger.Warn("failed to append receipt to local cache", zap.String("receipt_id", receipt.ID), zap.Error(err))
		}
	}

	s.logger.Info("checkout completed",
		zap.String("receipt_id", receipt.ID),
		zap.String("customer", receipt.CustomerName),
		zap.Float64("grand_total", receipt.GrandTotal))

	return receipt, nil
}

// Share sends the receipt layout to a phone number.
func (s *Service) Share(ctx context.Context, to string, receipt models.Receipt) error {
	if s.sender == nil {
		return ErrSharingDisabled
	}

	if err := s.sender.SendText(ctx, to, FormatReceipt(receipt)); err != nil {
		return fmt.Errorf("share receipt %s: %w", receipt.ID, err)
	}

	s.logger.Info("receipt shared", zap.String("receipt_id", receipt.ID), zap.String("to", to))
	return nil
}

// ApplyPayments validates payments against the receipt total and updates the
// balance. The receipt is left untouched when validation fails.
func ApplyPayments(receipt *models.Receipt, payments models.Payments) error {
	if payments.Cash < 0 || payments.Online < 0 {
		return ErrNegativePayment
	}
	if payments.Sum() > receipt.GrandTotal {
		return fmt.Errorf("%w: paid %.2f of %.2f", ErrPaymentExceedsTotal, payments.Sum(), receipt.GrandTotal)
	}

	receipt.Payments = payments
	receipt.RemainingBalance = models.RoundMoney(receipt.GrandTotal - payments.Sum())
	return nil
}

func nextOrdinal(receipts []models.Receipt, customerName string) int {
	n := 0
	for _, r := range receipts {
		if r.BelongsTo(customerName) {
			n++
		}
	}
	return n
}
