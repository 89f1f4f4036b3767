package orders

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mamadbah2/storefront/internal/domain/models"
	"github.com/mamadbah2/storefront/internal/service/pos"
	"github.com/mamadbah2/storefront/pkg/clients/appscript"
)

var (
	ErrReceiptNotFound = errors.New("receipt not found")
	ErrOrderNotFound   = errors.New("pending order not found")
	ErrForbidden       = errors.New("identity may not access this customer")
)

// ReceiptStore is the terminal's local copy of the receipts list.
type ReceiptStore = pos.ReceiptStore

// PendingStore is the terminal's local copy of the pending orders.
type PendingStore interface {
	Load(ctx context.Context) ([]models.PendingOrder, bool)
	Save(ctx context.Context, orders []models.PendingOrder) error
}

// Service manages pending orders and payment updates. The webhook is the
// authoritative write; local caches are updated afterwards on a best-effort basis.
type Service struct {
	webhook appscript.Client
	pos     *pos.Service
	logger  *zap.Logger
}

// NewService wires the orders service.
func NewService(webhook appscript.Client, posSvc *pos.Service, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{webhook: webhook, pos: posSvc, logger: logger}
}

// PlaceOrder submits the cart as the customer's pending order, replacing any
// previous one. The cart is emptied on success.
func (s *Service) PlaceOrder(ctx context.Context, identity models.Identity, customerName string, cart *pos.Cart, local PendingStore) (models.PendingOrder, error) {
	if !identity.CanAccessCustomer(customerName) {
		return models.PendingOrder{}, ErrForbidden
	}

	items := cart.Items()
	receipt, err := s.pos.NewReceipt(customerName, items, models.Payments{})
	if err != nil {
		return models.PendingOrder{}, err
	}
	order := models.PendingOrder{Receipt: receipt, PlacedAt: receipt.Date + " " + receipt.Time}

	if err := s.webhook.SaveOrder(ctx, order); err != nil {
		return models.PendingOrder{}, fmt.Errorf("save order: %w", err)
	}
	cart.Clear()

	s.updatePending(ctx, local, func(orders []models.PendingOrder) []models.PendingOrder {
		return append(withoutCustomer(orders, order.CustomerName), order)
	})

	s.logger.Info("order placed", zap.String("customer", order.CustomerName), zap.Float64("grand_total", order.GrandTotal))
	return order, nil
}

// ApproveOrder turns the customer's pending order into a receipt. Only the store
// may approve.
func (s *Service) ApproveOrder(ctx context.Context, identity models.Identity, customerName string, pending PendingStore, receipts ReceiptStore) (models.Receipt, error) {
	if !identity.IsStore() {
		return models.Receipt{}, ErrForbidden
	}

	orders, _ := pending.Load(ctx)
	order, ok := findOrder(orders, customerName)
	if !ok {
		return models.Receipt{}, fmt.Errorf("%w: %s", ErrOrderNotFound, customerName)
	}

	items := make([]models.CartItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, item.CartItem)
	}
	receipt, err := s.pos.NewReceipt(order.CustomerName, items, models.Payments{})
	if err != nil {
		return models.Receipt{}, err
	}

	if err := s.webhook.ApproveOrder(ctx, order.CustomerName, receipt); err != nil {
		return models.Receipt{}, fmt.Errorf("approve order: %w", err)
	}

	s.updatePending(ctx, pending, func(orders []models.PendingOrder) []models.PendingOrder {
		return withoutCustomer(orders, order.CustomerName)
	})
	if list, ok := receipts.Load(ctx); ok {
		receipt.Ordinal = countFor(list, receipt.CustomerName)
		if err := receipts.Save(ctx, append(list, receipt)); err != nil {
			s.logger.Warn("failed to append approved receipt locally", zap.Error(err))
		}
	}

	s.logger.Info("order approved", zap.String("customer", receipt.CustomerName), zap.String("receipt_id", receipt.ID))
	return receipt, nil
}

// DeleteOrder discards the customer's pending order.
func (s *Service) DeleteOrder(ctx context.Context, identity models.Identity, customerName string, local PendingStore) error {
	if !identity.CanAccessCustomer(customerName) {
		return ErrForbidden
	}

	if err := s.webhook.DeleteOrder(ctx, customerName); err != nil {
		return fmt.Errorf("delete order: %w", err)
	}

	s.updatePending(ctx, local, func(orders []models.PendingOrder) []models.PendingOrder {
		return withoutCustomer(orders, customerName)
	})

	s.logger.Info("order deleted", zap.String("customer", customerName))
	return nil
}

// RecordPayment updates the payments of the receipt at position ordinal among
// customerName's receipts. Validation happens before any write.
func (s *Service) RecordPayment(ctx context.Context, identity models.Identity, customerName string, ordinal int, payments models.Payments, local ReceiptStore) (models.Receipt, error) {
	return s.recordPayment(ctx, identity, customerName, local, payments, func(receipts []models.Receipt) int {
		return indexByOrdinal(receipts, customerName, ordinal)
	})
}

// RecordPaymentByID updates the payments of the receipt with the given id.
func (s *Service) RecordPaymentByID(ctx context.Context, identity models.Identity, customerName, receiptID string, payments models.Payments, local ReceiptStore) (models.Receipt, error) {
	return s.recordPayment(ctx, identity, customerName, local, payments, func(receipts []models.Receipt) int {
		for i, r := range receipts {
			if r.ID == receiptID && r.BelongsTo(customerName) {
				return i
			}
		}
		return -1
	})
}

func (s *Service) recordPayment(ctx context.Context, identity models.Identity, customerName string, local ReceiptStore, payments models.Payments, locate func([]models.Receipt) int) (models.Receipt, error) {
	if !identity.IsStore() {
		return models.Receipt{}, ErrForbidden
	}

	receipts, _ := local.Load(ctx)
	i := locate(receipts)
	if i < 0 {
		return models.Receipt{}, fmt.Errorf("%w: %s", ErrReceiptNotFound, customerName)
	}

	updated := receipts[i]
	if err := pos.ApplyPayments(&updated, payments); err != nil {
		return models.Receipt{}, err
	}

	update := appscript.PaymentUpdate{
		CustomerName:     updated.CustomerName,
		ReceiptID:        updated.ID,
		Ordinal:          updated.Ordinal,
		Payments:         updated.Payments,
		RemainingBalance: updated.RemainingBalance,
	}
	if err := s.webhook.UpdatePayment(ctx, update); err != nil {
		return models.Receipt{}, fmt.Errorf("update payment: %w", err)
	}

	next := append([]models.Receipt(nil), receipts...)
	next[i] = updated
	if err := local.Save(ctx, next); err != nil {
		s.logger.Warn("failed to update receipt locally", zap.String("customer", customerName), zap.Error(err))
	}

	s.logger.Info("payment recorded",
		zap.String("customer", updated.CustomerName),
		zap.Int("ordinal", updated.Ordinal),
		zap.Float64("remaining", updated.RemainingBalance))
	return updated, nil
}

func (s *Service) updatePending(ctx context.Context, local PendingStore, mutate func([]models.PendingOrder) []models.PendingOrder) {
	if local == nil {
		return
	}
	orders, ok := local.Load(ctx)
	if !ok {
		return
	}
	if err := local.Save(ctx, mutate(orders)); err != nil {
		s.logger.Warn("failed to update pending orders locally", zap.Error(err))
	}
}

func indexByOrdinal(receipts []models.Receipt, customerName string, ordinal int) int {
	if ordinal < 0 {
		return -1
	}
	for i, r := range receipts {
		if r.BelongsTo(customerName) && r.Ordinal == ordinal {
			return i
		}
	}
	return -1
}

func findOrder(orders []models.PendingOrder, customerName string) (models.PendingOrder, bool) {
	for _, o := range orders {
		if o.BelongsTo(customerName) {
			return o, true
		}
	}
	return models.PendingOrder{}, false
}

func withoutCustomer(orders []models.PendingOrder, customerName string) []models.PendingOrder {
	kept := make([]models.PendingOrder, 0, len(orders))
	for _, o := range orders {
		if !o.BelongsTo(customerName) {
			kept = append(kept, o)
		}
	}
	return kept
}

func countFor(receipts []models.Receipt, customerName string) int {
	n := 0
	for _, r := range receipts {
		if r.BelongsTo(customerName) {
			n++
		}
	}
	return n
}
