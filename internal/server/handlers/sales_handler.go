package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/storefront/internal/app"
	"github.com/mamadbah2/storefront/internal/domain/models"
	"github.com/mamadbah2/storefront/internal/service/orders"
	"github.com/mamadbah2/storefront/internal/service/pos"
)

// SalesHandler exposes checkout, receipts and pending orders.
type SalesHandler struct {
	app    *app.App
	pos    *pos.Service
	orders *orders.Service
	logger *zap.Logger
}

// NewSalesHandler constructs the sales handler.
func NewSalesHandler(application *app.App, posSvc *pos.Service, ordersSvc *orders.Service, logger *zap.Logger) *SalesHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SalesHandler{app: application, pos: posSvc, orders: ordersSvc, logger: logger}
}

// Checkout turns the terminal's cart into a receipt.
func (h *SalesHandler) Checkout(c *gin.Context) {
	var req models.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid checkout payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	ctx := c.Request.Context()
	session := sessionFrom(c)

	local, err := session.ReceiptStore(ctx)
	if err != nil {
		h.logger.Warn("receipts unavailable, ordinal left unset", zap.Error(err))
		local = nil
	}

	receipt, err := h.pos.Checkout(ctx, session.Cart(), req.CustomerName, req.Payments, local)
	if err != nil {
		respondError(c, h.logger, "checkout failed", err)
		return
	}
	h.app.RecordReceipt(ctx, receipt)
	c.JSON(http.StatusCreated, receipt)
}

// Receipts lists the receipts visible to the caller, optionally narrowed to one customer.
func (h *SalesHandler) Receipts(c *gin.Context) {
	receipts, err := sessionFrom(c).Receipts(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "failed to load receipts", err)
		return
	}

	if customer := strings.TrimSpace(c.Query("customer")); customer != "" {
		filtered := make([]models.Receipt, 0)
		for _, r := range receipts {
			if r.BelongsTo(customer) {
				filtered = append(filtered, r)
			}
		}
		receipts = filtered
	}

	c.JSON(http.StatusOK, gin.H{"receipts": receipts, "count": len(receipts)})
}

// ReceiptText renders a receipt as its printable layout.
func (h *SalesHandler) ReceiptText(c *gin.Context) {
	ordinal, err := strconv.Atoi(c.Param("ordinal"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ordinal must be an integer"})
		return
	}

	receipt, err := h.lookup(c, "", customerOf(c, c.Query("customer")), &ordinal)
	if err != nil {
		respondError(c, h.logger, "receipt lookup failed", err)
		return
	}
	c.String(http.StatusOK, pos.FormatReceipt(receipt))
}

// Share sends a receipt's layout to a phone number.
func (h *SalesHandler) Share(c *gin.Context) {
	var req models.ShareReceiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid share payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	receipt, err := h.lookup(c, req.ReceiptID, customerOf(c, req.CustomerName), req.Ordinal)
	if err != nil {
		respondError(c, h.logger, "receipt lookup failed", err)
		return
	}

	if err := h.pos.Share(c.Request.Context(), req.To, receipt); err != nil {
		respondError(c, h.logger, "failed to share receipt", err)
		return
	}
	c.Status(http.StatusAccepted)
}

// RecordPayment updates the payments of an existing receipt.
func (h *SalesHandler) RecordPayment(c *gin.Context) {
	var req models.RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid payment payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.ReceiptID == "" && req.Ordinal == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "receiptId or ordinal is required"})
		return
	}

	ctx := c.Request.Context()
	local, err := sessionFrom(c).ReceiptStore(ctx)
	if err != nil {
		respondError(c, h.logger, "failed to load receipts", err)
		return
	}

	identity := identityFrom(c)
	var receipt models.Receipt
	if req.ReceiptID != "" {
		receipt, err = h.orders.RecordPaymentByID(ctx, identity, req.CustomerName, req.ReceiptID, req.Payments, local)
	} else {
		receipt, err = h.orders.RecordPayment(ctx, identity, req.CustomerName, *req.Ordinal, req.Payments, local)
	}
	if err != nil {
		respondError(c, h.logger, "failed to record payment", err)
		return
	}
	h.app.RecordReceipt(ctx, receipt)
	c.JSON(http.StatusOK, receipt)
}

// Orders lists the pending orders visible to the caller.
func (h *SalesHandler) Orders(c *gin.Context) {
	pending, err := sessionFrom(c).PendingOrders(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "failed to load orders", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": pending, "count": len(pending)})
}

// PlaceOrder submits the cart as the customer's pending order.
func (h *SalesHandler) PlaceOrder(c *gin.Context) {
	var req models.OrderRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		h.logger.Warn("invalid order payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	ctx := c.Request.Context()
	session := sessionFrom(c)
	local, err := session.PendingStore(ctx)
	if err != nil {
		h.logger.Warn("pending orders unavailable", zap.Error(err))
		local = nil
	}

	order, err := h.orders.PlaceOrder(ctx, identityFrom(c), customerOf(c, req.CustomerName), session.Cart(), local)
	if err != nil {
		respondError(c, h.logger, "failed to place order", err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

// DeleteOrder discards the pending order of the customer query parameter.
func (h *SalesHandler) DeleteOrder(c *gin.Context) {
	ctx := c.Request.Context()
	local, err := sessionFrom(c).PendingStore(ctx)
	if err != nil {
		h.logger.Warn("pending orders unavailable", zap.Error(err))
		local = nil
	}

	if err := h.orders.DeleteOrder(ctx, identityFrom(c), customerOf(c, c.Query("customer")), local); err != nil {
		respondError(c, h.logger, "failed to delete order", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ApproveOrder turns a customer's pending order into a receipt.
func (h *SalesHandler) ApproveOrder(c *gin.Context) {
	var req models.OrderRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.CustomerName) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "customerName is required"})
		return
	}

	ctx := c.Request.Context()
	session := sessionFrom(c)
	pending, err := session.PendingStore(ctx)
	if err != nil {
		respondError(c, h.logger, "failed to load orders", err)
		return
	}
	receipts, err := session.ReceiptStore(ctx)
	if err != nil {
		respondError(c, h.logger, "failed to load receipts", err)
		return
	}

	receipt, err := h.orders.ApproveOrder(ctx, identityFrom(c), req.CustomerName, pending, receipts)
	if err != nil {
		respondError(c, h.logger, "failed to approve order", err)
		return
	}
	h.app.RecordReceipt(ctx, receipt)
	c.JSON(http.StatusCreated, receipt)
}

// lookup finds a visible receipt by id, or by customer and ordinal.
func (h *SalesHandler) lookup(c *gin.Context, receiptID, customerName string, ordinal *int) (models.Receipt, error) {
	receipts, err := sessionFrom(c).Receipts(c.Request.Context())
	if err != nil {
		return models.Receipt{}, err
	}

	for _, r := range receipts {
		switch {
		case receiptID != "":
			if r.ID == receiptID {
				return r, nil
			}
		case ordinal != nil:
			if r.BelongsTo(customerName) && r.Ordinal == *ordinal {
				return r, nil
			}
		}
	}
	return models.Receipt{}, fmt.Errorf("%w: %s", orders.ErrReceiptNotFound, customerName)
}

// customerOf defaults the customer of a request to the signed-in customer.
func customerOf(c *gin.Context, requested string) string {
	if requested = strings.TrimSpace(requested); requested != "" {
		return requested
	}
	identity := identityFrom(c)
	if identity.IsStore() {
		return ""
	}
	return identity.CustomerName
}

func bindOptionalJSON(c *gin.Context, dst interface{}) error {
	if c.Request.ContentLength == 0 {
		return nil
	}
	return c.ShouldBindJSON(dst)
}
