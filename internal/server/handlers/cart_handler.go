package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/storefront/internal/app"
	"github.com/mamadbah2/storefront/internal/domain/models"
	"github.com/mamadbah2/storefront/internal/service/pos"
)

// CartHandler edits the terminal's cart.
type CartHandler struct {
	app    *app.App
	logger *zap.Logger
}

// NewCartHandler constructs the cart handler.
func NewCartHandler(application *app.App, logger *zap.Logger) *CartHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CartHandler{app: application, logger: logger}
}

// Get returns the cart lines and totals.
func (h *CartHandler) Get(c *gin.Context) {
	writeCart(c, sessionFrom(c).Cart())
}

// Add puts a catalog product in the cart.
func (h *CartHandler) Add(c *gin.Context) {
	var req models.AddCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid cart payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	products, err := h.app.Products(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "failed to load products", err)
		return
	}
	product, ok := models.FindProduct(products, req.Name)
	if !ok {
		respondError(c, h.logger, "unknown product", fmt.Errorf("%w: %s", errProductNotFound, req.Name))
		return
	}

	cart := sessionFrom(c).Cart()
	if _, err := cart.Add(product, req.Quantity); err != nil {
		respondError(c, h.logger, "failed to add cart item", err)
		return
	}
	writeCart(c, cart)
}

// Update changes the quantity or the rate of a cart line.
func (h *CartHandler) Update(c *gin.Context) {
	var req models.UpdateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid cart update payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	name := c.Param("name")
	cart := sessionFrom(c).Cart()
	if req.Rate != nil {
		if err := cart.OverrideRate(name, *req.Rate); err != nil {
			respondError(c, h.logger, "failed to override rate", err)
			return
		}
	}
	if req.Quantity != nil {
		if err := cart.SetQuantity(name, *req.Quantity); err != nil {
			respondError(c, h.logger, "failed to set quantity", err)
			return
		}
	}
	writeCart(c, cart)
}

// Remove drops a cart line.
func (h *CartHandler) Remove(c *gin.Context) {
	cart := sessionFrom(c).Cart()
	if err := cart.Remove(c.Param("name")); err != nil {
		respondError(c, h.logger, "failed to remove cart item", err)
		return
	}
	writeCart(c, cart)
}

// Clear empties the cart.
func (h *CartHandler) Clear(c *gin.Context) {
	cart := sessionFrom(c).Cart()
	cart.Clear()
	writeCart(c, cart)
}

func writeCart(c *gin.Context, cart *pos.Cart) {
	c.JSON(http.StatusOK, gin.H{"items": cart.Items(), "totals": cart.Totals()})
}
