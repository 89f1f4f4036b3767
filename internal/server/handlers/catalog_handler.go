package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/storefront/internal/app"
	"github.com/mamadbah2/storefront/internal/domain/models"
	"github.com/mamadbah2/storefront/internal/service/catalog"
)

// CatalogHandler serves the product list and cache maintenance endpoints.
type CatalogHandler struct {
	app    *app.App
	logger *zap.Logger
}

// NewCatalogHandler constructs the catalog handler.
func NewCatalogHandler(application *app.App, logger *zap.Logger) *CatalogHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogHandler{app: application, logger: logger}
}

// Products lists the products matching the optional q parameter and remembers
// the query as the terminal's last view.
func (h *CatalogHandler) Products(c *gin.Context) {
	products, err := h.app.Products(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "failed to load products", err)
		return
	}

	query := c.Query("q")
	matches := catalog.Search(products, query)
	sessionFrom(c).SaveLastView(c.Request.Context(), models.ProductView{Query: query, Selected: c.Query("selected")})

	c.JSON(http.StatusOK, gin.H{"products": matches, "count": len(matches)})
}

// LastView returns the terminal's last product view.
func (h *CatalogHandler) LastView(c *gin.Context) {
	view, ok := sessionFrom(c).LastView(c.Request.Context())
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no product view recorded"})
		return
	}
	c.JSON(http.StatusOK, view)
}

// Refresh flushes and reloads the terminal's caches.
func (h *CatalogHandler) Refresh(c *gin.Context) {
	if err := sessionFrom(c).Refresh(c.Request.Context()); err != nil {
		respondError(c, h.logger, "refresh failed", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Health reports liveness and the surfaced fetch failure count.
func (h *CatalogHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"fetchFailures": h.app.ErrorCount(),
		"sessions":      len(h.app.Sessions()),
	})
}
