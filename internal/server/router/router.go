package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/storefront/internal/server/handlers"
)

// Handlers groups the HTTP handlers mounted by New.
type Handlers struct {
	Middleware *handlers.Middleware
	Auth       *handlers.AuthHandler
	Catalog    *handlers.CatalogHandler
	Cart       *handlers.CartHandler
	Sales      *handlers.SalesHandler
	Reports    *handlers.ReportHandler
}

// New wires the Gin engine with required routes and middlewares.
func New(h Handlers, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(zapLoggerMiddleware(logger))

	r.GET("/healthz", h.Catalog.Health)

	terminal := r.Group("/", h.Middleware.Session())
	terminal.POST("/auth/login", h.Auth.Login)
	terminal.POST("/auth/logout", h.Auth.Logout)

	authed := terminal.Group("/", h.Middleware.RequireAuth())
	authed.GET("/auth/me", h.Auth.Me)
	authed.GET("/products", h.Catalog.Products)
	authed.GET("/products/last-view", h.Catalog.LastView)
	authed.POST("/refresh", h.Catalog.Refresh)

	authed.GET("/cart", h.Cart.Get)
	authed.POST("/cart", h.Cart.Add)
	authed.PATCH("/cart/:name", h.Cart.Update)
	authed.DELETE("/cart/:name", h.Cart.Remove)
	authed.DELETE("/cart", h.Cart.Clear)

	authed.GET("/receipts", h.Sales.Receipts)
	authed.GET("/receipts/text/:ordinal", h.Sales.ReceiptText)
	authed.POST("/receipts/share", h.Sales.Share)

	authed.GET("/orders", h.Sales.Orders)
	authed.POST("/orders", h.Sales.PlaceOrder)
	authed.DELETE("/orders", h.Sales.DeleteOrder)

	store := authed.Group("/", h.Middleware.RequireStore())
	store.POST("/checkout", h.Sales.Checkout)
	store.POST("/receipts/payment", h.Sales.RecordPayment)
	store.POST("/orders/approve", h.Sales.ApproveOrder)
	store.GET("/report", h.Reports.Report)
	store.GET("/report.xlsx", h.Reports.Export)

	if logger != nil {
		logger.Info("router initialized")
	}

	return r
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}
