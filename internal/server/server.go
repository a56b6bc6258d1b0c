package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/ToropovAlexei/autosales-sub001/internal/auth"
	"github.com/ToropovAlexei/autosales-sub001/internal/config"
	"github.com/ToropovAlexei/autosales-sub001/internal/customer"
	"github.com/ToropovAlexei/autosales-sub001/internal/invoice"
	"github.com/ToropovAlexei/autosales-sub001/internal/ledger"
	"github.com/ToropovAlexei/autosales-sub001/internal/product"
	"github.com/ToropovAlexei/autosales-sub001/internal/purchase"
	"github.com/ToropovAlexei/autosales-sub001/internal/settings"
	"github.com/ToropovAlexei/autosales-sub001/internal/store"
	"github.com/ToropovAlexei/autosales-sub001/internal/subscription"
)

const operatorRole = "operator"

// Deps aggregates everything the router wires together.
type Deps struct {
	DB               *sqlx.DB
	Config           *config.Config
	InvoiceService   *invoice.Service
	InvoiceRepo      invoice.Repository
	PurchaseService  *purchase.Service
	StoreService     *store.Service
	StoreRepo        store.Repository
	ProductRepo      product.Repository
	CustomerRepo     customer.Repository
	SubscriptionRepo subscription.Repository
	SettingsRepo     settings.Repository
}

type Server struct {
	router *gin.Engine
	http   *http.Server
	config *config.Config
}

func New(deps Deps) *Server {
	registerValidations()

	router := gin.New()
	router.Use(gin.Recovery(), corsMiddleware(), RequestLoggingMiddleware(), MetricsMiddleware())

	ledgerHandler := ledger.NewHandler(deps.DB)
	invoiceHandler := invoice.NewHandler(deps.InvoiceService, deps.InvoiceRepo)
	purchaseHandler := purchase.NewHandler(deps.PurchaseService)
	storeHandler := store.NewHandler(deps.StoreService, deps.StoreRepo)
	productHandler := product.NewHandler(deps.ProductRepo)
	customerHandler := customer.NewHandler(deps.CustomerRepo)
	subscriptionHandler := subscription.NewHandler(deps.SubscriptionRepo)
	settingsHandler := settings.NewHandler(deps.SettingsRepo)

	router.GET("/health", Health)
	router.GET("/metrics", Metrics())
	SetupSwagger(router)

	router.POST("/auth/login", Login(deps.Config))

	// Gateways call back here; no JWT, rate limit instead.
	webhooks := router.Group("/webhooks")
	webhooks.Use(RateLimitMiddleware(10, 30))
	{
		webhooks.POST("/:gateway", invoiceHandler.Webhook)
	}

	authMiddleware := auth.AuthMiddleware(deps.Config.JWTSecret)
	protected := router.Group("/")
	protected.Use(authMiddleware)
	{
		protected.GET("/products", productHandler.List)
		protected.GET("/products/:id", productHandler.Get)

		protected.POST("/invoices", invoiceHandler.Create)
		protected.GET("/invoices", invoiceHandler.List)
		protected.GET("/invoices/:id", invoiceHandler.Get)
		protected.POST("/invoices/:id/receipt", invoiceHandler.SubmitReceipt)
		protected.POST("/invoices/:id/cancel", invoiceHandler.Cancel)

		protected.POST("/purchase", purchaseHandler.Purchase)

		protected.GET("/transactions", ledgerHandler.List)
		protected.GET("/customers/:customerID", customerHandler.Get)
		protected.GET("/customers/:customerID/transactions", ledgerHandler.ListForCustomer)
		protected.GET("/customers/:customerID/subscriptions", subscriptionHandler.ListForCustomer)
		protected.POST("/subscriptions/:id/cancel", subscriptionHandler.Cancel)
	}

	operator := router.Group("/")
	operator.Use(authMiddleware, auth.RequireRole(operatorRole))
	{
		operator.GET("/store-balance", ledgerHandler.StoreBalance)

		operator.POST("/balance-requests", storeHandler.Create)
		operator.GET("/balance-requests", storeHandler.List)
		operator.POST("/balance-requests/:id/complete", storeHandler.Complete)
		operator.POST("/balance-requests/:id/reject", storeHandler.Reject)

		operator.POST("/invoices/:id/confirm", invoiceHandler.Confirm)
		operator.POST("/invoices/:id/refund", invoiceHandler.Refund)

		operator.GET("/settings", settingsHandler.Get)
		operator.PATCH("/settings", settingsHandler.Update)
	}

	return &Server{
		router: router,
		config: deps.Config,
	}
}

func (s *Server) Start(port string) error {
	s.http = &http.Server{
		Addr:              ":" + port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
