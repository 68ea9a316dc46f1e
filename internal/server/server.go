package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/storefront/internal/billing"
	billingdomain "github.com/smallbiznis/storefront/internal/billing/domain"
	"github.com/smallbiznis/storefront/internal/catalog"
	catalogdomain "github.com/smallbiznis/storefront/internal/catalog/domain"
	"github.com/smallbiznis/storefront/internal/config"
	"github.com/smallbiznis/storefront/internal/ledger"
	ledgerdomain "github.com/smallbiznis/storefront/internal/ledger/domain"
	"github.com/smallbiznis/storefront/internal/observability"
	obsmiddleware "github.com/smallbiznis/storefront/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/storefront/internal/observability/metrics"
	obstracing "github.com/smallbiznis/storefront/internal/observability/tracing"
	"github.com/smallbiznis/storefront/internal/order"
	orderdomain "github.com/smallbiznis/storefront/internal/order/domain"
	"github.com/smallbiznis/storefront/internal/payment"
	paymentdomain "github.com/smallbiznis/storefront/internal/payment/domain"
	paymentservice "github.com/smallbiznis/storefront/internal/payment/service"
	"github.com/smallbiznis/storefront/internal/providers"
	"github.com/smallbiznis/storefront/internal/ratelimit"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	config.Module,
	fx.Provide(registerGin),
	catalog.Module,
	order.Module,
	billing.Module,
	ledger.Module,
	payment.Module,
	providers.Module,
	ratelimit.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(cfg config.Config, obsCfg observability.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(cfg config.Config, obsCfg observability.Config) *gin.Engine {
	return NewEngine(cfg, obsCfg)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine     *gin.Engine
	cfg        config.Config
	db         *gorm.DB
	genID      *snowflake.Node
	store      *config.StoreConfigHolder
	catalogSvc catalogdomain.Service
	orderSvc   orderdomain.Service
	billingSvc billingdomain.Service
	ledgerSvc  ledgerdomain.Service
	checkout   *paymentservice.Service
	webhookSvc paymentdomain.Service
	obsMetrics *obsmetrics.Metrics
	limiter    *ratelimit.CheckoutLimiter
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	DB         *gorm.DB
	GenID      *snowflake.Node
	Store      *config.StoreConfigHolder
	CatalogSvc catalogdomain.Service
	OrderSvc   orderdomain.Service
	BillingSvc billingdomain.Service
	LedgerSvc  ledgerdomain.Service
	Checkout   *paymentservice.Service
	WebhookSvc paymentdomain.Service
	ObsMetrics *obsmetrics.Metrics        `optional:"true"`
	Limiter    *ratelimit.CheckoutLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		db:         p.DB,
		genID:      p.GenID,
		store:      p.Store,
		catalogSvc: p.CatalogSvc,
		orderSvc:   p.OrderSvc,
		billingSvc: p.BillingSvc,
		ledgerSvc:  p.LedgerSvc,
		checkout:   p.Checkout,
		webhookSvc: p.WebhookSvc,
		obsMetrics: p.ObsMetrics,
		limiter:    p.Limiter,
	}

	svc.registerStorefrontRoutes()
	svc.registerAdminRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerStorefrontRoutes() {
	api := s.engine.Group("/api")

	api.GET("/store", s.GetStoreInfo)

	// -------- Catalog --------
	api.GET("/products", s.ListProducts)
	api.GET("/products/:id", s.GetProductByID)
	api.GET("/categories", s.ListCategories)

	// -------- Orders --------
	api.POST("/orders", s.CreateOrder)
	api.GET("/orders/:id", s.GetOrderByID)
	api.GET("/orders/number/:number", s.GetOrderByNumber)

	// -------- Hosted Checkout --------
	api.POST("/checkout/:orderId", s.CheckoutRateLimit(), s.CreateCheckoutSession)
	api.GET("/checkout/confirm", s.ConfirmCheckout)

	// -------- Payment Webhooks --------
	api.POST("/payments/webhooks/:provider", s.WebhookRateLimit(), s.HandlePaymentWebhook)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin/api")
	admin.Use(s.AdminRequired())

	// -------- Catalog --------
	admin.POST("/products", s.CreateProduct)
	admin.PATCH("/products/:id", s.UpdateProduct)
	admin.PUT("/products/:id/stock", s.SetProductStock)
	admin.POST("/products/:id/archive", s.ArchiveProduct)
	admin.POST("/categories", s.CreateCategory)

	// -------- Orders --------
	admin.GET("/orders", s.ListOrders)
	admin.GET("/orders/:id", s.GetOrderByID)
	admin.PUT("/orders/:id/status", s.UpdateOrderStatus)
	admin.POST("/orders/:id/refund", s.RefundOrder)

	// -------- POS Receipts --------
	admin.POST("/receipts", s.CreateReceipt)
	admin.GET("/receipts", s.ListReceipts)
	admin.GET("/receipts/:id", s.GetReceiptByID)
	admin.GET("/receipts/:id/pdf", s.RenderReceiptPDF)

	// -------- Revenue Reports --------
	admin.GET("/reports/revenue", s.GetRevenueSummary)
	admin.GET("/reports/revenue/transactions", s.ListRevenueTransactions)
	admin.GET("/reports/revenue/export", s.ExportRevenueCSV)
}
