package routes

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sangkips/popup-pos/internal/config"
	domainRepo "github.com/sangkips/popup-pos/internal/domain/repository"
	"github.com/sangkips/popup-pos/internal/presentation/http/handler"
	"github.com/sangkips/popup-pos/internal/presentation/http/middleware"
)

// Handlers holds all the HTTP handlers used for route registration.
type Handlers struct {
	Barcode     *handler.BarcodeHandler
	Transaction *handler.TransactionHandler
	Register    *handler.RegisterHandler
	Scanner     *handler.ScannerHandler
	Printer     *handler.PrinterHandler
}

// Deps holds shared dependencies needed by the routes.
type Deps struct {
	Cfg             *config.Config
	Logger          *slog.Logger
	IdempotencyRepo domainRepo.IdempotencyRepository
	// RateLimiter is built from Cfg.RateLimit when nil.
	RateLimiter *middleware.TerminalRateLimiter
}

// Setup creates the Gin router and registers all routes.
func Setup(h *Handlers, deps *Deps) *gin.Engine {
	router := gin.New()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rateLimiter := deps.RateLimiter
	if rateLimiter == nil {
		rateLimiter = middleware.NewTerminalRateLimiter(
			middleware.RateLimiterConfigFor(deps.Cfg.RateLimit.Requests, deps.Cfg.RateLimit.Duration))
	}

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(middleware.LoggerMiddleware(logger))
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.CORSMiddleware(&deps.Cfg.CORS))
	router.Use(middleware.TerminalMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":     "ok",
			"service":    deps.Cfg.App.Name,
			"rate_limit": rateLimiter.Stats(),
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	api.Use(rateLimiter.Middleware())
	{
		registerProxyRoutes(api, h, deps, logger)
		registerRegisterRoutes(api, h)
		registerScanRoutes(api, h)
		registerPrinterRoutes(api, h)
	}

	return router
}

func registerProxyRoutes(api *gin.RouterGroup, h *Handlers, deps *Deps, logger *slog.Logger) {
	api.POST("/barcode", h.Barcode.Lookup)

	idempotency := middleware.Idempotency(middleware.IdempotencyConfig{
		Repo:   deps.IdempotencyRepo,
		TTL:    deps.Cfg.Idempotency.TTL,
		Logger: logger,
	})
	api.POST("/transaction", idempotency, h.Transaction.Submit)
	api.GET("/transactions", h.Transaction.List)
}

func registerRegisterRoutes(api *gin.RouterGroup, h *Handlers) {
	registers := api.Group("/registers")
	{
		registers.POST("", h.Register.Create)
		registers.GET("/:id", h.Register.Get)
		registers.DELETE("/:id", h.Register.Delete)
		registers.PUT("/:id/form", h.Register.UpdateForm)
		registers.POST("/:id/lookup", h.Register.Lookup)
		registers.POST("/:id/items", h.Register.AddItem)
		registers.POST("/:id/purchase", h.Register.Purchase)
		registers.POST("/:id/confirmation/dismiss", h.Register.DismissConfirmation)
		registers.POST("/:id/scan", h.Register.StartScan)
		registers.DELETE("/:id/scan", h.Register.CancelScan)
	}
}

func registerScanRoutes(api *gin.RouterGroup, h *Handlers) {
	scans := api.Group("/scans")
	{
		scans.GET("/:id", h.Scanner.Get)
		scans.POST("/:id/frames", h.Scanner.PushFrame)
		scans.POST("/:id/confirm", h.Scanner.Confirm)
		scans.POST("/:id/rescan", h.Scanner.Rescan)
		scans.DELETE("/:id", h.Scanner.Close)
	}
}

func registerPrinterRoutes(api *gin.RouterGroup, h *Handlers) {
	printer := api.Group("/printer")
	{
		printer.GET("/status", h.Printer.GetStatus)
		printer.POST("/test", h.Printer.TestPrint)
	}
}
