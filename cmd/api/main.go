package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sangkips/popup-pos/internal/application/service"
	"github.com/sangkips/popup-pos/internal/config"
	domainRepo "github.com/sangkips/popup-pos/internal/domain/repository"
	"github.com/sangkips/popup-pos/internal/infrastructure/backend"
	"github.com/sangkips/popup-pos/internal/infrastructure/database"
	"github.com/sangkips/popup-pos/internal/infrastructure/repository"
	"github.com/sangkips/popup-pos/internal/infrastructure/repository/memory"
	"github.com/sangkips/popup-pos/internal/presentation/http/handler"
	"github.com/sangkips/popup-pos/internal/presentation/http/middleware"
	"github.com/sangkips/popup-pos/internal/presentation/http/routes"
	"github.com/sangkips/popup-pos/pkg/logging"
	"github.com/sangkips/popup-pos/pkg/printer"
)

func main() {
	// Load configuration
	cfg := config.Load()
	logger := logging.Setup(cfg.App.Env, cfg.App.LogLevel)

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Journal and idempotency keys live in Postgres when configured
	var (
		idempotencyRepo domainRepo.IdempotencyRepository
		journal         domainRepo.TransactionRepository
	)
	if cfg.Database.Enabled() {
		db, err := database.NewPostgresDB(&cfg.Database, cfg.App.Debug)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		if err := database.AutoMigrate(db); err != nil {
			logger.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
		idempotencyRepo = repository.NewIdempotencyRepository(db)
		journal = repository.NewTransactionRepository(db)
	} else {
		logger.Warn("no database configured, journal and idempotency keys are kept in memory")
		idempotencyRepo = memory.NewIdempotencyRepository()
		journal = memory.NewTransactionRepository()
	}
	registerRepo := memory.NewRegisterSessionRepository()

	// Initialize thermal printer
	thermalPrinter, err := printer.NewPrinterFromConfig(
		cfg.Printer.Type,
		cfg.Printer.USBPath,
		cfg.Printer.Address,
	)
	if err != nil {
		logger.Warn("failed to initialize printer", "error", err)
		thermalPrinter = printer.NewNullPrinter()
	}

	// Initialize services
	inventory := backend.NewInventoryClient(&cfg.Backend)
	productService := service.NewProductService(inventory, logger)
	transactionService := service.NewTransactionService(inventory, journal, logger)
	printerService := service.NewPrinterService(thermalPrinter, cfg.Printer, cfg.POS, logger)
	scannerService, err := service.NewScannerService(&cfg.Scanner, logger)
	if err != nil {
		logger.Error("invalid scanner configuration", "error", err)
		os.Exit(1)
	}
	registerService := service.NewRegisterService(
		registerRepo, productService, transactionService, scannerService, printerService, cfg.POS, logger)

	rateLimiter := middleware.NewTerminalRateLimiter(
		middleware.RateLimiterConfigFor(cfg.RateLimit.Requests, cfg.RateLimit.Duration))

	// Initialize handlers
	handlers := &routes.Handlers{
		Barcode:     handler.NewBarcodeHandler(productService),
		Transaction: handler.NewTransactionHandler(transactionService),
		Register:    handler.NewRegisterHandler(registerService),
		Scanner:     handler.NewScannerHandler(scannerService),
		Printer:     handler.NewPrinterHandler(printerService),
	}

	router := routes.Setup(handlers, &routes.Deps{
		Cfg:             cfg,
		Logger:          logger,
		IdempotencyRepo: idempotencyRepo,
		RateLimiter:     rateLimiter,
	})

	port := cfg.App.Port
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go sweepIdempotencyKeys(ctx, idempotencyRepo, logger)

	go func() {
		logger.Info("starting server", "name", cfg.App.Name, "port", port, "env", cfg.App.Env, "backend", cfg.Backend.URL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}

	rateLimiter.Stop()
	scannerService.Shutdown()
	registerService.Shutdown()
	if err := thermalPrinter.Close(); err != nil {
		logger.Warn("closing printer", "error", err)
	}
}

func sweepIdempotencyKeys(ctx context.Context, repo domainRepo.IdempotencyRepository, logger *slog.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := repo.DeleteExpired(ctx); err != nil {
				logger.Warn("idempotency sweep failed", "error", err)
			}
		}
	}
}
