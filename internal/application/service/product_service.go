package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/sangkips/popup-pos/internal/domain/entity"
	"github.com/sangkips/popup-pos/internal/domain/message"
	"github.com/sangkips/popup-pos/internal/domain/repository"
	"github.com/sangkips/popup-pos/internal/metrics"
	"github.com/sangkips/popup-pos/pkg/apperror"
)

// ProductService resolves barcodes against the inventory backend
type ProductService struct {
	gateway repository.InventoryGateway
	logger  *slog.Logger
}

// NewProductService creates a new product service
func NewProductService(gateway repository.InventoryGateway, logger *slog.Logger) *ProductService {
	return &ProductService{
		gateway: gateway,
		logger:  logger,
	}
}

// LookupProduct returns the product for code. Unknown codes yield a not_found
// error; every other failure is transient and is not retried.
func (s *ProductService) LookupProduct(ctx context.Context, code string) (*entity.Product, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, apperror.NewFieldError("code", message.CodeRequired)
	}

	start := time.Now()
	product, err := s.gateway.LookupProduct(ctx, code)
	metrics.BackendDuration.WithLabelValues("lookup").Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		metrics.ProductLookups.WithLabelValues("found").Inc()
		s.logger.DebugContext(ctx, "product found", "code", code, "product_id", product.ProductID)
		return product, nil
	case apperror.IsNotFound(err):
		metrics.ProductLookups.WithLabelValues("not_found").Inc()
		s.logger.InfoContext(ctx, "product not found", "code", code)
		return nil, err
	default:
		metrics.ProductLookups.WithLabelValues("error").Inc()
		s.logger.WarnContext(ctx, "product lookup failed", "code", code, "error", err)
		if !apperror.IsAppError(err) {
			err = apperror.NewTransientError(message.LookupFailed, err)
		}
		return nil, err
	}
}
