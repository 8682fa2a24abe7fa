package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sangkips/popup-pos/internal/application/service"
	"github.com/sangkips/popup-pos/internal/domain/message"
	"github.com/sangkips/popup-pos/internal/presentation/http/dto/request"
	"github.com/sangkips/popup-pos/internal/presentation/http/dto/response"
	"github.com/sangkips/popup-pos/pkg/apperror"
)

// BarcodeHandler is the product lookup proxy
type BarcodeHandler struct {
	productService *service.ProductService
}

// NewBarcodeHandler creates a new barcode handler
func NewBarcodeHandler(productService *service.ProductService) *BarcodeHandler {
	return &BarcodeHandler{productService: productService}
}

// Lookup handles POST /api/barcode
func (h *BarcodeHandler) Lookup(c *gin.Context) {
	var req request.BarcodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ProxyFailure(c, http.StatusBadRequest, message.CodeRequired)
		return
	}

	product, err := h.productService.LookupProduct(c.Request.Context(), req.Code)
	switch {
	case err == nil:
		response.Proxy(c, product)
	case apperror.IsValidation(err):
		response.ProxyFailure(c, http.StatusBadRequest, apperror.GetAppError(err).Message)
	case apperror.IsNotFound(err):
		response.ProxyFailure(c, http.StatusNotFound, message.ProductNotFound)
	default:
		response.ProxyFailure(c, http.StatusInternalServerError, message.LookupFailed)
	}
}
