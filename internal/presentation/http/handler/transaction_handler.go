package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sangkips/popup-pos/internal/application/service"
	"github.com/sangkips/popup-pos/internal/domain/message"
	"github.com/sangkips/popup-pos/internal/presentation/http/dto/request"
	"github.com/sangkips/popup-pos/internal/presentation/http/dto/response"
	"github.com/sangkips/popup-pos/internal/presentation/http/middleware"
	"github.com/sangkips/popup-pos/pkg/pagination"
)

// TransactionHandler is the transaction submission proxy and the journal reader
type TransactionHandler struct {
	transactionService *service.TransactionService
}

// NewTransactionHandler creates a new transaction handler
func NewTransactionHandler(transactionService *service.TransactionService) *TransactionHandler {
	return &TransactionHandler{transactionService: transactionService}
}

// Submit handles POST /api/transaction. The Idempotency-Key header, when
// present, is forwarded to the backend.
func (h *TransactionHandler) Submit(c *gin.Context) {
	var req request.TransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ProxyFailure(c, http.StatusBadRequest, "invalid transaction body")
		return
	}

	key := c.GetHeader(middleware.IdempotencyKeyHeader)
	result, err := h.transactionService.SubmitTransaction(c.Request.Context(), GetTerminalID(c), key, req.ToEntity())
	if err != nil {
		response.ProxyFailure(c, http.StatusInternalServerError, message.TransactionFailed)
		return
	}
	response.Proxy(c, result)
}

// List handles GET /api/transactions. ?terminal narrows to one terminal;
// without it every terminal is listed.
func (h *TransactionHandler) List(c *gin.Context) {
	params := pagination.FromQuery(c.Query("page"), c.Query("per_page"))

	result, err := h.transactionService.ListTransactions(c.Request.Context(), c.Query("terminal"), params)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithPagination(c, http.StatusOK, "Transactions retrieved", result)
}
