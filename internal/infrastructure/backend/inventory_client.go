package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sangkips/popup-pos/internal/config"
	"github.com/sangkips/popup-pos/internal/domain/entity"
	"github.com/sangkips/popup-pos/internal/domain/message"
	domainRepo "github.com/sangkips/popup-pos/internal/domain/repository"
	"github.com/sangkips/popup-pos/pkg/apperror"
)

const maxResponseBytes = 1 << 20

// ErrProductNotFound is the expected outcome for an unregistered barcode
var ErrProductNotFound = &apperror.AppError{Code: http.StatusNotFound, Kind: apperror.KindNotFound, Message: message.ProductNotFound}

// productPayload is the backend's lookup response. Older deployments send prd_id.
type productPayload struct {
	PrdID     *int64 `json:"prd_id"`
	ProductID *int64 `json:"productId"`
	Code      string `json:"code"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
}

// transactionLinePayload and transactionPayload are the backend's wire shape
type transactionLinePayload struct {
	PrdID    int64  `json:"PRD_ID"`
	PrdCode  string `json:"PRD_CODE"`
	PrdName  string `json:"PRD_NAME"`
	PrdPrice int64  `json:"PRD_PRICE"`
	TaxCD    string `json:"TAX_CD"`
	PrdCount int    `json:"PRD_COUNT"`
}

type transactionPayload struct {
	EmpCD       string                   `json:"EMP_CD"`
	StoreCD     string                   `json:"STORE_CD"`
	PosNo       string                   `json:"POS_NO"`
	TotalAmt    int64                    `json:"TOTAL_AMT"`
	TtlAmtExTax int64                    `json:"TTL_AMT_EX_TAX"`
	Items       []transactionLinePayload `json:"ITEMS"`
}

type transactionResultPayload struct {
	TotalPrice      *int64 `json:"totalPrice"`
	TotalPriceNoTax *int64 `json:"totalPriceNoTax"`
	TotalPriceExTax *int64 `json:"totalPriceExTax"`
}

// InventoryClient talks to the external inventory/transaction backend over HTTP
type InventoryClient struct {
	baseURL string
	http    *http.Client
}

// NewInventoryClient creates a client for cfg.URL
func NewInventoryClient(cfg *config.BackendConfig) *InventoryClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &InventoryClient{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

var _ domainRepo.InventoryGateway = (*InventoryClient)(nil)

// LookupProduct asks the backend for the product registered under code
func (c *InventoryClient) LookupProduct(ctx context.Context, code string) (*entity.Product, error) {
	body, status, err := c.post(ctx, "/api/barcode", map[string]string{"code": code}, "")
	if err != nil {
		return nil, apperror.NewTransientError(message.LookupFailed, err)
	}

	if status == http.StatusNotFound {
		return nil, ErrProductNotFound
	}
	if status < 200 || status >= 300 {
		return nil, apperror.NewTransientError(message.LookupFailed, fmt.Errorf("backend status %d", status))
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, ErrProductNotFound
	}

	var p productPayload
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return nil, apperror.NewTransientError(message.LookupFailed, fmt.Errorf("decode product: %w", err))
	}

	product := &entity.Product{
		Code:  p.Code,
		Name:  p.Name,
		Price: p.Price,
	}
	switch {
	case p.ProductID != nil:
		product.ProductID = *p.ProductID
	case p.PrdID != nil:
		product.ProductID = *p.PrdID
	}
	if product.Code == "" {
		product.Code = code
	}
	return product, nil
}

// SubmitTransaction forwards req to the backend. The call is not idempotent on
// its own; key is sent as Idempotency-Key when present.
func (c *InventoryClient) SubmitTransaction(ctx context.Context, req *entity.TransactionRequest, key string) (*entity.TransactionResult, error) {
	body, status, err := c.post(ctx, "/api/transaction", toTransactionPayload(req), key)
	if err != nil {
		return nil, apperror.NewTransientError(message.TransactionFailed, err)
	}
	if status < 200 || status >= 300 {
		return nil, apperror.NewTransientError(message.TransactionFailed, fmt.Errorf("backend status %d", status))
	}

	var p transactionResultPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, apperror.NewTransientError(message.TransactionFailed, fmt.Errorf("decode transaction result: %w", err))
	}
	if p.TotalPrice == nil {
		return nil, apperror.NewTransientError(message.TransactionFailed, fmt.Errorf("transaction result missing totalPrice"))
	}

	result := &entity.TransactionResult{TotalPrice: *p.TotalPrice}
	switch {
	case p.TotalPriceExTax != nil:
		result.TotalPriceExTax = *p.TotalPriceExTax
	case p.TotalPriceNoTax != nil:
		result.TotalPriceExTax = *p.TotalPriceNoTax
	}
	return result, nil
}

func (c *InventoryClient) post(ctx context.Context, path string, payload any, key string) ([]byte, int, error) {
	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if key != "" {
		httpReq.Header.Set("Idempotency-Key", key)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, 0, fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	return body, resp.StatusCode, nil
}

func toTransactionPayload(req *entity.TransactionRequest) transactionPayload {
	items := make([]transactionLinePayload, len(req.Lines))
	for i, l := range req.Lines {
		items[i] = transactionLinePayload{
			PrdID:    l.ProductID,
			PrdCode:  l.Code,
			PrdName:  l.Name,
			PrdPrice: l.UnitPrice,
			TaxCD:    l.TaxCode,
			PrdCount: l.Count,
		}
	}
	return transactionPayload{
		EmpCD:       req.EmployeeCode,
		StoreCD:     req.StoreCode,
		PosNo:       req.PosNumber,
		TotalAmt:    req.TotalAmount,
		TtlAmtExTax: req.TotalAmountExTax,
		Items:       items,
	}
}
