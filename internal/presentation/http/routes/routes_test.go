package routes_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sangkips/popup-pos/internal/application/service"
	"github.com/sangkips/popup-pos/internal/config"
	"github.com/sangkips/popup-pos/internal/domain/message"
	"github.com/sangkips/popup-pos/internal/infrastructure/backend"
	"github.com/sangkips/popup-pos/internal/infrastructure/backend/backendtest"
	"github.com/sangkips/popup-pos/internal/infrastructure/repository/memory"
	"github.com/sangkips/popup-pos/internal/presentation/http/handler"
	"github.com/sangkips/popup-pos/internal/presentation/http/middleware"
	"github.com/sangkips/popup-pos/internal/presentation/http/routes"
	"github.com/sangkips/popup-pos/pkg/printer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type app struct {
	router  *gin.Engine
	backend *backendtest.Server
}

func testConfig(backendURL string) *config.Config {
	return &config.Config{
		App:     config.AppConfig{Name: "popup-pos", Env: "test"},
		Backend: config.BackendConfig{URL: backendURL, Timeout: 2 * time.Second},
		POS: config.POSConfig{
			EmployeeCode: "9999999999",
			StoreCode:    "30",
			PosNumber:    "90",
			TaxCode:      "10",
			TaxRate:      10,
			StoreName:    "テスト店",
		},
		Scanner:     config.ScannerConfig{Policy: "confirm"},
		Idempotency: config.IdempotencyConfig{TTL: time.Hour},
		RateLimit:   config.RateLimitConfig{Requests: 1000, Duration: 1},
		Printer:     config.PrinterConfig{Type: "stdout", Width: 32, Encoding: "shift_jis"},
	}
}

func newApp(t *testing.T, tweak func(*config.Config)) *app {
	t.Helper()

	srv := backendtest.New(t)
	cfg := testConfig(srv.URL)
	if tweak != nil {
		tweak(cfg)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	client := backend.NewInventoryClient(&cfg.Backend)
	products := service.NewProductService(client, logger)
	transactions := service.NewTransactionService(client, memory.NewTransactionRepository(), logger)
	scanners, err := service.NewScannerService(&cfg.Scanner, logger)
	require.NoError(t, err)
	printers := service.NewPrinterService(printer.NewWriterPrinter(io.Discard), cfg.Printer, cfg.POS, logger)
	registers := service.NewRegisterService(memory.NewRegisterSessionRepository(), products, transactions, scanners, printers, cfg.POS, logger)
	t.Cleanup(func() {
		registers.Shutdown()
		scanners.Shutdown()
	})

	limiter := middleware.NewTerminalRateLimiter(middleware.RateLimiterConfigFor(cfg.RateLimit.Requests, cfg.RateLimit.Duration))
	t.Cleanup(limiter.Stop)

	router := routes.Setup(&routes.Handlers{
		Barcode:     handler.NewBarcodeHandler(products),
		Transaction: handler.NewTransactionHandler(transactions),
		Register:    handler.NewRegisterHandler(registers),
		Scanner:     handler.NewScannerHandler(scanners),
		Printer:     handler.NewPrinterHandler(printers),
	}, &routes.Deps{
		Cfg:             cfg,
		Logger:          logger,
		IdempotencyRepo: memory.NewIdempotencyRepository(),
		RateLimiter:     limiter,
	})
	return &app{router: router, backend: srv}
}

func (a *app) do(t *testing.T, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type registerView struct {
	ID    string `json:"id"`
	State string `json:"state"`
	Form  struct {
		Barcode   string `json:"barcode"`
		Name      string `json:"name"`
		Price     string `json:"price"`
		ProductID *int64 `json:"productId"`
	} `json:"form"`
	Items []struct {
		Barcode   string `json:"barcode"`
		UnitPrice int64  `json:"unitPrice"`
		Quantity  int    `json:"quantity"`
	} `json:"items"`
	Total      int64 `json:"total"`
	LastResult *struct {
		TotalPrice      int64 `json:"totalPrice"`
		TotalPriceExTax int64 `json:"totalPriceExTax"`
	} `json:"lastResult"`
	Notice *struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"notice"`
	ScanID string `json:"scanId"`
}

func decodeRegister(t *testing.T, w *httptest.ResponseRecorder) registerView {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	var v registerView
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func TestHealth(t *testing.T) {
	a := newApp(t, nil)
	w := a.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestBarcodeProxy(t *testing.T) {
	a := newApp(t, nil)

	w := a.do(t, http.MethodPost, "/api/barcode", `{"code":"4901777300446"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"productId":1,"code":"4901777300446","name":"おーいお茶","price":150}`, w.Body.String())

	w = a.do(t, http.MethodPost, "/api/barcode", `{"code":"0000000000000"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"`+message.ProductNotFound+`"}`, w.Body.String())

	w = a.do(t, http.MethodPost, "/api/barcode", `{"code":"  "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	a.backend.FailLookups(http.StatusBadGateway, "")
	w = a.do(t, http.MethodPost, "/api/barcode", `{"code":"4901777300446"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"`+message.LookupFailed+`"}`, w.Body.String())
}

const transactionBody = `{
	"employeeCode":"9999999999","storeCode":"30","posNumber":"90",
	"totalAmount":300,"totalAmountExTax":272,
	"lines":[{"productId":1,"code":"4901777300446","name":"おーいお茶","unitPrice":150,"taxCode":"10","count":2}]
}`

func TestTransactionProxy(t *testing.T) {
	a := newApp(t, nil)

	w := a.do(t, http.MethodPost, "/api/transaction", transactionBody)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"totalPrice":300,"totalPriceExTax":272}`, w.Body.String())

	got := a.backend.Transactions()
	require.Len(t, got, 1)
	assert.Equal(t, "9999999999", got[0].EmpCD)
	assert.Equal(t, []backendtest.Item{
		{PrdID: 1, PrdCode: "4901777300446", PrdName: "おーいお茶", PrdPrice: 150, TaxCD: "10", PrdCount: 2},
	}, got[0].Items)

	w = a.do(t, http.MethodPost, "/api/transaction", `{"lines":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	a.backend.FailTransactions(http.StatusInternalServerError, `{"error":"db"}`)
	w = a.do(t, http.MethodPost, "/api/transaction", transactionBody)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"`+message.TransactionFailed+`"}`, w.Body.String())
}

func TestTransactionProxy_IdempotencyKey(t *testing.T) {
	a := newApp(t, nil)
	headers := []string{middleware.IdempotencyKeyHeader, "txn-1", middleware.TerminalIDHeader, "pos-90"}

	first := a.do(t, http.MethodPost, "/api/transaction", transactionBody, headers...)
	require.Equal(t, http.StatusOK, first.Code)
	second := a.do(t, http.MethodPost, "/api/transaction", transactionBody, headers...)
	require.Equal(t, http.StatusOK, second.Code)

	assert.Equal(t, "true", second.Header().Get(middleware.ReplayedHeader))
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	require.Len(t, a.backend.Transactions(), 1)
	assert.Equal(t, "txn-1", a.backend.Transactions()[0].IdempotencyKey)

	w := a.do(t, http.MethodPost, "/api/transaction", `{"totalAmount":1}`, headers...)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	// Keys are per terminal.
	w = a.do(t, http.MethodPost, "/api/transaction", transactionBody,
		middleware.IdempotencyKeyHeader, "txn-1", middleware.TerminalIDHeader, "pos-91")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get(middleware.ReplayedHeader))
	assert.Len(t, a.backend.Transactions(), 2)
}

func TestTransactionProxy_FailedAttemptIsNotCached(t *testing.T) {
	a := newApp(t, nil)
	headers := []string{middleware.IdempotencyKeyHeader, "txn-retry"}

	a.backend.FailTransactions(http.StatusServiceUnavailable, "")
	w := a.do(t, http.MethodPost, "/api/transaction", transactionBody, headers...)
	require.Equal(t, http.StatusInternalServerError, w.Code)

	a.backend.FailTransactions(0, "")
	w = a.do(t, http.MethodPost, "/api/transaction", transactionBody, headers...)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get(middleware.ReplayedHeader))
	assert.Len(t, a.backend.Transactions(), 2)
}

func TestRegisterPurchaseFlow(t *testing.T) {
	a := newApp(t, nil)

	w := a.do(t, http.MethodPost, "/api/registers", `{"terminalId":"pos-90"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	reg := decodeRegister(t, w)
	base := "/api/registers/" + reg.ID

	for i := 0; i < 2; i++ {
		w = a.do(t, http.MethodPost, base+"/lookup", `{"code":"4901777300446"}`)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		v := decodeRegister(t, w)
		assert.Equal(t, "おーいお茶", v.Form.Name)
		assert.Equal(t, "150", v.Form.Price)
		assert.Equal(t, "form_populated", v.State)

		w = a.do(t, http.MethodPost, base+"/items", "")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	v := decodeRegister(t, w)
	require.Len(t, v.Items, 1)
	assert.Equal(t, 2, v.Items[0].Quantity)
	assert.Equal(t, int64(300), v.Total)

	w = a.do(t, http.MethodPost, base+"/purchase", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	v = decodeRegister(t, w)
	assert.Equal(t, "confirmation_shown", v.State)
	assert.Empty(t, v.Items)
	require.NotNil(t, v.LastResult)
	assert.Equal(t, int64(300), v.LastResult.TotalPrice)
	assert.Equal(t, int64(272), v.LastResult.TotalPriceExTax)

	txns := a.backend.Transactions()
	require.Len(t, txns, 1)
	assert.Equal(t, int64(300), txns[0].TotalAmt)
	assert.Equal(t, 2, txns[0].Items[0].PrdCount)

	w = a.do(t, http.MethodPost, base+"/confirmation/dismiss", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "idle", decodeRegister(t, w).State)

	w = a.do(t, http.MethodGet, "/api/transactions?terminal=pos-90", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":`)
	assert.Contains(t, w.Body.String(), `"total":1`)
}

func TestRegister_SoftAndHardFailures(t *testing.T) {
	a := newApp(t, nil)
	reg := decodeRegister(t, a.do(t, http.MethodPost, "/api/registers", ""))
	base := "/api/registers/" + reg.ID

	w := a.do(t, http.MethodPost, base+"/lookup", `{"code":"0000000000000"}`)
	require.Equal(t, http.StatusOK, w.Code)
	v := decodeRegister(t, w)
	require.NotNil(t, v.Notice)
	assert.Equal(t, message.NoticeNotFound, v.Notice.Message)
	assert.Empty(t, v.Form.Barcode)

	w = a.do(t, http.MethodPost, base+"/items", `{"barcode":"123","name":"水","price":"abc"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	v = decodeRegister(t, w)
	assert.Equal(t, "水", v.Form.Name, "rejected input stays in the form")

	w = a.do(t, http.MethodPost, "/api/registers/"+reg.ID+"/purchase", "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = a.do(t, http.MethodGet, "/api/registers/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = a.do(t, http.MethodDelete, base, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = a.do(t, http.MethodGet, base, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRegisterScanFlow(t *testing.T) {
	a := newApp(t, nil)
	reg := decodeRegister(t, a.do(t, http.MethodPost, "/api/registers", ""))
	base := "/api/registers/" + reg.ID

	w := a.do(t, http.MethodPost, base+"/scan", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	v := decodeRegister(t, w)
	assert.Equal(t, "scanning", v.State)
	require.NotEmpty(t, v.ScanID)
	scan := "/api/scans/" + v.ScanID

	w = a.do(t, http.MethodPost, scan+"/frames", `{"notFound":true}`)
	require.Equal(t, http.StatusOK, w.Code)
	w = a.do(t, http.MethodPost, scan+"/frames", `{"text":"490177730044","format":"EAN_13"}`)
	require.Equal(t, http.StatusOK, w.Code)

	require.Eventually(t, func() bool {
		return bytes.Contains(a.do(t, http.MethodGet, scan, "").Body.Bytes(), []byte(`"awaiting_confirmation"`))
	}, time.Second, 5*time.Millisecond)

	// The operator fixes the misread digit before accepting.
	w = a.do(t, http.MethodPost, scan+"/confirm", `{"code":"4901777300446"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	v = decodeRegister(t, a.do(t, http.MethodGet, base, ""))
	assert.Equal(t, "form_populated", v.State)
	assert.Equal(t, "4901777300446", v.Form.Barcode)
	assert.Equal(t, "おーいお茶", v.Form.Name)
	assert.Empty(t, v.ScanID)
	assert.Equal(t, []string{"4901777300446"}, a.backend.Lookups())

	w = a.do(t, http.MethodGet, scan, "")
	assert.Equal(t, http.StatusNotFound, w.Code, "the scan session is released after delivery")
}

func TestRegisterScan_CameraError(t *testing.T) {
	a := newApp(t, nil)
	reg := decodeRegister(t, a.do(t, http.MethodPost, "/api/registers", ""))
	base := "/api/registers/" + reg.ID

	w := a.do(t, http.MethodPost, base+"/scan", `{"cameraError":"NotAllowedError"}`)
	require.Equal(t, http.StatusOK, w.Code)
	v := decodeRegister(t, w)
	require.NotNil(t, v.Notice)
	assert.Equal(t, message.NoticeCameraError, v.Notice.Message)

	w = a.do(t, http.MethodPost, "/api/scans/"+v.ScanID+"/rescan", "")
	assert.Equal(t, http.StatusConflict, w.Code, "a camera error only offers close")

	w = a.do(t, http.MethodDelete, base+"/scan", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decodeRegister(t, w).ScanID)
}

func TestRateLimitPerTerminal(t *testing.T) {
	a := newApp(t, func(cfg *config.Config) {
		cfg.RateLimit = config.RateLimitConfig{Requests: 2, Duration: 60}
	})

	for i := 0; i < 2; i++ {
		w := a.do(t, http.MethodGet, "/api/printer/status", "", middleware.TerminalIDHeader, "pos-a")
		require.Equal(t, http.StatusOK, w.Code)
	}
	w := a.do(t, http.MethodGet, "/api/printer/status", "", middleware.TerminalIDHeader, "pos-a")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	w = a.do(t, http.MethodGet, "/api/printer/status", "", middleware.TerminalIDHeader, "pos-b")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPrinterRoutes(t *testing.T) {
	a := newApp(t, nil)

	w := a.do(t, http.MethodGet, "/api/printer/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"connected":true`)

	w = a.do(t, http.MethodPost, "/api/printer/test", "")
	require.Equal(t, http.StatusOK, w.Code)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	var page struct {
		Printed  bool     `json:"printed"`
		Width    int      `json:"width"`
		Encoding string   `json:"encoding"`
		Preview  []string `json:"preview"`
		Receipt  any      `json:"receipt"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.True(t, page.Printed)
	assert.Equal(t, 32, page.Width)
	assert.Equal(t, "shift_jis", page.Encoding)
	assert.NotNil(t, page.Receipt)
	assert.Contains(t, page.Preview, "ありがとうございました")
}

func TestMetricsEndpoint(t *testing.T) {
	a := newApp(t, nil)
	a.do(t, http.MethodPost, "/api/barcode", `{"code":"4901777300446"}`)

	w := a.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "popup_pos_http_requests_total")
}
