package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/sangkips/popup-pos/internal/config"
	"github.com/sangkips/popup-pos/internal/domain/entity"
	"github.com/sangkips/popup-pos/internal/infrastructure/backend"
	"github.com/sangkips/popup-pos/internal/infrastructure/repository/memory"
	"github.com/sangkips/popup-pos/pkg/printer"
	"github.com/stretchr/testify/require"
)

const (
	teaCode  = "4901777300446"
	teaName  = "おーいお茶"
	teaPrice = 150
)

type submission struct {
	req *entity.TransactionRequest
	key string
}

type fakeGateway struct {
	mu        sync.Mutex
	products  map[string]entity.Product
	lookupErr error
	submitErr error
	submitted []submission

	// when set, SubmitTransaction signals started and waits on release
	started chan struct{}
	release chan struct{}
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{products: map[string]entity.Product{
		teaCode: {ProductID: 1, Code: teaCode, Name: teaName, Price: teaPrice},
	}}
}

func (g *fakeGateway) LookupProduct(ctx context.Context, code string) (*entity.Product, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.lookupErr != nil {
		return nil, g.lookupErr
	}
	p, ok := g.products[code]
	if !ok {
		return nil, backend.ErrProductNotFound
	}
	return &p, nil
}

func (g *fakeGateway) SubmitTransaction(ctx context.Context, req *entity.TransactionRequest, key string) (*entity.TransactionResult, error) {
	g.mu.Lock()
	g.submitted = append(g.submitted, submission{req: req, key: key})
	started, release, err := g.started, g.release, g.submitErr
	g.mu.Unlock()

	if started != nil {
		started <- struct{}{}
		<-release
	}
	if err != nil {
		return nil, err
	}
	return &entity.TransactionResult{TotalPrice: req.TotalAmount, TotalPriceExTax: req.TotalAmount * 100 / 110}, nil
}

func (g *fakeGateway) setSubmitErr(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.submitErr = err
}

func (g *fakeGateway) submissions() []submission {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]submission(nil), g.submitted...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPOS() config.POSConfig {
	return config.POSConfig{
		EmployeeCode: "9999999999",
		StoreCode:    "30",
		PosNumber:    "90",
		TaxCode:      "10",
		TaxRate:      10,
		StoreName:    "テクワンPOPUP POS",
	}
}

type fixture struct {
	gateway      *fakeGateway
	products     *ProductService
	transactions *TransactionService
	scanner      *ScannerService
	printer      *PrinterService
	receipts     *syncBuffer
	registers    *RegisterService
}

type syncBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *syncBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.buf...)
}

func newFixture(t *testing.T, policy string) *fixture {
	t.Helper()

	logger := discardLogger()
	gw := newFakeGateway()
	products := NewProductService(gw, logger)
	transactions := NewTransactionService(gw, memory.NewTransactionRepository(), logger)

	scanSvc, err := NewScannerService(&config.ScannerConfig{
		Policy:  policy,
		Formats: []string{"ean_13", "ean_8"},
	}, logger)
	require.NoError(t, err)

	receipts := &syncBuffer{}
	printerSvc := NewPrinterService(printer.NewWriterPrinter(receipts), config.PrinterConfig{
		Type: "stdout", Width: 32, Encoding: printer.EncodingShiftJIS,
	}, testPOS(), logger)

	registers := NewRegisterService(memory.NewRegisterSessionRepository(), products, transactions, scanSvc, printerSvc, testPOS(), logger)
	t.Cleanup(func() {
		registers.Shutdown()
		scanSvc.Shutdown()
	})

	return &fixture{
		gateway:      gw,
		products:     products,
		transactions: transactions,
		scanner:      scanSvc,
		printer:      printerSvc,
		receipts:     receipts,
		registers:    registers,
	}
}

func teaResult(total, exTax int64) *entity.TransactionResult {
	return &entity.TransactionResult{TotalPrice: total, TotalPriceExTax: exTax}
}
