package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/sangkips/popup-pos/internal/config"
	"github.com/sangkips/popup-pos/internal/domain/entity"
	"github.com/sangkips/popup-pos/internal/metrics"
	"github.com/sangkips/popup-pos/pkg/printer"
	"github.com/sangkips/popup-pos/pkg/utils"
)

// PrinterService handles receipt formatting and thermal printing.
type PrinterService struct {
	printer printer.Printer
	cfg     config.PrinterConfig
	pos     config.POSConfig
	logger  *slog.Logger
	now     func() time.Time
}

// NewPrinterService creates a new printer service.
func NewPrinterService(p printer.Printer, cfg config.PrinterConfig, pos config.POSConfig, logger *slog.Logger) *PrinterService {
	return &PrinterService{
		printer: p,
		cfg:     cfg,
		pos:     pos,
		logger:  logger,
		now:     time.Now,
	}
}

// PrinterStatus returns the current printer status information.
type PrinterStatus struct {
	Configured bool   `json:"configured"`
	Connected  bool   `json:"connected"`
	Type       string `json:"type"`
	Width      int    `json:"width"`
	Encoding   string `json:"encoding"`
}

// GetStatus returns printer connection status.
func (s *PrinterService) GetStatus() *PrinterStatus {
	return &PrinterStatus{
		Configured: s.cfg.Type != "none" && s.cfg.Type != "",
		Connected:  s.printer.IsConnected(),
		Type:       s.cfg.Type,
		Width:      s.cfg.Width,
		Encoding:   s.cfg.Encoding,
	}
}

// TestPrint sends a test page to the printer.
// The receipt is returned so the handler can show it when no printer is attached.
func (s *PrinterService) TestPrint() (*entity.Receipt, error) {
	receipt := &entity.Receipt{
		Header:    s.header(),
		ReceiptNo: "TEST-001",
		Date:      s.now().Format("2006/01/02 15:04"),
		Employee:  s.pos.EmployeeCode,
		Items: []entity.ReceiptItem{
			{Name: "テスト商品", Quantity: 1, UnitPrice: 100, Total: 100},
			{Name: "Test Item", Quantity: 2, UnitPrice: 50, Total: 100},
		},
		TotalEx: 181,
		Tax:     19,
		Total:   200,
	}

	if err := s.printer.Print(s.FormatReceipt(receipt)); err != nil {
		return receipt, fmt.Errorf("test print failed: %w", err)
	}
	return receipt, nil
}

// PrintTransaction prints the receipt for a confirmed submission. Lines come
// from the request; every total comes from the backend result.
func (s *PrinterService) PrintTransaction(ctx context.Context, req *entity.TransactionRequest, res *entity.TransactionResult) (*entity.Receipt, error) {
	receipt := s.BuildReceipt(req, res)

	if err := s.printer.Print(s.FormatReceipt(receipt)); err != nil {
		metrics.ReceiptsPrinted.WithLabelValues("failed").Inc()
		s.logger.WarnContext(ctx, "receipt print failed", "receipt_no", receipt.ReceiptNo, "error", err)
		return receipt, fmt.Errorf("failed to print receipt: %w", err)
	}

	metrics.ReceiptsPrinted.WithLabelValues("printed").Inc()
	return receipt, nil
}

// BuildReceipt composes a receipt value from a confirmed transaction.
func (s *PrinterService) BuildReceipt(req *entity.TransactionRequest, res *entity.TransactionResult) *entity.Receipt {
	now := s.now()
	receipt := &entity.Receipt{
		Header:    s.header(),
		ReceiptNo: utils.GenerateReceiptNo(req.PosNumber, now),
		Date:      now.Format("2006/01/02 15:04"),
		Employee:  req.EmployeeCode,
		TotalEx:   res.TotalPriceExTax,
		Tax:       res.TotalPrice - res.TotalPriceExTax,
		Total:     res.TotalPrice,
	}
	for _, l := range req.Lines {
		receipt.Items = append(receipt.Items, entity.ReceiptItem{
			Name:      l.Name,
			Quantity:  l.Count,
			UnitPrice: l.UnitPrice,
			Total:     l.UnitPrice * int64(l.Count),
		})
	}
	return receipt
}

func (s *PrinterService) header() entity.ReceiptHeader {
	return entity.ReceiptHeader{
		StoreName: s.pos.StoreName,
		StoreCode: s.pos.StoreCode,
		PosNumber: s.pos.PosNumber,
	}
}

// FormatReceipt converts a Receipt into ESC/POS bytes.
func (s *PrinterService) FormatReceipt(r *entity.Receipt) []byte {
	return s.render(r).Bytes()
}

// PreviewReceipt returns the receipt as the printer lays it out, one string
// per line, without the trailing paper feed.
func (s *PrinterService) PreviewReceipt(r *entity.Receipt) []string {
	lines := s.render(r).Lines()
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func (s *PrinterService) render(r *entity.Receipt) *printer.Document {
	doc := printer.NewDocument(s.cfg.Width, s.cfg.Encoding)

	// Header
	doc.SetAlign(printer.AlignCenter).
		SetBold(true).
		SetFontSize(printer.FontDouble).
		Text(r.Header.StoreName).
		SetFontSize(printer.FontNormal).
		SetBold(false)

	if r.Header.StoreCode != "" || r.Header.PosNumber != "" {
		doc.TextF("店舗 %s  レジ %s", r.Header.StoreCode, r.Header.PosNumber)
	}

	doc.SetAlign(printer.AlignLeft).
		Separator('-')

	doc.KeyValue("No.", r.ReceiptNo).
		KeyValue("日時", r.Date)
	if r.Employee != "" {
		doc.KeyValue("担当", r.Employee)
	}

	doc.Separator('-')

	// Items
	for _, item := range r.Items {
		doc.ItemLine(item.Name, yen(item.Total))
		if item.Quantity > 1 {
			doc.TextF("  @%s x %d", yen(item.UnitPrice), item.Quantity)
		}
	}

	doc.Separator('-')

	// Totals
	doc.KeyValue("小計(税抜)", yen(r.TotalEx)).
		KeyValue("消費税", yen(r.Tax)).
		SetBold(true).
		KeyValue("合計", yen(r.Total)).
		SetBold(false)

	doc.Separator('-')

	// Footer
	doc.SetAlign(printer.AlignCenter).
		LineFeed().
		Text("ありがとうございました").
		LineFeed().
		SetAlign(printer.AlignLeft)

	doc.FeedLines(3).
		PartialCut()

	return doc
}

func yen(v int64) string {
	return strconv.FormatInt(v, 10) + "円"
}
