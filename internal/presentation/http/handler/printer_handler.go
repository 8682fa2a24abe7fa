package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/sangkips/popup-pos/internal/application/service"
	"github.com/sangkips/popup-pos/internal/domain/entity"
	"github.com/sangkips/popup-pos/internal/presentation/http/dto/response"
)

// PrinterHandler serves the receipt printer status and test page.
type PrinterHandler struct {
	printerService *service.PrinterService
}

// NewPrinterHandler creates a new printer handler.
func NewPrinterHandler(printerService *service.PrinterService) *PrinterHandler {
	return &PrinterHandler{printerService: printerService}
}

type testPrintResponse struct {
	Printed  bool            `json:"printed"`
	Warning  string          `json:"warning,omitempty"`
	Width    int             `json:"width"`
	Encoding string          `json:"encoding"`
	Preview  []string        `json:"preview"`
	Receipt  *entity.Receipt `json:"receipt"`
}

// GetStatus reports whether a printer is configured and reachable.
func (h *PrinterHandler) GetStatus(c *gin.Context) {
	response.OK(c, "Printer status", h.printerService.GetStatus())
}

// TestPrint prints a sample receipt. The text preview is returned whether or
// not the page reached paper, so a register without a printer can still check
// the layout for the configured width and encoding.
func (h *PrinterHandler) TestPrint(c *gin.Context) {
	receipt, err := h.printerService.TestPrint()
	status := h.printerService.GetStatus()

	data := testPrintResponse{
		Printed:  err == nil,
		Width:    status.Width,
		Encoding: status.Encoding,
		Preview:  h.printerService.PreviewReceipt(receipt),
		Receipt:  receipt,
	}
	msg := "Test receipt printed"
	if err != nil {
		data.Warning = err.Error()
		msg = "Test receipt not printed"
	}
	response.OK(c, msg, data)
}
