package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/sangkips/popup-pos/internal/application/service"
	"github.com/sangkips/popup-pos/internal/presentation/http/dto/request"
	"github.com/sangkips/popup-pos/internal/presentation/http/dto/response"
	"github.com/sangkips/popup-pos/pkg/scanner"
)

// ScannerHandler lets the page drive a scan session: it posts decode results
// per frame and confirms, rescans or closes.
type ScannerHandler struct {
	scannerService *service.ScannerService
}

// NewScannerHandler creates a new scanner handler
func NewScannerHandler(scannerService *service.ScannerService) *ScannerHandler {
	return &ScannerHandler{scannerService: scannerService}
}

// Get returns the scan session state
func (h *ScannerHandler) Get(c *gin.Context) {
	snap, err := h.scannerService.Get(c.Param("id"))
	scanReply(c, "Scan session retrieved", snap, err)
}

// PushFrame accepts one frame's decode result
func (h *ScannerHandler) PushFrame(c *gin.Context) {
	var req request.FrameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request: "+err.Error())
		return
	}

	snap, err := h.scannerService.PushFrame(c.Param("id"), req.ToFrame())
	scanReply(c, "Frame accepted", snap, err)
}

// Confirm accepts the pending value, optionally edited
func (h *ScannerHandler) Confirm(c *gin.Context) {
	var req request.ConfirmScanRequest
	if hasBody(c) {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Invalid request: "+err.Error())
			return
		}
	}

	snap, err := h.scannerService.Confirm(c.Request.Context(), c.Param("id"), req.Code)
	scanReply(c, "Scan confirmed", snap, err)
}

// Rescan discards the pending or failed result and scans again
func (h *ScannerHandler) Rescan(c *gin.Context) {
	snap, err := h.scannerService.Rescan(c.Request.Context(), c.Param("id"))
	scanReply(c, "Rescanning", snap, err)
}

// Close ends the scan session
func (h *ScannerHandler) Close(c *gin.Context) {
	if err := h.scannerService.Close(c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func scanReply(c *gin.Context, msg string, snap scanner.Snapshot, err error) {
	if err == nil {
		response.OK(c, msg, snap)
		return
	}
	if snap.ID == "" {
		response.Error(c, err)
		return
	}
	response.ErrorWithData(c, err, snap)
}
