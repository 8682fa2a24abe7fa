package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/sangkips/popup-pos/internal/application/service"
	"github.com/sangkips/popup-pos/internal/domain/entity"
	"github.com/sangkips/popup-pos/internal/presentation/http/dto/request"
	"github.com/sangkips/popup-pos/internal/presentation/http/dto/response"
)

// RegisterHandler drives the purchase page of one register
type RegisterHandler struct {
	registerService *service.RegisterService
}

// NewRegisterHandler creates a new register handler
func NewRegisterHandler(registerService *service.RegisterService) *RegisterHandler {
	return &RegisterHandler{registerService: registerService}
}

// Create opens a register for the calling terminal
func (h *RegisterHandler) Create(c *gin.Context) {
	var req request.CreateRegisterRequest
	if hasBody(c) {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Invalid request: "+err.Error())
			return
		}
	}
	terminalID := req.TerminalID
	if terminalID == "" {
		terminalID = GetTerminalID(c)
	}

	snap, err := h.registerService.Create(c.Request.Context(), terminalID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "Register opened", snap)
}

// Get returns the register's current state
func (h *RegisterHandler) Get(c *gin.Context) {
	snap, err := h.registerService.Get(c.Request.Context(), c.Param("id"))
	reply(c, "Register retrieved", snap, err)
}

// Delete closes the register
func (h *RegisterHandler) Delete(c *gin.Context) {
	if err := h.registerService.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// UpdateForm applies manual edits to the product form
func (h *RegisterHandler) UpdateForm(c *gin.Context) {
	var req request.FormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request: "+err.Error())
		return
	}

	snap, err := h.registerService.UpdateForm(c.Request.Context(), c.Param("id"), req.ToInput())
	reply(c, "Form updated", snap, err)
}

// Lookup fills the form from a typed barcode
func (h *RegisterHandler) Lookup(c *gin.Context) {
	var req request.LookupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request: "+err.Error())
		return
	}

	snap, err := h.registerService.Lookup(c.Request.Context(), c.Param("id"), req.Code)
	reply(c, "Lookup finished", snap, err)
}

// AddItem adds the form to the purchase list. A body, when sent, is applied
// to the form first.
func (h *RegisterHandler) AddItem(c *gin.Context) {
	var in *service.FormInput
	if hasBody(c) {
		var req request.FormRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Invalid request: "+err.Error())
			return
		}
		input := req.ToInput()
		in = &input
	}

	snap, err := h.registerService.AddItem(c.Request.Context(), c.Param("id"), in)
	reply(c, "Item added", snap, err)
}

// Purchase submits the purchase list
func (h *RegisterHandler) Purchase(c *gin.Context) {
	snap, err := h.registerService.Purchase(c.Request.Context(), c.Param("id"))
	reply(c, "Purchase processed", snap, err)
}

// DismissConfirmation closes the purchase confirmation
func (h *RegisterHandler) DismissConfirmation(c *gin.Context) {
	snap, err := h.registerService.DismissConfirmation(c.Request.Context(), c.Param("id"))
	reply(c, "Confirmation dismissed", snap, err)
}

// StartScan opens a scan session for the register
func (h *RegisterHandler) StartScan(c *gin.Context) {
	var req request.StartScanRequest
	if hasBody(c) {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Invalid request: "+err.Error())
			return
		}
	}

	snap, err := h.registerService.StartScan(c.Request.Context(), c.Param("id"), req.CameraError)
	reply(c, "Scan started", snap, err)
}

// CancelScan closes the register's scan session
func (h *RegisterHandler) CancelScan(c *gin.Context) {
	snap, err := h.registerService.CancelScan(c.Request.Context(), c.Param("id"))
	reply(c, "Scan cancelled", snap, err)
}

// reply sends the snapshot, or the error with the snapshot attached when the
// service returned one alongside it.
func reply(c *gin.Context, msg string, snap *entity.RegisterSnapshot, err error) {
	switch {
	case err == nil:
		response.OK(c, msg, snap)
	case snap == nil:
		response.Error(c, err)
	default:
		response.ErrorWithData(c, err, snap)
	}
}
