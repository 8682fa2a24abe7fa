package request

import "github.com/sangkips/popup-pos/internal/application/service"

// CreateRegisterRequest opens a register. TerminalID defaults to the caller's terminal.
type CreateRegisterRequest struct {
	TerminalID string `json:"terminalId" binding:"omitempty,max=100"`
}

// FormRequest edits the product form. Omitted fields are left unchanged.
type FormRequest struct {
	Barcode *string `json:"barcode" binding:"omitempty,max=64"`
	Name    *string `json:"name" binding:"omitempty,max=255"`
	Price   *string `json:"price" binding:"omitempty,max=32"`
}

// ToInput converts the body to a service form input
func (r *FormRequest) ToInput() service.FormInput {
	return service.FormInput{Barcode: r.Barcode, Name: r.Name, Price: r.Price}
}

// LookupRequest looks a barcode up for the register form
type LookupRequest struct {
	Code string `json:"code"`
}

// StartScanRequest opens a scan session. CameraError is the browser's
// acquisition error name when the camera could not be opened.
type StartScanRequest struct {
	CameraError string `json:"cameraError" binding:"omitempty,max=100"`
}
