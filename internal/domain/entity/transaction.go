package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/sangkips/popup-pos/internal/domain/enum"
	"gorm.io/gorm"
)

// TransactionLine is one submitted item line
type TransactionLine struct {
	ProductID int64  `json:"productId"`
	Code      string `json:"code"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unitPrice"`
	TaxCode   string `json:"taxCode"`
	Count     int    `json:"count"`
}

// TransactionRequest is built once at submission time and never mutated after.
type TransactionRequest struct {
	EmployeeCode     string            `json:"employeeCode"`
	StoreCode        string            `json:"storeCode"`
	PosNumber        string            `json:"posNumber"`
	TotalAmount      int64             `json:"totalAmount"`
	TotalAmountExTax int64             `json:"totalAmountExTax"` // provisional
	Lines            []TransactionLine `json:"lines"`
}

// ProvisionalExTax is floor(total / (1 + taxRate/100)) in integer arithmetic.
// The backend recomputes the real figure.
func ProvisionalExTax(total, taxRate int64) int64 {
	if taxRate <= 0 {
		return total
	}
	return total * 100 / (100 + taxRate)
}

// TransactionResult is the backend's authoritative recomputation
type TransactionResult struct {
	TotalPrice      int64 `json:"totalPrice"`
	TotalPriceExTax int64 `json:"totalPriceExTax"`
}

// TransactionRecord journals one submission attempt
type TransactionRecord struct {
	ID               uuid.UUID              `gorm:"type:uuid;primary_key" json:"id"`
	TerminalID       string                 `gorm:"size:100;not null;index" json:"terminalId"`
	IdempotencyKey   string                 `gorm:"size:255;index" json:"idempotencyKey,omitempty"`
	EmployeeCode     string                 `gorm:"size:50" json:"employeeCode"`
	StoreCode        string                 `gorm:"size:50" json:"storeCode"`
	PosNumber        string                 `gorm:"size:50" json:"posNumber"`
	TotalAmount      int64                  `gorm:"not null" json:"totalAmount"`
	TotalAmountExTax int64                  `gorm:"not null" json:"totalAmountExTax"`
	Lines            []TransactionLine      `gorm:"serializer:json;type:text" json:"lines"`
	Status           enum.TransactionStatus `gorm:"default:0" json:"status"`
	ConfirmedTotal   *int64                 `json:"confirmedTotal,omitempty"`
	ConfirmedExTax   *int64                 `json:"confirmedExTax,omitempty"`
	ErrorMessage     string                 `gorm:"type:text" json:"errorMessage,omitempty"`
	CreatedAt        time.Time              `gorm:"index" json:"createdAt"`
}

// BeforeCreate generates a UUID before creating a new record
func (r *TransactionRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the TransactionRecord model
func (TransactionRecord) TableName() string {
	return "transaction_records"
}

// NewTransactionRecord snapshots a request into a pending journal row
func NewTransactionRecord(terminalID, key string, req *TransactionRequest) *TransactionRecord {
	lines := make([]TransactionLine, len(req.Lines))
	copy(lines, req.Lines)
	return &TransactionRecord{
		ID:               uuid.New(),
		TerminalID:       terminalID,
		IdempotencyKey:   key,
		EmployeeCode:     req.EmployeeCode,
		StoreCode:        req.StoreCode,
		PosNumber:        req.PosNumber,
		TotalAmount:      req.TotalAmount,
		TotalAmountExTax: req.TotalAmountExTax,
		Lines:            lines,
		Status:           enum.TransactionStatusPending,
		CreatedAt:        time.Now().UTC(),
	}
}

// MarkConfirmed stores the backend totals on the record
func (r *TransactionRecord) MarkConfirmed(res *TransactionResult) {
	total, exTax := res.TotalPrice, res.TotalPriceExTax
	r.Status = enum.TransactionStatusConfirmed
	r.ConfirmedTotal = &total
	r.ConfirmedExTax = &exTax
	r.ErrorMessage = ""
}

// MarkFailed stores the failure reason on the record
func (r *TransactionRecord) MarkFailed(err error) {
	r.Status = enum.TransactionStatusFailed
	r.ErrorMessage = err.Error()
}
