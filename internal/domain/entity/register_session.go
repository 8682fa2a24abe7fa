package entity

import (
	"sync"
	"time"

	"github.com/sangkips/popup-pos/internal/domain/enum"
)

// RegisterForm is the editable product/price input of the purchase page
type RegisterForm struct {
	Barcode   string `json:"barcode"`
	Name      string `json:"name"`
	Price     string `json:"price"`
	ProductID *int64 `json:"productId,omitempty"`
}

// Clear empties every field
func (f *RegisterForm) Clear() {
	*f = RegisterForm{}
}

// Notice is the last user-facing message shown on a register
type Notice struct {
	Kind    enum.NoticeKind `json:"kind"`
	Message string          `json:"message"`
}

// RegisterSession is the complete state of one purchase page. Callers must
// hold the embedded mutex while reading or mutating it.
type RegisterSession struct {
	sync.Mutex

	ID         string
	TerminalID string
	State      enum.RegisterState
	Form       RegisterForm
	List       PurchaseList
	Loading    bool
	Purchasing bool
	LastResult *TransactionResult
	Notice     Notice
	PendingKey string // idempotency key reused until a purchase is confirmed
	ScanID     string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewRegisterSession creates an idle register with an empty list
func NewRegisterSession(id string) *RegisterSession {
	now := time.Now().UTC()
	return &RegisterSession{
		ID:         id,
		TerminalID: id,
		State:      enum.RegisterStateIdle,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Busy reports whether a lookup or purchase is in flight
func (s *RegisterSession) Busy() bool {
	return s.Loading || s.Purchasing
}

// CanPurchase mirrors the enabled state of the purchase button
func (s *RegisterSession) CanPurchase() bool {
	return !s.List.IsEmpty() && !s.Busy()
}

// Touch records a mutation time
func (s *RegisterSession) Touch() {
	s.UpdatedAt = time.Now().UTC()
}

// RegisterSnapshot is a read-only copy of a session handed to callers
type RegisterSnapshot struct {
	ID          string             `json:"id"`
	TerminalID  string             `json:"terminalId"`
	State       enum.RegisterState `json:"state"`
	Form        RegisterForm       `json:"form"`
	Items       []PurchaseItem     `json:"items"`
	Total       int64              `json:"total"`
	Loading     bool               `json:"loading"`
	Purchasing  bool               `json:"purchasing"`
	CanPurchase bool               `json:"canPurchase"`
	LastResult  *TransactionResult `json:"lastResult,omitempty"`
	Notice      *Notice            `json:"notice,omitempty"`
	ScanID      string             `json:"scanId,omitempty"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

// Snapshot copies the session. The total is recomputed on every call.
func (s *RegisterSession) Snapshot() *RegisterSnapshot {
	snap := &RegisterSnapshot{
		ID:          s.ID,
		TerminalID:  s.TerminalID,
		State:       s.State,
		Form:        s.Form,
		Items:       s.List.Snapshot(),
		Total:       s.List.Total(),
		Loading:     s.Loading,
		Purchasing:  s.Purchasing,
		CanPurchase: s.CanPurchase(),
		ScanID:      s.ScanID,
		UpdatedAt:   s.UpdatedAt,
	}
	if s.LastResult != nil {
		r := *s.LastResult
		snap.LastResult = &r
	}
	if s.Notice.Kind != enum.NoticeNone {
		n := s.Notice
		snap.Notice = &n
	}
	return snap
}
