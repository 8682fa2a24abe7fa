package service

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sangkips/popup-pos/internal/config"
	"github.com/sangkips/popup-pos/internal/domain/entity"
	"github.com/sangkips/popup-pos/internal/domain/enum"
	"github.com/sangkips/popup-pos/internal/domain/message"
	"github.com/sangkips/popup-pos/internal/domain/repository"
	"github.com/sangkips/popup-pos/pkg/apperror"
	"github.com/sangkips/popup-pos/pkg/scanner"
	"github.com/sangkips/popup-pos/pkg/utils"
)

// RegisterService drives the purchase page: scan, look up, add, purchase.
//
// Each register is guarded by its own lock. Backend calls are made with the
// lock released; the Loading and Purchasing flags refuse conflicting actions
// in the meantime.
type RegisterService struct {
	sessions     repository.RegisterSessionRepository
	products     *ProductService
	transactions *TransactionService
	scanner      *ScannerService
	printer      *PrinterService
	pos          config.POSConfig
	logger       *slog.Logger

	wg       sync.WaitGroup
	stop     chan struct{}
	stopOnce sync.Once
}

// NewRegisterService creates a new register service. printer may be nil.
func NewRegisterService(
	sessions repository.RegisterSessionRepository,
	products *ProductService,
	transactions *TransactionService,
	scanner *ScannerService,
	printer *PrinterService,
	pos config.POSConfig,
	logger *slog.Logger,
) *RegisterService {
	s := &RegisterService{
		sessions:     sessions,
		products:     products,
		transactions: transactions,
		scanner:      scanner,
		printer:      printer,
		pos:          pos,
		logger:       logger,
		stop:         make(chan struct{}),
	}
	if pos.SessionTTL > 0 {
		go s.cleanupLoop()
	}
	return s
}

// FormInput carries manual form edits. Nil fields are left unchanged.
type FormInput struct {
	Barcode *string
	Name    *string
	Price   *string
}

// Create opens a new register. terminalID tags its journal entries and
// defaults to the register id.
func (s *RegisterService) Create(ctx context.Context, terminalID string) (*entity.RegisterSnapshot, error) {
	session := entity.NewRegisterSession(uuid.New().String())
	if terminalID != "" {
		session.TerminalID = terminalID
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "register opened", "register_id", session.ID, "terminal", session.TerminalID)

	session.Lock()
	defer session.Unlock()
	return session.Snapshot(), nil
}

// Get returns the current view of a register
func (s *RegisterService) Get(ctx context.Context, id string) (*entity.RegisterSnapshot, error) {
	session, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	session.Lock()
	defer session.Unlock()
	return session.Snapshot(), nil
}

// Delete closes a register and its scan session
func (s *RegisterService) Delete(ctx context.Context, id string) error {
	var scanID string
	if _, err := s.mutate(ctx, id, func(r *entity.RegisterSession) error {
		if r.Purchasing {
			return apperror.NewConflictError("a purchase is in progress")
		}
		scanID, r.ScanID = r.ScanID, ""
		return nil
	}); err != nil {
		return err
	}

	if scanID != "" {
		_ = s.scanner.Close(scanID)
	}
	return s.sessions.Delete(ctx, id)
}

// UpdateForm applies manual edits to the barcode, name and price fields
func (s *RegisterService) UpdateForm(ctx context.Context, id string, in FormInput) (*entity.RegisterSnapshot, error) {
	return s.mutate(ctx, id, func(r *entity.RegisterSession) error {
		if err := ready(r); err != nil {
			return err
		}
		applyForm(r, in)
		r.Notice = entity.Notice{}
		return nil
	})
}

// Lookup resolves code and fills the form. Not-found and backend failures are
// reported as a notice on the register, not as an error.
func (s *RegisterService) Lookup(ctx context.Context, id, code string) (*entity.RegisterSnapshot, error) {
	code = strings.TrimSpace(code)

	snap, err := s.mutate(ctx, id, func(r *entity.RegisterSession) error {
		if err := ready(r); err != nil {
			return err
		}
		if code == "" {
			r.Notice = entity.Notice{Kind: enum.NoticeValidation, Message: message.CodeRequired}
			return apperror.NewFieldError("code", message.CodeRequired)
		}
		r.Form = entity.RegisterForm{Barcode: code}
		r.Loading = true
		r.Notice = entity.Notice{}
		if r.ScanID == "" {
			r.State = enum.RegisterStateLookingUp
		}
		return nil
	})
	if err != nil {
		return snap, err
	}

	product, lookupErr := s.products.LookupProduct(ctx, code)

	return s.mutate(ctx, id, func(r *entity.RegisterSession) error {
		r.Loading = false
		switch {
		case lookupErr == nil:
			productID := product.ProductID
			r.Form.Name = product.Name
			r.Form.Price = strconv.FormatInt(product.Price, 10)
			r.Form.ProductID = &productID
		case apperror.IsNotFound(lookupErr):
			r.Form.Barcode = ""
			r.Notice = entity.Notice{Kind: enum.NoticeNotFound, Message: message.NoticeNotFound}
		default:
			r.Form.Barcode = ""
			r.Notice = entity.Notice{Kind: enum.NoticeLookupFailed, Message: message.NoticeLookupFailed}
		}
		r.State = settledState(r)
		return nil
	})
}

// AddItem validates the form and adds it to the purchase list, merging by
// barcode. in, when non-nil, is applied to the form first. A rejected form is
// kept for correction.
func (s *RegisterService) AddItem(ctx context.Context, id string, in *FormInput) (*entity.RegisterSnapshot, error) {
	return s.mutate(ctx, id, func(r *entity.RegisterSession) error {
		if err := ready(r); err != nil {
			return err
		}
		if in != nil {
			applyForm(r, *in)
		}

		name := strings.TrimSpace(r.Form.Name)
		barcode := strings.TrimSpace(r.Form.Barcode)
		if name == "" || barcode == "" || strings.TrimSpace(r.Form.Price) == "" {
			r.Notice = entity.Notice{Kind: enum.NoticeValidation, Message: message.NoticeFieldsRequired}
			return apperror.NewFieldError("form", message.NoticeFieldsRequired)
		}
		price, ok := utils.ParsePrice(r.Form.Price)
		if !ok || price <= 0 || price > entity.MaxUnitPrice {
			r.Notice = entity.Notice{Kind: enum.NoticeValidation, Message: message.NoticeInvalidPrice}
			return apperror.NewFieldError("price", message.NoticeInvalidPrice)
		}
		if !r.List.Fits(barcode, price) {
			r.Notice = entity.Notice{Kind: enum.NoticeValidation, Message: message.NoticeTotalTooLarge}
			return apperror.NewFieldError("price", message.NoticeTotalTooLarge)
		}

		item := r.List.Add(name, barcode, price, r.Form.ProductID)
		r.PendingKey = "" // the list changed, so this is a new purchase
		r.Form.Clear()
		r.Notice = entity.Notice{}
		if r.State != enum.RegisterStateScanning {
			r.State = enum.RegisterStateIdle
		}

		s.logger.DebugContext(ctx, "item added", "register_id", r.ID, "barcode", item.Barcode, "quantity", item.Quantity)
		return nil
	})
}

// Purchase submits the list. On success the list is cleared and the backend's
// totals are shown; on failure the list is kept and a notice is set. Retries
// after a failure reuse the same idempotency key.
func (s *RegisterService) Purchase(ctx context.Context, id string) (*entity.RegisterSnapshot, error) {
	var (
		req      *entity.TransactionRequest
		key      string
		terminal string
		previous enum.RegisterState
	)

	snap, err := s.mutate(ctx, id, func(r *entity.RegisterSession) error {
		if err := ready(r); err != nil {
			return err
		}
		if r.List.IsEmpty() {
			r.Notice = entity.Notice{Kind: enum.NoticeEmptyList, Message: message.NoticeEmptyList}
			return apperror.NewFieldError("items", message.NoticeEmptyList)
		}
		if r.PendingKey == "" {
			r.PendingKey = utils.NewIdempotencyKey()
		}
		req = s.buildRequest(&r.List)
		key = r.PendingKey
		terminal = r.TerminalID
		previous = r.State

		r.Purchasing = true
		r.Notice = entity.Notice{}
		r.State = enum.RegisterStatePurchasing
		return nil
	})
	if err != nil {
		return snap, err
	}

	result, submitErr := s.transactions.SubmitTransaction(ctx, terminal, key, req)

	snap, err = s.mutate(ctx, id, func(r *entity.RegisterSession) error {
		r.Purchasing = false
		if submitErr != nil {
			r.Notice = entity.Notice{Kind: enum.NoticePurchaseFailed, Message: message.NoticePurchaseFailed}
			r.State = previous
			return nil
		}
		r.LastResult = result
		r.List.Clear()
		r.PendingKey = ""
		r.State = enum.RegisterStateConfirmationShown
		return nil
	})

	if submitErr == nil && s.printer != nil {
		s.printReceipt(context.WithoutCancel(ctx), req, result)
	}
	return snap, err
}

// DismissConfirmation closes the purchase confirmation
func (s *RegisterService) DismissConfirmation(ctx context.Context, id string) (*entity.RegisterSnapshot, error) {
	return s.mutate(ctx, id, func(r *entity.RegisterSession) error {
		if r.State != enum.RegisterStateConfirmationShown {
			return apperror.NewConflictError("no purchase confirmation is shown")
		}
		r.State = formState(r.Form)
		return nil
	})
}

// StartScan opens a scan session bound to the register. The delivered code
// is looked up as if typed. A camera failure is reported as a notice and the
// scan session is kept so the page can show it and close it.
func (s *RegisterService) StartScan(ctx context.Context, id, cameraFailure string) (*entity.RegisterSnapshot, error) {
	scanID := uuid.New().String()
	var previous string

	snap, err := s.mutate(ctx, id, func(r *entity.RegisterSession) error {
		if err := ready(r); err != nil {
			return err
		}
		previous = r.ScanID
		r.ScanID = scanID
		r.Notice = entity.Notice{}
		r.State = enum.RegisterStateScanning
		return nil
	})
	if err != nil {
		return snap, err
	}
	if previous != "" {
		_ = s.scanner.Close(previous)
	}

	_, openErr := s.scanner.Open(ctx, scanID, cameraFailure, s.onScanResult(id, scanID))
	if openErr == nil {
		return s.Get(ctx, id)
	}

	return s.mutate(ctx, id, func(r *entity.RegisterSession) error {
		if r.ScanID != scanID {
			return nil
		}
		if apperror.IsResource(openErr) {
			r.Notice = entity.Notice{Kind: enum.NoticeCameraError, Message: message.NoticeCameraError}
		} else {
			r.Notice = entity.Notice{Kind: enum.NoticeScanFailed, Message: message.NoticeScanFailed}
		}
		r.State = formState(r.Form)
		return nil
	})
}

// CancelScan closes the register's scan session without a result
func (s *RegisterService) CancelScan(ctx context.Context, id string) (*entity.RegisterSnapshot, error) {
	var scanID string
	snap, err := s.mutate(ctx, id, func(r *entity.RegisterSession) error {
		scanID, r.ScanID = r.ScanID, ""
		if r.State == enum.RegisterStateScanning {
			r.State = formState(r.Form)
		}
		return nil
	})
	if scanID != "" {
		_ = s.scanner.Close(scanID)
	}
	return snap, err
}

// Shutdown stops the idle sweep and waits for pending receipt prints
func (s *RegisterService) Shutdown() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.wg.Wait()
}

func (s *RegisterService) onScanResult(registerID, scanID string) scanner.ResultFunc {
	return func(ctx context.Context, code string) {
		current := true
		_, err := s.mutate(ctx, registerID, func(r *entity.RegisterSession) error {
			if r.ScanID != scanID {
				current = false
				return nil
			}
			r.ScanID = ""
			return nil
		})

		if err != nil || !current {
			s.logger.InfoContext(ctx, "discarding scan result", "register_id", registerID, "scan_id", scanID, "error", err)
			return
		}
		if _, err := s.Lookup(ctx, registerID, code); err != nil {
			s.logger.WarnContext(ctx, "scan lookup refused", "register_id", registerID, "code", code, "error", err)
		}
	}
}

func (s *RegisterService) buildRequest(list *entity.PurchaseList) *entity.TransactionRequest {
	total := list.Total()
	lines := make([]entity.TransactionLine, 0, list.Len())
	for _, item := range list.Items {
		var productID int64
		if item.ProductID != nil {
			productID = *item.ProductID
		}
		lines = append(lines, entity.TransactionLine{
			ProductID: productID,
			Code:      item.Barcode,
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			TaxCode:   s.pos.TaxCode,
			Count:     item.Quantity,
		})
	}

	return &entity.TransactionRequest{
		EmployeeCode:     s.pos.EmployeeCode,
		StoreCode:        s.pos.StoreCode,
		PosNumber:        s.pos.PosNumber,
		TotalAmount:      total,
		TotalAmountExTax: entity.ProvisionalExTax(total, s.pos.TaxRate),
		Lines:            lines,
	}
}

func (s *RegisterService) printReceipt(ctx context.Context, req *entity.TransactionRequest, res *entity.TransactionResult) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		// failures are logged by the printer service
		_, _ = s.printer.PrintTransaction(ctx, req, res)
	}()
}

func (s *RegisterService) load(ctx context.Context, id string) (*entity.RegisterSession, error) {
	session, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, apperror.NewNotFoundError("Register session")
	}
	return session, nil
}

// mutate runs fn under the register lock and returns the resulting view.
// fn's error is returned alongside the view; fn is responsible for leaving
// the register consistent when it fails.
func (s *RegisterService) mutate(ctx context.Context, id string, fn func(r *entity.RegisterSession) error) (*entity.RegisterSnapshot, error) {
	session, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	session.Lock()
	defer session.Unlock()

	err = fn(session)
	session.Touch()
	return session.Snapshot(), err
}

func (s *RegisterService) cleanupLoop() {
	interval := s.pos.SessionTTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			removed, err := s.sessions.DeleteIdle(context.Background(), time.Now().Add(-s.pos.SessionTTL))
			if err != nil {
				s.logger.Warn("register sweep failed", "error", err)
			} else if removed > 0 {
				s.logger.Info("removed idle registers", "count", removed)
			}
		}
	}
}

// ready refuses actions while a backend call is in flight or the purchase
// confirmation is still shown.
func ready(r *entity.RegisterSession) error {
	switch {
	case r.Loading:
		return apperror.NewConflictError("a product lookup is in progress")
	case r.Purchasing:
		return apperror.NewConflictError("a purchase is in progress")
	case r.State == enum.RegisterStateConfirmationShown:
		return apperror.NewConflictError("dismiss the purchase confirmation first")
	}
	return nil
}

func applyForm(r *entity.RegisterSession, in FormInput) {
	if in.Barcode != nil && *in.Barcode != r.Form.Barcode {
		r.Form.Barcode = *in.Barcode
		r.Form.ProductID = nil // a typed barcode no longer matches the looked-up product
	}
	if in.Name != nil {
		r.Form.Name = *in.Name
	}
	if in.Price != nil {
		r.Form.Price = *in.Price
	}
	if r.State != enum.RegisterStateScanning {
		r.State = formState(r.Form)
	}
}

// settledState is formState, except that an open scan keeps the register scanning
func settledState(r *entity.RegisterSession) enum.RegisterState {
	if r.ScanID != "" {
		return enum.RegisterStateScanning
	}
	return formState(r.Form)
}

func formState(f entity.RegisterForm) enum.RegisterState {
	if f == (entity.RegisterForm{}) {
		return enum.RegisterStateIdle
	}
	return enum.RegisterStateFormPopulated
}
