package service

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/sangkips/popup-pos/internal/domain/entity"
	"github.com/sangkips/popup-pos/internal/domain/enum"
	"github.com/sangkips/popup-pos/internal/domain/message"
	"github.com/sangkips/popup-pos/pkg/apperror"
	"github.com/sangkips/popup-pos/pkg/scanner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/japanese"
)

func strPtr(s string) *string { return &s }

func lookupAndAdd(t *testing.T, f *fixture, id, code string) *entity.RegisterSnapshot {
	t.Helper()
	snap, err := f.registers.Lookup(context.Background(), id, code)
	require.NoError(t, err)
	require.Equal(t, enum.RegisterStateFormPopulated, snap.State)

	snap, err = f.registers.AddItem(context.Background(), id, nil)
	require.NoError(t, err)
	return snap
}

func TestRegister_TeaTwiceThenPurchase(t *testing.T) {
	f := newFixture(t, "confirm")
	ctx := context.Background()

	reg, err := f.registers.Create(ctx, "pos-90")
	require.NoError(t, err)
	assert.Equal(t, enum.RegisterStateIdle, reg.State)
	assert.False(t, reg.CanPurchase)

	snap, err := f.registers.Lookup(ctx, reg.ID, teaCode)
	require.NoError(t, err)
	assert.Equal(t, teaName, snap.Form.Name)
	assert.Equal(t, "150", snap.Form.Price)
	require.NotNil(t, snap.Form.ProductID)
	assert.Equal(t, int64(1), *snap.Form.ProductID)

	snap, err = f.registers.AddItem(ctx, reg.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(150), snap.Total)
	assert.Equal(t, entity.RegisterForm{}, snap.Form, "form clears after add")

	snap = lookupAndAdd(t, f, reg.ID, teaCode)
	require.Len(t, snap.Items, 1)
	assert.Equal(t, 2, snap.Items[0].Quantity)
	assert.Equal(t, int64(300), snap.Total)
	assert.True(t, snap.CanPurchase)

	snap, err = f.registers.Purchase(ctx, reg.ID)
	require.NoError(t, err)
	assert.Equal(t, enum.RegisterStateConfirmationShown, snap.State)
	assert.Empty(t, snap.Items)
	assert.Equal(t, int64(0), snap.Total)
	require.NotNil(t, snap.LastResult)
	assert.Equal(t, int64(300), snap.LastResult.TotalPrice)
	assert.Equal(t, int64(272), snap.LastResult.TotalPriceExTax)

	subs := f.gateway.submissions()
	require.Len(t, subs, 1)
	req := subs[0].req
	assert.Equal(t, "9999999999", req.EmployeeCode)
	assert.Equal(t, "30", req.StoreCode)
	assert.Equal(t, "90", req.PosNumber)
	assert.Equal(t, int64(300), req.TotalAmount)
	assert.Equal(t, int64(272), req.TotalAmountExTax)
	assert.Equal(t, []entity.TransactionLine{
		{ProductID: 1, Code: teaCode, Name: teaName, UnitPrice: 150, TaxCode: "10", Count: 2},
	}, req.Lines)
	assert.True(t, strings.HasPrefix(subs[0].key, "txn-"))

	// Nothing else is allowed until the confirmation is dismissed.
	_, err = f.registers.Lookup(ctx, reg.ID, teaCode)
	assert.True(t, apperror.IsConflict(err))

	snap, err = f.registers.DismissConfirmation(ctx, reg.ID)
	require.NoError(t, err)
	assert.Equal(t, enum.RegisterStateIdle, snap.State)

	_, err = f.registers.DismissConfirmation(ctx, reg.ID)
	assert.True(t, apperror.IsConflict(err))

	journal, err := f.transactions.ListTransactions(ctx, "pos-90", nil)
	require.NoError(t, err)
	require.Len(t, journal.Items, 1)
	assert.Equal(t, enum.TransactionStatusConfirmed, journal.Items[0].Status)
}

func TestRegister_LookupNotFoundClearsBarcode(t *testing.T) {
	f := newFixture(t, "confirm")
	ctx := context.Background()
	reg, _ := f.registers.Create(ctx, "")

	snap, err := f.registers.Lookup(ctx, reg.ID, "0000000000000")
	require.NoError(t, err)
	assert.Equal(t, enum.RegisterStateIdle, snap.State)
	assert.Empty(t, snap.Form.Barcode)
	assert.Empty(t, snap.Form.Name)
	require.NotNil(t, snap.Notice)
	assert.Equal(t, enum.NoticeNotFound, snap.Notice.Kind)
	assert.Equal(t, message.NoticeNotFound, snap.Notice.Message)
	assert.False(t, snap.Loading)
}

func TestRegister_LookupTransientFailure(t *testing.T) {
	f := newFixture(t, "confirm")
	ctx := context.Background()
	reg, _ := f.registers.Create(ctx, "")
	f.gateway.lookupErr = apperror.NewTransientError(message.LookupFailed, errors.New("connection refused"))

	snap, err := f.registers.Lookup(ctx, reg.ID, teaCode)
	require.NoError(t, err)
	assert.Empty(t, snap.Form.Barcode)
	require.NotNil(t, snap.Notice)
	assert.Equal(t, enum.NoticeLookupFailed, snap.Notice.Kind)
	assert.Equal(t, enum.RegisterStateIdle, snap.State)
}

func TestRegister_LookupRejectsEmptyCode(t *testing.T) {
	f := newFixture(t, "confirm")
	reg, _ := f.registers.Create(context.Background(), "")

	_, err := f.registers.Lookup(context.Background(), reg.ID, "   ")
	assert.True(t, apperror.IsValidation(err))
}

func TestRegister_AddItemValidation(t *testing.T) {
	f := newFixture(t, "confirm")
	ctx := context.Background()
	reg, _ := f.registers.Create(ctx, "")

	cases := []struct {
		name   string
		in     FormInput
		notice string
	}{
		{"missing name", FormInput{Barcode: strPtr("123"), Name: strPtr(" "), Price: strPtr("100")}, message.NoticeFieldsRequired},
		{"missing barcode", FormInput{Barcode: strPtr(""), Name: strPtr("水"), Price: strPtr("100")}, message.NoticeFieldsRequired},
		{"missing price", FormInput{Barcode: strPtr("123"), Name: strPtr("水"), Price: strPtr("")}, message.NoticeFieldsRequired},
		{"non-numeric price", FormInput{Barcode: strPtr("123"), Name: strPtr("水"), Price: strPtr("abc")}, message.NoticeInvalidPrice},
		{"zero price", FormInput{Barcode: strPtr("123"), Name: strPtr("水"), Price: strPtr("0")}, message.NoticeInvalidPrice},
		{"price above the unit limit", FormInput{Barcode: strPtr("123"), Name: strPtr("水"), Price: strPtr("9000000000000000000")}, message.NoticeInvalidPrice},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			snap, err := f.registers.AddItem(ctx, reg.ID, &tc.in)
			require.Error(t, err)
			assert.True(t, apperror.IsValidation(err))
			assert.Empty(t, snap.Items)
			require.NotNil(t, snap.Notice)
			assert.Equal(t, tc.notice, snap.Notice.Message)
		})
	}
}

func TestRegister_AddItemStripsPriceFormatting(t *testing.T) {
	f := newFixture(t, "confirm")
	ctx := context.Background()
	reg, _ := f.registers.Create(ctx, "")

	snap, err := f.registers.AddItem(ctx, reg.ID, &FormInput{
		Barcode: strPtr("4902102072618"), Name: strPtr("コーラ"), Price: strPtr("¥1,500"),
	})
	require.NoError(t, err)
	require.Len(t, snap.Items, 1)
	assert.Equal(t, int64(1500), snap.Items[0].UnitPrice)
	assert.Nil(t, snap.Items[0].ProductID, "manually entered items carry no product id")
	assert.Nil(t, snap.Notice)
}

func TestRegister_PurchaseEmptyListIsRefused(t *testing.T) {
	f := newFixture(t, "confirm")
	ctx := context.Background()
	reg, _ := f.registers.Create(ctx, "")

	snap, err := f.registers.Purchase(ctx, reg.ID)
	assert.True(t, apperror.IsValidation(err))
	require.NotNil(t, snap.Notice)
	assert.Equal(t, enum.NoticeEmptyList, snap.Notice.Kind)
	assert.Empty(t, f.gateway.submissions())
}

func TestRegister_PurchaseFailureKeepsListAndReusesKey(t *testing.T) {
	f := newFixture(t, "confirm")
	ctx := context.Background()
	reg, _ := f.registers.Create(ctx, "")
	lookupAndAdd(t, f, reg.ID, teaCode)

	f.gateway.setSubmitErr(apperror.NewTransientError(message.TransactionFailed, errors.New("backend status 500")))

	snap, err := f.registers.Purchase(ctx, reg.ID)
	require.NoError(t, err)
	require.NotNil(t, snap.Notice)
	assert.Equal(t, enum.NoticePurchaseFailed, snap.Notice.Kind)
	assert.Equal(t, message.NoticePurchaseFailed, snap.Notice.Message)
	require.Len(t, snap.Items, 1)
	assert.Equal(t, int64(150), snap.Total)
	assert.Nil(t, snap.LastResult)
	assert.False(t, snap.Purchasing)
	assert.Equal(t, enum.RegisterStateIdle, snap.State)

	// Retrying the same list reuses the key
	_, err = f.registers.Purchase(ctx, reg.ID)
	require.NoError(t, err)

	// Changing the list makes a new purchase
	lookupAndAdd(t, f, reg.ID, teaCode)
	f.gateway.setSubmitErr(nil)
	snap, err = f.registers.Purchase(ctx, reg.ID)
	require.NoError(t, err)
	assert.Equal(t, enum.RegisterStateConfirmationShown, snap.State)

	subs := f.gateway.submissions()
	require.Len(t, subs, 3)
	assert.Equal(t, subs[0].key, subs[1].key)
	assert.NotEqual(t, subs[1].key, subs[2].key)
	assert.Equal(t, 2, subs[2].req.Lines[0].Count)

	journal, err := f.transactions.ListTransactions(ctx, reg.TerminalID, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), journal.Pagination.Total)
}

func TestRegister_ActionsRefusedWhilePurchasing(t *testing.T) {
	f := newFixture(t, "confirm")
	ctx := context.Background()
	reg, _ := f.registers.Create(ctx, "")
	lookupAndAdd(t, f, reg.ID, teaCode)

	f.gateway.started = make(chan struct{})
	f.gateway.release = make(chan struct{})

	done := make(chan *entity.RegisterSnapshot)
	go func() {
		snap, _ := f.registers.Purchase(ctx, reg.ID)
		done <- snap
	}()
	<-f.gateway.started

	snap, err := f.registers.Get(ctx, reg.ID)
	require.NoError(t, err)
	assert.True(t, snap.Purchasing)
	assert.False(t, snap.CanPurchase)
	assert.Equal(t, enum.RegisterStatePurchasing, snap.State)

	_, err = f.registers.Purchase(ctx, reg.ID)
	assert.True(t, apperror.IsConflict(err))
	_, err = f.registers.AddItem(ctx, reg.ID, &FormInput{Barcode: strPtr("1"), Name: strPtr("x"), Price: strPtr("1")})
	assert.True(t, apperror.IsConflict(err))
	_, err = f.registers.StartScan(ctx, reg.ID, "")
	assert.True(t, apperror.IsConflict(err))

	close(f.gateway.release)
	final := <-done
	assert.Equal(t, enum.RegisterStateConfirmationShown, final.State)
	assert.Len(t, f.gateway.submissions(), 1)
}

func TestRegister_ReceiptPrintedAfterConfirmedPurchase(t *testing.T) {
	f := newFixture(t, "confirm")
	ctx := context.Background()
	reg, _ := f.registers.Create(ctx, "")
	lookupAndAdd(t, f, reg.ID, teaCode)

	_, err := f.registers.Purchase(ctx, reg.ID)
	require.NoError(t, err)
	f.registers.Shutdown()

	out := f.receipts.Bytes()
	require.NotEmpty(t, out)
	name, err := japanese.ShiftJIS.NewEncoder().Bytes([]byte(teaName))
	require.NoError(t, err)
	assert.True(t, bytes.Contains(out, name))
	assert.True(t, bytes.Contains(out, []byte("150")))
}

func TestRegister_ScanAutoDeliversIntoLookup(t *testing.T) {
	f := newFixture(t, "auto")
	ctx := context.Background()
	reg, _ := f.registers.Create(ctx, "")

	snap, err := f.registers.StartScan(ctx, reg.ID, "")
	require.NoError(t, err)
	assert.Equal(t, enum.RegisterStateScanning, snap.State)
	require.NotEmpty(t, snap.ScanID)
	scanID := snap.ScanID

	_, err = f.scanner.PushFrame(scanID, scanner.Frame{Err: scanner.ErrSymbolNotFound})
	require.NoError(t, err)
	_, err = f.scanner.PushFrame(scanID, scanner.Frame{Text: teaCode, Format: scanner.FormatEAN13})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		s, _ := f.registers.Get(ctx, reg.ID)
		return s.State == enum.RegisterStateFormPopulated
	}, time.Second, 5*time.Millisecond)

	snap, _ = f.registers.Get(ctx, reg.ID)
	assert.Equal(t, teaCode, snap.Form.Barcode)
	assert.Equal(t, teaName, snap.Form.Name)
	assert.Empty(t, snap.ScanID)

	require.Eventually(t, func() bool {
		_, err := f.scanner.Get(scanID)
		return apperror.IsNotFound(err)
	}, time.Second, 5*time.Millisecond, "delivered scan sessions are closed")
}

func TestRegister_ScanConfirmWithEditedValue(t *testing.T) {
	f := newFixture(t, "confirm")
	ctx := context.Background()
	reg, _ := f.registers.Create(ctx, "")

	snap, err := f.registers.StartScan(ctx, reg.ID, "")
	require.NoError(t, err)
	scanID := snap.ScanID

	_, err = f.scanner.PushFrame(scanID, scanner.Frame{Text: "4901777300447", Format: scanner.FormatEAN13})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		s, err := f.scanner.Get(scanID)
		return err == nil && s.State == scanner.StateAwaitingConfirmation
	}, time.Second, 5*time.Millisecond)

	// Confirm runs the lookup before returning
	_, err = f.scanner.Confirm(ctx, scanID, teaCode)
	require.NoError(t, err)

	snap, _ = f.registers.Get(ctx, reg.ID)
	assert.Equal(t, enum.RegisterStateFormPopulated, snap.State)
	assert.Equal(t, teaName, snap.Form.Name)
	assert.Equal(t, 0, f.scanner.Len())
}

func TestRegister_ScanCameraFailure(t *testing.T) {
	f := newFixture(t, "confirm")
	ctx := context.Background()
	reg, _ := f.registers.Create(ctx, "")

	snap, err := f.registers.StartScan(ctx, reg.ID, "NotAllowedError")
	require.NoError(t, err)
	require.NotNil(t, snap.Notice)
	assert.Equal(t, enum.NoticeCameraError, snap.Notice.Kind)
	assert.Equal(t, enum.RegisterStateIdle, snap.State)
	require.NotEmpty(t, snap.ScanID)

	scan, err := f.scanner.Get(snap.ScanID)
	require.NoError(t, err)
	assert.Equal(t, scanner.StateCameraError, scan.State)

	snap, err = f.registers.CancelScan(ctx, reg.ID)
	require.NoError(t, err)
	assert.Empty(t, snap.ScanID)
	assert.Equal(t, 0, f.scanner.Len())
}

func TestRegister_RestartScanClosesPrevious(t *testing.T) {
	f := newFixture(t, "confirm")
	ctx := context.Background()
	reg, _ := f.registers.Create(ctx, "")

	first, err := f.registers.StartScan(ctx, reg.ID, "")
	require.NoError(t, err)
	second, err := f.registers.StartScan(ctx, reg.ID, "")
	require.NoError(t, err)

	assert.NotEqual(t, first.ScanID, second.ScanID)
	assert.Equal(t, 1, f.scanner.Len())
	_, err = f.scanner.PushFrame(first.ScanID, scanner.Frame{Text: teaCode})
	assert.True(t, apperror.IsNotFound(err))
}

func TestRegister_UpdateFormDropsStaleProductID(t *testing.T) {
	f := newFixture(t, "confirm")
	ctx := context.Background()
	reg, _ := f.registers.Create(ctx, "")

	_, err := f.registers.Lookup(ctx, reg.ID, teaCode)
	require.NoError(t, err)

	snap, err := f.registers.UpdateForm(ctx, reg.ID, FormInput{Price: strPtr("140")})
	require.NoError(t, err)
	assert.NotNil(t, snap.Form.ProductID)
	assert.Equal(t, "140", snap.Form.Price)

	snap, err = f.registers.UpdateForm(ctx, reg.ID, FormInput{Barcode: strPtr("4900000000001")})
	require.NoError(t, err)
	assert.Nil(t, snap.Form.ProductID)
	assert.Equal(t, enum.RegisterStateFormPopulated, snap.State)
}

func TestRegister_UnknownAndDeleted(t *testing.T) {
	f := newFixture(t, "confirm")
	ctx := context.Background()

	_, err := f.registers.Get(ctx, "missing")
	assert.True(t, apperror.IsNotFound(err))

	reg, _ := f.registers.Create(ctx, "")
	_, err = f.registers.StartScan(ctx, reg.ID, "")
	require.NoError(t, err)

	require.NoError(t, f.registers.Delete(ctx, reg.ID))
	assert.Equal(t, 0, f.scanner.Len())
	_, err = f.registers.Get(ctx, reg.ID)
	assert.True(t, apperror.IsNotFound(err))
}

func TestRegister_AddItemRefusesTotalOverLimit(t *testing.T) {
	f := newFixture(t, "confirm")
	ctx := context.Background()
	reg, _ := f.registers.Create(ctx, "")

	price := strconv.FormatInt(entity.MaxUnitPrice, 10)
	add := func() (*entity.RegisterSnapshot, error) {
		return f.registers.AddItem(ctx, reg.ID, &FormInput{Barcode: strPtr("123"), Name: strPtr("金塊"), Price: strPtr(price)})
	}

	limit := int(entity.MaxTotal / entity.MaxUnitPrice)
	for i := 0; i < limit; i++ {
		_, err := add()
		require.NoError(t, err)
	}

	snap, err := add()
	require.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
	require.NotNil(t, snap.Notice)
	assert.Equal(t, message.NoticeTotalTooLarge, snap.Notice.Message)
	require.Len(t, snap.Items, 1)
	assert.Equal(t, limit, snap.Items[0].Quantity)
	assert.Equal(t, entity.MaxTotal, snap.Total)
	assert.Equal(t, "123", snap.Form.Barcode, "the rejected form is kept")
}

func TestRegister_ManualLookupDuringScanKeepsScanning(t *testing.T) {
	f := newFixture(t, "confirm")
	ctx := context.Background()
	reg, _ := f.registers.Create(ctx, "")

	snap, err := f.registers.StartScan(ctx, reg.ID, "")
	require.NoError(t, err)
	scanID := snap.ScanID

	snap, err = f.registers.Lookup(ctx, reg.ID, teaCode)
	require.NoError(t, err)
	assert.Equal(t, enum.RegisterStateScanning, snap.State)
	assert.Equal(t, scanID, snap.ScanID)
	assert.Equal(t, teaName, snap.Form.Name)

	snap, err = f.registers.CancelScan(ctx, reg.ID)
	require.NoError(t, err)
	assert.Equal(t, enum.RegisterStateFormPopulated, snap.State)
}
