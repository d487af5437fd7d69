package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/diewo77/go-erp/internal/billing"
	"github.com/diewo77/go-erp/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyPayment_PartialThenFull(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.sentInvoice(t)

	r1, err := f.Payments.ApplyPayment(ctx, inv.ID, d("400"), PaymentMeta{Reference: "wire-1"})
	require.NoError(t, err)
	assert.Equal(t, billing.StatusSent, r1.PreviousStatus)
	assert.Equal(t, billing.StatusPartiallyPaid, r1.Invoice.Status)
	assert.Equal(t, billing.PaymentPartial, r1.Invoice.PaymentStatus)
	assert.True(t, r1.Invoice.PaidAmount.Equal(d("400")))
	assert.Equal(t, int64(1), r1.Payment.Number)
	assert.Equal(t, "USD", r1.Payment.Currency)
	require.NotNil(t, r1.Payment.PaymentMode)
	assert.True(t, r1.Payment.PaymentMode.IsDefault)

	r2, err := f.Payments.ApplyPayment(ctx, inv.ID, d("700"), PaymentMeta{})
	require.NoError(t, err)
	assert.Equal(t, billing.StatusPartiallyPaid, r2.PreviousStatus)
	assert.Equal(t, billing.StatusPaid, r2.Invoice.Status)
	assert.Equal(t, int64(2), r2.Payment.Number)

	_, err = f.Payments.ApplyPayment(ctx, inv.ID, d("0.01"), PaymentMeta{})
	assert.ErrorIs(t, err, billing.ErrInvalidState, "paid is terminal")

	got, err := f.Docs.Get(ctx, billing.KindInvoice, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.StatusPaid, got.Status)
	assert.True(t, got.PaidAmount.Equal(d("1100")))
	assert.Equal(t, billing.PaymentPaid, got.PaymentStatus)
}

func TestApplyPayment_Overpayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.sentInvoice(t)

	_, err := f.Payments.ApplyPayment(ctx, inv.ID, d("400"), PaymentMeta{})
	require.NoError(t, err)

	_, err = f.Payments.ApplyPayment(ctx, inv.ID, d("700.01"), PaymentMeta{})
	var over *billing.OverpaymentError
	require.ErrorAs(t, err, &over)
	assert.True(t, d("700").Equal(over.Outstanding()))

	var count int64
	f.DB.Model(&models.Payment{}).Where("invoice_id = ?", inv.ID).Count(&count)
	assert.Equal(t, int64(1), count, "a rejected payment is never stored")

	got, err := f.Docs.Get(ctx, billing.KindInvoice, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.StatusPartiallyPaid, got.Status)
	assert.True(t, got.PaidAmount.Equal(d("400")))
}

func TestApplyPayment_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.sentInvoice(t)

	_, err := f.Payments.ApplyPayment(ctx, inv.ID, d("10"), PaymentMeta{Currency: "EUR"})
	var mismatch *billing.CurrencyMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "USD", mismatch.Invoice)

	_, err = f.Payments.ApplyPayment(ctx, inv.ID, d("0"), PaymentMeta{})
	assert.ErrorIs(t, err, billing.ErrValidation)
	_, err = f.Payments.ApplyPayment(ctx, inv.ID, d("-5"), PaymentMeta{})
	assert.ErrorIs(t, err, billing.ErrValidation)
	_, err = f.Payments.ApplyPayment(ctx, inv.ID, d("1.001"), PaymentMeta{})
	assert.ErrorIs(t, err, billing.ErrValidation)
	_, err = f.Payments.ApplyPayment(ctx, inv.ID, d("10"), PaymentMeta{PaymentModeID: 999})
	assert.ErrorIs(t, err, billing.ErrValidation)
	_, err = f.Payments.ApplyPayment(ctx, 424242, d("10"), PaymentMeta{})
	assert.ErrorIs(t, err, billing.ErrNotFound)
	_, err = f.Payments.ApplyPayment(ctx, inv.ID, d("10"), PaymentMeta{ClientID: f.Client.ID + 1})
	var verr *billing.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "mismatch", verr.Violations["client"])

	draft, err := f.Docs.Create(ctx, billing.KindInvoice, f.standardInput())
	require.NoError(t, err)
	_, err = f.Payments.ApplyPayment(ctx, draft.ID, d("10"), PaymentMeta{})
	assert.ErrorIs(t, err, billing.ErrInvalidState)

	var count int64
	f.DB.Model(&models.Payment{}).Count(&count)
	assert.Zero(t, count)
}

func TestApplyPayment_OverdueIsPayable(t *testing.T) {
	f := newFixture(t)
	inv := f.sentInvoice(t)
	*f.Clock = testNow.AddDate(0, 2, 0)

	r, err := f.Payments.ApplyPayment(context.Background(), inv.ID, d("1100"), PaymentMeta{})
	require.NoError(t, err)
	assert.Equal(t, billing.StatusPaid, r.Invoice.Status)
	assert.False(t, r.Invoice.Overdue, "paid clears the overdue view")
}

func TestApplyPayment_DisabledMode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.sentInvoice(t)

	mode, err := f.Modes.Create(ctx, PaymentModeInput{Name: "Cheque", Enabled: false})
	require.NoError(t, err)
	_, err = f.Payments.ApplyPayment(ctx, inv.ID, d("10"), PaymentMeta{PaymentModeID: mode.ID})
	var verr *billing.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "disabled", verr.Violations["paymentMode"])
}

func TestApplyPayment_ConcurrentExactlyOncePaid(t *testing.T) {
	f := newFixture(t)
	inv := f.sentInvoice(t)

	const workers = 10
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		toPaid   int
		failures []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := f.Payments.ApplyPayment(context.Background(), inv.ID, d("110"), PaymentMeta{})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = append(failures, err)
				return
			}
			if r.Invoice.Status == billing.StatusPaid {
				toPaid++
			}
		}()
	}
	wg.Wait()
	require.Empty(t, failures)
	assert.Equal(t, 1, toPaid, "exactly one payment settles the invoice")

	got, err := f.Docs.Get(context.Background(), billing.KindInvoice, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.StatusPaid, got.Status)
	assert.True(t, got.PaidAmount.Equal(d("1100")))

	payments, count, err := f.Payments.List(context.Background(), PaymentFilter{InvoiceID: inv.ID, Page: Page{Items: 50}})
	require.NoError(t, err)
	assert.Equal(t, int64(workers), count)
	seen := map[int64]bool{}
	for _, p := range payments {
		assert.False(t, seen[p.Number], "duplicate payment number %d", p.Number)
		seen[p.Number] = true
	}
}

func TestApplyPayment_ConcurrentOverpaymentRejected(t *testing.T) {
	f := newFixture(t)
	inv := f.sentInvoice(t)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		overpaid  int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.Payments.ApplyPayment(context.Background(), inv.ID, d("300"), PaymentMeta{})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, billing.ErrOverpayment):
				overpaid++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 3, succeeded)
	assert.Equal(t, 2, overpaid)

	got, err := f.Docs.Get(context.Background(), billing.KindInvoice, inv.ID)
	require.NoError(t, err)
	assert.True(t, got.PaidAmount.Equal(d("900")))
	assert.Equal(t, billing.StatusPartiallyPaid, got.Status)
}

func TestApplyPayment_LockTimeoutWritesNothing(t *testing.T) {
	f := newFixture(t)
	inv := f.sentInvoice(t)
	f.Payments.LockWait = 20 * time.Millisecond

	release, err := f.Locker.Acquire(context.Background(), InvoiceLockKey(inv.ID), time.Second)
	require.NoError(t, err)
	defer release()

	_, err = f.Payments.ApplyPayment(context.Background(), inv.ID, d("100"), PaymentMeta{})
	assert.ErrorIs(t, err, billing.ErrConcurrencyConflict)
	assert.True(t, billing.IsRetryable(err))

	var count int64
	f.DB.Model(&models.Payment{}).Count(&count)
	assert.Zero(t, count)
}

func TestApplyPayment_CancelledBeforeLock(t *testing.T) {
	f := newFixture(t)
	inv := f.sentInvoice(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.Payments.ApplyPayment(ctx, inv.ID, d("100"), PaymentMeta{})
	assert.ErrorIs(t, err, context.Canceled)

	got, err := f.Docs.Get(context.Background(), billing.KindInvoice, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.StatusSent, got.Status)
}

func TestSaveVersionedDetectsStaleRead(t *testing.T) {
	f := newFixture(t)
	inv := f.sentInvoice(t)

	stale := *inv
	require.NoError(t, saveVersioned(f.DB, inv, map[string]any{"notes": "first"}))
	err := saveVersioned(f.DB, &stale, map[string]any{"notes": "second"})
	assert.ErrorIs(t, err, errVersionConflict)

	got, err := f.Docs.Get(context.Background(), billing.KindInvoice, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", got.Notes)
}

func TestPaymentReads(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.sentInvoice(t)

	r, err := f.Payments.ApplyPayment(ctx, inv.ID, d("100"), PaymentMeta{Reference: "chq-77", Date: testNow.AddDate(0, 0, 1)})
	require.NoError(t, err)

	p, err := f.Payments.Get(ctx, r.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, "chq-77", p.Reference)
	assert.Equal(t, f.Client.ID, p.ClientID)
	assert.True(t, p.Amount.Equal(d("100")))

	_, err = f.Payments.Get(ctx, 9999)
	assert.ErrorIs(t, err, billing.ErrNotFound)

	_, count, err := f.Payments.List(ctx, PaymentFilter{ClientID: f.Client.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
