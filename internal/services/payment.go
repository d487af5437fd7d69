package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/diewo77/go-erp/internal/billing"
	"github.com/diewo77/go-erp/internal/config"
	"github.com/diewo77/go-erp/internal/db"
	"github.com/diewo77/go-erp/internal/lock"
	"github.com/diewo77/go-erp/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// PaymentMeta describes a payment besides its amount.
type PaymentMeta struct {
	// Currency defaults to the invoice currency when empty.
	Currency      string
	PaymentModeID uint // 0 selects the default mode
	Reference     string
	Description   string
	Date          time.Time
	// ClientID, when set, must name the invoice's client.
	ClientID uint
}

// Receipt is the outcome of a successful ApplyPayment.
type Receipt struct {
	Payment        *models.Payment  `json:"payment"`
	Invoice        *models.Document `json:"invoice"`
	PreviousStatus billing.Status   `json:"previousStatus"`
}

// PaymentFilter narrows List.
type PaymentFilter struct {
	InvoiceID uint
	ClientID  uint
	Page      Page
}

// PaymentService is the reconciliation engine: it applies payments to invoices one
// invoice at a time and keeps paid amount and status consistent with the payments stored.
type PaymentService struct {
	DB     *gorm.DB
	Locker lock.Locker
	Log    *logrus.Logger
	Now    func() time.Time
	// LockWait bounds how long ApplyPayment queues behind another payment of the same invoice.
	LockWait time.Duration
	// MaxAttempts bounds re-reads after losing an optimistic version race.
	MaxAttempts int
}

func NewPaymentService(db *gorm.DB, locker lock.Locker, log *logrus.Logger, cfg config.LockConfig) *PaymentService {
	return &PaymentService{
		DB:          db,
		Locker:      locker,
		Log:         log,
		Now:         systemNow,
		LockWait:    cfg.Wait,
		MaxAttempts: cfg.MaxAttempts,
	}
}

// InvoiceLockKey is the lock key guarding payments of one invoice.
func InvoiceLockKey(invoiceID uint) string {
	return fmt.Sprintf("invoice:%d", invoiceID)
}

func (s *PaymentService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return systemNow()
}

// ApplyPayment records amount against the invoice and moves it to partially_paid or paid.
// Either the payment and the invoice update are both stored, or neither is.
func (s *PaymentService) ApplyPayment(ctx context.Context, invoiceID uint, amount decimal.Decimal, meta PaymentMeta) (*Receipt, error) {
	if !amount.IsPositive() {
		return nil, billing.NewValidationError("amount", "must_be_positive")
	}
	if meta.Currency != "" && !billing.ValidCurrency(billing.NormalizeCurrency(meta.Currency)) {
		return nil, billing.NewValidationError("currency", "invalid")
	}

	log := s.Log.WithFields(logrus.Fields{
		"module":  "payments",
		"invoice": invoiceID,
		"amount":  amount.String(),
	})
	release, err := s.Locker.Acquire(ctx, InvoiceLockKey(invoiceID), s.LockWait)
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			log.Warn("invoice busy, payment not applied")
			return nil, fmt.Errorf("invoice %d is locked by another payment: %w", invoiceID, billing.ErrConcurrencyConflict)
		}
		return nil, err
	}
	defer release()

	attempts := s.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 1; ; attempt++ {
		receipt, err := s.apply(ctx, invoiceID, amount, meta)
		if !errors.Is(err, errVersionConflict) {
			if err != nil && !isDomainError(err) {
				config.LogError(s.Log, "payments", "ApplyPayment", "apply payment", map[string]any{"invoice": invoiceID}, err)
			}
			if err == nil {
				log.WithFields(logrus.Fields{
					"payment": receipt.Payment.DisplayNumber(),
					"from":    receipt.PreviousStatus,
					"to":      receipt.Invoice.Status,
				}).Info("payment applied")
			}
			return receipt, err
		}
		if attempt >= attempts {
			log.WithField("attempts", attempt).Warn("invoice kept changing, giving up")
			return nil, fmt.Errorf("invoice %d changed during payment: %w", invoiceID, billing.ErrConcurrencyConflict)
		}
		log.WithField("attempt", attempt).Debug("version conflict, retrying")
	}
}

func (s *PaymentService) apply(ctx context.Context, invoiceID uint, amount decimal.Decimal, meta PaymentMeta) (*Receipt, error) {
	now := s.now()
	var receipt Receipt
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inv, err := loadDocument(tx, billing.KindInvoice, invoiceID, true)
		if err != nil {
			return err
		}
		if meta.ClientID != 0 && meta.ClientID != inv.ClientID {
			return billing.NewValidationError("client", "mismatch")
		}
		if !billing.Payable(inv.Status) {
			return &billing.InvalidStateError{Kind: billing.KindInvoice, Status: inv.Status, Op: "pay"}
		}
		currency := billing.NormalizeCurrency(meta.Currency)
		if currency == "" {
			currency = inv.Currency
		}
		if currency != inv.Currency {
			return &billing.CurrencyMismatchError{Invoice: inv.Currency, Payment: currency}
		}
		if !billing.FitsMinorUnit(amount, currency) {
			return billing.NewValidationError("amount", "too_many_decimals")
		}

		paid, err := paidSoFar(tx, inv.ID)
		if err != nil {
			return err
		}
		if !paid.Equal(inv.PaidAmount.Decimal) {
			s.Log.WithFields(logrus.Fields{
				"module":  "payments",
				"invoice": inv.ID,
				"stored":  inv.PaidAmount.String(),
				"actual":  paid.String(),
			}).Warn("stored paid amount disagrees with payments, using payments")
		}
		next := paid.Add(amount)
		if next.GreaterThan(inv.Total.Decimal) {
			return &billing.OverpaymentError{InvoiceTotal: inv.Total.Decimal, AlreadyPaid: paid, Attempted: amount}
		}
		to := billing.DeriveInvoiceStatus(next, inv.Total.Decimal)
		if err := billing.Transition(inv.Snapshot(), to, billing.ActorReconciliation, now); err != nil {
			return err
		}

		mode, err := resolvePaymentMode(tx, meta.PaymentModeID)
		if err != nil {
			return err
		}
		date := meta.Date.UTC()
		if meta.Date.IsZero() {
			date = now
		}
		payment := models.Payment{
			Year:          date.Year(),
			InvoiceID:     inv.ID,
			ClientID:      inv.ClientID,
			Date:          date,
			Amount:        models.Dec(amount),
			Currency:      currency,
			PaymentModeID: mode.ID,
			Reference:     meta.Reference,
			Description:   meta.Description,
		}
		if payment.Number, err = db.NextNumber(tx, db.SeqPayment, payment.Year); err != nil {
			return err
		}
		if err := tx.Create(&payment).Error; err != nil {
			return err
		}
		if err := saveVersioned(tx, inv, map[string]any{"paid_amount": models.Dec(next), "status": to}); err != nil {
			return err
		}

		receipt.PreviousStatus = inv.Status
		inv.PaidAmount = models.Dec(next)
		inv.Status = to
		inv.Decorate(now)
		payment.PaymentMode = mode
		receipt.Payment = &payment
		receipt.Invoice = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &receipt, nil
}

func paidSoFar(tx *gorm.DB, invoiceID uint) (decimal.Decimal, error) {
	var amounts []decimal.Decimal
	if err := tx.Model(&models.Payment{}).Where("invoice_id = ?", invoiceID).Pluck("amount", &amounts).Error; err != nil {
		return decimal.Zero, err
	}
	return decimal.Sum(decimal.Zero, amounts...), nil
}

func isDomainError(err error) bool {
	for _, target := range []error{
		billing.ErrNotFound,
		billing.ErrValidation,
		billing.ErrIllegalTransition,
		billing.ErrOverpayment,
		billing.ErrCurrencyMismatch,
		billing.ErrInvalidState,
		billing.ErrConcurrencyConflict,
		context.Canceled,
		context.DeadlineExceeded,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (s *PaymentService) Get(ctx context.Context, id uint) (*models.Payment, error) {
	var p models.Payment
	if err := s.DB.WithContext(ctx).Preload("PaymentMode").First(&p, id).Error; err != nil {
		return nil, notFound(err, "payment", id)
	}
	return &p, nil
}

// List returns payments, most recent number first.
func (s *PaymentService) List(ctx context.Context, f PaymentFilter) ([]models.Payment, int64, error) {
	p := f.Page.Normalize()
	q := s.DB.WithContext(ctx).Model(&models.Payment{})
	if f.InvoiceID != 0 {
		q = q.Where("invoice_id = ?", f.InvoiceID)
	}
	if f.ClientID != 0 {
		q = q.Where("client_id = ?", f.ClientID)
	}
	q = q.Session(&gorm.Session{})

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return nil, 0, err
	}
	var payments []models.Payment
	err := q.Preload("PaymentMode").
		Order("year DESC, number DESC").
		Limit(p.Items).Offset(p.Offset()).
		Find(&payments).Error
	if err != nil {
		return nil, 0, err
	}
	return payments, count, nil
}
