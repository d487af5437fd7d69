package billing

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Sentinel errors. Typed errors below match them through errors.Is.
var (
	ErrNotFound            = errors.New("billing: not found")
	ErrValidation          = errors.New("billing: validation failed")
	ErrIllegalTransition   = errors.New("billing: illegal status transition")
	ErrOverpayment         = errors.New("billing: payment exceeds amount due")
	ErrCurrencyMismatch    = errors.New("billing: currency mismatch")
	ErrInvalidState        = errors.New("billing: invalid document state")
	ErrConcurrencyConflict = errors.New("billing: concurrent update in progress, retry")
)

// ValidationError carries one rule code per offending field, e.g. "items[0].quantity" → "must_not_be_negative".
type ValidationError struct {
	Violations map[string]string
}

// NewValidationError returns a ValidationError holding a single violation.
func NewValidationError(field, rule string) *ValidationError {
	return &ValidationError{Violations: map[string]string{field: rule}}
}

// Add records a violation. The first rule recorded for a field wins.
func (e *ValidationError) Add(field, rule string) {
	if e.Violations == nil {
		e.Violations = map[string]string{}
	}
	if _, ok := e.Violations[field]; !ok {
		e.Violations[field] = rule
	}
}

// Merge folds the violations of err into e. It reports false when err is not a *ValidationError.
func (e *ValidationError) Merge(err error) bool {
	var other *ValidationError
	if !errors.As(err, &other) {
		return false
	}
	for field, rule := range other.Violations {
		e.Add(field, rule)
	}
	return true
}

// Empty reports whether no violation was recorded.
func (e *ValidationError) Empty() bool { return e == nil || len(e.Violations) == 0 }

// OrNil returns e as an error, or nil when it is empty.
func (e *ValidationError) OrNil() error {
	if e.Empty() {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Violations))
	for f := range e.Violations {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+"="+e.Violations[f])
	}
	return "billing: validation failed: " + strings.Join(parts, ", ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// TransitionError reports a status change the state machine refuses.
type TransitionError struct {
	Kind   Kind
	From   Status
	To     Status
	Reason string
}

func (e *TransitionError) Error() string {
	msg := fmt.Sprintf("billing: %s cannot move from %s to %s", e.Kind, e.From, e.To)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *TransitionError) Is(target error) bool { return target == ErrIllegalTransition }

// OverpaymentError is returned when a payment would push the paid amount above the invoice total.
type OverpaymentError struct {
	InvoiceTotal decimal.Decimal
	AlreadyPaid  decimal.Decimal
	Attempted    decimal.Decimal
}

// Outstanding is the largest amount the invoice could still accept.
func (e *OverpaymentError) Outstanding() decimal.Decimal {
	return e.InvoiceTotal.Sub(e.AlreadyPaid)
}

func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("billing: payment of %s exceeds outstanding %s (total %s, paid %s)",
		e.Attempted, e.Outstanding(), e.InvoiceTotal, e.AlreadyPaid)
}

func (e *OverpaymentError) Is(target error) bool { return target == ErrOverpayment }

// CurrencyMismatchError is returned when a payment is not in the invoice currency.
type CurrencyMismatchError struct {
	Invoice string
	Payment string
}

func (e *CurrencyMismatchError) Error() string {
	return fmt.Sprintf("billing: payment currency %s does not match invoice currency %s", e.Payment, e.Invoice)
}

func (e *CurrencyMismatchError) Is(target error) bool { return target == ErrCurrencyMismatch }

// InvalidStateError is returned when an operation is not allowed in the document's current status.
type InvalidStateError struct {
	Kind   Kind
	Status Status
	Op     string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("billing: cannot %s a %s %s", e.Op, e.Status, e.Kind)
}

func (e *InvalidStateError) Is(target error) bool { return target == ErrInvalidState }

// IsRetryable reports whether the operation may be retried as-is because it re-reads state.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}
