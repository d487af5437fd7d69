package billing

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind distinguishes the two document types sharing one lifecycle model.
type Kind string

const (
	KindInvoice Kind = "invoice"
	KindQuote   Kind = "quote"
)

// ParseKind accepts "invoice" or "quote" in any case.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindInvoice, KindQuote:
		return k, nil
	default:
		return "", fmt.Errorf("billing: unknown document kind %q", s)
	}
}

// Status is a document status. Overdue and Expired are read-time views and are never stored.
type Status string

const (
	StatusDraft         Status = "draft"
	StatusSent          Status = "sent"
	StatusPartiallyPaid Status = "partially_paid"
	StatusPaid          Status = "paid"
	StatusAccepted      Status = "accepted"

	StatusOverdue Status = "overdue"
	StatusExpired Status = "expired"
)

// IsView reports whether s only exists as a derived view.
func (s Status) IsView() bool { return s == StatusOverdue || s == StatusExpired }

// Valid reports whether s is a status of the given kind, views included.
func (s Status) Valid(kind Kind) bool {
	switch kind {
	case KindInvoice:
		switch s {
		case StatusDraft, StatusSent, StatusPartiallyPaid, StatusPaid, StatusOverdue:
			return true
		}
	case KindQuote:
		switch s {
		case StatusDraft, StatusSent, StatusAccepted, StatusExpired:
			return true
		}
	}
	return false
}

// PaymentStatus summarises how much of an invoice has been settled.
type PaymentStatus string

const (
	PaymentUnpaid  PaymentStatus = "unpaid"
	PaymentPartial PaymentStatus = "partial"
	PaymentPaid    PaymentStatus = "paid"
)

// Actor identifies who requests a transition.
type Actor int

const (
	// ActorExternal is any API caller.
	ActorExternal Actor = iota
	// ActorReconciliation is the payment engine, the only writer of payment-derived statuses.
	ActorReconciliation
)

// Snapshot is the part of a document the state machine needs to judge a transition.
type Snapshot struct {
	Kind       Kind
	Status     Status
	ItemCount  int
	Total      decimal.Decimal
	ExpiryDate time.Time
}

type edge struct{ from, to Status }

var (
	invoiceEdges = map[edge]Actor{
		{StatusDraft, StatusSent}:                  ActorExternal,
		{StatusSent, StatusPartiallyPaid}:          ActorReconciliation,
		{StatusSent, StatusPaid}:                   ActorReconciliation,
		{StatusPartiallyPaid, StatusPartiallyPaid}: ActorReconciliation,
		{StatusPartiallyPaid, StatusPaid}:          ActorReconciliation,
	}
	quoteEdges = map[edge]Actor{
		{StatusDraft, StatusSent}:    ActorExternal,
		{StatusSent, StatusAccepted}: ActorExternal,
	}
)

// Transition validates moving doc to the target status on behalf of actor.
// It returns a *TransitionError when the move is not allowed.
func Transition(doc Snapshot, to Status, actor Actor, now time.Time) error {
	fail := func(reason string) error {
		return &TransitionError{Kind: doc.Kind, From: doc.Status, To: to, Reason: reason}
	}
	if to.IsView() {
		return fail("derived status cannot be set")
	}

	var edges map[edge]Actor
	switch doc.Kind {
	case KindInvoice:
		edges = invoiceEdges
	case KindQuote:
		edges = quoteEdges
	default:
		return fail("unknown document kind")
	}

	owner, ok := edges[edge{doc.Status, to}]
	if !ok {
		return fail("")
	}
	if owner == ActorReconciliation && actor != ActorReconciliation {
		return fail("payment status is set by recorded payments only")
	}

	switch {
	case doc.Status == StatusDraft && to == StatusSent:
		if doc.ItemCount == 0 {
			return fail("document has no line items")
		}
		if !doc.Total.IsPositive() {
			return fail("document total must be greater than zero")
		}
	case doc.Kind == KindQuote && to == StatusAccepted:
		if pastExpiry(doc.ExpiryDate, now) {
			return fail("quote has expired")
		}
	}
	return nil
}

// DeriveInvoiceStatus maps the settled amount of a sent invoice to its stored status.
func DeriveInvoiceStatus(paid, total decimal.Decimal) Status {
	switch {
	case !paid.IsPositive():
		return StatusSent
	case paid.LessThan(total):
		return StatusPartiallyPaid
	default:
		return StatusPaid
	}
}

// PaymentStatusOf reports the payment status of an invoice.
func PaymentStatusOf(paid, total decimal.Decimal) PaymentStatus {
	switch {
	case !paid.IsPositive():
		return PaymentUnpaid
	case paid.LessThan(total):
		return PaymentPartial
	default:
		return PaymentPaid
	}
}

// EffectiveStatus applies the overdue and expired views to a stored status.
func EffectiveStatus(kind Kind, stored Status, expiry, now time.Time) Status {
	if !pastExpiry(expiry, now) {
		return stored
	}
	switch {
	case kind == KindInvoice && (stored == StatusSent || stored == StatusPartiallyPaid):
		return StatusOverdue
	case kind == KindQuote && stored == StatusSent:
		return StatusExpired
	}
	return stored
}

// StoredStatuses returns the stored statuses whose effective view may be s.
func StoredStatuses(kind Kind, s Status) []Status {
	switch {
	case kind == KindInvoice && s == StatusOverdue:
		return []Status{StatusSent, StatusPartiallyPaid}
	case kind == KindQuote && s == StatusExpired:
		return []Status{StatusSent}
	}
	return []Status{s}
}

// Payable reports whether an invoice in the stored status accepts payments.
func Payable(s Status) bool { return s == StatusSent || s == StatusPartiallyPaid }

// Editable reports whether items, modifiers and totals may still change.
func Editable(s Status) bool { return s == StatusDraft }

// IsTerminal reports whether no further transition leaves s.
func IsTerminal(kind Kind, s Status) bool {
	return (kind == KindInvoice && s == StatusPaid) || (kind == KindQuote && s == StatusAccepted)
}

func pastExpiry(expiry, now time.Time) bool {
	return !expiry.IsZero() && now.After(expiry)
}
