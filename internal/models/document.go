package models

import (
	"fmt"
	"time"

	"github.com/diewo77/go-erp/internal/billing"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Document is a quote or an invoice. Both share numbering, items and totals.
type Document struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Number is unique per (kind, year) and never reused, even after deletion.
	Kind   billing.Kind `gorm:"size:10;not null;uniqueIndex:idx_doc_number,priority:1" json:"kind"`
	Year   int          `gorm:"not null;uniqueIndex:idx_doc_number,priority:2" json:"year"`
	Number int64        `gorm:"not null;uniqueIndex:idx_doc_number,priority:3" json:"number"`

	ClientID uint    `gorm:"index;not null" json:"client"`
	Client   *Client `gorm:"foreignKey:ClientID" json:"clientDetails,omitempty"`

	Date       time.Time `gorm:"not null" json:"date"`
	ExpiryDate time.Time `gorm:"not null" json:"expiredDate"`
	Currency   string    `gorm:"size:3;not null" json:"currency"`

	TaxRate       Decimal              `gorm:"precision:7;scale:4;not null;default:0" json:"taxRate"`
	DiscountType  billing.DiscountType `gorm:"size:10;not null" json:"discountType"`
	DiscountValue Decimal              `gorm:"precision:20;scale:4;not null;default:0" json:"discount"`
	Credit        Decimal              `gorm:"precision:20;scale:4;not null;default:0" json:"credit"`

	SubTotal      Decimal `gorm:"precision:20;scale:4;not null;default:0" json:"subTotal"`
	TaxTotal      Decimal `gorm:"precision:20;scale:4;not null;default:0" json:"taxTotal"`
	DiscountTotal Decimal `gorm:"precision:20;scale:4;not null;default:0" json:"discountTotal"`
	CreditApplied Decimal `gorm:"precision:20;scale:4;not null;default:0" json:"creditApplied"`
	WrittenOff    Decimal `gorm:"precision:20;scale:4;not null;default:0" json:"writtenOff"`
	Total         Decimal `gorm:"precision:20;scale:4;not null;default:0" json:"total"`
	PaidAmount    Decimal `gorm:"precision:20;scale:4;not null;default:0" json:"paidAmount"`

	Status billing.Status `gorm:"size:20;not null;index" json:"status"`
	Notes  string         `gorm:"type:text" json:"notes,omitempty"`
	SentAt *time.Time     `json:"sentAt,omitempty"`

	// Version guards the conditional status update of payment application.
	Version int64 `gorm:"not null;default:1" json:"version"`

	ConvertedInvoiceID *uint `gorm:"index" json:"convertedInvoice,omitempty"`
	ConvertedFromID    *uint `gorm:"index" json:"convertedFrom,omitempty"`

	Items []DocumentItem `gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE" json:"items"`

	// Read-time views, never stored.
	EffectiveStatus billing.Status        `gorm:"-" json:"effectiveStatus,omitempty"`
	PaymentStatus   billing.PaymentStatus `gorm:"-" json:"paymentStatus,omitempty"`
	Overdue         bool                  `gorm:"-" json:"overdue,omitempty"`
	Expired         bool                  `gorm:"-" json:"expired,omitempty"`
	Warnings        []billing.Warning     `gorm:"-" json:"warnings,omitempty"`
}

// DocumentItem is a line of a document, kept in Position order.
type DocumentItem struct {
	ID         uint `gorm:"primaryKey" json:"id"`
	DocumentID uint `gorm:"index;not null" json:"-"`
	Position   int  `gorm:"not null;default:0" json:"position"`

	ItemName    string          `gorm:"size:255;not null" json:"itemName"`
	Description string          `gorm:"size:500" json:"description,omitempty"`
	Quantity    int64           `gorm:"not null" json:"quantity"`
	Price       Decimal         `gorm:"precision:20;scale:4;not null;default:0" json:"price"`
	Total       Decimal         `gorm:"precision:20;scale:4;not null;default:0" json:"total"`
}

// DisplayNumber formats the document number, e.g. INV-2026-0007.
func (d *Document) DisplayNumber() string {
	prefix := "INV"
	if d.Kind == billing.KindQuote {
		prefix = "QUO"
	}
	return fmt.Sprintf("%s-%d-%04d", prefix, d.Year, d.Number)
}

// Snapshot returns what the state machine needs to judge a transition.
func (d *Document) Snapshot() billing.Snapshot {
	return billing.Snapshot{
		Kind:       d.Kind,
		Status:     d.Status,
		ItemCount:  len(d.Items),
		Total:      d.Total.Decimal,
		ExpiryDate: d.ExpiryDate,
	}
}

// LineItems converts stored items back into aggregator input.
func (d *Document) LineItems() []billing.LineItem {
	items := make([]billing.LineItem, len(d.Items))
	for i, it := range d.Items {
		items[i] = billing.LineItem{
			Name:        it.ItemName,
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.Price.Decimal,
		}
	}
	return items
}

// Modifiers returns the document-level aggregator input.
func (d *Document) Modifiers() billing.Modifiers {
	return billing.Modifiers{
		Currency: d.Currency,
		TaxRate:  d.TaxRate.Decimal,
		Discount: billing.Discount{Type: d.DiscountType, Value: d.DiscountValue.Decimal},
		Credit:   d.Credit.Decimal,
	}
}

// ApplyTotals stores computed totals on the document.
func (d *Document) ApplyTotals(t billing.Totals) {
	d.SubTotal = Dec(t.SubTotal)
	d.TaxTotal = Dec(t.TaxTotal)
	d.DiscountTotal = Dec(t.DiscountTotal)
	d.CreditApplied = Dec(t.CreditApplied)
	d.WrittenOff = Dec(t.WrittenOff())
	d.Total = Dec(t.Total)
	d.Warnings = t.Warnings
}

// SetItems replaces the items, numbering them in order.
func (d *Document) SetItems(items []billing.LineItem) {
	d.Items = make([]DocumentItem, len(items))
	for i, it := range items {
		d.Items[i] = DocumentItem{
			Position:    i,
			ItemName:    it.Name,
			Description: it.Description,
			Quantity:    it.Quantity,
			Price:       Dec(it.UnitPrice),
			Total:       Dec(it.Total()),
		}
	}
}

// Decorate fills the read-time views for now.
func (d *Document) Decorate(now time.Time) {
	d.EffectiveStatus = billing.EffectiveStatus(d.Kind, d.Status, d.ExpiryDate, now)
	d.Overdue = d.EffectiveStatus == billing.StatusOverdue
	d.Expired = d.EffectiveStatus == billing.StatusExpired
	if d.Kind == billing.KindInvoice {
		d.PaymentStatus = billing.PaymentStatusOf(d.PaidAmount.Decimal, d.Total.Decimal)
	}
	if !d.WrittenOff.IsZero() && d.Warnings == nil {
		d.Warnings = []billing.Warning{{Code: billing.WarningWrittenOff, Amount: d.WrittenOff.Decimal}}
	}
}

// Outstanding is the amount still owed on an invoice.
func (d *Document) Outstanding() decimal.Decimal {
	return d.Total.Sub(d.PaidAmount.Decimal)
}
