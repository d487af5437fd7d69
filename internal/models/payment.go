package models

import (
	"fmt"
	"time"
)

// Payment is an immutable record of money received against one invoice.
type Payment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`

	Year   int   `gorm:"not null;uniqueIndex:idx_payment_number,priority:1" json:"year"`
	Number int64 `gorm:"not null;uniqueIndex:idx_payment_number,priority:2" json:"number"`

	InvoiceID uint `gorm:"index;not null" json:"invoice"`
	ClientID  uint `gorm:"index;not null" json:"client"`

	Date     time.Time       `gorm:"not null" json:"date"`
	Amount   Decimal         `gorm:"precision:20;scale:4;not null" json:"amount"`
	Currency string          `gorm:"size:3;not null" json:"currency"`

	PaymentModeID uint         `gorm:"index;not null" json:"paymentMode"`
	PaymentMode   *PaymentMode `gorm:"foreignKey:PaymentModeID" json:"paymentModeDetails,omitempty"`

	Reference   string `gorm:"size:255" json:"ref,omitempty"`
	Description string `gorm:"type:text" json:"description,omitempty"`
}

// DisplayNumber formats the payment number, e.g. PAY-2026-0003.
func (p *Payment) DisplayNumber() string {
	return fmt.Sprintf("PAY-%d-%04d", p.Year, p.Number)
}
