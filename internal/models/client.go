package models

import (
	"time"

	"gorm.io/gorm"
)

// Client is the customer a document or payment belongs to.
type Client struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Name    string `gorm:"size:255;not null" json:"name"`
	Email   string `gorm:"size:255" json:"email,omitempty"`
	Phone   string `gorm:"size:50" json:"phone,omitempty"`
	Country string `gorm:"size:100" json:"country,omitempty"`
	Address string `gorm:"size:500" json:"address,omitempty"`
}

// PaymentMode describes how a payment was made (cash, transfer, ...).
type PaymentMode struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Name        string `gorm:"size:100;not null;uniqueIndex" json:"name"`
	Description string `gorm:"size:500" json:"description,omitempty"`
	IsDefault   bool   `gorm:"not null" json:"isDefault"`
	Enabled     bool   `gorm:"not null" json:"enabled"`
}
