// Package models holds the GORM schema of the billing back office.
package models

// All lists every model in migration order.
func All() []any {
	return []any{
		&Client{},
		&PaymentMode{},
		&Document{},
		&DocumentItem{},
		&Payment{},
		&Sequence{},
	}
}
