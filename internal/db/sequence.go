package db

import (
	"fmt"

	"github.com/diewo77/go-erp/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Sequence names.
const (
	SeqInvoice = "invoice"
	SeqQuote   = "quote"
	SeqPayment = "payment"
)

// NextNumber increments and returns the (name, year) counter.
// It must run inside the transaction that stores the numbered row, so a rollback
// gives the number back and numbers stay gap-free.
func NextNumber(tx *gorm.DB, name string, year int) (int64, error) {
	bumped, err := bump(tx, name, year)
	if err != nil {
		return 0, err
	}
	if !bumped {
		ins := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.Sequence{Name: name, Year: year, LastValue: 1})
		if ins.Error != nil {
			return 0, fmt.Errorf("create sequence %s/%d: %w", name, year, ins.Error)
		}
		if ins.RowsAffected == 1 {
			return 1, nil
		}
		// another transaction created the row first
		if bumped, err = bump(tx, name, year); err != nil {
			return 0, err
		}
		if !bumped {
			return 0, fmt.Errorf("sequence %s/%d: row vanished", name, year)
		}
	}

	var seq models.Sequence
	if err := tx.Where("name = ? AND year = ?", name, year).Take(&seq).Error; err != nil {
		return 0, fmt.Errorf("read sequence %s/%d: %w", name, year, err)
	}
	return seq.LastValue, nil
}

func bump(tx *gorm.DB, name string, year int) (bool, error) {
	res := tx.Model(&models.Sequence{}).
		Where("name = ? AND year = ?", name, year).
		UpdateColumn("last_value", gorm.Expr("last_value + 1"))
	if res.Error != nil {
		return false, fmt.Errorf("bump sequence %s/%d: %w", name, year, res.Error)
	}
	return res.RowsAffected > 0, nil
}
