package db

import (
	"errors"
	"fmt"

	"github.com/diewo77/go-erp/internal/models"
	"gorm.io/gorm"
)

// DefaultPaymentModeName is the mode used when a payment names none.
const DefaultPaymentModeName = "Default Payment"

// Migrate applies the GORM schema.
func Migrate(db *gorm.DB) error {
	for _, m := range models.All() {
		if err := db.AutoMigrate(m); err != nil {
			return fmt.Errorf("automigrate %T: %w", m, err)
		}
	}
	return nil
}

// Seed creates the default payment mode. Running it twice changes nothing.
func Seed(db *gorm.DB) error {
	var existing models.PaymentMode
	err := db.Where("is_default = ?", true).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	mode := models.PaymentMode{
		Name:        DefaultPaymentModeName,
		Description: "Default payment mode (cash, wire transfer)",
		IsDefault:   true,
		Enabled:     true,
	}
	return db.Where(models.PaymentMode{Name: mode.Name}).
		Assign(models.PaymentMode{IsDefault: true, Enabled: true}).
		FirstOrCreate(&mode).Error
}
