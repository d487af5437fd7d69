package services

import (
	"context"
	"errors"
	"strings"

	"github.com/diewo77/go-erp/internal/billing"
	"github.com/diewo77/go-erp/internal/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type PaymentModeInput struct {
	Name        string
	Description string
	IsDefault   bool
	Enabled     bool
}

type PaymentModeService struct {
	DB  *gorm.DB
	Log *logrus.Logger
}

func NewPaymentModeService(db *gorm.DB, log *logrus.Logger) *PaymentModeService {
	return &PaymentModeService{DB: db, Log: log}
}

// Create adds a mode. A new default mode takes the flag away from the previous one.
func (s *PaymentModeService) Create(ctx context.Context, in PaymentModeInput) (*models.PaymentMode, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, billing.NewValidationError("name", "required")
	}
	if in.IsDefault && !in.Enabled {
		return nil, billing.NewValidationError("enabled", "default_must_be_enabled")
	}
	mode := models.PaymentMode{
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		IsDefault:   in.IsDefault,
		Enabled:     in.Enabled,
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.PaymentMode{}).Where("name = ?", name).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return billing.NewValidationError("name", "duplicate")
		}
		if mode.IsDefault {
			if err := tx.Model(&models.PaymentMode{}).Where("is_default = ?", true).
				Update("is_default", false).Error; err != nil {
				return err
			}
		}
		return tx.Create(&mode).Error
	})
	if err != nil {
		return nil, err
	}
	s.Log.WithFields(logrus.Fields{"module": "paymentmodes", "paymentMode": mode.ID, "default": mode.IsDefault}).
		Info("payment mode created")
	return &mode, nil
}

func (s *PaymentModeService) List(ctx context.Context) ([]models.PaymentMode, error) {
	var modes []models.PaymentMode
	err := s.DB.WithContext(ctx).Order("is_default DESC, name").Find(&modes).Error
	return modes, err
}

// resolvePaymentMode returns the requested mode, or the default one when id is 0.
func resolvePaymentMode(tx *gorm.DB, id uint) (*models.PaymentMode, error) {
	var mode models.PaymentMode
	var err error
	if id == 0 {
		err = tx.Where("is_default = ?", true).First(&mode).Error
	} else {
		err = tx.First(&mode, id).Error
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, billing.NewValidationError("paymentMode", "not_found")
	}
	if err != nil {
		return nil, err
	}
	if !mode.Enabled {
		return nil, billing.NewValidationError("paymentMode", "disabled")
	}
	return &mode, nil
}
