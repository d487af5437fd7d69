package services

import (
	"context"
	"strings"

	"github.com/diewo77/go-erp/internal/billing"
	"github.com/diewo77/go-erp/internal/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type ClientInput struct {
	Name    string
	Email   string
	Phone   string
	Country string
	Address string
}

type ClientService struct {
	DB  *gorm.DB
	Log *logrus.Logger
}

func NewClientService(db *gorm.DB, log *logrus.Logger) *ClientService {
	return &ClientService{DB: db, Log: log}
}

func (s *ClientService) Create(ctx context.Context, in ClientInput) (*models.Client, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, billing.NewValidationError("name", "required")
	}
	c := models.Client{
		Name:    name,
		Email:   strings.TrimSpace(in.Email),
		Phone:   strings.TrimSpace(in.Phone),
		Country: strings.TrimSpace(in.Country),
		Address: strings.TrimSpace(in.Address),
	}
	if err := s.DB.WithContext(ctx).Create(&c).Error; err != nil {
		return nil, err
	}
	s.Log.WithFields(logrus.Fields{"module": "clients", "client": c.ID}).Info("client created")
	return &c, nil
}

func (s *ClientService) Get(ctx context.Context, id uint) (*models.Client, error) {
	var c models.Client
	if err := s.DB.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, notFound(err, "client", id)
	}
	return &c, nil
}

// List returns clients ordered by name, optionally filtered by a name fragment.
func (s *ClientService) List(ctx context.Context, search string, p Page) ([]models.Client, int64, error) {
	p = p.Normalize()
	q := s.DB.WithContext(ctx).Model(&models.Client{})
	if search = strings.TrimSpace(search); search != "" {
		q = q.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(search)+"%")
	}
	q = q.Session(&gorm.Session{})
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return nil, 0, err
	}
	var clients []models.Client
	if err := q.Order("name, id").Limit(p.Items).Offset(p.Offset()).Find(&clients).Error; err != nil {
		return nil, 0, err
	}
	return clients, count, nil
}

// clientExists reports whether the client can be referenced by a new document or payment.
func clientExists(tx *gorm.DB, id uint) (bool, error) {
	var count int64
	err := tx.Model(&models.Client{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}
