// Package services implements the billing operations on top of GORM.
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/diewo77/go-erp/internal/billing"
	"github.com/diewo77/go-erp/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 200
	// MaxPage bounds Page so Offset cannot overflow.
	MaxPage = 1_000_000
)

// Page selects a slice of a list. Page numbers start at 1.
type Page struct {
	Page  int
	Items int
}

// Normalize applies defaults and the page size cap.
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Items < 1 {
		p.Items = DefaultPageSize
	}
	if p.Items > MaxPageSize {
		p.Items = MaxPageSize
	}
	if p.Page > MaxPage {
		p.Page = MaxPage
	}
	return p
}

func (p Page) Offset() int { return (p.Page - 1) * p.Items }

// Pages returns how many pages count rows fill.
func (p Page) Pages(count int64) int {
	if count == 0 {
		return 0
	}
	return int((count + int64(p.Items) - 1) / int64(p.Items))
}

// errVersionConflict means the row changed between read and conditional write.
var errVersionConflict = errors.New("services: document version changed")

func systemNow() time.Time { return time.Now().UTC() }

// forUpdate row-locks the selected rows on dialects that support SELECT ... FOR UPDATE.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

func loadDocument(tx *gorm.DB, kind billing.Kind, id uint, lock bool) (*models.Document, error) {
	q := tx
	if lock {
		q = forUpdate(tx)
	}
	var doc models.Document
	err := q.Where("kind = ?", kind).First(&doc, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%s %d: %w", kind, id, billing.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if err := tx.Where("document_id = ?", doc.ID).Order("position").Find(&doc.Items).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

// saveVersioned writes fields only if nobody bumped the version since doc was read.
func saveVersioned(tx *gorm.DB, doc *models.Document, fields map[string]any) error {
	fields["version"] = doc.Version + 1
	res := tx.Model(&models.Document{}).
		Where("id = ? AND version = ?", doc.ID, doc.Version).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errVersionConflict
	}
	doc.Version++
	return nil
}

func notFound(err error, what string, id uint) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %d: %w", what, id, billing.ErrNotFound)
	}
	return err
}
