package models

import (
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

const (
	defaultPrecision = 20
	defaultScale     = 4
)

// Decimal is a decimal.Decimal column stored without loss on every supported dialect.
// SQLite gives DECIMAL columns NUMERIC affinity and keeps them as REAL, so it gets TEXT
// there. Precision and scale come from the field's `precision` and `scale` tags.
type Decimal struct {
	decimal.Decimal
}

func Dec(d decimal.Decimal) Decimal { return Decimal{Decimal: d} }

func (Decimal) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	if db.Dialector.Name() == "sqlite" {
		return "text"
	}
	precision, scale := field.Precision, field.Scale
	if precision == 0 {
		precision = defaultPrecision
	}
	if scale == 0 {
		scale = defaultScale
	}
	return fmt.Sprintf("decimal(%d,%d)", precision, scale)
}
