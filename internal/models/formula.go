package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type FormulaStatus string

const (
	FormulaStatusActive   FormulaStatus = "active"
	FormulaStatusInactive FormulaStatus = "inactive"
)

// Formula is a production recipe: the raw-material quantities needed to
// produce TargetYield of ProductID. A formula becomes immutable once a
// non-cancelled batch references it; edits then apply only to future formulas.
type Formula struct {
	ID          uint   `gorm:"primaryKey"`
	Name        string `gorm:"size:100;not null;unique"`
	ProductID   uint   `gorm:"index;not null"`
	Product     Product
	TargetYield decimal.Decimal `gorm:"type:numeric(14,3);not null"`
	YieldUnit   string          `gorm:"size:20;not null"`
	Status      FormulaStatus   `gorm:"size:20;not null;default:active"`
	CreatedByID uint
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Ingredients []FormulaIngredient `gorm:"constraint:OnDelete:CASCADE"`
}

type FormulaIngredient struct {
	ID            uint `gorm:"primaryKey"`
	FormulaID     uint `gorm:"index;not null"`
	RawMaterialID uint `gorm:"index;not null"`
	RawMaterial   RawMaterial
	Quantity      decimal.Decimal `gorm:"type:numeric(14,3);not null"` // per 1x batch
	Unit          string          `gorm:"size:20;not null"`
	Position      int             `gorm:"not null;default:0"` // stable ingredient ordering
}
