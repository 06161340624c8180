package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RawMaterial is a production input (maize, soya, premix...). CurrentStock is
// only ever changed through the ledger package: production consumption or an
// administrator adjustment. Handlers must not write the column directly.
type RawMaterial struct {
	ID           uint `gorm:"primaryKey"`
	BranchID     uint `gorm:"index;not null"`
	Branch       Branch
	Name         string          `gorm:"size:100;not null"`
	Unit         string          `gorm:"size:20;not null"` // KG, L, bag...
	CurrentStock decimal.Decimal `gorm:"type:numeric(14,3);not null;default:0"`
	MinimumStock decimal.Decimal `gorm:"type:numeric(14,3);not null;default:0"` // reorder threshold, advisory
	CostPrice    decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"` // per unit
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PackagingMaterial is a bag/sack type consumed one unit per packed bag.
type PackagingMaterial struct {
	ID           uint `gorm:"primaryKey"`
	BranchID     uint `gorm:"index;not null"`
	Branch       Branch
	Name         string          `gorm:"size:100;not null"`
	Unit         string          `gorm:"size:20;not null"`
	CurrentStock decimal.Decimal `gorm:"type:numeric(14,3);not null;default:0"`
	MinimumStock decimal.Decimal `gorm:"type:numeric(14,3);not null;default:0"`
	CostPrice    decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ThirdPartyProduct is bought-in finished stock resold as-is. It shares the
// ledger discipline with raw and packaging materials.
type ThirdPartyProduct struct {
	ID           uint `gorm:"primaryKey"`
	BranchID     uint `gorm:"index;not null"`
	Branch       Branch
	Name         string          `gorm:"size:100;not null"`
	Unit         string          `gorm:"size:20;not null"`
	CurrentStock decimal.Decimal `gorm:"type:numeric(14,3);not null;default:0"`
	MinimumStock decimal.Decimal `gorm:"type:numeric(14,3);not null;default:0"`
	CostPrice    decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
