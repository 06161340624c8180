package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is the finished-goods master: what a formula produces and what
// product bags are units of. SKU identifies the product type; individual bags
// carry their own serial numbers.
type Product struct {
	ID                uint            `gorm:"primaryKey"`
	Name              string          `gorm:"size:100;not null;unique"`
	SKU               string          `gorm:"size:50;uniqueIndex;not null"`
	Unit              string          `gorm:"size:20;not null"`
	ShelfLifeDays     int             `gorm:"not null;default:180"`
	UnitPrice         decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"` // selling price per bag
	SellingPricePerKg decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"` // loose sales from opened bags
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
