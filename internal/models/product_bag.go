package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type BagStatus string

const (
	BagStatusSealed      BagStatus = "sealed"
	BagStatusOpened      BagStatus = "opened"
	BagStatusSold        BagStatus = "sold"
	BagStatusTransferred BagStatus = "transferred"
)

// ProductBag is one physical packaged unit, not a quantity counter. Rows are
// created only at batch completion. Downstream modules (transfer, sales) may
// change Status and BranchID but never the identity fields.
type ProductBag struct {
	ID                uint   `gorm:"primaryKey"`
	SerialNumber      string `gorm:"size:40;uniqueIndex;not null"`
	ProductID         uint   `gorm:"index;not null"`
	Product           Product
	ProductionBatchID uint `gorm:"index;not null"`
	BranchID          uint `gorm:"index;not null"`
	Branch            Branch
	PackageSize       decimal.Decimal `gorm:"type:numeric(14,3);not null"` // KG
	ProductionDate    time.Time       `gorm:"not null"`
	ExpiryDate        time.Time       `gorm:"not null"`
	Status            BagStatus       `gorm:"size:20;not null;default:sealed;index"`
	CostPrice         decimal.Decimal `gorm:"type:numeric(14,2);not null"` // pro-rata share of batch cost
	UnitPrice         decimal.Decimal `gorm:"type:numeric(14,2);not null"` // selling price snapshot
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// OpenedBag tracks loose sales out of a bag that has been cut open.
// CurrentWeight only decreases, except through an administrator correction.
type OpenedBag struct {
	ID                uint `gorm:"primaryKey"`
	ProductBagID      uint `gorm:"uniqueIndex;not null"`
	ProductBag        ProductBag
	OriginalWeight    decimal.Decimal `gorm:"type:numeric(14,3);not null"`
	CurrentWeight     decimal.Decimal `gorm:"type:numeric(14,3);not null"`
	SellingPricePerKg decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	OpenedByID        uint            `gorm:"not null"`
	OpenedAt          time.Time       `gorm:"not null"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
