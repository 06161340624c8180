package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type StockProductType string

const (
	StockProductRawMaterial       StockProductType = "raw_material"
	StockProductPackagingMaterial StockProductType = "packaging_material"
	StockProductThirdParty        StockProductType = "third_party_product"
)

type MovementType string

const (
	MovementProductionConsumption MovementType = "PRODUCTION_CONSUMPTION"
	MovementProductionAdjustment  MovementType = "PRODUCTION_ADJUSTMENT"
	MovementAdminAdjustment       MovementType = "ADMIN_ADJUSTMENT"
)

// StockMovement is the append-only audit row behind every stock mutation.
// Rows are never updated or deleted.
type StockMovement struct {
	ID            uint             `gorm:"primaryKey" json:"id"`
	ProductType   StockProductType `gorm:"size:30;not null;index" json:"product_type"`
	ProductID     uint             `gorm:"not null;index" json:"product_id"`
	QuantityDelta decimal.Decimal  `gorm:"type:numeric(14,3);not null" json:"quantity_delta"` // signed
	MovementType  MovementType     `gorm:"size:30;not null;index" json:"movement_type"`
	BranchID      uint             `gorm:"index;not null" json:"branch_id"`
	ActorID       uint             `gorm:"not null" json:"actor_id"`
	ActorName     string           `gorm:"size:100" json:"actor_name"`
	Reason        string           `gorm:"size:500" json:"reason"`
	BatchID       *uint            `gorm:"index" json:"batch_id"` // set for production consumption
	CreatedAt     time.Time        `json:"created_at"`
}
