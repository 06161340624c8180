package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type BatchStatus string

const (
	BatchStatusPlanned    BatchStatus = "planned"
	BatchStatusInProgress BatchStatus = "in_progress"
	BatchStatusPaused     BatchStatus = "paused"
	BatchStatusCompleted  BatchStatus = "completed"
	BatchStatusCancelled  BatchStatus = "cancelled"
)

// ProductionBatch is one production run of a formula at a size multiplier.
// DailySequence is allocated inside the creation transaction and is unique per
// BatchDate; batch numbers and bag serials both derive from it.
type ProductionBatch struct {
	ID             uint   `gorm:"primaryKey"`
	BatchNumber    string `gorm:"size:30;uniqueIndex;not null"`
	BatchDate      string `gorm:"size:8;not null;index:idx_batch_date_seq,unique"` // YYYYMMDD
	DailySequence  int    `gorm:"not null;index:idx_batch_date_seq,unique"`
	BranchID       uint   `gorm:"index;not null"`
	Branch         Branch
	FormulaID      uint `gorm:"index;not null"`
	Formula        Formula
	BatchSize      int             `gorm:"not null"`
	ExpectedYield  decimal.Decimal `gorm:"type:numeric(14,3);not null"`
	ActualYield    decimal.Decimal `gorm:"type:numeric(14,3);not null;default:0"`
	Wastage        decimal.Decimal `gorm:"type:numeric(7,2);not null;default:0"` // percentage, clamped >= 0
	Status         BatchStatus     `gorm:"size:20;not null;default:planned"`
	OfficerID      uint            `gorm:"not null"`
	SupervisorID   uint            `gorm:"not null"`
	ProductionCost decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"`
	StartedAt      *time.Time
	PausedAt       *time.Time
	CompletedAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time

	Materials []BatchMaterial `gorm:"constraint:OnDelete:CASCADE"`
	Products  []BatchProduct  `gorm:"constraint:OnDelete:CASCADE"`
}

// BatchMaterial snapshots one ingredient consumption at completion time.
// UnitCost is frozen here so later price changes never rewrite batch history.
type BatchMaterial struct {
	ID                uint `gorm:"primaryKey"`
	ProductionBatchID uint `gorm:"index;not null"`
	RawMaterialID     uint `gorm:"index;not null"`
	RawMaterial       RawMaterial
	PlannedQuantity   decimal.Decimal `gorm:"type:numeric(14,3);not null"`
	ActualQuantity    decimal.Decimal `gorm:"type:numeric(14,3);not null"`
	UnitCost          decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	TotalCost         decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	CreatedAt         time.Time
}

// BatchProduct is one packaging-plan entry realized at completion: how many
// bags of which size were packed from the batch's yield.
type BatchProduct struct {
	ID                  uint `gorm:"primaryKey"`
	ProductionBatchID   uint `gorm:"index;not null"`
	ProductID           uint `gorm:"index;not null"`
	Product             Product
	PackagingMaterialID uint            `gorm:"not null"`
	PackageSize         decimal.Decimal `gorm:"type:numeric(14,3);not null"` // KG per bag
	BagsCount           int             `gorm:"not null"`
	TotalWeight         decimal.Decimal `gorm:"type:numeric(14,3);not null"`
	CreatedAt           time.Time
}

type ProductionAction string

const (
	ProductionActionCreated   ProductionAction = "created"
	ProductionActionStarted   ProductionAction = "started"
	ProductionActionPaused    ProductionAction = "paused"
	ProductionActionResumed   ProductionAction = "resumed"
	ProductionActionCancelled ProductionAction = "cancelled"
	ProductionActionCompleted ProductionAction = "completed"
)

// ProductionLog is the batch-scoped transition trail, separate from the
// stock-movement audit trail.
type ProductionLog struct {
	ID                uint             `gorm:"primaryKey"`
	ProductionBatchID uint             `gorm:"index;not null"`
	Action            ProductionAction `gorm:"size:20;not null"`
	ActorID           uint             `gorm:"not null"`
	ActorName         string           `gorm:"size:100"`
	Note              string           `gorm:"size:500"`
	CreatedAt         time.Time
}
