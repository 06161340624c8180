package ledger

import (
	"errors"
	"strings"

	"feedmill-backend/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// The ledger is the only code allowed to touch current_stock columns. Every
// mutation is either a guarded deduction/credit inside a caller transaction or
// an absolute administrator adjustment, and every mutating path leaves a
// StockMovement row behind.

func stockModel(productType models.StockProductType) (interface{}, error) {
	switch productType {
	case models.StockProductRawMaterial:
		return &models.RawMaterial{}, nil
	case models.StockProductPackagingMaterial:
		return &models.PackagingMaterial{}, nil
	case models.StockProductThirdParty:
		return &models.ThirdPartyProduct{}, nil
	default:
		return nil, ErrItemNotFound
	}
}

// stockRow is a narrow read of any of the three stock tables.
type stockRow struct {
	ID           uint
	Name         string
	CurrentStock decimal.Decimal
}

func readRow(tx *gorm.DB, productType models.StockProductType, id uint) (*stockRow, error) {
	model, err := stockModel(productType)
	if err != nil {
		return nil, err
	}

	var row stockRow
	if err := tx.Model(model).Select("id", "name", "current_stock").
		Where("id = ?", id).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, err
	}
	return &row, nil
}

// Deduct atomically subtracts qty from a stock row, failing if the row would
// go negative. The guard is a single compare-and-swap UPDATE so that two
// concurrent completions can never both spend the same stock: whichever
// statement runs second sees the already-reduced balance.
func Deduct(tx *gorm.DB, productType models.StockProductType, id uint, qty decimal.Decimal) error {
	if qty.Sign() <= 0 {
		return ErrInvalidAmount
	}

	model, err := stockModel(productType)
	if err != nil {
		return err
	}

	res := tx.Model(model).
		Where("id = ? AND current_stock >= ?", id, qty).
		UpdateColumn("current_stock", gorm.Expr("current_stock - ?", qty))
	if res.Error != nil {
		return res.Error
	}

	if res.RowsAffected == 0 {
		// Either the row is missing or the balance is short; re-read to tell
		// the caller which, and by how much.
		row, readErr := readRow(tx, productType, id)
		if readErr != nil {
			return readErr
		}
		return &InsufficientStockError{Shortages: []Shortage{{
			ProductType: productType,
			ProductID:   id,
			Name:        row.Name,
			Required:    qty,
			Available:   row.CurrentStock,
			Shortage:    qty.Sub(row.CurrentStock),
		}}}
	}

	return nil
}

// Credit atomically adds qty to a stock row.
func Credit(tx *gorm.DB, productType models.StockProductType, id uint, qty decimal.Decimal) error {
	if qty.Sign() <= 0 {
		return ErrInvalidAmount
	}

	model, err := stockModel(productType)
	if err != nil {
		return err
	}

	res := tx.Model(model).
		Where("id = ?", id).
		UpdateColumn("current_stock", gorm.Expr("current_stock + ?", qty))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrItemNotFound
	}

	return nil
}

// RecordMovement appends one audit row. Movement rows are append-only; there
// is deliberately no update or delete counterpart.
func RecordMovement(tx *gorm.DB, movement *models.StockMovement) error {
	return tx.Create(movement).Error
}

// AdjustInput is an administrator stock correction: the counted quantity
// replaces the stored one, and the signed difference is logged.
type AdjustInput struct {
	ProductType models.StockProductType
	ProductID   uint
	NewQuantity decimal.Decimal
	Reason      string
	ActorID     uint
	ActorName   string
	BranchID    uint
}

// Adjust sets current_stock to an absolute value and appends one
// ADMIN_ADJUSTMENT movement, all in one transaction. The absolute write (not
// an increment) avoids lost-update drift when two corrections race.
func Adjust(db *gorm.DB, in AdjustInput) (*models.StockMovement, error) {
	if in.NewQuantity.Sign() < 0 {
		return nil, &ValidationError{Msg: "new quantity cannot be negative"}
	}
	if strings.TrimSpace(in.Reason) == "" {
		return nil, &ValidationError{Msg: "reason is required"}
	}

	model, err := stockModel(in.ProductType)
	if err != nil {
		return nil, err
	}

	var movement *models.StockMovement
	err = db.Transaction(func(tx *gorm.DB) error {
		row, err := readRow(tx, in.ProductType, in.ProductID)
		if err != nil {
			return err
		}

		if err := tx.Model(model).Where("id = ?", in.ProductID).
			UpdateColumn("current_stock", in.NewQuantity).Error; err != nil {
			return err
		}

		movement = &models.StockMovement{
			ProductType:   in.ProductType,
			ProductID:     in.ProductID,
			QuantityDelta: in.NewQuantity.Sub(row.CurrentStock),
			MovementType:  models.MovementAdminAdjustment,
			BranchID:      in.BranchID,
			ActorID:       in.ActorID,
			ActorName:     in.ActorName,
			Reason:        in.Reason,
		}
		return RecordMovement(tx, movement)
	})
	if err != nil {
		return nil, err
	}

	return movement, nil
}

const maxMovementLimit = 500

// RecentMovements returns the newest movement rows, optionally filtered by
// branch, for reconciliation review.
func RecentMovements(db *gorm.DB, branchID *uint, limit int) ([]models.StockMovement, error) {
	if limit <= 0 || limit > maxMovementLimit {
		limit = 100
	}

	q := db.Model(&models.StockMovement{})
	if branchID != nil {
		q = q.Where("branch_id = ?", *branchID)
	}

	var movements []models.StockMovement
	if err := q.Order("created_at DESC, id DESC").Limit(limit).Find(&movements).Error; err != nil {
		return nil, err
	}
	return movements, nil
}
