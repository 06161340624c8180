package formula

import (
	"errors"

	"feedmill-backend/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrFormulaNotFound  = errors.New("formula not found")
	ErrInvalidBatchSize = errors.New("batch size must be at least 1")
)

// lowStockFactor flags ingredients whose stock is under 1.5x the requirement.
// An early warning only; it never blocks production.
var lowStockFactor = decimal.NewFromFloat(1.5)

type IngredientAvailability struct {
	RawMaterialID uint            `json:"raw_material_id"`
	Name          string          `json:"name"`
	Unit          string          `json:"unit"`
	Required      decimal.Decimal `json:"required"`
	Available     decimal.Decimal `json:"available"`
	Shortage      decimal.Decimal `json:"shortage"`
	LowStock      bool            `json:"low_stock"`
}

type AvailabilityReport struct {
	FormulaID   uint                     `json:"formula_id"`
	FormulaName string                   `json:"formula_name"`
	BatchSize   int                      `json:"batch_size"`
	TotalYield  decimal.Decimal          `json:"total_yield"`
	Available   bool                     `json:"available"`
	Ingredients []IngredientAvailability `json:"ingredients"`
}

// CheckAvailability scales the formula's ingredient requirements by batchSize
// and compares them against current stock. It is strictly read-only, so
// operators can try different batch sizes back to back. The result is only
// advisory; completion re-checks stock under its own transaction.
func CheckAvailability(db *gorm.DB, formulaID uint, batchSize int) (*AvailabilityReport, error) {
	if batchSize < 1 {
		return nil, ErrInvalidBatchSize
	}

	var f models.Formula
	if err := db.Preload("Ingredients", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC, id ASC")
	}).Preload("Ingredients.RawMaterial").First(&f, "id = ?", formulaID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFormulaNotFound
		}
		return nil, err
	}

	size := decimal.NewFromInt(int64(batchSize))
	report := &AvailabilityReport{
		FormulaID:   f.ID,
		FormulaName: f.Name,
		BatchSize:   batchSize,
		TotalYield:  f.TargetYield.Mul(size),
		Available:   true,
		Ingredients: make([]IngredientAvailability, 0, len(f.Ingredients)),
	}

	for _, ing := range f.Ingredients {
		required := ing.Quantity.Mul(size)
		available := ing.RawMaterial.CurrentStock

		shortage := required.Sub(available)
		if shortage.Sign() < 0 {
			shortage = decimal.Zero
		}
		if shortage.Sign() > 0 {
			report.Available = false
		}

		report.Ingredients = append(report.Ingredients, IngredientAvailability{
			RawMaterialID: ing.RawMaterialID,
			Name:          ing.RawMaterial.Name,
			Unit:          ing.Unit,
			Required:      required,
			Available:     available,
			Shortage:      shortage,
			LowStock:      available.LessThan(required.Mul(lowStockFactor)),
		})
	}

	return report, nil
}

// CostPerYieldUnit prices one yield unit of the formula at current raw
// material prices. Completed batches snapshot their own costs instead of
// calling this, so price edits never rewrite history.
func CostPerYieldUnit(db *gorm.DB, formulaID uint) (decimal.Decimal, error) {
	var f models.Formula
	if err := db.Preload("Ingredients.RawMaterial").First(&f, "id = ?", formulaID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, ErrFormulaNotFound
		}
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, ing := range f.Ingredients {
		total = total.Add(ing.Quantity.Mul(ing.RawMaterial.CostPrice))
	}

	if f.TargetYield.Sign() <= 0 {
		return decimal.Zero, nil
	}
	return total.DivRound(f.TargetYield, 2), nil
}
