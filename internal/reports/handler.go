package reports

import (
	"fmt"
	"time"

	"feedmill-backend/internal/auth"
	"feedmill-backend/internal/database"
	"feedmill-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type BatchCountBlock struct {
	Completed int64 `json:"completed"`
	Cancelled int64 `json:"cancelled"`
	InFlight  int64 `json:"in_flight"`
}

type MonthlyProductionSummaryResponse struct {
	BranchID       uint            `json:"branch_id"`
	Year           int             `json:"year"`
	Month          int             `json:"month"`
	Batches        BatchCountBlock `json:"batches"`
	ExpectedYield  decimal.Decimal `json:"expected_yield"`
	ActualYield    decimal.Decimal `json:"actual_yield"`
	AverageWastage decimal.Decimal `json:"average_wastage"`
	ProductionCost decimal.Decimal `json:"production_cost"`
	BagsProduced   int64           `json:"bags_produced"`
}

type MaterialUsageRow struct {
	ProductType  models.StockProductType `json:"product_type"`
	ProductID    uint                    `json:"product_id"`
	ProductName  string                  `json:"product_name"`
	TotalUsed    decimal.Decimal         `json:"total_used"`
	MovementRows int64                   `json:"movement_rows"`
}

type StockUsageResponse struct {
	BranchID uint               `json:"branch_id"`
	From     string             `json:"from"`
	To       string             `json:"to"`
	Items    []MaterialUsageRow `json:"items"`
}

func resolveBranchID(c *fiber.Ctx) (uint, error) {
	roleVal := c.Locals(auth.CtxUserRoleKey)
	role, ok := roleVal.(models.UserRole)
	if !ok {
		return 0, fiber.NewError(fiber.StatusForbidden, "Could not resolve user role")
	}

	if role != models.RoleAdmin {
		bVal := c.Locals(auth.CtxBranchIDKey)
		bPtr, ok := bVal.(*uint)
		if !ok || bPtr == nil {
			return 0, fiber.NewError(fiber.StatusForbidden, "User has no branch assignment")
		}
		return *bPtr, nil
	}

	bidStr := c.Query("branch_id")
	if bidStr == "" {
		return 0, fiber.NewError(fiber.StatusBadRequest, "branch_id is required")
	}
	var bid uint
	if _, err := fmt.Sscan(bidStr, &bid); err != nil || bid == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "branch_id is invalid")
	}
	return bid, nil
}

// GET /api/reports/production/monthly?year=2026&month=8[&branch_id=1]
func MonthlyProductionSummaryHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		branchID, err := resolveBranchID(c)
		if err != nil {
			return err
		}

		var year, month int
		if _, err := fmt.Sscan(c.Query("year"), &year); err != nil || year < 2000 {
			return fiber.NewError(fiber.StatusBadRequest, "year is invalid")
		}
		if _, err := fmt.Sscan(c.Query("month"), &month); err != nil || month < 1 || month > 12 {
			return fiber.NewError(fiber.StatusBadRequest, "month is invalid")
		}

		// BatchDate is stored as YYYYMMDD, so the month becomes a prefix match.
		prefix := fmt.Sprintf("%04d%02d", year, month) + "%"

		resp := MonthlyProductionSummaryResponse{
			BranchID:       branchID,
			Year:           year,
			Month:          month,
			ExpectedYield:  decimal.Zero,
			ActualYield:    decimal.Zero,
			AverageWastage: decimal.Zero,
			ProductionCost: decimal.Zero,
		}

		countByStatus := func(statuses []models.BatchStatus, out *int64) error {
			return database.DB.Model(&models.ProductionBatch{}).
				Where("branch_id = ? AND batch_date LIKE ? AND status IN ?", branchID, prefix, statuses).
				Count(out).Error
		}

		if err := countByStatus([]models.BatchStatus{models.BatchStatusCompleted}, &resp.Batches.Completed); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not count batches")
		}
		countByStatus([]models.BatchStatus{models.BatchStatusCancelled}, &resp.Batches.Cancelled)
		countByStatus([]models.BatchStatus{
			models.BatchStatusPlanned, models.BatchStatusInProgress, models.BatchStatusPaused,
		}, &resp.Batches.InFlight)

		type aggRow struct {
			ExpectedYield  decimal.Decimal `gorm:"column:expected_yield"`
			ActualYield    decimal.Decimal `gorm:"column:actual_yield"`
			AverageWastage decimal.Decimal `gorm:"column:average_wastage"`
			ProductionCost decimal.Decimal `gorm:"column:production_cost"`
		}
		var agg aggRow
		if resp.Batches.Completed > 0 {
			if err := database.DB.Model(&models.ProductionBatch{}).
				Select("COALESCE(SUM(expected_yield),0) as expected_yield, COALESCE(SUM(actual_yield),0) as actual_yield, COALESCE(AVG(wastage),0) as average_wastage, COALESCE(SUM(production_cost),0) as production_cost").
				Where("branch_id = ? AND batch_date LIKE ? AND status = ?", branchID, prefix, models.BatchStatusCompleted).
				Scan(&agg).Error; err != nil {
				return fiber.NewError(fiber.StatusInternalServerError, "Could not aggregate yields")
			}
			resp.ExpectedYield = agg.ExpectedYield
			resp.ActualYield = agg.ActualYield
			resp.AverageWastage = agg.AverageWastage.Round(2)
			resp.ProductionCost = agg.ProductionCost

			var bags int64
			database.DB.Model(&models.ProductBag{}).
				Joins("JOIN production_batches ON production_batches.id = product_bags.production_batch_id").
				Where("production_batches.branch_id = ? AND production_batches.batch_date LIKE ? AND production_batches.status = ?",
					branchID, prefix, models.BatchStatusCompleted).
				Count(&bags)
			resp.BagsProduced = bags
		}

		return c.JSON(resp)
	}
}

// GET /api/reports/stock-usage?from=2026-08-01&to=2026-08-31[&branch_id=1]
// Totals production consumption per material over the window.
func StockUsageHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		branchID, err := resolveBranchID(c)
		if err != nil {
			return err
		}

		fromStr := c.Query("from")
		toStr := c.Query("to")
		from, err := time.Parse("2006-01-02", fromStr)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "from is invalid, expected YYYY-MM-DD")
		}
		to, err := time.Parse("2006-01-02", toStr)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "to is invalid, expected YYYY-MM-DD")
		}
		if to.Before(from) {
			return fiber.NewError(fiber.StatusBadRequest, "to must not be before from")
		}
		toEnd := to.AddDate(0, 0, 1)

		type usageRow struct {
			ProductType  models.StockProductType `gorm:"column:product_type"`
			ProductID    uint                    `gorm:"column:product_id"`
			TotalUsed    decimal.Decimal         `gorm:"column:total_used"`
			MovementRows int64                   `gorm:"column:movement_rows"`
		}
		var rows []usageRow
		if err := database.DB.Model(&models.StockMovement{}).
			Select("product_type, product_id, COALESCE(SUM(-quantity_delta),0) as total_used, COUNT(*) as movement_rows").
			Where("branch_id = ? AND movement_type = ? AND created_at >= ? AND created_at < ?",
				branchID, models.MovementProductionConsumption, from, toEnd).
			Group("product_type, product_id").
			Order("product_type, product_id").
			Scan(&rows).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not aggregate stock usage")
		}

		items := make([]MaterialUsageRow, 0, len(rows))
		for _, r := range rows {
			items = append(items, MaterialUsageRow{
				ProductType:  r.ProductType,
				ProductID:    r.ProductID,
				ProductName:  lookupName(r.ProductType, r.ProductID),
				TotalUsed:    r.TotalUsed,
				MovementRows: r.MovementRows,
			})
		}

		return c.JSON(StockUsageResponse{
			BranchID: branchID,
			From:     fromStr,
			To:       toStr,
			Items:    items,
		})
	}
}

func lookupName(productType models.StockProductType, id uint) string {
	var name string
	switch productType {
	case models.StockProductRawMaterial:
		database.DB.Model(&models.RawMaterial{}).Where("id = ?", id).Pluck("name", &name)
	case models.StockProductPackagingMaterial:
		database.DB.Model(&models.PackagingMaterial{}).Where("id = ?", id).Pluck("name", &name)
	case models.StockProductThirdParty:
		database.DB.Model(&models.ThirdPartyProduct{}).Where("id = ?", id).Pluck("name", &name)
	}
	return name
}
