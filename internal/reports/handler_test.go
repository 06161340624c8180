package reports

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"feedmill-backend/internal/auth"
	"feedmill-backend/internal/database"
	"feedmill-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	database.DB = db

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if e, ok := err.(*fiber.Error); ok {
				return c.Status(e.Code).JSON(fiber.Map{"error": e.Message})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})
	app.Use(func(c *fiber.Ctx) error {
		branch := uint(1)
		c.Locals(auth.CtxUserRoleKey, models.RoleSupervisor)
		c.Locals(auth.CtxBranchIDKey, &branch)
		return c.Next()
	})
	app.Get("/reports/production/monthly", MonthlyProductionSummaryHandler())
	app.Get("/reports/stock-usage", StockUsageHandler())
	return app, db
}

func seedBatch(t *testing.T, db *gorm.DB, seq int, status models.BatchStatus, actual, wastage, cost string) *models.ProductionBatch {
	t.Helper()
	b := models.ProductionBatch{
		BatchNumber:    fmt.Sprintf("PB-20260810-%04d", seq),
		BatchDate:      "20260810",
		DailySequence:  seq,
		BranchID:       1,
		FormulaID:      1,
		BatchSize:      1,
		ExpectedYield:  decimal.RequireFromString("140"),
		ActualYield:    decimal.RequireFromString(actual),
		Wastage:        decimal.RequireFromString(wastage),
		Status:         status,
		OfficerID:      1,
		SupervisorID:   1,
		ProductionCost: decimal.RequireFromString(cost),
	}
	if err := db.Create(&b).Error; err != nil {
		t.Fatalf("seed batch: %v", err)
	}
	return &b
}

func TestMonthlyProductionSummary(t *testing.T) {
	app, db := setupApp(t)

	b1 := seedBatch(t, db, 1, models.BatchStatusCompleted, "135", "3.57", "128")
	seedBatch(t, db, 2, models.BatchStatusCompleted, "140", "0", "130")
	seedBatch(t, db, 3, models.BatchStatusCancelled, "0", "0", "0")
	seedBatch(t, db, 4, models.BatchStatusInProgress, "0", "0", "0")

	now := time.Now()
	for i := 0; i < 5; i++ {
		bag := models.ProductBag{
			SerialNumber:      fmt.Sprintf("FML-202608100001-%03d", i+1),
			ProductID:         1,
			ProductionBatchID: b1.ID,
			BranchID:          1,
			PackageSize:       decimal.RequireFromString("5"),
			ProductionDate:    now,
			ExpiryDate:        now.AddDate(0, 0, 180),
			Status:            models.BagStatusSealed,
			CostPrice:         decimal.RequireFromString("4.74"),
			UnitPrice:         decimal.RequireFromString("9.50"),
		}
		if err := db.Create(&bag).Error; err != nil {
			t.Fatalf("seed bag: %v", err)
		}
	}

	req, _ := http.NewRequest(http.MethodGet, "/reports/production/monthly?year=2026&month=8", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body MonthlyProductionSummaryResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Batches.Completed != 2 || body.Batches.Cancelled != 1 || body.Batches.InFlight != 1 {
		t.Fatalf("batches = %+v", body.Batches)
	}
	if !body.ActualYield.Equal(decimal.RequireFromString("275")) {
		t.Fatalf("actual yield = %s, want 275", body.ActualYield)
	}
	if !body.ProductionCost.Equal(decimal.RequireFromString("258")) {
		t.Fatalf("production cost = %s, want 258", body.ProductionCost)
	}
	if body.BagsProduced != 5 {
		t.Fatalf("bags = %d, want 5", body.BagsProduced)
	}

	// A month with no production reports zeros, not an error.
	req, _ = http.NewRequest(http.MethodGet, "/reports/production/monthly?year=2026&month=7", nil)
	resp, err = app.Test(req, -1)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Batches.Completed != 0 || body.BagsProduced != 0 {
		t.Fatalf("empty month: %+v", body)
	}
}

func TestStockUsage(t *testing.T) {
	app, db := setupApp(t)

	maize := models.RawMaterial{BranchID: 1, Name: "Maize", Unit: "KG",
		CurrentStock: decimal.RequireFromString("300"), CostPrice: decimal.RequireFromString("0.80")}
	if err := db.Create(&maize).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	for _, qty := range []string{"-100", "-50"} {
		mv := models.StockMovement{
			ProductType:   models.StockProductRawMaterial,
			ProductID:     maize.ID,
			QuantityDelta: decimal.RequireFromString(qty),
			MovementType:  models.MovementProductionConsumption,
			BranchID:      1,
			ActorID:       1,
		}
		if err := db.Create(&mv).Error; err != nil {
			t.Fatalf("seed movement: %v", err)
		}
	}
	// Admin adjustments are not usage and must be excluded.
	adj := models.StockMovement{
		ProductType:   models.StockProductRawMaterial,
		ProductID:     maize.ID,
		QuantityDelta: decimal.RequireFromString("-10"),
		MovementType:  models.MovementAdminAdjustment,
		BranchID:      1,
		ActorID:       1,
	}
	if err := db.Create(&adj).Error; err != nil {
		t.Fatalf("seed adjustment: %v", err)
	}

	today := time.Now().Format("2006-01-02")
	req, _ := http.NewRequest(http.MethodGet, "/reports/stock-usage?from="+today+"&to="+today, nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body StockUsageResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(body.Items))
	}
	item := body.Items[0]
	if !item.TotalUsed.Equal(decimal.RequireFromString("150")) {
		t.Fatalf("total used = %s, want 150", item.TotalUsed)
	}
	if item.MovementRows != 2 {
		t.Fatalf("movement rows = %d, want 2", item.MovementRows)
	}
	if item.ProductName != "Maize" {
		t.Fatalf("name = %s, want Maize", item.ProductName)
	}
}
