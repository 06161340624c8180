package formula

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"

	"feedmill-backend/internal/auth"
	"feedmill-backend/internal/database"
	"feedmill-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()

	db := openTestDB(t)
	database.DB = db

	user := models.User{Name: "Supervisor", Email: "sup@example.com", PasswordHash: "x", Role: models.RoleSupervisor}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}

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
		c.Locals(auth.CtxUserIDKey, user.ID)
		c.Locals(auth.CtxUserRoleKey, models.RoleSupervisor)
		c.Locals(auth.CtxBranchIDKey, &branch)
		return c.Next()
	})

	app.Post("/formulas", CreateFormulaHandler())
	app.Put("/formulas/:id", UpdateFormulaHandler())
	app.Get("/formulas/:id/availability", CheckAvailabilityHandler())

	return app, db
}

func putJSON(t *testing.T, app *fiber.App, path string, body interface{}) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		t.Fatalf("encode: %v", err)
	}
	req, err := http.NewRequest(http.MethodPut, path, &buf)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("PUT %s: %v", path, err)
	}
	return resp
}

func referenceBatch(t *testing.T, db *gorm.DB, formulaID uint, status models.BatchStatus) {
	t.Helper()
	batch := models.ProductionBatch{
		BatchNumber:   "PB-20260801-0001",
		BatchDate:     "20260801",
		DailySequence: 1,
		BranchID:      1,
		FormulaID:     formulaID,
		BatchSize:     1,
		ExpectedYield: decimal.RequireFromString("500"),
		Status:        status,
		OfficerID:     1,
		SupervisorID:  1,
	}
	if err := db.Create(&batch).Error; err != nil {
		t.Fatalf("seed batch: %v", err)
	}
}

func TestUpdateFormulaFrozenOnceBatched(t *testing.T) {
	app, db := setupApp(t)
	f, _, _ := seedGrowerFormula(t, db, "900", "400")
	referenceBatch(t, db, f.ID, models.BatchStatusPlanned)

	// Recipe edits are refused once any non-cancelled batch references it.
	resp := putJSON(t, app, "/formulas/1", fiber.Map{"target_yield": "550"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("recipe edit status = %d, want 409", resp.StatusCode)
	}

	var reloaded models.Formula
	db.First(&reloaded, "id = ?", f.ID)
	if !reloaded.TargetYield.Equal(decimal.RequireFromString("500")) {
		t.Fatalf("target yield = %s, want unchanged 500", reloaded.TargetYield)
	}

	// Status toggles stay allowed on frozen formulas.
	resp = putJSON(t, app, "/formulas/1", fiber.Map{"status": "inactive"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status toggle = %d, want 200", resp.StatusCode)
	}
	db.First(&reloaded, "id = ?", f.ID)
	if reloaded.Status != models.FormulaStatusInactive {
		t.Fatalf("status = %s, want inactive", reloaded.Status)
	}
}

func TestUpdateFormulaCancelledBatchDoesNotFreeze(t *testing.T) {
	app, db := setupApp(t)
	f, _, _ := seedGrowerFormula(t, db, "900", "400")
	referenceBatch(t, db, f.ID, models.BatchStatusCancelled)

	resp := putJSON(t, app, "/formulas/1", fiber.Map{"target_yield": "550"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var reloaded models.Formula
	db.First(&reloaded, "id = ?", f.ID)
	if !reloaded.TargetYield.Equal(decimal.RequireFromString("550")) {
		t.Fatalf("target yield = %s, want 550", reloaded.TargetYield)
	}
}

func TestUpdateFormulaReplacesIngredients(t *testing.T) {
	app, db := setupApp(t)
	f, maize, _ := seedGrowerFormula(t, db, "900", "400")

	resp := putJSON(t, app, "/formulas/1", fiber.Map{
		"ingredients": []fiber.Map{
			{"raw_material_id": maize.ID, "quantity": "300", "unit": "KG"},
		},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var ingredients []models.FormulaIngredient
	db.Where("formula_id = ?", f.ID).Find(&ingredients)
	if len(ingredients) != 1 {
		t.Fatalf("ingredients = %d, want 1", len(ingredients))
	}
	if !ingredients[0].Quantity.Equal(decimal.RequireFromString("300")) {
		t.Fatalf("quantity = %s, want 300", ingredients[0].Quantity)
	}
}
