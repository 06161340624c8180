package bags

import (
	"bytes"
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

	user := models.User{Name: "Clerk", Email: "clerk@example.com", PasswordHash: "x", Role: models.RoleOfficer}
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
		c.Locals(auth.CtxUserRoleKey, models.RoleOfficer)
		c.Locals(auth.CtxBranchIDKey, &branch)
		return c.Next()
	})

	app.Get("/bags", ListBagsHandler())
	app.Get("/bags/:serial", GetBagHandler())
	app.Post("/bags/:serial/open", OpenBagHandler())
	app.Get("/opened-bags", ListOpenedBagsHandler())
	app.Post("/opened-bags/:id/deduct", DeductWeightHandler())
	app.Post("/opened-bags/:id/correct", CorrectWeightHandler())

	return app, db
}

func seedSealedBag(t *testing.T, db *gorm.DB, serial string) *models.ProductBag {
	t.Helper()

	product := models.Product{Name: "Layer Pellets " + serial, SKU: "LAY-" + serial, Unit: "KG",
		ShelfLifeDays: 180, SellingPricePerKg: decimal.RequireFromString("2.40")}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}

	now := time.Now()
	bag := models.ProductBag{
		SerialNumber:      serial,
		ProductID:         product.ID,
		ProductionBatchID: 1,
		BranchID:          1,
		PackageSize:       decimal.RequireFromString("25"),
		ProductionDate:    now,
		ExpiryDate:        now.AddDate(0, 0, 180),
		Status:            models.BagStatusSealed,
		CostPrice:         decimal.RequireFromString("30"),
		UnitPrice:         decimal.RequireFromString("55"),
	}
	if err := db.Create(&bag).Error; err != nil {
		t.Fatalf("seed bag: %v", err)
	}
	return &bag
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body interface{}) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, path, &buf)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func TestOpenBag(t *testing.T) {
	app, db := setupApp(t)
	bag := seedSealedBag(t, db, "FML-202601150001-001")

	resp := doJSON(t, app, http.MethodPost, "/bags/"+bag.SerialNumber+"/open", nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}

	var reloaded models.ProductBag
	db.First(&reloaded, "id = ?", bag.ID)
	if reloaded.Status != models.BagStatusOpened {
		t.Fatalf("bag status = %s, want opened", reloaded.Status)
	}

	var opened models.OpenedBag
	if err := db.First(&opened, "product_bag_id = ?", bag.ID).Error; err != nil {
		t.Fatalf("opened bag row: %v", err)
	}
	if !opened.OriginalWeight.Equal(decimal.RequireFromString("25")) {
		t.Fatalf("original weight = %s, want 25", opened.OriginalWeight)
	}
	if !opened.CurrentWeight.Equal(opened.OriginalWeight) {
		t.Fatalf("current weight = %s, want %s", opened.CurrentWeight, opened.OriginalWeight)
	}
	if !opened.SellingPricePerKg.Equal(decimal.RequireFromString("2.40")) {
		t.Fatalf("price per kg = %s, want 2.40", opened.SellingPricePerKg)
	}

	// A bag can only be opened once.
	resp = doJSON(t, app, http.MethodPost, "/bags/"+bag.SerialNumber+"/open", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("second open status = %d, want 409", resp.StatusCode)
	}
}

func TestDeductWeight(t *testing.T) {
	app, db := setupApp(t)
	bag := seedSealedBag(t, db, "FML-202601150001-002")
	doJSON(t, app, http.MethodPost, "/bags/"+bag.SerialNumber+"/open", nil)

	var opened models.OpenedBag
	db.First(&opened, "product_bag_id = ?", bag.ID)
	path := fmt.Sprintf("/opened-bags/%d/deduct", opened.ID)

	resp := doJSON(t, app, http.MethodPost, path, fiber.Map{"quantity": "4.5"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	db.First(&opened, "id = ?", opened.ID)
	if !opened.CurrentWeight.Equal(decimal.RequireFromString("20.5")) {
		t.Fatalf("weight = %s, want 20.5", opened.CurrentWeight)
	}

	// Over-draw and non-positive quantities are rejected without mutation.
	resp = doJSON(t, app, http.MethodPost, path, fiber.Map{"quantity": "21"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("overdraw status = %d, want 400", resp.StatusCode)
	}
	resp = doJSON(t, app, http.MethodPost, path, fiber.Map{"quantity": "0"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("zero status = %d, want 400", resp.StatusCode)
	}
	db.First(&opened, "id = ?", opened.ID)
	if !opened.CurrentWeight.Equal(decimal.RequireFromString("20.5")) {
		t.Fatalf("weight = %s, want 20.5 after rejections", opened.CurrentWeight)
	}
}

func TestCorrectWeight(t *testing.T) {
	app, db := setupApp(t)
	bag := seedSealedBag(t, db, "FML-202601150001-003")
	doJSON(t, app, http.MethodPost, "/bags/"+bag.SerialNumber+"/open", nil)

	var opened models.OpenedBag
	db.First(&opened, "product_bag_id = ?", bag.ID)
	path := fmt.Sprintf("/opened-bags/%d/correct", opened.ID)

	// Reason is mandatory.
	resp := doJSON(t, app, http.MethodPost, path, fiber.Map{"new_weight": "24"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing reason status = %d, want 400", resp.StatusCode)
	}

	// Corrections may move weight up but never past the original.
	resp = doJSON(t, app, http.MethodPost, path, fiber.Map{"new_weight": "26", "reason": "typo"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("over-original status = %d, want 400", resp.StatusCode)
	}
	resp = doJSON(t, app, http.MethodPost, path, fiber.Map{"new_weight": "24", "reason": "scale recalibrated"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	db.First(&opened, "id = ?", opened.ID)
	if !opened.CurrentWeight.Equal(decimal.RequireFromString("24")) {
		t.Fatalf("weight = %s, want 24", opened.CurrentWeight)
	}

	var auditRows int64
	db.Model(&models.AuditLog{}).Where("entity_type = ?", "opened_bag").Count(&auditRows)
	if auditRows == 0 {
		t.Fatal("expected audit rows for opened bag operations")
	}
}

func TestGetBagBySerial(t *testing.T) {
	app, db := setupApp(t)
	bag := seedSealedBag(t, db, "FML-202601150001-004")

	resp := doJSON(t, app, http.MethodGet, "/bags/"+bag.SerialNumber, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body BagResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.SerialNumber != bag.SerialNumber {
		t.Fatalf("serial = %s, want %s", body.SerialNumber, bag.SerialNumber)
	}
	if body.Status != models.BagStatusSealed {
		t.Fatalf("status = %s, want sealed", body.Status)
	}

	resp = doJSON(t, app, http.MethodGet, "/bags/NO-SUCH-SERIAL", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing bag status = %d, want 404", resp.StatusCode)
	}
}
