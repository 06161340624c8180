package formula

import (
	"errors"
	"fmt"
	"strings"

	"feedmill-backend/internal/audit"
	"feedmill-backend/internal/auth"
	"feedmill-backend/internal/database"
	"feedmill-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type IngredientRequest struct {
	RawMaterialID uint            `json:"raw_material_id"`
	Quantity      decimal.Decimal `json:"quantity"`
	Unit          string          `json:"unit"`
}

type CreateFormulaRequest struct {
	Name        string              `json:"name"`
	ProductID   uint                `json:"product_id"`
	TargetYield decimal.Decimal     `json:"target_yield"`
	YieldUnit   string              `json:"yield_unit"`
	Ingredients []IngredientRequest `json:"ingredients"`
}

type UpdateFormulaRequest struct {
	Name        *string             `json:"name"`
	TargetYield *decimal.Decimal    `json:"target_yield"`
	YieldUnit   *string             `json:"yield_unit"`
	Status      *string             `json:"status"`
	Ingredients []IngredientRequest `json:"ingredients"`
}

type IngredientResponse struct {
	ID            uint            `json:"id"`
	RawMaterialID uint            `json:"raw_material_id"`
	Name          string          `json:"name"`
	Quantity      decimal.Decimal `json:"quantity"`
	Unit          string          `json:"unit"`
}

type FormulaResponse struct {
	ID               uint                 `json:"id"`
	Name             string               `json:"name"`
	ProductID        uint                 `json:"product_id"`
	ProductName      string               `json:"product_name"`
	TargetYield      decimal.Decimal      `json:"target_yield"`
	YieldUnit        string               `json:"yield_unit"`
	Status           models.FormulaStatus `json:"status"`
	CostPerYieldUnit decimal.Decimal      `json:"cost_per_yield_unit"`
	Ingredients      []IngredientResponse `json:"ingredients"`
	CreatedAt        string               `json:"created_at"`
}

func validateIngredients(ings []IngredientRequest) error {
	if len(ings) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "A formula needs at least one ingredient")
	}
	for _, ing := range ings {
		if ing.RawMaterialID == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "raw_material_id is required for every ingredient")
		}
		if ing.Quantity.Sign() <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Ingredient quantities must be greater than zero")
		}
		var rm models.RawMaterial
		if err := database.DB.First(&rm, "id = ?", ing.RawMaterialID).Error; err != nil {
			return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("Raw material not found (ID: %d)", ing.RawMaterialID))
		}
	}
	return nil
}

// referencedByBatch reports whether any non-cancelled batch uses the formula.
// Such formulas are frozen; edits only apply to formulas not yet produced.
func referencedByBatch(formulaID uint) bool {
	var count int64
	database.DB.Model(&models.ProductionBatch{}).
		Where("formula_id = ? AND status <> ?", formulaID, models.BatchStatusCancelled).
		Count(&count)
	return count > 0
}

func toResponse(f *models.Formula) FormulaResponse {
	cost, _ := CostPerYieldUnit(database.DB, f.ID)

	ings := make([]IngredientResponse, 0, len(f.Ingredients))
	for _, ing := range f.Ingredients {
		ings = append(ings, IngredientResponse{
			ID:            ing.ID,
			RawMaterialID: ing.RawMaterialID,
			Name:          ing.RawMaterial.Name,
			Quantity:      ing.Quantity,
			Unit:          ing.Unit,
		})
	}

	return FormulaResponse{
		ID:               f.ID,
		Name:             f.Name,
		ProductID:        f.ProductID,
		ProductName:      f.Product.Name,
		TargetYield:      f.TargetYield,
		YieldUnit:        f.YieldUnit,
		Status:           f.Status,
		CostPerYieldUnit: cost,
		Ingredients:      ings,
		CreatedAt:        f.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

// POST /api/formulas
func CreateFormulaHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateFormulaRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		body.Name = strings.TrimSpace(body.Name)
		if body.Name == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Formula name is required")
		}
		if body.TargetYield.Sign() <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "target_yield must be greater than zero")
		}

		var product models.Product
		if err := database.DB.First(&product, "id = ?", body.ProductID).Error; err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Product not found")
		}

		if err := validateIngredients(body.Ingredients); err != nil {
			return err
		}

		userID, userName, branchID, err := auth.CurrentActor(c)
		if err != nil {
			return err
		}

		f := models.Formula{
			Name:        body.Name,
			ProductID:   body.ProductID,
			TargetYield: body.TargetYield,
			YieldUnit:   body.YieldUnit,
			Status:      models.FormulaStatusActive,
			CreatedByID: userID,
		}
		for i, ing := range body.Ingredients {
			f.Ingredients = append(f.Ingredients, models.FormulaIngredient{
				RawMaterialID: ing.RawMaterialID,
				Quantity:      ing.Quantity,
				Unit:          ing.Unit,
				Position:      i,
			})
		}

		if err := database.DB.Create(&f).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not create formula")
		}

		_ = audit.WriteLog(audit.LogOptions{
			BranchID:    branchID,
			UserID:      userID,
			UserName:    userName,
			EntityType:  "formula",
			EntityID:    f.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("Formula created: %s (%s %s)", f.Name, f.TargetYield, f.YieldUnit),
			Before:      nil,
			After:       f,
		})

		var created models.Formula
		database.DB.Preload("Product").Preload("Ingredients.RawMaterial").First(&created, f.ID)
		return c.Status(fiber.StatusCreated).JSON(toResponse(&created))
	}
}

// PUT /api/formulas/:id
func UpdateFormulaHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid formula ID")
		}

		var f models.Formula
		if err := database.DB.Preload("Ingredients").First(&f, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Formula not found")
		}

		var body UpdateFormulaRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		// Status toggles stay allowed on frozen formulas; recipe edits do not.
		recipeEdit := body.Name != nil || body.TargetYield != nil || body.YieldUnit != nil || body.Ingredients != nil
		if recipeEdit && referencedByBatch(f.ID) {
			return fiber.NewError(fiber.StatusConflict, "Formula is already used by a production batch; create a new formula instead")
		}

		before := f

		if body.Name != nil {
			name := strings.TrimSpace(*body.Name)
			if name == "" {
				return fiber.NewError(fiber.StatusBadRequest, "Formula name cannot be empty")
			}
			f.Name = name
		}
		if body.TargetYield != nil {
			if body.TargetYield.Sign() <= 0 {
				return fiber.NewError(fiber.StatusBadRequest, "target_yield must be greater than zero")
			}
			f.TargetYield = *body.TargetYield
		}
		if body.YieldUnit != nil {
			f.YieldUnit = *body.YieldUnit
		}
		if body.Status != nil {
			switch models.FormulaStatus(*body.Status) {
			case models.FormulaStatusActive, models.FormulaStatusInactive:
				f.Status = models.FormulaStatus(*body.Status)
			default:
				return fiber.NewError(fiber.StatusBadRequest, "status must be 'active' or 'inactive'")
			}
		}

		if body.Ingredients != nil {
			if err := validateIngredients(body.Ingredients); err != nil {
				return err
			}
		}

		err = database.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Save(&f).Error; err != nil {
				return err
			}
			if body.Ingredients != nil {
				if err := tx.Where("formula_id = ?", f.ID).Delete(&models.FormulaIngredient{}).Error; err != nil {
					return err
				}
				for i, ing := range body.Ingredients {
					row := models.FormulaIngredient{
						FormulaID:     f.ID,
						RawMaterialID: ing.RawMaterialID,
						Quantity:      ing.Quantity,
						Unit:          ing.Unit,
						Position:      i,
					}
					if err := tx.Create(&row).Error; err != nil {
						return err
					}
				}
			}
			return nil
		})
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not update formula")
		}

		userID, userName, branchID, actorErr := auth.CurrentActor(c)
		if actorErr == nil {
			_ = audit.WriteLog(audit.LogOptions{
				BranchID:    branchID,
				UserID:      userID,
				UserName:    userName,
				EntityType:  "formula",
				EntityID:    f.ID,
				Action:      models.AuditActionUpdate,
				Description: fmt.Sprintf("Formula updated: %s", f.Name),
				Before:      before,
				After:       f,
			})
		}

		var updated models.Formula
		database.DB.Preload("Product").Preload("Ingredients.RawMaterial").First(&updated, f.ID)
		return c.JSON(toResponse(&updated))
	}
}

// GET /api/formulas?status=active
func ListFormulasHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		q := database.DB.Preload("Product").Preload("Ingredients", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC, id ASC")
		}).Preload("Ingredients.RawMaterial")

		if status := c.Query("status"); status != "" {
			q = q.Where("status = ?", status)
		}

		var formulas []models.Formula
		if err := q.Order("name ASC").Find(&formulas).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not list formulas")
		}

		resp := make([]FormulaResponse, 0, len(formulas))
		for i := range formulas {
			resp = append(resp, toResponse(&formulas[i]))
		}
		return c.JSON(resp)
	}
}

// GET /api/formulas/:id
func GetFormulaHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid formula ID")
		}

		var f models.Formula
		if err := database.DB.Preload("Product").Preload("Ingredients", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC, id ASC")
		}).Preload("Ingredients.RawMaterial").First(&f, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Formula not found")
		}

		return c.JSON(toResponse(&f))
	}
}

// GET /api/formulas/:id/availability?batch_size=2
func CheckAvailabilityHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid formula ID")
		}

		batchSize := c.QueryInt("batch_size", 1)

		report, err := CheckAvailability(database.DB, uint(id), batchSize)
		if err != nil {
			switch {
			case errors.Is(err, ErrInvalidBatchSize):
				return fiber.NewError(fiber.StatusBadRequest, "batch_size must be at least 1")
			case errors.Is(err, ErrFormulaNotFound):
				return fiber.NewError(fiber.StatusNotFound, "Formula not found")
			default:
				return fiber.NewError(fiber.StatusInternalServerError, "Availability check failed")
			}
		}

		return c.JSON(report)
	}
}
