package catalog

import (
	"fmt"
	"strings"

	"feedmill-backend/internal/audit"
	"feedmill-backend/internal/auth"
	"feedmill-backend/internal/database"
	"feedmill-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type CreateRawMaterialRequest struct {
	Name         string           `json:"name"`
	Unit         string           `json:"unit"`
	OpeningStock *decimal.Decimal `json:"opening_stock"` // only honored at creation
	MinimumStock decimal.Decimal  `json:"minimum_stock"`
	CostPrice    decimal.Decimal  `json:"cost_price"`
	BranchID     *uint            `json:"branch_id"`
}

type UpdateRawMaterialRequest struct {
	Name         *string          `json:"name"`
	Unit         *string          `json:"unit"`
	MinimumStock *decimal.Decimal `json:"minimum_stock"`
	CostPrice    *decimal.Decimal `json:"cost_price"`
}

type RawMaterialResponse struct {
	ID           uint            `json:"id"`
	BranchID     uint            `json:"branch_id"`
	Name         string          `json:"name"`
	Unit         string          `json:"unit"`
	CurrentStock decimal.Decimal `json:"current_stock"`
	MinimumStock decimal.Decimal `json:"minimum_stock"`
	CostPrice    decimal.Decimal `json:"cost_price"`
	LowStock     bool            `json:"low_stock"`
	CreatedAt    string          `json:"created_at"`
}

func toRawMaterialResponse(rm *models.RawMaterial) RawMaterialResponse {
	return RawMaterialResponse{
		ID:           rm.ID,
		BranchID:     rm.BranchID,
		Name:         rm.Name,
		Unit:         rm.Unit,
		CurrentStock: rm.CurrentStock,
		MinimumStock: rm.MinimumStock,
		CostPrice:    rm.CostPrice,
		LowStock:     rm.CurrentStock.LessThan(rm.MinimumStock),
		CreatedAt:    rm.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

// POST /api/raw-materials
// OpeningStock seeds current_stock once; afterwards the column belongs to the
// ledger and cannot be edited here.
func CreateRawMaterialHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateRawMaterialRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		body.Name = strings.TrimSpace(body.Name)
		if body.Name == "" || body.Unit == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Name and unit are required")
		}

		branchID, err := auth.ResolveBranchID(c, body.BranchID)
		if err != nil {
			return err
		}

		var branch models.Branch
		if err := database.DB.First(&branch, "id = ?", branchID).Error; err != nil {
			return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("Branch not found (ID: %d)", branchID))
		}

		rm := models.RawMaterial{
			BranchID:     branchID,
			Name:         body.Name,
			Unit:         body.Unit,
			MinimumStock: body.MinimumStock,
			CostPrice:    body.CostPrice,
		}
		if body.OpeningStock != nil {
			if body.OpeningStock.Sign() < 0 {
				return fiber.NewError(fiber.StatusBadRequest, "opening_stock cannot be negative")
			}
			rm.CurrentStock = *body.OpeningStock
		}

		if err := database.DB.Create(&rm).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not create raw material")
		}

		userID, userName, _, actorErr := auth.CurrentActor(c)
		if actorErr == nil {
			_ = audit.WriteLog(audit.LogOptions{
				BranchID:    &branchID,
				UserID:      userID,
				UserName:    userName,
				EntityType:  "raw_material",
				EntityID:    rm.ID,
				Action:      models.AuditActionCreate,
				Description: fmt.Sprintf("Raw material created: %s", rm.Name),
				Before:      nil,
				After:       rm,
			})
		}

		return c.Status(fiber.StatusCreated).JSON(toRawMaterialResponse(&rm))
	}
}

// PUT /api/raw-materials/:id
func UpdateRawMaterialHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid raw material ID")
		}

		var rm models.RawMaterial
		if err := database.DB.First(&rm, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Raw material not found")
		}

		var body UpdateRawMaterialRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		before := rm

		if body.Name != nil {
			name := strings.TrimSpace(*body.Name)
			if name == "" {
				return fiber.NewError(fiber.StatusBadRequest, "Name cannot be empty")
			}
			rm.Name = name
		}
		if body.Unit != nil {
			rm.Unit = *body.Unit
		}
		if body.MinimumStock != nil {
			rm.MinimumStock = *body.MinimumStock
		}
		if body.CostPrice != nil {
			if body.CostPrice.Sign() < 0 {
				return fiber.NewError(fiber.StatusBadRequest, "cost_price cannot be negative")
			}
			rm.CostPrice = *body.CostPrice
		}

		if err := database.DB.Save(&rm).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not update raw material")
		}

		userID, userName, _, actorErr := auth.CurrentActor(c)
		if actorErr == nil {
			_ = audit.WriteLog(audit.LogOptions{
				BranchID:    &rm.BranchID,
				UserID:      userID,
				UserName:    userName,
				EntityType:  "raw_material",
				EntityID:    rm.ID,
				Action:      models.AuditActionUpdate,
				Description: fmt.Sprintf("Raw material updated: %s", rm.Name),
				Before:      before,
				After:       rm,
			})
		}

		return c.JSON(toRawMaterialResponse(&rm))
	}
}

// GET /api/raw-materials?branch_id=1&low_stock=true
func ListRawMaterialsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		q := database.DB.Model(&models.RawMaterial{})

		if bidStr := c.Query("branch_id"); bidStr != "" {
			var bid uint
			if _, err := fmt.Sscan(bidStr, &bid); err == nil && bid > 0 {
				q = q.Where("branch_id = ?", bid)
			}
		}
		if c.QueryBool("low_stock", false) {
			q = q.Where("current_stock < minimum_stock")
		}

		var materials []models.RawMaterial
		if err := q.Order("name ASC").Find(&materials).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not list raw materials")
		}

		resp := make([]RawMaterialResponse, 0, len(materials))
		for i := range materials {
			resp = append(resp, toRawMaterialResponse(&materials[i]))
		}
		return c.JSON(resp)
	}
}

// DELETE /api/raw-materials/:id
func DeleteRawMaterialHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid raw material ID")
		}

		var rm models.RawMaterial
		if err := database.DB.First(&rm, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Raw material not found")
		}

		var refCount int64
		database.DB.Model(&models.FormulaIngredient{}).Where("raw_material_id = ?", rm.ID).Count(&refCount)
		if refCount > 0 {
			return fiber.NewError(fiber.StatusConflict, "Raw material is used by a formula and cannot be deleted")
		}

		if err := database.DB.Delete(&rm).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not delete raw material")
		}

		userID, userName, _, actorErr := auth.CurrentActor(c)
		if actorErr == nil {
			_ = audit.WriteLog(audit.LogOptions{
				BranchID:    &rm.BranchID,
				UserID:      userID,
				UserName:    userName,
				EntityType:  "raw_material",
				EntityID:    rm.ID,
				Action:      models.AuditActionDelete,
				Description: fmt.Sprintf("Raw material deleted: %s", rm.Name),
				Before:      rm,
				After:       nil,
			})
		}

		return c.SendStatus(fiber.StatusNoContent)
	}
}
