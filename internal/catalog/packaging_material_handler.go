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

type CreatePackagingMaterialRequest struct {
	Name         string           `json:"name"`
	Unit         string           `json:"unit"`
	OpeningStock *decimal.Decimal `json:"opening_stock"`
	MinimumStock decimal.Decimal  `json:"minimum_stock"`
	CostPrice    decimal.Decimal  `json:"cost_price"`
	BranchID     *uint            `json:"branch_id"`
}

type UpdatePackagingMaterialRequest struct {
	Name         *string          `json:"name"`
	Unit         *string          `json:"unit"`
	MinimumStock *decimal.Decimal `json:"minimum_stock"`
	CostPrice    *decimal.Decimal `json:"cost_price"`
}

// POST /api/packaging-materials
func CreatePackagingMaterialHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreatePackagingMaterialRequest
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

		pm := models.PackagingMaterial{
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
			pm.CurrentStock = *body.OpeningStock
		}

		if err := database.DB.Create(&pm).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not create packaging material")
		}

		userID, userName, _, actorErr := auth.CurrentActor(c)
		if actorErr == nil {
			_ = audit.WriteLog(audit.LogOptions{
				BranchID:    &branchID,
				UserID:      userID,
				UserName:    userName,
				EntityType:  "packaging_material",
				EntityID:    pm.ID,
				Action:      models.AuditActionCreate,
				Description: fmt.Sprintf("Packaging material created: %s", pm.Name),
				After:       pm,
			})
		}

		return c.Status(fiber.StatusCreated).JSON(pm)
	}
}

// PUT /api/packaging-materials/:id
func UpdatePackagingMaterialHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid packaging material ID")
		}

		var pm models.PackagingMaterial
		if err := database.DB.First(&pm, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Packaging material not found")
		}

		var body UpdatePackagingMaterialRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		before := pm

		if body.Name != nil {
			name := strings.TrimSpace(*body.Name)
			if name == "" {
				return fiber.NewError(fiber.StatusBadRequest, "Name cannot be empty")
			}
			pm.Name = name
		}
		if body.Unit != nil {
			pm.Unit = *body.Unit
		}
		if body.MinimumStock != nil {
			pm.MinimumStock = *body.MinimumStock
		}
		if body.CostPrice != nil {
			if body.CostPrice.Sign() < 0 {
				return fiber.NewError(fiber.StatusBadRequest, "cost_price cannot be negative")
			}
			pm.CostPrice = *body.CostPrice
		}

		if err := database.DB.Save(&pm).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not update packaging material")
		}

		userID, userName, _, actorErr := auth.CurrentActor(c)
		if actorErr == nil {
			_ = audit.WriteLog(audit.LogOptions{
				BranchID:    &pm.BranchID,
				UserID:      userID,
				UserName:    userName,
				EntityType:  "packaging_material",
				EntityID:    pm.ID,
				Action:      models.AuditActionUpdate,
				Description: fmt.Sprintf("Packaging material updated: %s", pm.Name),
				Before:      before,
				After:       pm,
			})
		}

		return c.JSON(pm)
	}
}

// GET /api/packaging-materials?branch_id=1&low_stock=true
func ListPackagingMaterialsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		q := database.DB.Model(&models.PackagingMaterial{})

		if bidStr := c.Query("branch_id"); bidStr != "" {
			var bid uint
			if _, err := fmt.Sscan(bidStr, &bid); err == nil && bid > 0 {
				q = q.Where("branch_id = ?", bid)
			}
		}
		if c.QueryBool("low_stock", false) {
			q = q.Where("current_stock < minimum_stock")
		}

		var materials []models.PackagingMaterial
		if err := q.Order("name ASC").Find(&materials).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not list packaging materials")
		}
		return c.JSON(materials)
	}
}

// DELETE /api/packaging-materials/:id
func DeletePackagingMaterialHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid packaging material ID")
		}

		var pm models.PackagingMaterial
		if err := database.DB.First(&pm, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Packaging material not found")
		}

		var refCount int64
		database.DB.Model(&models.BatchProduct{}).Where("packaging_material_id = ?", pm.ID).Count(&refCount)
		if refCount > 0 {
			return fiber.NewError(fiber.StatusConflict, "Packaging material was used in production and cannot be deleted")
		}

		if err := database.DB.Delete(&pm).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not delete packaging material")
		}

		userID, userName, _, actorErr := auth.CurrentActor(c)
		if actorErr == nil {
			_ = audit.WriteLog(audit.LogOptions{
				BranchID:    &pm.BranchID,
				UserID:      userID,
				UserName:    userName,
				EntityType:  "packaging_material",
				EntityID:    pm.ID,
				Action:      models.AuditActionDelete,
				Description: fmt.Sprintf("Packaging material deleted: %s", pm.Name),
				Before:      pm,
			})
		}

		return c.SendStatus(fiber.StatusNoContent)
	}
}
