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

type CreateThirdPartyProductRequest struct {
	Name         string           `json:"name"`
	Unit         string           `json:"unit"`
	OpeningStock *decimal.Decimal `json:"opening_stock"`
	MinimumStock decimal.Decimal  `json:"minimum_stock"`
	CostPrice    decimal.Decimal  `json:"cost_price"`
	BranchID     *uint            `json:"branch_id"`
}

type UpdateThirdPartyProductRequest struct {
	Name         *string          `json:"name"`
	Unit         *string          `json:"unit"`
	MinimumStock *decimal.Decimal `json:"minimum_stock"`
	CostPrice    *decimal.Decimal `json:"cost_price"`
}

// POST /api/third-party-products
func CreateThirdPartyProductHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateThirdPartyProductRequest
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

		tp := models.ThirdPartyProduct{
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
			tp.CurrentStock = *body.OpeningStock
		}

		if err := database.DB.Create(&tp).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not create third-party product")
		}

		userID, userName, _, actorErr := auth.CurrentActor(c)
		if actorErr == nil {
			_ = audit.WriteLog(audit.LogOptions{
				BranchID:    &branchID,
				UserID:      userID,
				UserName:    userName,
				EntityType:  "third_party_product",
				EntityID:    tp.ID,
				Action:      models.AuditActionCreate,
				Description: fmt.Sprintf("Third-party product created: %s", tp.Name),
				After:       tp,
			})
		}

		return c.Status(fiber.StatusCreated).JSON(tp)
	}
}

// PUT /api/third-party-products/:id
func UpdateThirdPartyProductHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid third-party product ID")
		}

		var tp models.ThirdPartyProduct
		if err := database.DB.First(&tp, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Third-party product not found")
		}

		var body UpdateThirdPartyProductRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		before := tp

		if body.Name != nil {
			name := strings.TrimSpace(*body.Name)
			if name == "" {
				return fiber.NewError(fiber.StatusBadRequest, "Name cannot be empty")
			}
			tp.Name = name
		}
		if body.Unit != nil {
			tp.Unit = *body.Unit
		}
		if body.MinimumStock != nil {
			tp.MinimumStock = *body.MinimumStock
		}
		if body.CostPrice != nil {
			if body.CostPrice.Sign() < 0 {
				return fiber.NewError(fiber.StatusBadRequest, "cost_price cannot be negative")
			}
			tp.CostPrice = *body.CostPrice
		}

		if err := database.DB.Save(&tp).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not update third-party product")
		}

		userID, userName, _, actorErr := auth.CurrentActor(c)
		if actorErr == nil {
			_ = audit.WriteLog(audit.LogOptions{
				BranchID:    &tp.BranchID,
				UserID:      userID,
				UserName:    userName,
				EntityType:  "third_party_product",
				EntityID:    tp.ID,
				Action:      models.AuditActionUpdate,
				Description: fmt.Sprintf("Third-party product updated: %s", tp.Name),
				Before:      before,
				After:       tp,
			})
		}

		return c.JSON(tp)
	}
}

// GET /api/third-party-products?branch_id=1&low_stock=true
func ListThirdPartyProductsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		q := database.DB.Model(&models.ThirdPartyProduct{})

		if bidStr := c.Query("branch_id"); bidStr != "" {
			var bid uint
			if _, err := fmt.Sscan(bidStr, &bid); err == nil && bid > 0 {
				q = q.Where("branch_id = ?", bid)
			}
		}
		if c.QueryBool("low_stock", false) {
			q = q.Where("current_stock < minimum_stock")
		}

		var products []models.ThirdPartyProduct
		if err := q.Order("name ASC").Find(&products).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not list third-party products")
		}
		return c.JSON(products)
	}
}
