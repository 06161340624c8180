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

type CreateProductRequest struct {
	Name              string          `json:"name"`
	SKU               string          `json:"sku"`
	Unit              string          `json:"unit"`
	ShelfLifeDays     int             `json:"shelf_life_days"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	SellingPricePerKg decimal.Decimal `json:"selling_price_per_kg"`
}

type UpdateProductRequest struct {
	Name              *string          `json:"name"`
	SKU               *string          `json:"sku"`
	Unit              *string          `json:"unit"`
	ShelfLifeDays     *int             `json:"shelf_life_days"`
	UnitPrice         *decimal.Decimal `json:"unit_price"`
	SellingPricePerKg *decimal.Decimal `json:"selling_price_per_kg"`
}

// POST /api/products
// Finished-goods master. Bags reference a product and snapshot its prices at
// completion time, so later edits here only affect future batches.
func CreateProductHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateProductRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		body.Name = strings.TrimSpace(body.Name)
		body.SKU = strings.TrimSpace(strings.ToUpper(body.SKU))
		if body.Name == "" || body.SKU == "" || body.Unit == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Name, SKU and unit are required")
		}
		if body.ShelfLifeDays <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "shelf_life_days must be greater than zero")
		}

		product := models.Product{
			Name:              body.Name,
			SKU:               body.SKU,
			Unit:              body.Unit,
			ShelfLifeDays:     body.ShelfLifeDays,
			UnitPrice:         body.UnitPrice,
			SellingPricePerKg: body.SellingPricePerKg,
		}

		if err := database.DB.Create(&product).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not create product")
		}

		userID, userName, branchID, actorErr := auth.CurrentActor(c)
		if actorErr == nil {
			_ = audit.WriteLog(audit.LogOptions{
				BranchID:    branchID,
				UserID:      userID,
				UserName:    userName,
				EntityType:  "product",
				EntityID:    product.ID,
				Action:      models.AuditActionCreate,
				Description: fmt.Sprintf("Product created: %s (%s)", product.Name, product.SKU),
				After:       product,
			})
		}

		return c.Status(fiber.StatusCreated).JSON(product)
	}
}

// PUT /api/products/:id
func UpdateProductHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid product ID")
		}

		var product models.Product
		if err := database.DB.First(&product, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Product not found")
		}

		var body UpdateProductRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		before := product

		if body.Name != nil {
			name := strings.TrimSpace(*body.Name)
			if name == "" {
				return fiber.NewError(fiber.StatusBadRequest, "Name cannot be empty")
			}
			product.Name = name
		}
		if body.SKU != nil {
			sku := strings.TrimSpace(strings.ToUpper(*body.SKU))
			if sku == "" {
				return fiber.NewError(fiber.StatusBadRequest, "SKU cannot be empty")
			}
			product.SKU = sku
		}
		if body.Unit != nil {
			product.Unit = *body.Unit
		}
		if body.ShelfLifeDays != nil {
			if *body.ShelfLifeDays <= 0 {
				return fiber.NewError(fiber.StatusBadRequest, "shelf_life_days must be greater than zero")
			}
			product.ShelfLifeDays = *body.ShelfLifeDays
		}
		if body.UnitPrice != nil {
			product.UnitPrice = *body.UnitPrice
		}
		if body.SellingPricePerKg != nil {
			product.SellingPricePerKg = *body.SellingPricePerKg
		}

		if err := database.DB.Save(&product).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not update product")
		}

		userID, userName, branchID, actorErr := auth.CurrentActor(c)
		if actorErr == nil {
			_ = audit.WriteLog(audit.LogOptions{
				BranchID:    branchID,
				UserID:      userID,
				UserName:    userName,
				EntityType:  "product",
				EntityID:    product.ID,
				Action:      models.AuditActionUpdate,
				Description: fmt.Sprintf("Product updated: %s", product.Name),
				Before:      before,
				After:       product,
			})
		}

		return c.JSON(product)
	}
}

// GET /api/products
func ListProductsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var products []models.Product
		if err := database.DB.Order("name ASC").Find(&products).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not list products")
		}
		return c.JSON(products)
	}
}
