package bags

import (
	"fmt"
	"time"

	"feedmill-backend/internal/audit"
	"feedmill-backend/internal/auth"
	"feedmill-backend/internal/database"
	"feedmill-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type BagResponse struct {
	SerialNumber   string           `json:"serial_number"`
	ProductID      uint             `json:"product_id"`
	ProductName    string           `json:"product_name"`
	SKU            string           `json:"sku"`
	PackageSize    decimal.Decimal  `json:"package_size"`
	BranchID       uint             `json:"branch_id"`
	Status         models.BagStatus `json:"status"`
	ProductionDate string           `json:"production_date"`
	ExpiryDate     string           `json:"expiry_date"`
	CostPrice      decimal.Decimal  `json:"cost_price"`
	UnitPrice      decimal.Decimal  `json:"unit_price"`
}

func toBagResponse(b *models.ProductBag) BagResponse {
	return BagResponse{
		SerialNumber:   b.SerialNumber,
		ProductID:      b.ProductID,
		ProductName:    b.Product.Name,
		SKU:            b.Product.SKU,
		PackageSize:    b.PackageSize,
		BranchID:       b.BranchID,
		Status:         b.Status,
		ProductionDate: b.ProductionDate.Format("2006-01-02"),
		ExpiryDate:     b.ExpiryDate.Format("2006-01-02"),
		CostPrice:      b.CostPrice,
		UnitPrice:      b.UnitPrice,
	}
}

// GET /api/product-bags?branch_id=1&status=sealed&product_id=2
// Read-only view consumed by the transfer module and barcode printing; bag
// identity never changes after minting.
func ListBagsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		q := database.DB.Preload("Product").Model(&models.ProductBag{})

		if bidStr := c.Query("branch_id"); bidStr != "" {
			var bid uint
			if _, err := fmt.Sscan(bidStr, &bid); err == nil && bid > 0 {
				q = q.Where("branch_id = ?", bid)
			}
		}
		if status := c.Query("status"); status != "" {
			q = q.Where("status = ?", status)
		}
		if pidStr := c.Query("product_id"); pidStr != "" {
			var pid uint
			if _, err := fmt.Sscan(pidStr, &pid); err == nil && pid > 0 {
				q = q.Where("product_id = ?", pid)
			}
		}

		var bags []models.ProductBag
		if err := q.Order("serial_number ASC").Limit(1000).Find(&bags).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not list product bags")
		}

		resp := make([]BagResponse, 0, len(bags))
		for i := range bags {
			resp = append(resp, toBagResponse(&bags[i]))
		}
		return c.JSON(resp)
	}
}

// GET /api/product-bags/:serial
func GetBagHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		serial := c.Params("serial")

		var bag models.ProductBag
		if err := database.DB.Preload("Product").
			First(&bag, "serial_number = ?", serial).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Product bag not found")
		}

		return c.JSON(toBagResponse(&bag))
	}
}

// POST /api/product-bags/:serial/open
// Cuts a sealed bag open for loose per-kg sales. The bag row keeps its
// identity; weight tracking moves to the OpenedBag record.
func OpenBagHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		serial := c.Params("serial")

		userID, userName, _, err := auth.CurrentActor(c)
		if err != nil {
			return err
		}

		var opened models.OpenedBag
		err = database.DB.Transaction(func(tx *gorm.DB) error {
			var bag models.ProductBag
			if err := tx.Preload("Product").First(&bag, "serial_number = ?", serial).Error; err != nil {
				return fiber.NewError(fiber.StatusNotFound, "Product bag not found")
			}

			if bag.Status != models.BagStatusSealed {
				return fiber.NewError(fiber.StatusConflict, fmt.Sprintf("Bag is %s, only sealed bags can be opened", bag.Status))
			}

			bag.Status = models.BagStatusOpened
			if err := tx.Save(&bag).Error; err != nil {
				return err
			}

			opened = models.OpenedBag{
				ProductBagID:      bag.ID,
				OriginalWeight:    bag.PackageSize,
				CurrentWeight:     bag.PackageSize,
				SellingPricePerKg: bag.Product.SellingPricePerKg,
				OpenedByID:        userID,
				OpenedAt:          time.Now(),
			}
			return tx.Create(&opened).Error
		})
		if err != nil {
			if ferr, ok := err.(*fiber.Error); ok {
				return ferr
			}
			return fiber.NewError(fiber.StatusInternalServerError, "Could not open bag")
		}

		_ = audit.WriteLog(audit.LogOptions{
			UserID:      userID,
			UserName:    userName,
			EntityType:  "opened_bag",
			EntityID:    opened.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("Bag opened: %s", serial),
			After:       opened,
		})

		return c.Status(fiber.StatusCreated).JSON(opened)
	}
}

// GET /api/opened-bags
func ListOpenedBagsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var opened []models.OpenedBag
		if err := database.DB.Preload("ProductBag.Product").
			Order("opened_at DESC").Find(&opened).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not list opened bags")
		}
		return c.JSON(opened)
	}
}

type DeductWeightRequest struct {
	Quantity decimal.Decimal `json:"quantity"` // KG sold
}

// POST /api/opened-bags/:id/deduct
// Weight only ever goes down here; corrections upward are an administrator
// operation with a reason.
func DeductWeightHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid opened bag ID")
		}

		var body DeductWeightRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		if body.Quantity.Sign() <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "quantity must be greater than zero")
		}

		var opened models.OpenedBag
		err = database.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.First(&opened, "id = ?", id).Error; err != nil {
				return fiber.NewError(fiber.StatusNotFound, "Opened bag not found")
			}

			if body.Quantity.GreaterThan(opened.CurrentWeight) {
				return fiber.NewError(fiber.StatusBadRequest,
					fmt.Sprintf("Only %s KG left in this bag", opened.CurrentWeight))
			}

			opened.CurrentWeight = opened.CurrentWeight.Sub(body.Quantity)
			return tx.Save(&opened).Error
		})
		if err != nil {
			if ferr, ok := err.(*fiber.Error); ok {
				return ferr
			}
			return fiber.NewError(fiber.StatusInternalServerError, "Could not deduct weight")
		}

		return c.JSON(opened)
	}
}

type CorrectWeightRequest struct {
	NewWeight decimal.Decimal `json:"new_weight"`
	Reason    string          `json:"reason"`
}

// PUT /api/admin/opened-bags/:id/weight
// Administrator-only correction, the one path that may move weight upward.
func CorrectWeightHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid opened bag ID")
		}

		var body CorrectWeightRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		if body.NewWeight.Sign() < 0 {
			return fiber.NewError(fiber.StatusBadRequest, "new_weight cannot be negative")
		}
		if body.Reason == "" {
			return fiber.NewError(fiber.StatusBadRequest, "reason is required")
		}

		userID, userName, _, err := auth.CurrentActor(c)
		if err != nil {
			return err
		}

		var opened models.OpenedBag
		if err := database.DB.First(&opened, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Opened bag not found")
		}

		before := opened

		if body.NewWeight.GreaterThan(opened.OriginalWeight) {
			return fiber.NewError(fiber.StatusBadRequest, "new_weight cannot exceed the original bag weight")
		}

		opened.CurrentWeight = body.NewWeight
		if err := database.DB.Save(&opened).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not correct weight")
		}

		_ = audit.WriteLog(audit.LogOptions{
			UserID:      userID,
			UserName:    userName,
			EntityType:  "opened_bag",
			EntityID:    opened.ID,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("Opened bag weight corrected: %s", body.Reason),
			Before:      before,
			After:       opened,
		})

		return c.JSON(opened)
	}
}
