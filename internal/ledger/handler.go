package ledger

import (
	"errors"
	"fmt"

	"feedmill-backend/internal/auth"
	"feedmill-backend/internal/database"
	"feedmill-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type AdjustStockRequest struct {
	ProductType models.StockProductType `json:"product_type"`
	ProductID   uint                    `json:"product_id"`
	NewQuantity decimal.Decimal         `json:"new_quantity"`
	Reason      string                  `json:"reason"`
	BranchID    *uint                   `json:"branch_id"`
}

// POST /api/admin/stock-adjustments
// Administrator-only out-of-band stock correction. Production never goes
// through here; this is for variance found during physical counts.
func AdjustStockHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body AdjustStockRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		if body.ProductID == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "product_id is required")
		}

		branchID, err := auth.ResolveBranchID(c, body.BranchID)
		if err != nil {
			return err
		}

		actorID, actorName, _, err := auth.CurrentActor(c)
		if err != nil {
			return err
		}

		movement, err := Adjust(database.DB, AdjustInput{
			ProductType: body.ProductType,
			ProductID:   body.ProductID,
			NewQuantity: body.NewQuantity,
			Reason:      body.Reason,
			ActorID:     actorID,
			ActorName:   actorName,
			BranchID:    branchID,
		})
		if err != nil {
			var verr *ValidationError
			switch {
			case errors.As(err, &verr):
				return fiber.NewError(fiber.StatusBadRequest, verr.Msg)
			case errors.Is(err, ErrItemNotFound):
				return fiber.NewError(fiber.StatusNotFound, "Stock item not found")
			default:
				return fiber.NewError(fiber.StatusInternalServerError, "Adjustment failed")
			}
		}

		return c.Status(fiber.StatusCreated).JSON(movement)
	}
}

// GET /api/stock-movements?branch_id=1&limit=50
func ListMovementsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var branchID *uint
		if bidStr := c.Query("branch_id"); bidStr != "" {
			var bid uint
			if _, err := fmt.Sscan(bidStr, &bid); err == nil && bid > 0 {
				branchID = &bid
			}
		}

		limit := c.QueryInt("limit", 100)

		movements, err := RecentMovements(database.DB, branchID, limit)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not list stock movements")
		}

		return c.JSON(movements)
	}
}
