package production

import (
	"errors"
	"fmt"

	"feedmill-backend/internal/auth"
	"feedmill-backend/internal/config"
	"feedmill-backend/internal/database"
	"feedmill-backend/internal/ledger"
	"feedmill-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type CreateBatchRequest struct {
	FormulaID    uint   `json:"formula_id"`
	BatchSize    int    `json:"batch_size"`
	SupervisorID uint   `json:"supervisor_id"`
	OfficerID    *uint  `json:"officer_id"` // defaults to the caller
	BranchID     *uint  `json:"branch_id"`  // admin only; others use their own branch
	Note         string `json:"note"`
}

type PauseRequest struct {
	Reason string `json:"reason"`
}

type CancelRequest struct {
	Reason string `json:"reason"`
}

type CompleteBatchRequest struct {
	ActualYield      decimal.Decimal          `json:"actual_yield"`
	ActualQuantities map[uint]decimal.Decimal `json:"actual_quantities"` // raw_material_id -> quantity
	PackagingPlan    []PackagingPlanEntry     `json:"packaging_plan"`
	Note             string                   `json:"note"`
}

type BatchResponse struct {
	ID             uint               `json:"id"`
	BatchNumber    string             `json:"batch_number"`
	BranchID       uint               `json:"branch_id"`
	FormulaID      uint               `json:"formula_id"`
	FormulaName    string             `json:"formula_name"`
	BatchSize      int                `json:"batch_size"`
	ExpectedYield  decimal.Decimal    `json:"expected_yield"`
	ActualYield    decimal.Decimal    `json:"actual_yield"`
	Wastage        decimal.Decimal    `json:"wastage_percentage"`
	Status         models.BatchStatus `json:"status"`
	OfficerID      uint               `json:"officer_id"`
	SupervisorID   uint               `json:"supervisor_id"`
	ProductionCost decimal.Decimal    `json:"production_cost"`
	CreatedAt      string             `json:"created_at"`
	StartedAt      *string            `json:"started_at"`
	CompletedAt    *string            `json:"completed_at"`
}

func toBatchResponse(b *models.ProductionBatch) BatchResponse {
	resp := BatchResponse{
		ID:             b.ID,
		BatchNumber:    b.BatchNumber,
		BranchID:       b.BranchID,
		FormulaID:      b.FormulaID,
		FormulaName:    b.Formula.Name,
		BatchSize:      b.BatchSize,
		ExpectedYield:  b.ExpectedYield,
		ActualYield:    b.ActualYield,
		Wastage:        b.Wastage,
		Status:         b.Status,
		OfficerID:      b.OfficerID,
		SupervisorID:   b.SupervisorID,
		ProductionCost: b.ProductionCost,
		CreatedAt:      b.CreatedAt.Format("2006-01-02 15:04:05"),
	}
	if b.StartedAt != nil {
		s := b.StartedAt.Format("2006-01-02 15:04:05")
		resp.StartedAt = &s
	}
	if b.CompletedAt != nil {
		s := b.CompletedAt.Format("2006-01-02 15:04:05")
		resp.CompletedAt = &s
	}
	return resp
}

// mapServiceError translates domain errors into HTTP responses with enough
// structure for the operator to see which rule failed or what is short.
func mapServiceError(c *fiber.Ctx, err error) error {
	var verr *ValidationError
	var serr *StateError
	var oerr *OverAllocationError
	var ierr *ledger.InsufficientStockError

	switch {
	case errors.As(err, &verr):
		return fiber.NewError(fiber.StatusBadRequest, verr.Msg)
	case errors.As(err, &serr):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Invalid state transition",
			"from":  serr.From,
			"to":    serr.To,
		})
	case errors.As(err, &oerr):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":          "Packaging plan exceeds actual yield",
			"actual_yield":   oerr.ActualYield,
			"planned_weight": oerr.PlannedWeight,
		})
	case errors.As(err, &ierr):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":     "Insufficient stock",
			"shortages": ierr.Shortages,
		})
	case errors.Is(err, ErrBatchNotFound):
		return fiber.NewError(fiber.StatusNotFound, "Production batch not found")
	case errors.Is(err, ErrFormulaNotFound):
		return fiber.NewError(fiber.StatusNotFound, "Formula not found")
	default:
		return fiber.NewError(fiber.StatusInternalServerError, "Operation failed")
	}
}

func actorFromCtx(c *fiber.Ctx) (Actor, *uint, error) {
	userID, userName, branchID, err := auth.CurrentActor(c)
	if err != nil {
		return Actor{}, nil, err
	}
	return Actor{ID: userID, Name: userName}, branchID, nil
}

// POST /api/production-batches
func CreateBatchHandler(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateBatchRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		if body.FormulaID == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "formula_id is required")
		}
		if body.BatchSize == 0 {
			body.BatchSize = 1
		}
		if body.SupervisorID == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "supervisor_id is required")
		}

		branchID, err := auth.ResolveBranchID(c, body.BranchID)
		if err != nil {
			return err
		}

		actor, _, err := actorFromCtx(c)
		if err != nil {
			return err
		}

		officerID := actor.ID
		if body.OfficerID != nil {
			officerID = *body.OfficerID
		}

		svc := NewService(database.DB, cfg.FacilityPrefix)
		batch, err := svc.Create(CreateBatchInput{
			FormulaID:    body.FormulaID,
			BatchSize:    body.BatchSize,
			BranchID:     branchID,
			OfficerID:    officerID,
			SupervisorID: body.SupervisorID,
			Actor:        actor,
			Note:         body.Note,
		})
		if err != nil {
			return mapServiceError(c, err)
		}

		database.DB.Preload("Formula").First(batch, batch.ID)
		return c.Status(fiber.StatusCreated).JSON(toBatchResponse(batch))
	}
}

// GET /api/production-batches?status=in_progress&branch_id=1
func ListBatchesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		q := database.DB.Preload("Formula").Model(&models.ProductionBatch{})

		if status := c.Query("status"); status != "" {
			q = q.Where("status = ?", status)
		}
		if bidStr := c.Query("branch_id"); bidStr != "" {
			var bid uint
			if _, err := fmt.Sscan(bidStr, &bid); err == nil && bid > 0 {
				q = q.Where("branch_id = ?", bid)
			}
		}

		var batches []models.ProductionBatch
		if err := q.Order("created_at DESC").Find(&batches).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not list batches")
		}

		resp := make([]BatchResponse, 0, len(batches))
		for i := range batches {
			resp = append(resp, toBatchResponse(&batches[i]))
		}
		return c.JSON(resp)
	}
}

// GET /api/production-batches/:id
func GetBatchHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid batch ID")
		}

		var batch models.ProductionBatch
		if err := database.DB.Preload("Formula").
			Preload("Materials.RawMaterial").
			Preload("Products.Product").
			First(&batch, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Production batch not found")
		}

		resp := toBatchResponse(&batch)
		return c.JSON(fiber.Map{
			"batch":     resp,
			"materials": batch.Materials,
			"products":  batch.Products,
		})
	}
}

// GET /api/production-batches/:id/logs
func ListBatchLogsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid batch ID")
		}

		var count int64
		database.DB.Model(&models.ProductionBatch{}).Where("id = ?", id).Count(&count)
		if count == 0 {
			return fiber.NewError(fiber.StatusNotFound, "Production batch not found")
		}

		var logs []models.ProductionLog
		if err := database.DB.Where("production_batch_id = ?", id).
			Order("created_at ASC, id ASC").Find(&logs).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not list batch logs")
		}

		return c.JSON(logs)
	}
}

// POST /api/production-batches/:id/start
func StartBatchHandler(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid batch ID")
		}

		actor, _, err := actorFromCtx(c)
		if err != nil {
			return err
		}

		svc := NewService(database.DB, cfg.FacilityPrefix)
		batch, err := svc.Start(uint(id), actor)
		if err != nil {
			return mapServiceError(c, err)
		}

		database.DB.Preload("Formula").First(batch, batch.ID)
		return c.JSON(toBatchResponse(batch))
	}
}

// POST /api/production-batches/:id/pause
func PauseBatchHandler(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid batch ID")
		}

		var body PauseRequest
		_ = c.BodyParser(&body) // reason is optional

		actor, _, err := actorFromCtx(c)
		if err != nil {
			return err
		}

		svc := NewService(database.DB, cfg.FacilityPrefix)
		batch, err := svc.Pause(uint(id), actor, body.Reason)
		if err != nil {
			return mapServiceError(c, err)
		}

		database.DB.Preload("Formula").First(batch, batch.ID)
		return c.JSON(toBatchResponse(batch))
	}
}

// POST /api/production-batches/:id/resume
func ResumeBatchHandler(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid batch ID")
		}

		actor, _, err := actorFromCtx(c)
		if err != nil {
			return err
		}

		svc := NewService(database.DB, cfg.FacilityPrefix)
		batch, err := svc.Resume(uint(id), actor)
		if err != nil {
			return mapServiceError(c, err)
		}

		database.DB.Preload("Formula").First(batch, batch.ID)
		return c.JSON(toBatchResponse(batch))
	}
}

// POST /api/production-batches/:id/cancel
func CancelBatchHandler(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid batch ID")
		}

		var body CancelRequest
		_ = c.BodyParser(&body)

		actor, _, err := actorFromCtx(c)
		if err != nil {
			return err
		}

		svc := NewService(database.DB, cfg.FacilityPrefix)
		batch, err := svc.Cancel(uint(id), actor, body.Reason)
		if err != nil {
			return mapServiceError(c, err)
		}

		database.DB.Preload("Formula").First(batch, batch.ID)
		return c.JSON(toBatchResponse(batch))
	}
}

// POST /api/production-batches/:id/complete
func CompleteBatchHandler(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid batch ID")
		}

		var body CompleteBatchRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		actor, _, err := actorFromCtx(c)
		if err != nil {
			return err
		}

		svc := NewService(database.DB, cfg.FacilityPrefix)
		batch, err := svc.Complete(uint(id), CompleteInput{
			ActualYield:      body.ActualYield,
			ActualQuantities: body.ActualQuantities,
			Plan:             body.PackagingPlan,
			Actor:            actor,
			Note:             body.Note,
		})
		if err != nil {
			return mapServiceError(c, err)
		}

		var bagCount int64
		database.DB.Model(&models.ProductBag{}).Where("production_batch_id = ?", batch.ID).Count(&bagCount)

		database.DB.Preload("Formula").First(batch, batch.ID)
		resp := toBatchResponse(batch)
		return c.JSON(fiber.Map{
			"batch":        resp,
			"bags_created": bagCount,
		})
	}
}
