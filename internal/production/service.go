package production

import (
	"errors"
	"fmt"
	"time"

	"feedmill-backend/internal/ledger"
	"feedmill-backend/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// overAllocationTolerance allows the packed weight to exceed the measured
// yield by 1% before completion is refused, covering scale drift between the
// bulk weighbridge and the bagging line.
var overAllocationTolerance = decimal.NewFromFloat(0.01)

const hundred = 100

// Actor is the authenticated user driving a transition.
type Actor struct {
	ID   uint
	Name string
}

// Service owns the batch state machine. Every transition is validated against
// the state table and logged; Complete is the only one that touches stock.
type Service struct {
	db             *gorm.DB
	facilityPrefix string
}

func NewService(db *gorm.DB, facilityPrefix string) *Service {
	return &Service{db: db, facilityPrefix: facilityPrefix}
}

type CreateBatchInput struct {
	FormulaID    uint
	BatchSize    int
	BranchID     uint
	OfficerID    uint
	SupervisorID uint
	Actor        Actor
	Note         string
}

// Create plans a batch. No stock is touched here: availability before start
// is advisory, consumption happens against actual quantities at completion.
// The daily sequence is claimed inside the insert transaction; the unique
// (batch_date, daily_sequence) index turns a race into a retry instead of a
// duplicate batch number.
func (s *Service) Create(in CreateBatchInput) (*models.ProductionBatch, error) {
	if in.BatchSize < 1 {
		return nil, &ValidationError{Msg: "batch_size must be at least 1"}
	}

	var f models.Formula
	if err := s.db.First(&f, "id = ?", in.FormulaID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFormulaNotFound
		}
		return nil, err
	}
	if f.Status != models.FormulaStatusActive {
		return nil, &ValidationError{Msg: "formula is not active"}
	}

	expected := f.TargetYield.Mul(decimal.NewFromInt(int64(in.BatchSize)))
	batchDate := time.Now().Format("20060102")

	var batch *models.ProductionBatch
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		batch, err = s.tryCreate(&f, in, expected, batchDate)
		if err == nil {
			return batch, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, err
		}
		// lost the daily-sequence race, take the next number
	}
	return nil, err
}

func (s *Service) tryCreate(f *models.Formula, in CreateBatchInput, expected decimal.Decimal, batchDate string) (*models.ProductionBatch, error) {
	var batch models.ProductionBatch

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var maxSeq int
		if err := tx.Model(&models.ProductionBatch{}).
			Where("batch_date = ?", batchDate).
			Select("COALESCE(MAX(daily_sequence), 0)").
			Scan(&maxSeq).Error; err != nil {
			return err
		}
		seq := maxSeq + 1

		batch = models.ProductionBatch{
			BatchNumber:   batchNumber(batchDate, seq),
			BatchDate:     batchDate,
			DailySequence: seq,
			BranchID:      in.BranchID,
			FormulaID:     f.ID,
			BatchSize:     in.BatchSize,
			ExpectedYield: expected,
			Status:        models.BatchStatusPlanned,
			OfficerID:     in.OfficerID,
			SupervisorID:  in.SupervisorID,
		}
		if err := tx.Create(&batch).Error; err != nil {
			return err
		}

		return s.writeLog(tx, batch.ID, models.ProductionActionCreated, in.Actor, in.Note)
	})
	if err != nil {
		return nil, err
	}
	return &batch, nil
}

func (s *Service) writeLog(tx *gorm.DB, batchID uint, action models.ProductionAction, actor Actor, note string) error {
	return tx.Create(&models.ProductionLog{
		ProductionBatchID: batchID,
		Action:            action,
		ActorID:           actor.ID,
		ActorName:         actor.Name,
		Note:              note,
	}).Error
}

func (s *Service) loadBatch(tx *gorm.DB, batchID uint) (*models.ProductionBatch, error) {
	var batch models.ProductionBatch
	if err := tx.First(&batch, "id = ?", batchID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBatchNotFound
		}
		return nil, err
	}
	return &batch, nil
}

// transition runs one stockless state change: validate against the state
// table and the operation's own source states, stamp the batch, log the
// action. Start and resume share the in_progress target but differ in where
// they may come from, which is why the extra `from` guard exists.
func (s *Service) transition(batchID uint, from []models.BatchStatus, to models.BatchStatus, action models.ProductionAction, actor Actor, note string) (*models.ProductionBatch, error) {
	var batch *models.ProductionBatch

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		batch, err = s.loadBatch(tx, batchID)
		if err != nil {
			return err
		}

		allowed := false
		for _, f := range from {
			if batch.Status == f {
				allowed = true
				break
			}
		}
		if !allowed || !canTransition(batch.Status, to) {
			return &StateError{From: batch.Status, To: to}
		}

		now := time.Now()
		batch.Status = to
		switch to {
		case models.BatchStatusInProgress:
			if batch.StartedAt == nil {
				batch.StartedAt = &now
			}
		case models.BatchStatusPaused:
			batch.PausedAt = &now
		}

		if err := tx.Save(batch).Error; err != nil {
			return err
		}
		return s.writeLog(tx, batch.ID, action, actor, note)
	})
	if err != nil {
		return nil, err
	}
	return batch, nil
}

func (s *Service) Start(batchID uint, actor Actor) (*models.ProductionBatch, error) {
	return s.transition(batchID,
		[]models.BatchStatus{models.BatchStatusPlanned},
		models.BatchStatusInProgress, models.ProductionActionStarted, actor, "")
}

func (s *Service) Pause(batchID uint, actor Actor, reason string) (*models.ProductionBatch, error) {
	return s.transition(batchID,
		[]models.BatchStatus{models.BatchStatusInProgress},
		models.BatchStatusPaused, models.ProductionActionPaused, actor, reason)
}

func (s *Service) Resume(batchID uint, actor Actor) (*models.ProductionBatch, error) {
	return s.transition(batchID,
		[]models.BatchStatus{models.BatchStatusPaused},
		models.BatchStatusInProgress, models.ProductionActionResumed, actor, "")
}

func (s *Service) Cancel(batchID uint, actor Actor, reason string) (*models.ProductionBatch, error) {
	return s.transition(batchID,
		[]models.BatchStatus{models.BatchStatusPlanned, models.BatchStatusInProgress, models.BatchStatusPaused},
		models.BatchStatusCancelled, models.ProductionActionCancelled, actor, reason)
}

// PackagingPlanEntry is one line of the caller-supplied packaging plan.
type PackagingPlanEntry struct {
	ProductID           uint            `json:"product_id"`
	PackageSize         decimal.Decimal `json:"package_size"` // KG per bag
	BagsCount           int             `json:"bags_count"`
	PackagingMaterialID uint            `json:"packaging_material_id"`
}

type CompleteInput struct {
	ActualYield decimal.Decimal
	// ActualQuantities overrides the planned consumption per raw material ID.
	// Materials without an entry are charged at planned quantity.
	ActualQuantities map[uint]decimal.Decimal
	Plan             []PackagingPlanEntry
	Actor            Actor
	Note             string
}

// Complete is the only side-effecting transition. Everything below runs in
// one transaction: material snapshot and deduction, cost computation,
// packaging deduction, bag serialization and the batch update. If any stock
// row would go negative the whole transaction rolls back and the batch stays
// in its pre-completion state, ready for a retry.
func (s *Service) Complete(batchID uint, in CompleteInput) (*models.ProductionBatch, error) {
	if in.ActualYield.Sign() <= 0 {
		return nil, &ValidationError{Msg: "actual_yield must be greater than zero"}
	}
	if len(in.Plan) == 0 {
		return nil, &ValidationError{Msg: "packaging_plan cannot be empty"}
	}
	for _, entry := range in.Plan {
		if entry.BagsCount < 1 {
			return nil, &ValidationError{Msg: "bags_count must be at least 1"}
		}
		if entry.PackageSize.Sign() <= 0 {
			return nil, &ValidationError{Msg: "package_size must be greater than zero"}
		}
		if entry.ProductID == 0 || entry.PackagingMaterialID == 0 {
			return nil, &ValidationError{Msg: "product_id and packaging_material_id are required"}
		}
	}

	plannedWeight := decimal.Zero
	for _, entry := range in.Plan {
		plannedWeight = plannedWeight.Add(entry.PackageSize.Mul(decimal.NewFromInt(int64(entry.BagsCount))))
	}

	var batch *models.ProductionBatch

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var b models.ProductionBatch
		if err := tx.Preload("Formula.Ingredients", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC, id ASC")
		}).Preload("Formula.Ingredients.RawMaterial").
			First(&b, "id = ?", batchID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBatchNotFound
			}
			return err
		}

		if !canTransition(b.Status, models.BatchStatusCompleted) {
			return &StateError{From: b.Status, To: models.BatchStatusCompleted}
		}

		// Over-allocation guard before any writes.
		maxWeight := in.ActualYield.Mul(decimal.NewFromInt(1).Add(overAllocationTolerance))
		if plannedWeight.GreaterThan(maxWeight) {
			return &OverAllocationError{ActualYield: in.ActualYield, PlannedWeight: plannedWeight}
		}

		inFormula := make(map[uint]bool, len(b.Formula.Ingredients))
		for _, ing := range b.Formula.Ingredients {
			inFormula[ing.RawMaterialID] = true
		}
		for id := range in.ActualQuantities {
			if !inFormula[id] {
				return &ValidationError{Msg: fmt.Sprintf("actual quantity given for raw material %d which is not in the formula", id)}
			}
		}

		size := decimal.NewFromInt(int64(b.BatchSize))
		productionCost := decimal.Zero

		// 1+2: snapshot and deduct every ingredient at actual quantity.
		for _, ing := range b.Formula.Ingredients {
			planned := ing.Quantity.Mul(size)
			actual := planned
			if override, ok := in.ActualQuantities[ing.RawMaterialID]; ok {
				if override.Sign() <= 0 {
					return &ValidationError{Msg: fmt.Sprintf("actual quantity for %s must be greater than zero", ing.RawMaterial.Name)}
				}
				actual = override
			}

			unitCost := ing.RawMaterial.CostPrice
			totalCost := actual.Mul(unitCost).Round(2)
			productionCost = productionCost.Add(totalCost)

			material := models.BatchMaterial{
				ProductionBatchID: b.ID,
				RawMaterialID:     ing.RawMaterialID,
				PlannedQuantity:   planned,
				ActualQuantity:    actual,
				UnitCost:          unitCost,
				TotalCost:         totalCost,
			}
			if err := tx.Create(&material).Error; err != nil {
				return err
			}

			if err := ledger.Deduct(tx, models.StockProductRawMaterial, ing.RawMaterialID, actual); err != nil {
				return err
			}

			if err := ledger.RecordMovement(tx, &models.StockMovement{
				ProductType:   models.StockProductRawMaterial,
				ProductID:     ing.RawMaterialID,
				QuantityDelta: actual.Neg(),
				MovementType:  models.MovementProductionConsumption,
				BranchID:      b.BranchID,
				ActorID:       in.Actor.ID,
				ActorName:     in.Actor.Name,
				Reason:        fmt.Sprintf("Batch %s", b.BatchNumber),
				BatchID:       &b.ID,
			}); err != nil {
				return err
			}
		}

		// 4: packaging consumption, one unit per bag, aggregated per material
		// so each consumed material gets exactly one movement row.
		packagingTotals := map[uint]int{}
		for _, entry := range in.Plan {
			packagingTotals[entry.PackagingMaterialID] += entry.BagsCount
		}
		for materialID, count := range packagingTotals {
			qty := decimal.NewFromInt(int64(count))
			if err := ledger.Deduct(tx, models.StockProductPackagingMaterial, materialID, qty); err != nil {
				return err
			}
			if err := ledger.RecordMovement(tx, &models.StockMovement{
				ProductType:   models.StockProductPackagingMaterial,
				ProductID:     materialID,
				QuantityDelta: qty.Neg(),
				MovementType:  models.MovementProductionConsumption,
				BranchID:      b.BranchID,
				ActorID:       in.Actor.ID,
				ActorName:     in.Actor.Name,
				Reason:        fmt.Sprintf("Batch %s packaging", b.BatchNumber),
				BatchID:       &b.ID,
			}); err != nil {
				return err
			}
		}

		// 5: mint one bag row per packed unit.
		productionDate := time.Now()
		unitIndex := 0
		for _, entry := range in.Plan {
			var product models.Product
			if err := tx.First(&product, "id = ?", entry.ProductID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return &ValidationError{Msg: fmt.Sprintf("product not found (ID: %d)", entry.ProductID)}
				}
				return err
			}

			entryWeight := entry.PackageSize.Mul(decimal.NewFromInt(int64(entry.BagsCount)))
			if err := tx.Create(&models.BatchProduct{
				ProductionBatchID:   b.ID,
				ProductID:           entry.ProductID,
				PackagingMaterialID: entry.PackagingMaterialID,
				PackageSize:         entry.PackageSize,
				BagsCount:           entry.BagsCount,
				TotalWeight:         entryWeight,
			}).Error; err != nil {
				return err
			}

			// cost allocated pro-rata by weight across the packed total
			bagCost := decimal.Zero
			if plannedWeight.Sign() > 0 {
				bagCost = productionCost.Mul(entry.PackageSize).DivRound(plannedWeight, 2)
			}
			expiry := productionDate.AddDate(0, 0, product.ShelfLifeDays)

			for i := 0; i < entry.BagsCount; i++ {
				unitIndex++
				bag := models.ProductBag{
					SerialNumber:      bagSerial(s.facilityPrefix, b.BatchDate, b.DailySequence, unitIndex),
					ProductID:         entry.ProductID,
					ProductionBatchID: b.ID,
					BranchID:          b.BranchID,
					PackageSize:       entry.PackageSize,
					ProductionDate:    productionDate,
					ExpiryDate:        expiry,
					Status:            models.BagStatusSealed,
					CostPrice:         bagCost,
					UnitPrice:         product.UnitPrice,
				}
				if err := tx.Create(&bag).Error; err != nil {
					return err
				}
			}
		}

		// 6: persist the realized batch figures.
		wastage := decimal.Zero
		if b.ExpectedYield.Sign() > 0 {
			wastage = b.ExpectedYield.Sub(in.ActualYield).
				DivRound(b.ExpectedYield, 4).
				Mul(decimal.NewFromInt(hundred)).Round(2)
			if wastage.Sign() < 0 {
				wastage = decimal.Zero
			}
		}

		now := time.Now()
		b.Status = models.BatchStatusCompleted
		b.ActualYield = in.ActualYield
		b.Wastage = wastage
		b.ProductionCost = productionCost
		b.CompletedAt = &now
		if err := tx.Save(&b).Error; err != nil {
			return err
		}

		if err := s.writeLog(tx, b.ID, models.ProductionActionCompleted, in.Actor, in.Note); err != nil {
			return err
		}

		batch = &b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return batch, nil
}
