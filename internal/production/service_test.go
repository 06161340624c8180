package production

import (
	"errors"
	"strings"
	"testing"

	"feedmill-backend/internal/database"
	"feedmill-backend/internal/ledger"
	"feedmill-backend/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
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
	return db
}

type fixture struct {
	db        *gorm.DB
	svc       *Service
	formula   *models.Formula
	product   *models.Product
	maize     *models.RawMaterial
	soya      *models.RawMaterial
	packaging *models.PackagingMaterial
}

// newFixture seeds a one-run recipe: 100 KG maize + 40 KG soya yields 140 KG
// of pellet feed, packed into 5 KG bags from a stock of 30 empties.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := openTestDB(t)

	product := models.Product{Name: "Starter Pellets", SKU: "STR-005", Unit: "KG",
		ShelfLifeDays: 180, UnitPrice: decimal.RequireFromString("9.50"),
		SellingPricePerKg: decimal.RequireFromString("2.10")}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}

	maize := models.RawMaterial{BranchID: 1, Name: "Maize", Unit: "KG",
		CurrentStock: decimal.RequireFromString("500"), CostPrice: decimal.RequireFromString("0.80")}
	soya := models.RawMaterial{BranchID: 1, Name: "Soya", Unit: "KG",
		CurrentStock: decimal.RequireFromString("200"), CostPrice: decimal.RequireFromString("1.20")}
	if err := db.Create(&maize).Error; err != nil {
		t.Fatalf("seed maize: %v", err)
	}
	if err := db.Create(&soya).Error; err != nil {
		t.Fatalf("seed soya: %v", err)
	}

	packaging := models.PackagingMaterial{BranchID: 1, Name: "5KG Bag", Unit: "piece",
		CurrentStock: decimal.RequireFromString("30"), CostPrice: decimal.RequireFromString("0.30")}
	if err := db.Create(&packaging).Error; err != nil {
		t.Fatalf("seed packaging: %v", err)
	}

	f := models.Formula{
		Name:        "Starter Mash",
		ProductID:   product.ID,
		TargetYield: decimal.RequireFromString("140"),
		YieldUnit:   "KG",
		Status:      models.FormulaStatusActive,
		Ingredients: []models.FormulaIngredient{
			{RawMaterialID: maize.ID, Quantity: decimal.RequireFromString("100"), Unit: "KG", Position: 1},
			{RawMaterialID: soya.ID, Quantity: decimal.RequireFromString("40"), Unit: "KG", Position: 2},
		},
	}
	if err := db.Create(&f).Error; err != nil {
		t.Fatalf("seed formula: %v", err)
	}

	return &fixture{
		db:        db,
		svc:       NewService(db, "FML"),
		formula:   &f,
		product:   &product,
		maize:     &maize,
		soya:      &soya,
		packaging: &packaging,
	}
}

var testActor = Actor{ID: 1, Name: "Officer"}

func (fx *fixture) createBatch(t *testing.T) *models.ProductionBatch {
	t.Helper()
	batch, err := fx.svc.Create(CreateBatchInput{
		FormulaID:    fx.formula.ID,
		BatchSize:    1,
		BranchID:     1,
		OfficerID:    1,
		SupervisorID: 2,
		Actor:        testActor,
	})
	if err != nil {
		t.Fatalf("create batch: %v", err)
	}
	return batch
}

func (fx *fixture) startedBatch(t *testing.T) *models.ProductionBatch {
	t.Helper()
	batch := fx.createBatch(t)
	started, err := fx.svc.Start(batch.ID, testActor)
	if err != nil {
		t.Fatalf("start batch: %v", err)
	}
	return started
}

func (fx *fixture) rawStock(t *testing.T, id uint) decimal.Decimal {
	t.Helper()
	var m models.RawMaterial
	if err := fx.db.First(&m, "id = ?", id).Error; err != nil {
		t.Fatalf("reload material: %v", err)
	}
	return m.CurrentStock
}

func TestCreateAssignsDailySequence(t *testing.T) {
	fx := newFixture(t)

	first := fx.createBatch(t)
	second := fx.createBatch(t)

	if first.DailySequence != 1 || second.DailySequence != 2 {
		t.Fatalf("sequences = %d, %d, want 1, 2", first.DailySequence, second.DailySequence)
	}
	if first.BatchNumber == second.BatchNumber {
		t.Fatalf("batch numbers collide: %s", first.BatchNumber)
	}
	if first.Status != models.BatchStatusPlanned {
		t.Fatalf("status = %s, want planned", first.Status)
	}
	if !first.ExpectedYield.Equal(decimal.RequireFromString("140")) {
		t.Fatalf("expected yield = %s, want 140", first.ExpectedYield)
	}

	// Planning must not touch stock.
	if got := fx.rawStock(t, fx.maize.ID); !got.Equal(decimal.RequireFromString("500")) {
		t.Fatalf("maize stock = %s, want 500", got)
	}
}

func TestCreateRejectsInactiveFormula(t *testing.T) {
	fx := newFixture(t)
	fx.db.Model(fx.formula).Update("status", models.FormulaStatusInactive)

	_, err := fx.svc.Create(CreateBatchInput{FormulaID: fx.formula.ID, BatchSize: 1, BranchID: 1, Actor: testActor})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}

func TestCreateRejectsBadBatchSize(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.svc.Create(CreateBatchInput{FormulaID: fx.formula.ID, BatchSize: 0, BranchID: 1, Actor: testActor})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}

func TestStartPauseResumeCancel(t *testing.T) {
	fx := newFixture(t)
	batch := fx.createBatch(t)

	started, err := fx.svc.Start(batch.ID, testActor)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if started.Status != models.BatchStatusInProgress || started.StartedAt == nil {
		t.Fatalf("after start: status=%s startedAt=%v", started.Status, started.StartedAt)
	}

	paused, err := fx.svc.Pause(batch.ID, testActor, "mixer jam")
	if err != nil {
		t.Fatalf("pause: %v", err)
	}
	if paused.Status != models.BatchStatusPaused || paused.PausedAt == nil {
		t.Fatalf("after pause: status=%s pausedAt=%v", paused.Status, paused.PausedAt)
	}

	resumed, err := fx.svc.Resume(batch.ID, testActor)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if resumed.Status != models.BatchStatusInProgress {
		t.Fatalf("after resume: status=%s", resumed.Status)
	}

	cancelled, err := fx.svc.Cancel(batch.ID, testActor, "power cut")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != models.BatchStatusCancelled {
		t.Fatalf("after cancel: status=%s", cancelled.Status)
	}

	var logs []models.ProductionLog
	fx.db.Where("production_batch_id = ?", batch.ID).Order("id ASC").Find(&logs)
	wantActions := []models.ProductionAction{
		models.ProductionActionCreated,
		models.ProductionActionStarted,
		models.ProductionActionPaused,
		models.ProductionActionResumed,
		models.ProductionActionCancelled,
	}
	if len(logs) != len(wantActions) {
		t.Fatalf("log rows = %d, want %d", len(logs), len(wantActions))
	}
	for i, action := range wantActions {
		if logs[i].Action != action {
			t.Fatalf("log[%d] = %s, want %s", i, logs[i].Action, action)
		}
	}
}

func TestIllegalTransitions(t *testing.T) {
	fx := newFixture(t)

	// Start is only legal from planned.
	started := fx.startedBatch(t)
	if _, err := fx.svc.Start(started.ID, testActor); !isStateError(err) {
		t.Fatalf("start twice: err = %v, want StateError", err)
	}

	if _, err := fx.svc.Pause(started.ID, testActor, ""); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if _, err := fx.svc.Start(started.ID, testActor); !isStateError(err) {
		t.Fatalf("start from paused: err = %v, want StateError", err)
	}

	// Pause is only legal from in_progress.
	planned := fx.createBatch(t)
	if _, err := fx.svc.Pause(planned.ID, testActor, ""); !isStateError(err) {
		t.Fatalf("pause planned: err = %v, want StateError", err)
	}

	// Cancelled is terminal.
	if _, err := fx.svc.Cancel(planned.ID, testActor, "scrapped"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := fx.svc.Start(planned.ID, testActor); !isStateError(err) {
		t.Fatalf("start cancelled: err = %v, want StateError", err)
	}
}

func isStateError(err error) bool {
	var sErr *StateError
	return errors.As(err, &sErr)
}

func TestCompleteHappyPath(t *testing.T) {
	fx := newFixture(t)
	batch := fx.startedBatch(t)

	done, err := fx.svc.Complete(batch.ID, CompleteInput{
		ActualYield: decimal.RequireFromString("135"),
		Plan: []PackagingPlanEntry{{
			ProductID:           fx.product.ID,
			PackageSize:         decimal.RequireFromString("5"),
			BagsCount:           27,
			PackagingMaterialID: fx.packaging.ID,
		}},
		Actor: testActor,
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}

	if done.Status != models.BatchStatusCompleted || done.CompletedAt == nil {
		t.Fatalf("status=%s completedAt=%v", done.Status, done.CompletedAt)
	}
	// (140 - 135) / 140 = 3.57% wastage.
	if !done.Wastage.Equal(decimal.RequireFromString("3.57")) {
		t.Fatalf("wastage = %s, want 3.57", done.Wastage)
	}
	// 100 * 0.80 + 40 * 1.20 = 128.
	if !done.ProductionCost.Equal(decimal.RequireFromString("128")) {
		t.Fatalf("production cost = %s, want 128", done.ProductionCost)
	}

	// Raw material consumption at planned quantities.
	if got := fx.rawStock(t, fx.maize.ID); !got.Equal(decimal.RequireFromString("400")) {
		t.Fatalf("maize stock = %s, want 400", got)
	}
	if got := fx.rawStock(t, fx.soya.ID); !got.Equal(decimal.RequireFromString("160")) {
		t.Fatalf("soya stock = %s, want 160", got)
	}

	// One empty bag consumed per packed unit.
	var pkg models.PackagingMaterial
	fx.db.First(&pkg, "id = ?", fx.packaging.ID)
	if !pkg.CurrentStock.Equal(decimal.RequireFromString("3")) {
		t.Fatalf("packaging stock = %s, want 3", pkg.CurrentStock)
	}

	// 27 serialized bags, each carrying its pro-rata cost share:
	// 128 * 5 / 135 = 4.74.
	var bags []models.ProductBag
	fx.db.Where("production_batch_id = ?", batch.ID).Find(&bags)
	if len(bags) != 27 {
		t.Fatalf("bags = %d, want 27", len(bags))
	}
	serials := map[string]bool{}
	for _, bag := range bags {
		if serials[bag.SerialNumber] {
			t.Fatalf("duplicate serial %s", bag.SerialNumber)
		}
		serials[bag.SerialNumber] = true
		if bag.Status != models.BagStatusSealed {
			t.Fatalf("bag status = %s, want sealed", bag.Status)
		}
		if !bag.CostPrice.Equal(decimal.RequireFromString("4.74")) {
			t.Fatalf("bag cost = %s, want 4.74", bag.CostPrice)
		}
		if !bag.ExpiryDate.After(bag.ProductionDate) {
			t.Fatal("expiry date not after production date")
		}
	}

	// One movement per consumed material: maize, soya, packaging.
	var movements []models.StockMovement
	fx.db.Where("batch_id = ?", batch.ID).Find(&movements)
	if len(movements) != 3 {
		t.Fatalf("movements = %d, want 3", len(movements))
	}
	for _, mv := range movements {
		if mv.MovementType != models.MovementProductionConsumption {
			t.Fatalf("movement type = %s", mv.MovementType)
		}
		if mv.QuantityDelta.Sign() >= 0 {
			t.Fatalf("consumption delta %s not negative", mv.QuantityDelta)
		}
	}

	// Ingredient snapshots freeze unit costs.
	var materials []models.BatchMaterial
	fx.db.Where("production_batch_id = ?", batch.ID).Order("id ASC").Find(&materials)
	if len(materials) != 2 {
		t.Fatalf("batch materials = %d, want 2", len(materials))
	}
	if !materials[0].UnitCost.Equal(decimal.RequireFromString("0.80")) {
		t.Fatalf("maize unit cost = %s, want 0.80", materials[0].UnitCost)
	}
}

func TestCompleteWithActualQuantityOverride(t *testing.T) {
	fx := newFixture(t)
	batch := fx.startedBatch(t)

	done, err := fx.svc.Complete(batch.ID, CompleteInput{
		ActualYield:      decimal.RequireFromString("138"),
		ActualQuantities: map[uint]decimal.Decimal{fx.soya.ID: decimal.RequireFromString("38.5")},
		Plan: []PackagingPlanEntry{{
			ProductID:           fx.product.ID,
			PackageSize:         decimal.RequireFromString("5"),
			BagsCount:           27,
			PackagingMaterialID: fx.packaging.ID,
		}},
		Actor: testActor,
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}

	// Soya charged at the measured 38.5, not the planned 40.
	if got := fx.rawStock(t, fx.soya.ID); !got.Equal(decimal.RequireFromString("161.5")) {
		t.Fatalf("soya stock = %s, want 161.5", got)
	}
	// 100 * 0.80 + 38.5 * 1.20 = 126.20.
	if !done.ProductionCost.Equal(decimal.RequireFromString("126.20")) {
		t.Fatalf("production cost = %s, want 126.20", done.ProductionCost)
	}

	var mat models.BatchMaterial
	fx.db.Where("production_batch_id = ? AND raw_material_id = ?", batch.ID, fx.soya.ID).First(&mat)
	if !mat.PlannedQuantity.Equal(decimal.RequireFromString("40")) {
		t.Fatalf("planned = %s, want 40", mat.PlannedQuantity)
	}
	if !mat.ActualQuantity.Equal(decimal.RequireFromString("38.5")) {
		t.Fatalf("actual = %s, want 38.5", mat.ActualQuantity)
	}
}

func TestCompleteRejectsOverAllocation(t *testing.T) {
	fx := newFixture(t)
	batch := fx.startedBatch(t)

	// 29 * 5 = 145 KG packed against 135 KG yielded; 1% tolerance allows
	// at most 136.35.
	_, err := fx.svc.Complete(batch.ID, CompleteInput{
		ActualYield: decimal.RequireFromString("135"),
		Plan: []PackagingPlanEntry{{
			ProductID:           fx.product.ID,
			PackageSize:         decimal.RequireFromString("5"),
			BagsCount:           29,
			PackagingMaterialID: fx.packaging.ID,
		}},
		Actor: testActor,
	})
	var overErr *OverAllocationError
	if !errors.As(err, &overErr) {
		t.Fatalf("err = %v, want OverAllocationError", err)
	}

	// Batch must stay in progress with nothing consumed.
	var reloaded models.ProductionBatch
	fx.db.First(&reloaded, "id = ?", batch.ID)
	if reloaded.Status != models.BatchStatusInProgress {
		t.Fatalf("status = %s, want in_progress", reloaded.Status)
	}
	if got := fx.rawStock(t, fx.maize.ID); !got.Equal(decimal.RequireFromString("500")) {
		t.Fatalf("maize stock = %s, want 500", got)
	}
	var bagCount int64
	fx.db.Model(&models.ProductBag{}).Count(&bagCount)
	if bagCount != 0 {
		t.Fatalf("bags = %d, want 0", bagCount)
	}
}

func TestCompleteOverAllocationAfterBatchChecks(t *testing.T) {
	fx := newFixture(t)

	// 29 * 5 = 145 KG against 135 yielded would over-allocate, but the
	// batch lookup and state check come first.
	over := CompleteInput{
		ActualYield: decimal.RequireFromString("135"),
		Plan: []PackagingPlanEntry{{
			ProductID:           fx.product.ID,
			PackageSize:         decimal.RequireFromString("5"),
			BagsCount:           29,
			PackagingMaterialID: fx.packaging.ID,
		}},
		Actor: testActor,
	}

	if _, err := fx.svc.Complete(9999, over); !errors.Is(err, ErrBatchNotFound) {
		t.Fatalf("missing batch: err = %v, want ErrBatchNotFound", err)
	}

	batch := fx.startedBatch(t)
	good := over
	good.Plan = []PackagingPlanEntry{{
		ProductID:           fx.product.ID,
		PackageSize:         decimal.RequireFromString("5"),
		BagsCount:           27,
		PackagingMaterialID: fx.packaging.ID,
	}}
	if _, err := fx.svc.Complete(batch.ID, good); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := fx.svc.Complete(batch.ID, over); !isStateError(err) {
		t.Fatalf("completed batch: err = %v, want StateError", err)
	}
}

func TestCompleteRejectsUnknownActualQuantity(t *testing.T) {
	fx := newFixture(t)
	batch := fx.startedBatch(t)

	_, err := fx.svc.Complete(batch.ID, CompleteInput{
		ActualYield:      decimal.RequireFromString("135"),
		ActualQuantities: map[uint]decimal.Decimal{9999: decimal.RequireFromString("12")},
		Plan: []PackagingPlanEntry{{
			ProductID:           fx.product.ID,
			PackageSize:         decimal.RequireFromString("5"),
			BagsCount:           27,
			PackagingMaterialID: fx.packaging.ID,
		}},
		Actor: testActor,
	})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if !strings.Contains(vErr.Msg, "9999") {
		t.Fatalf("message %q does not name the stray raw material", vErr.Msg)
	}

	var reloaded models.ProductionBatch
	fx.db.First(&reloaded, "id = ?", batch.ID)
	if reloaded.Status != models.BatchStatusInProgress {
		t.Fatalf("status = %s, want in_progress", reloaded.Status)
	}
	if got := fx.rawStock(t, fx.maize.ID); !got.Equal(decimal.RequireFromString("500")) {
		t.Fatalf("maize stock = %s, want 500", got)
	}
}

func TestCompleteRollsBackOnInsufficientStock(t *testing.T) {
	fx := newFixture(t)
	batch := fx.startedBatch(t)

	// Soya cannot cover the planned 40 KG; the maize deduction that ran
	// first inside the transaction must be rolled back with it.
	fx.db.Model(fx.soya).Update("current_stock", decimal.RequireFromString("10"))

	_, err := fx.svc.Complete(batch.ID, CompleteInput{
		ActualYield: decimal.RequireFromString("135"),
		Plan: []PackagingPlanEntry{{
			ProductID:           fx.product.ID,
			PackageSize:         decimal.RequireFromString("5"),
			BagsCount:           27,
			PackagingMaterialID: fx.packaging.ID,
		}},
		Actor: testActor,
	})
	var insufficient *ledger.InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("err = %v, want InsufficientStockError", err)
	}

	if got := fx.rawStock(t, fx.maize.ID); !got.Equal(decimal.RequireFromString("500")) {
		t.Fatalf("maize stock = %s, want 500 after rollback", got)
	}
	var reloaded models.ProductionBatch
	fx.db.First(&reloaded, "id = ?", batch.ID)
	if reloaded.Status != models.BatchStatusInProgress {
		t.Fatalf("status = %s, want in_progress", reloaded.Status)
	}
	var movements, bags, materials int64
	fx.db.Model(&models.StockMovement{}).Count(&movements)
	fx.db.Model(&models.ProductBag{}).Count(&bags)
	fx.db.Model(&models.BatchMaterial{}).Count(&materials)
	if movements != 0 || bags != 0 || materials != 0 {
		t.Fatalf("leftover rows after rollback: movements=%d bags=%d materials=%d", movements, bags, materials)
	}
}

func TestCompleteRejectsCompletedBatch(t *testing.T) {
	fx := newFixture(t)
	batch := fx.startedBatch(t)

	input := CompleteInput{
		ActualYield: decimal.RequireFromString("135"),
		Plan: []PackagingPlanEntry{{
			ProductID:           fx.product.ID,
			PackageSize:         decimal.RequireFromString("5"),
			BagsCount:           13,
			PackagingMaterialID: fx.packaging.ID,
		}},
		Actor: testActor,
	}
	if _, err := fx.svc.Complete(batch.ID, input); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := fx.svc.Complete(batch.ID, input); !isStateError(err) {
		t.Fatalf("second complete: err = %v, want StateError", err)
	}
}

func TestCompleteValidatesInput(t *testing.T) {
	fx := newFixture(t)
	batch := fx.startedBatch(t)

	cases := []struct {
		name string
		in   CompleteInput
	}{
		{"zero yield", CompleteInput{ActualYield: decimal.Zero, Plan: []PackagingPlanEntry{{ProductID: 1, PackageSize: decimal.RequireFromString("5"), BagsCount: 1, PackagingMaterialID: 1}}}},
		{"empty plan", CompleteInput{ActualYield: decimal.RequireFromString("135")}},
		{"zero bags", CompleteInput{ActualYield: decimal.RequireFromString("135"), Plan: []PackagingPlanEntry{{ProductID: 1, PackageSize: decimal.RequireFromString("5"), BagsCount: 0, PackagingMaterialID: 1}}}},
		{"zero package size", CompleteInput{ActualYield: decimal.RequireFromString("135"), Plan: []PackagingPlanEntry{{ProductID: 1, PackageSize: decimal.Zero, BagsCount: 1, PackagingMaterialID: 1}}}},
	}
	for _, c := range cases {
		c.in.Actor = testActor
		_, err := fx.svc.Complete(batch.ID, c.in)
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("%s: err = %v, want ValidationError", c.name, err)
		}
	}
}

func TestCompleteWastageClampedAtZero(t *testing.T) {
	fx := newFixture(t)
	batch := fx.startedBatch(t)

	// Actual above expected (moisture gain) must not produce negative wastage.
	done, err := fx.svc.Complete(batch.ID, CompleteInput{
		ActualYield: decimal.RequireFromString("142"),
		Plan: []PackagingPlanEntry{{
			ProductID:           fx.product.ID,
			PackageSize:         decimal.RequireFromString("5"),
			BagsCount:           28,
			PackagingMaterialID: fx.packaging.ID,
		}},
		Actor: testActor,
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !done.Wastage.IsZero() {
		t.Fatalf("wastage = %s, want 0", done.Wastage)
	}
}

func TestBagSerialsUniqueAcrossSameDayBatches(t *testing.T) {
	fx := newFixture(t)

	input := CompleteInput{
		ActualYield: decimal.RequireFromString("140"),
		Plan: []PackagingPlanEntry{{
			ProductID:           fx.product.ID,
			PackageSize:         decimal.RequireFromString("5"),
			BagsCount:           10,
			PackagingMaterialID: fx.packaging.ID,
		}},
		Actor: testActor,
	}

	for i := 0; i < 2; i++ {
		batch := fx.startedBatch(t)
		if _, err := fx.svc.Complete(batch.ID, input); err != nil {
			t.Fatalf("complete batch %d: %v", i, err)
		}
	}

	var bags []models.ProductBag
	fx.db.Find(&bags)
	if len(bags) != 20 {
		t.Fatalf("bags = %d, want 20", len(bags))
	}
	serials := map[string]bool{}
	for _, bag := range bags {
		if serials[bag.SerialNumber] {
			t.Fatalf("duplicate serial across batches: %s", bag.SerialNumber)
		}
		serials[bag.SerialNumber] = true
	}
}
