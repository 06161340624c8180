package database

import (
	"feedmill-backend/internal/config"
	"feedmill-backend/internal/models"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func Init(cfg *config.Config) {
	var err error

	DB, err = gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{TranslateError: true})
	if err != nil {
		zap.L().Fatal("could not connect to database", zap.Error(err))
	}

	if err := Migrate(DB); err != nil {
		zap.L().Fatal("migration failed", zap.Error(err))
	}

	zap.L().Info("database connected, migration complete")
}

// Migrate applies the schema. Split out from Init so tests can run it against
// their own connection.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Branch{},
		&models.User{},
		&models.RawMaterial{},
		&models.PackagingMaterial{},
		&models.ThirdPartyProduct{},
		&models.Product{},
		&models.Formula{},
		&models.FormulaIngredient{},
		&models.ProductionBatch{},
		&models.BatchMaterial{},
		&models.BatchProduct{},
		&models.ProductionLog{},
		&models.ProductBag{},
		&models.OpenedBag{},
		&models.StockMovement{},
		&models.AuditLog{},
	)
}
