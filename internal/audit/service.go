package audit

import (
	"encoding/json"
	"fmt"
	"time"

	"feedmill-backend/internal/database"
	"feedmill-backend/internal/models"
)

type LogOptions struct {
	BranchID    *uint
	UserID      uint
	UserName    string
	EntityType  string
	EntityID    uint
	Action      models.AuditAction
	Description string
	Before      any
	After       any
}

func WriteLog(opts LogOptions) error {
	// jsonb columns want the JSON null literal, not an empty string
	beforeStr := "null"
	afterStr := "null"

	if opts.Before != nil {
		if b, err := json.Marshal(opts.Before); err == nil {
			beforeStr = string(b)
		}
	}
	if opts.After != nil {
		if b, err := json.Marshal(opts.After); err == nil {
			afterStr = string(b)
		}
	}

	log := models.AuditLog{
		BranchID:    opts.BranchID,
		UserID:      opts.UserID,
		UserName:    opts.UserName,
		EntityType:  opts.EntityType,
		EntityID:    opts.EntityID,
		Action:      opts.Action,
		Description: opts.Description,
		BeforeData:  beforeStr,
		AfterData:   afterStr,
		Undone:      false,
		IsUndone:    false,
	}

	if err := database.DB.Create(&log).Error; err != nil {
		return fmt.Errorf("could not write audit log: %w", err)
	}

	return nil
}

// Only master-data edits can be undone. Anything that carries stock or
// production history (batches, bags, movements) must be corrected through the
// admin stock-adjustment path so the correction itself leaves a trail.
func undoable(entityType string) bool {
	switch entityType {
	case "raw_material", "packaging_material", "third_party_product", "product", "formula":
		return true
	default:
		return false
	}
}

// UndoLog reverses a master-data audit entry.
func UndoLog(logID uint, userID uint, userName string) error {
	var log models.AuditLog
	if err := database.DB.First(&log, "id = ?", logID).Error; err != nil {
		return fmt.Errorf("log not found: %w", err)
	}

	if log.IsUndone {
		return fmt.Errorf("this entry has already been undone")
	}

	if !undoable(log.EntityType) {
		return fmt.Errorf("entries of type %q cannot be undone; use a stock adjustment instead", log.EntityType)
	}

	switch log.Action {
	case models.AuditActionCreate:
		if err := deleteEntity(log.EntityType, log.EntityID); err != nil {
			return fmt.Errorf("could not delete entity: %w", err)
		}

	case models.AuditActionUpdate:
		if err := restoreEntity(log.EntityType, log.EntityID, log.BeforeData); err != nil {
			return fmt.Errorf("could not restore entity: %w", err)
		}

	case models.AuditActionDelete:
		if err := recreateEntity(log.EntityType, log.AfterData, log.BeforeData); err != nil {
			return fmt.Errorf("could not recreate entity: %w", err)
		}

	default:
		return fmt.Errorf("this action cannot be undone")
	}

	now := time.Now()
	log.IsUndone = true
	log.UndoneBy = &userID
	log.UndoneAt = &now

	if err := database.DB.Save(&log).Error; err != nil {
		return fmt.Errorf("could not update log: %w", err)
	}

	undoLog := models.AuditLog{
		BranchID:    log.BranchID,
		UserID:      userID,
		UserName:    userName,
		EntityType:  log.EntityType,
		EntityID:    log.EntityID,
		Action:      models.AuditActionUndo,
		Description: fmt.Sprintf("Undone: %s", log.Description),
		BeforeData:  log.AfterData,
		AfterData:   log.BeforeData,
		Undone:      true,
		IsUndone:    false,
	}

	if err := database.DB.Create(&undoLog).Error; err != nil {
		return fmt.Errorf("could not write undo log: %w", err)
	}

	return nil
}

func deleteEntity(entityType string, entityID uint) error {
	switch entityType {
	case "raw_material":
		return database.DB.Delete(&models.RawMaterial{}, "id = ?", entityID).Error
	case "packaging_material":
		return database.DB.Delete(&models.PackagingMaterial{}, "id = ?", entityID).Error
	case "third_party_product":
		return database.DB.Delete(&models.ThirdPartyProduct{}, "id = ?", entityID).Error
	case "product":
		return database.DB.Delete(&models.Product{}, "id = ?", entityID).Error
	case "formula":
		if err := database.DB.Where("formula_id = ?", entityID).Delete(&models.FormulaIngredient{}).Error; err != nil {
			return err
		}
		return database.DB.Delete(&models.Formula{}, "id = ?", entityID).Error
	default:
		return fmt.Errorf("unknown entity type: %s", entityType)
	}
}

func recreateEntity(entityType string, dataJSON string, fallbackJSON string) error {
	if dataJSON == "" || dataJSON == "null" {
		dataJSON = fallbackJSON
	}

	switch entityType {
	case "raw_material":
		var rm models.RawMaterial
		if err := json.Unmarshal([]byte(dataJSON), &rm); err != nil {
			return err
		}
		rm.ID = 0
		return database.DB.Create(&rm).Error

	case "packaging_material":
		var pm models.PackagingMaterial
		if err := json.Unmarshal([]byte(dataJSON), &pm); err != nil {
			return err
		}
		pm.ID = 0
		return database.DB.Create(&pm).Error

	case "third_party_product":
		var tp models.ThirdPartyProduct
		if err := json.Unmarshal([]byte(dataJSON), &tp); err != nil {
			return err
		}
		tp.ID = 0
		return database.DB.Create(&tp).Error

	case "product":
		var p models.Product
		if err := json.Unmarshal([]byte(dataJSON), &p); err != nil {
			return err
		}
		p.ID = 0
		return database.DB.Create(&p).Error

	case "formula":
		var f models.Formula
		if err := json.Unmarshal([]byte(dataJSON), &f); err != nil {
			return err
		}
		f.ID = 0
		for i := range f.Ingredients {
			f.Ingredients[i].ID = 0
			f.Ingredients[i].FormulaID = 0
		}
		return database.DB.Create(&f).Error

	default:
		return fmt.Errorf("unknown entity type: %s", entityType)
	}
}

func restoreEntity(entityType string, entityID uint, dataJSON string) error {
	switch entityType {
	case "raw_material":
		var rm models.RawMaterial
		if err := json.Unmarshal([]byte(dataJSON), &rm); err != nil {
			return err
		}
		return database.DB.Model(&models.RawMaterial{}).Where("id = ?", entityID).Updates(map[string]interface{}{
			"name":          rm.Name,
			"unit":          rm.Unit,
			"minimum_stock": rm.MinimumStock,
			"cost_price":    rm.CostPrice,
		}).Error

	case "packaging_material":
		var pm models.PackagingMaterial
		if err := json.Unmarshal([]byte(dataJSON), &pm); err != nil {
			return err
		}
		return database.DB.Model(&models.PackagingMaterial{}).Where("id = ?", entityID).Updates(map[string]interface{}{
			"name":          pm.Name,
			"unit":          pm.Unit,
			"minimum_stock": pm.MinimumStock,
			"cost_price":    pm.CostPrice,
		}).Error

	case "third_party_product":
		var tp models.ThirdPartyProduct
		if err := json.Unmarshal([]byte(dataJSON), &tp); err != nil {
			return err
		}
		return database.DB.Model(&models.ThirdPartyProduct{}).Where("id = ?", entityID).Updates(map[string]interface{}{
			"name":          tp.Name,
			"unit":          tp.Unit,
			"minimum_stock": tp.MinimumStock,
			"cost_price":    tp.CostPrice,
		}).Error

	case "product":
		var p models.Product
		if err := json.Unmarshal([]byte(dataJSON), &p); err != nil {
			return err
		}
		return database.DB.Model(&models.Product{}).Where("id = ?", entityID).Updates(map[string]interface{}{
			"name":                 p.Name,
			"sku":                  p.SKU,
			"unit":                 p.Unit,
			"shelf_life_days":      p.ShelfLifeDays,
			"unit_price":           p.UnitPrice,
			"selling_price_per_kg": p.SellingPricePerKg,
		}).Error

	case "formula":
		var f models.Formula
		if err := json.Unmarshal([]byte(dataJSON), &f); err != nil {
			return err
		}
		if err := database.DB.Model(&models.Formula{}).Where("id = ?", entityID).Updates(map[string]interface{}{
			"name":         f.Name,
			"target_yield": f.TargetYield,
			"yield_unit":   f.YieldUnit,
			"status":       f.Status,
		}).Error; err != nil {
			return err
		}
		if len(f.Ingredients) > 0 {
			if err := database.DB.Where("formula_id = ?", entityID).Delete(&models.FormulaIngredient{}).Error; err != nil {
				return err
			}
			for i := range f.Ingredients {
				f.Ingredients[i].ID = 0
				f.Ingredients[i].FormulaID = entityID
				if err := database.DB.Create(&f.Ingredients[i]).Error; err != nil {
					return err
				}
			}
		}
		return nil

	default:
		return fmt.Errorf("unknown entity type: %s", entityType)
	}
}
