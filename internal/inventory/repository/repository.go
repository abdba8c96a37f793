package repository

import (
	"context"
	"errors"
	"time"

	alertdomain "github.com/openpour/openpour/internal/alert/domain"
	"github.com/openpour/openpour/internal/inventory/domain"
	"gorm.io/gorm"
)

type GormInventoryRepository struct {
	db *gorm.DB
}

func NewGormInventoryRepository(db *gorm.DB) *GormInventoryRepository {
	return &GormInventoryRepository{db: db}
}

func (r *GormInventoryRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&domain.Pump{}, &domain.Inventory{})
}

// ReserveTx decrements stock unconditionally; the resolver already gated
// entry. The post-decrement read is defense in depth: a concurrent dispense
// may have drained the bottle between the advisory check and this update.
func (r *GormInventoryRepository) ReserveTx(tx *gorm.DB, pumpID uint, quantityMl float64) error {
	res := tx.Model(&domain.Inventory{}).
		Where("pump_id = ?", pumpID).
		UpdateColumn("current_quantity_ml", gorm.Expr("current_quantity_ml - ?", quantityMl))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrPumpNotFound
	}

	var remaining float64
	if err := tx.Model(&domain.Inventory{}).
		Where("pump_id = ?", pumpID).
		Select("current_quantity_ml").
		Scan(&remaining).Error; err != nil {
		return err
	}
	if remaining < 0 {
		return domain.ErrInsufficientStock
	}
	return nil
}

// RefillBottle refills one pump. A non-positive bottle size keeps the
// stored one, and a non-positive quantity fills to the bottle size.
func (r *GormInventoryRepository) RefillBottle(ctx context.Context, pumpID uint, bottleSizeMl, quantityMl float64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		size := bottleSizeMl
		if size <= 0 {
			var inv domain.Inventory
			if err := tx.Where("pump_id = ?", pumpID).First(&inv).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return domain.ErrPumpNotFound
				}
				return err
			}
			size = inv.BottleSizeMl
		}
		qty := quantityMl
		if qty <= 0 {
			qty = size
		}

		updates := map[string]interface{}{
			"initial_quantity_ml": qty,
			"current_quantity_ml": qty,
			"refilled_at":         time.Now(),
		}
		if bottleSizeMl > 0 {
			updates["bottle_size_ml"] = bottleSizeMl
		}
		res := tx.Model(&domain.Inventory{}).
			Where("pump_id = ?", pumpID).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrPumpNotFound
		}
		// A refill always clears stale stock alerts for the pump.
		return resolveStockAlerts(tx, &pumpID)
	})
}

func (r *GormInventoryRepository) RefillAll(ctx context.Context) (int64, error) {
	var refilled int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		res := tx.Model(&domain.Inventory{}).
			Where("1 = 1").
			Updates(map[string]interface{}{
				"initial_quantity_ml": gorm.Expr("bottle_size_ml"),
				"current_quantity_ml": gorm.Expr("bottle_size_ml"),
				"refilled_at":         now,
			})
		if res.Error != nil {
			return res.Error
		}
		refilled = res.RowsAffected
		return resolveStockAlerts(tx, nil)
	})
	return refilled, err
}

func (r *GormInventoryRepository) UpdateSettings(ctx context.Context, pumpID uint, bottleSizeMl, minQuantityAlertMl float64) error {
	res := r.db.WithContext(ctx).Model(&domain.Inventory{}).
		Where("pump_id = ?", pumpID).
		Updates(map[string]interface{}{
			"bottle_size_ml":        bottleSizeMl,
			"min_quantity_alert_ml": minQuantityAlertMl,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrPumpNotFound
	}
	return nil
}

func (r *GormInventoryRepository) StatusList(ctx context.Context) ([]domain.InventoryStatus, error) {
	var rows []domain.InventoryStatus
	err := r.db.WithContext(ctx).
		Table("inventory inv").
		Select(`inv.pump_id, p.pump_number, inv.ingredient_id, i.name AS ingredient_name,
			inv.bottle_size_ml, inv.current_quantity_ml, inv.min_quantity_alert_ml`).
		Joins("JOIN ingredients i ON i.id = inv.ingredient_id").
		Joins("JOIN pumps p ON p.id = inv.pump_id").
		Order("p.pump_number ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for idx := range rows {
		r := &rows[idx]
		if r.BottleSizeMl > 0 {
			r.FillPercentage = roundPct(r.CurrentQuantityMl / r.BottleSizeMl * 100)
		}
		r.Status = classifyFill(r.CurrentQuantityMl, r.MinQuantityAlertMl)
	}
	return rows, nil
}

func (r *GormInventoryRepository) StockLevel(ctx context.Context, pumpID uint) (*domain.StockLevel, error) {
	var level domain.StockLevel
	res := r.db.WithContext(ctx).
		Table("inventory inv").
		Select(`inv.pump_id, p.pump_number, inv.ingredient_id, i.name AS ingredient_name,
			inv.current_quantity_ml, inv.min_quantity_alert_ml`).
		Joins("JOIN ingredients i ON i.id = inv.ingredient_id").
		Joins("JOIN pumps p ON p.id = inv.pump_id").
		Where("inv.pump_id = ?", pumpID).
		Scan(&level)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 || level.PumpID == 0 {
		return nil, domain.ErrPumpNotFound
	}
	return &level, nil
}

func resolveStockAlerts(tx *gorm.DB, pumpID *uint) error {
	q := tx.Model(&alertdomain.Alert{}).
		Where("is_resolved = ?", false).
		Where("type IN ?", []alertdomain.Type{alertdomain.TypeLowStock, alertdomain.TypeEmptyBottle})
	if pumpID != nil {
		q = q.Where("related_pump_id = ?", *pumpID)
	}
	err := q.Updates(map[string]interface{}{
		"is_resolved": true,
		"resolved_at": time.Now(),
	}).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return nil
}

func classifyFill(current, minAlert float64) string {
	switch {
	case current <= 0:
		return "empty"
	case current <= minAlert:
		return "low"
	case current <= minAlert*1.5:
		return "warning"
	default:
		return "ok"
	}
}

func roundPct(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
