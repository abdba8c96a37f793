package repository

import (
	"context"
	"errors"
	"time"

	"github.com/openpour/openpour/internal/alert/domain"
	"gorm.io/gorm"
)

type GormAlertRepository struct {
	db *gorm.DB
}

func NewGormAlertRepository(db *gorm.DB) *GormAlertRepository {
	return &GormAlertRepository{db: db}
}

func (r *GormAlertRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&domain.Alert{})
}

func (r *GormAlertRepository) Create(ctx context.Context, alert *domain.Alert) error {
	return r.db.WithContext(ctx).Create(alert).Error
}

func (r *GormAlertRepository) FindUnresolved(ctx context.Context, pumpID, ingredientID uint) ([]domain.Alert, error) {
	var alerts []domain.Alert
	err := r.db.WithContext(ctx).
		Where("related_pump_id = ? AND related_ingredient_id = ? AND is_resolved = ?", pumpID, ingredientID, false).
		Order("id ASC").
		Find(&alerts).Error
	if err != nil {
		return nil, err
	}
	return alerts, nil
}

func (r *GormAlertRepository) Refresh(ctx context.Context, id uint, alertType domain.Type, severity domain.Severity, message string) error {
	return r.db.WithContext(ctx).Model(&domain.Alert{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"type":       alertType,
			"severity":   severity,
			"message":    message,
			"created_at": time.Now(),
		}).Error
}

func (r *GormAlertRepository) ResolveIDs(ctx context.Context, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&domain.Alert{}).
		Where("id IN ?", ids).
		Updates(map[string]interface{}{
			"is_resolved": true,
			"resolved_at": time.Now(),
		}).Error
}

func (r *GormAlertRepository) Resolve(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Model(&domain.Alert{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_resolved": true,
			"resolved_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrAlertNotFound
	}
	return nil
}

func (r *GormAlertRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&domain.Alert{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrAlertNotFound
	}
	return nil
}

func (r *GormAlertRepository) FindView(ctx context.Context, id uint) (*domain.View, error) {
	var view domain.View
	err := r.db.WithContext(ctx).
		Table("alerts a").
		Select("a.*, i.name AS ingredient_name, p.pump_number").
		Joins("LEFT JOIN ingredients i ON i.id = a.related_ingredient_id").
		Joins("LEFT JOIN pumps p ON p.id = a.related_pump_id").
		Where("a.id = ?", id).
		Scan(&view).Error
	if err != nil {
		return nil, err
	}
	if view.ID == 0 {
		return nil, domain.ErrAlertNotFound
	}
	return &view, nil
}

func (r *GormAlertRepository) List(ctx context.Context, filter domain.Filter) ([]domain.View, error) {
	q := r.db.WithContext(ctx).
		Table("alerts a").
		Select("a.*, i.name AS ingredient_name, p.pump_number").
		Joins("LEFT JOIN ingredients i ON i.id = a.related_ingredient_id").
		Joins("LEFT JOIN pumps p ON p.id = a.related_pump_id")

	if filter.IsResolved != nil {
		q = q.Where("a.is_resolved = ?", *filter.IsResolved)
	}
	if filter.Severity != "" {
		q = q.Where("a.severity = ?", filter.Severity)
	}
	if filter.Type != "" {
		q = q.Where("a.type = ?", filter.Type)
	}

	var views []domain.View
	err := q.Order("CASE a.severity WHEN 'critical' THEN 0 WHEN 'warning' THEN 1 ELSE 2 END, a.created_at DESC").
		Limit(100).
		Scan(&views).Error
	if err != nil {
		return nil, err
	}
	return views, nil
}

func (r *GormAlertRepository) CountUnresolved(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Alert{}).
		Where("is_resolved = ?", false).
		Count(&count).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, err
	}
	return count, nil
}
