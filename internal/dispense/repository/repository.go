package repository

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/openpour/openpour/internal/dispense/domain"
	"gorm.io/gorm"
)

var terminalStatuses = []domain.Status{
	domain.StatusCompleted,
	domain.StatusFailed,
	domain.StatusCancelled,
}

type GormDispenseRepository struct {
	db *gorm.DB
}

func NewGormDispenseRepository(db *gorm.DB) *GormDispenseRepository {
	return &GormDispenseRepository{db: db}
}

func (r *GormDispenseRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&domain.DispenseLog{}, &domain.DispenseDetail{})
}

func (r *GormDispenseRepository) CreateTx(tx *gorm.DB, log *domain.DispenseLog) error {
	return tx.Create(log).Error
}

func (r *GormDispenseRepository) FindByID(ctx context.Context, id uint) (*domain.DispenseLog, error) {
	var log domain.DispenseLog
	err := r.db.WithContext(ctx).Preload("Details").First(&log, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrLogNotFound
	}
	if err != nil {
		return nil, err
	}
	return &log, nil
}

func (r *GormDispenseRepository) SetStatusIfActive(ctx context.Context, id uint, status domain.Status) error {
	res := r.db.WithContext(ctx).Model(&domain.DispenseLog{}).
		Where("id = ? AND status NOT IN ?", id, terminalStatuses).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return r.mapMissing(ctx, id)
	}
	return nil
}

// MarkTerminalIfActive is the single serialization point for the
// hardware-ack-vs-timeout race: the conditional update lets exactly one
// terminal transition win.
func (r *GormDispenseRepository) MarkTerminalIfActive(ctx context.Context, id uint, status domain.Status, errorMessage string) (bool, error) {
	var transitioned bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var log domain.DispenseLog
		if err := tx.Select("id", "started_at").First(&log, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrLogNotFound
			}
			return err
		}

		now := time.Now()
		duration := int(now.Sub(log.StartedAt).Seconds())
		res := tx.Model(&domain.DispenseLog{}).
			Where("id = ? AND status NOT IN ?", id, terminalStatuses).
			Updates(map[string]interface{}{
				"status":           status,
				"error_message":    errorMessage,
				"completed_at":     now,
				"duration_seconds": duration,
			})
		if res.Error != nil {
			return res.Error
		}
		transitioned = res.RowsAffected > 0
		return nil
	})
	return transitioned, err
}

func (r *GormDispenseRepository) PumpIDs(ctx context.Context, id uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&domain.DispenseDetail{}).
		Where("log_id = ?", id).
		Distinct("pump_id").
		Pluck("pump_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *GormDispenseRepository) History(ctx context.Context, limit int) ([]domain.HistoryEntry, error) {
	var logs []domain.DispenseLog
	err := r.db.WithContext(ctx).Preload("Details").
		Order("started_at DESC").
		Limit(limit).
		Find(&logs).Error
	if err != nil {
		return nil, err
	}

	entries := make([]domain.HistoryEntry, 0, len(logs))
	for _, log := range logs {
		details := log.Details
		sort.Slice(details, func(i, j int) bool {
			return details[i].OrderNumber < details[j].OrderNumber
		})
		names := make([]string, 0, len(details))
		for _, d := range details {
			names = append(names, d.IngredientName)
		}
		entries = append(entries, domain.HistoryEntry{
			ID:              log.ID,
			RecipeID:        log.RecipeID,
			RecipeName:      log.RecipeName,
			TotalVolumeMl:   log.TotalVolumeMl,
			Status:          log.Status,
			StartedAt:       log.StartedAt,
			CompletedAt:     log.CompletedAt,
			DurationSeconds: log.DurationSeconds,
			ErrorMessage:    log.ErrorMessage,
			Ingredients:     strings.Join(names, ", "),
		})
	}
	return entries, nil
}

func (r *GormDispenseRepository) mapMissing(ctx context.Context, id uint) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.DispenseLog{}).
		Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return domain.ErrLogNotFound
	}
	// Row exists but is terminal; stickiness makes this a no-op.
	return nil
}
