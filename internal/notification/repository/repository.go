package repository

import (
	"context"
	"time"

	"github.com/openpour/openpour/internal/notification/domain"
	"gorm.io/gorm"
)

type GormNotificationRepository struct {
	db *gorm.DB
}

func NewGormNotificationRepository(db *gorm.DB) *GormNotificationRepository {
	return &GormNotificationRepository{db: db}
}

func (r *GormNotificationRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&domain.EmailNotification{})
}

func (r *GormNotificationRepository) Create(ctx context.Context, notification *domain.EmailNotification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

func (r *GormNotificationRepository) CountSince(ctx context.Context, alertID uint, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.EmailNotification{}).
		Where("alert_id = ? AND sent_at >= ?", alertID, since).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *GormNotificationRepository) History(ctx context.Context, limit int) ([]domain.HistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	var entries []domain.HistoryEntry
	err := r.db.WithContext(ctx).
		Table("email_notifications en").
		Select("en.*, a.message AS alert_message, a.severity AS alert_severity").
		Joins("LEFT JOIN alerts a ON a.id = en.alert_id").
		Order("en.sent_at DESC").
		Limit(limit).
		Scan(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
