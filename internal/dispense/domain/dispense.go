package domain

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// ErrLogNotFound is returned when a dispense log id does not exist
var ErrLogNotFound = errors.New("dispense log not found")

// Status is the lifecycle state of a dispense attempt
type Status string

const (
	StatusStarted    Status = "started"
	StatusDispensing Status = "dispensing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// IsTerminal reports whether the status ends the dispense lifecycle
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// IsValid reports whether the status is a known lifecycle state
func (s Status) IsValid() bool {
	switch s {
	case StatusStarted, StatusDispensing, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// DispenseLog is one dispense attempt. The recipe name and per-pump volumes
// are snapshotted so history survives recipe edits.
type DispenseLog struct {
	ID              uint             `json:"id" gorm:"primaryKey"`
	RecipeID        uint             `json:"recipe_id" gorm:"not null;index"`
	RecipeName      string           `json:"recipe_name" gorm:"not null"`
	TotalVolumeMl   float64          `json:"total_volume_ml" gorm:"not null"`
	Status          Status           `json:"status" gorm:"not null;default:'started';index"`
	StartedAt       time.Time        `json:"started_at" gorm:"autoCreateTime"`
	CompletedAt     *time.Time       `json:"completed_at"`
	DurationSeconds *int             `json:"duration_seconds"`
	ErrorMessage    string           `json:"error_message"`
	Details         []DispenseDetail `json:"details" gorm:"foreignKey:LogID"`
}

// TableName specifies the table name
func (DispenseLog) TableName() string {
	return "dispense_log"
}

// DispenseDetail is the per-pump snapshot of one dispense attempt
type DispenseDetail struct {
	ID             uint    `json:"id" gorm:"primaryKey"`
	LogID          uint    `json:"log_id" gorm:"not null;index"`
	PumpID         uint    `json:"pump_id" gorm:"not null"`
	IngredientID   uint    `json:"ingredient_id" gorm:"not null"`
	IngredientName string  `json:"ingredient_name" gorm:"not null"`
	QuantityMl     float64 `json:"quantity_ml" gorm:"not null"`
	OrderNumber    int     `json:"order_number" gorm:"not null;default:0"`
}

// TableName specifies the table name
func (DispenseDetail) TableName() string {
	return "dispense_details"
}

// HistoryEntry is one row of the dispense history read model
type HistoryEntry struct {
	ID              uint       `json:"id"`
	RecipeID        uint       `json:"recipe_id"`
	RecipeName      string     `json:"recipe_name"`
	TotalVolumeMl   float64    `json:"total_volume_ml"`
	Status          Status     `json:"status"`
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at"`
	DurationSeconds *int       `json:"duration_seconds"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	Ingredients     string     `json:"ingredients"`
}

// DispenseRepository defines the contract for dispense log data access
type DispenseRepository interface {
	// CreateTx inserts the log and its details inside the caller's transaction
	CreateTx(tx *gorm.DB, log *DispenseLog) error

	// FindByID loads a log with its details
	FindByID(ctx context.Context, id uint) (*DispenseLog, error)

	// SetStatusIfActive records a non-terminal progress status. Terminal
	// logs are left untouched.
	SetStatusIfActive(ctx context.Context, id uint, status Status) error

	// MarkTerminalIfActive transitions a log to a terminal status exactly
	// once, stamping completed_at and duration_seconds. Returns false when
	// the log was already terminal.
	MarkTerminalIfActive(ctx context.Context, id uint, status Status, errorMessage string) (bool, error)

	// PumpIDs returns the distinct pumps touched by a log's details
	PumpIDs(ctx context.Context, id uint) ([]uint, error)

	// History returns recent dispense attempts, newest first, with the
	// detail ingredient names concatenated.
	History(ctx context.Context, limit int) ([]HistoryEntry, error)
}
