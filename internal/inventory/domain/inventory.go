package domain

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// ErrInsufficientStock is returned when a reservation would drive a bottle
// below zero. The enclosing transaction must be rolled back.
var ErrInsufficientStock = errors.New("insufficient stock")

// ErrPumpNotFound is returned when no inventory row exists for a pump
var ErrPumpNotFound = errors.New("inventory record not found")

// Pump represents a physical dispensing unit
type Pump struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	PumpNumber   int       `json:"pump_number" gorm:"not null;uniqueIndex"`
	IngredientID *uint     `json:"ingredient_id"`
	IsActive     bool      `json:"is_active" gorm:"not null;default:true"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName specifies the table name
func (Pump) TableName() string {
	return "pumps"
}

// Inventory tracks the bottle mounted on a pump
type Inventory struct {
	ID                 uint       `json:"id" gorm:"primaryKey"`
	PumpID             uint       `json:"pump_id" gorm:"not null;uniqueIndex"`
	IngredientID       uint       `json:"ingredient_id" gorm:"not null;index"`
	BottleSizeMl       float64    `json:"bottle_size_ml" gorm:"not null;default:700"`
	InitialQuantityMl  float64    `json:"initial_quantity_ml" gorm:"not null;default:0"`
	CurrentQuantityMl  float64    `json:"current_quantity_ml" gorm:"not null;default:0"`
	MinQuantityAlertMl float64    `json:"min_quantity_alert_ml" gorm:"not null;default:100"`
	RefilledAt         *time.Time `json:"refilled_at"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// TableName specifies the table name
func (Inventory) TableName() string {
	return "inventory"
}

// InventoryStatus is the read model for the inventory list endpoint
type InventoryStatus struct {
	PumpID             uint    `json:"pump_id"`
	PumpNumber         int     `json:"pump_number"`
	IngredientID       uint    `json:"ingredient_id"`
	IngredientName     string  `json:"ingredient_name"`
	BottleSizeMl       float64 `json:"bottle_size_ml"`
	CurrentQuantityMl  float64 `json:"current_quantity_ml"`
	MinQuantityAlertMl float64 `json:"min_quantity_alert_ml"`
	FillPercentage     float64 `json:"fill_percentage"`
	Status             string  `json:"status"`
}

// StockLevel is the per-pump snapshot the alert engine classifies
type StockLevel struct {
	PumpID             uint
	PumpNumber         int
	IngredientID       uint
	IngredientName     string
	CurrentQuantityMl  float64
	MinQuantityAlertMl float64
}

// InventoryRepository defines the contract for inventory data access
type InventoryRepository interface {
	// ReserveTx decrements a pump's stock inside the caller's transaction.
	// A decrement that drives the quantity negative returns
	// ErrInsufficientStock; the caller must roll back.
	ReserveTx(tx *gorm.DB, pumpID uint, quantityMl float64) error

	// RefillBottle resets current and initial quantity, stamps refilled_at
	// and resolves stale stock alerts for the pump, all in one transaction.
	RefillBottle(ctx context.Context, pumpID uint, bottleSizeMl, quantityMl float64) error

	// RefillAll refills every pump and resolves all stock alerts. Returns
	// the number of refilled bottles.
	RefillAll(ctx context.Context) (int64, error)

	// UpdateSettings changes bottle size and alert threshold for a pump
	UpdateSettings(ctx context.Context, pumpID uint, bottleSizeMl, minQuantityAlertMl float64) error

	// StatusList returns the joined inventory read model ordered by pump number
	StatusList(ctx context.Context) ([]InventoryStatus, error)

	// StockLevel loads the alert-relevant snapshot for one pump
	StockLevel(ctx context.Context, pumpID uint) (*StockLevel, error)
}
