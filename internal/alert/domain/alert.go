package domain

import (
	"context"
	"errors"
	"time"
)

// ErrAlertNotFound is returned when an alert id does not exist
var ErrAlertNotFound = errors.New("alert not found")

// Type classifies what an alert is about
type Type string

const (
	TypeLowStock            Type = "low_stock"
	TypeEmptyBottle         Type = "empty_bottle"
	TypeSystemError         Type = "system_error"
	TypeMaintenanceRequired Type = "maintenance_required"
)

// Severity grades how urgent an alert is
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Alert is a persistent operator-facing condition. At most one unresolved
// alert exists per (pump, ingredient) pair; duplicates are resolved, not
// accumulated.
type Alert struct {
	ID                  uint       `json:"id" gorm:"primaryKey"`
	Type                Type       `json:"type" gorm:"not null"`
	Severity            Severity   `json:"severity" gorm:"not null"`
	Message             string     `json:"message" gorm:"not null"`
	RelatedPumpID       *uint      `json:"related_pump_id" gorm:"index"`
	RelatedIngredientID *uint      `json:"related_ingredient_id"`
	IsResolved          bool       `json:"is_resolved" gorm:"not null;default:false;index"`
	CreatedAt           time.Time  `json:"created_at"`
	ResolvedAt          *time.Time `json:"resolved_at"`
}

// TableName specifies the table name
func (Alert) TableName() string {
	return "alerts"
}

// View is an alert joined with its ingredient and pump context
type View struct {
	Alert
	IngredientName string `json:"ingredient_name,omitempty"`
	PumpNumber     *int   `json:"pump_number,omitempty"`
}

// Filter narrows the alert list endpoint
type Filter struct {
	IsResolved *bool
	Severity   Severity
	Type       Type
}

// AlertRepository defines the contract for alert data access
type AlertRepository interface {
	Create(ctx context.Context, alert *Alert) error

	// FindUnresolved returns the unresolved alerts for a (pump, ingredient)
	// pair, oldest first.
	FindUnresolved(ctx context.Context, pumpID, ingredientID uint) ([]Alert, error)

	// Refresh updates type, severity, message and created_at in place so the
	// timestamp reflects the latest evaluation.
	Refresh(ctx context.Context, id uint, alertType Type, severity Severity, message string) error

	// ResolveIDs marks the given alerts resolved
	ResolveIDs(ctx context.Context, ids []uint) error

	// Resolve marks one alert resolved. Returns ErrAlertNotFound when the
	// id does not exist.
	Resolve(ctx context.Context, id uint) error

	// Delete removes an alert permanently
	Delete(ctx context.Context, id uint) error

	// FindView loads one alert with ingredient/pump context
	FindView(ctx context.Context, id uint) (*View, error)

	// List returns alerts matching the filter, most urgent first
	List(ctx context.Context, filter Filter) ([]View, error)

	// CountUnresolved returns the number of unresolved alerts
	CountUnresolved(ctx context.Context) (int64, error)
}
