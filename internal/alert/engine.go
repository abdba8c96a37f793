// Package alert derives stock alerts from inventory levels and keeps at
// most one unresolved alert per (pump, ingredient) pair.
package alert

import (
	"context"
	"fmt"

	"github.com/openpour/openpour/internal/alert/domain"
	invdomain "github.com/openpour/openpour/internal/inventory/domain"
	"github.com/openpour/openpour/pkg/logger"
)

// Notifier delivers an alert to the operator. skipThrottle forces delivery
// regardless of recent send history.
type Notifier interface {
	Notify(ctx context.Context, alertID uint, skipThrottle bool)
}

// Engine evaluates pump stock levels after dispenses and refills
type Engine struct {
	alerts    domain.AlertRepository
	inventory invdomain.InventoryRepository
	notifier  Notifier
}

// NewEngine creates a new alert engine
func NewEngine(alerts domain.AlertRepository, inventory invdomain.InventoryRepository, notifier Notifier) *Engine {
	return &Engine{
		alerts:    alerts,
		inventory: inventory,
		notifier:  notifier,
	}
}

var severityRank = map[domain.Severity]int{
	domain.SeverityInfo:     0,
	domain.SeverityWarning:  1,
	domain.SeverityCritical: 2,
}

// Evaluate re-derives stock alerts for the given pumps. Per-pump failures
// are logged and do not stop evaluation of the remaining pumps.
func (e *Engine) Evaluate(ctx context.Context, pumpIDs []uint) {
	for _, pumpID := range pumpIDs {
		if err := e.evaluatePump(ctx, pumpID); err != nil {
			logger.Error(ctx).
				Err(err).
				Uint("pump_id", pumpID).
				Msg("Failed to evaluate pump stock")
		}
	}
}

func (e *Engine) evaluatePump(ctx context.Context, pumpID uint) error {
	level, err := e.inventory.StockLevel(ctx, pumpID)
	if err != nil {
		return fmt.Errorf("failed to load stock level: %w", err)
	}

	alertType, severity, message, conditionMet := classify(level)
	if !conditionMet {
		// Existing alerts stay until a refill or manual resolution clears
		// them. Stock cannot rise on its own, so auto-clearing here would
		// only mask operator work that is still pending.
		return nil
	}

	existing, err := e.alerts.FindUnresolved(ctx, level.PumpID, level.IngredientID)
	if err != nil {
		return fmt.Errorf("failed to look up unresolved alerts: %w", err)
	}

	switch {
	case len(existing) == 0:
		pumpRef := level.PumpID
		ingredientRef := level.IngredientID
		alert := &domain.Alert{
			Type:                alertType,
			Severity:            severity,
			Message:             message,
			RelatedPumpID:       &pumpRef,
			RelatedIngredientID: &ingredientRef,
		}
		if err := e.alerts.Create(ctx, alert); err != nil {
			return fmt.Errorf("failed to create alert: %w", err)
		}

		logger.Info(ctx).
			Uint("alert_id", alert.ID).
			Uint("pump_id", level.PumpID).
			Str("type", string(alertType)).
			Str("severity", string(severity)).
			Msg("Alert created")

		e.notifier.Notify(ctx, alert.ID, false)

	default:
		first := existing[0]
		escalated := severityRank[severity] > severityRank[first.Severity]

		if err := e.alerts.Refresh(ctx, first.ID, alertType, severity, message); err != nil {
			return fmt.Errorf("failed to refresh alert %d: %w", first.ID, err)
		}

		// Duplicate unresolved rows for the same pair come from data drift;
		// keep the oldest and resolve the rest.
		if len(existing) > 1 {
			ids := make([]uint, 0, len(existing)-1)
			for _, dup := range existing[1:] {
				ids = append(ids, dup.ID)
			}
			if err := e.alerts.ResolveIDs(ctx, ids); err != nil {
				return fmt.Errorf("failed to resolve duplicate alerts: %w", err)
			}
			logger.Warn(ctx).
				Uint("pump_id", level.PumpID).
				Int("duplicates", len(ids)).
				Msg("Resolved duplicate unresolved alerts")
		}

		if escalated {
			logger.Warn(ctx).
				Uint("alert_id", first.ID).
				Uint("pump_id", level.PumpID).
				Str("from", string(first.Severity)).
				Str("to", string(severity)).
				Msg("Alert severity escalated")
			e.notifier.Notify(ctx, first.ID, true)
		}
	}

	return nil
}

// CreateSystemAlert records a system-level failure, such as a hardware
// timeout, and notifies unconditionally. Returns the new alert id.
func (e *Engine) CreateSystemAlert(ctx context.Context, message string) (uint, error) {
	alert := &domain.Alert{
		Type:     domain.TypeSystemError,
		Severity: domain.SeverityCritical,
		Message:  message,
	}
	if err := e.alerts.Create(ctx, alert); err != nil {
		return 0, fmt.Errorf("failed to create system alert: %w", err)
	}

	logger.Error(ctx).
		Uint("alert_id", alert.ID).
		Str("message", message).
		Msg("System alert created")

	e.notifier.Notify(ctx, alert.ID, true)
	return alert.ID, nil
}

func classify(level *invdomain.StockLevel) (domain.Type, domain.Severity, string, bool) {
	switch {
	case level.CurrentQuantityMl <= 0:
		message := fmt.Sprintf("%s bottle on pump %d is empty", level.IngredientName, level.PumpNumber)
		return domain.TypeEmptyBottle, domain.SeverityCritical, message, true
	case level.CurrentQuantityMl <= level.MinQuantityAlertMl:
		message := fmt.Sprintf("%s is running low on pump %d (%.0f ml remaining)",
			level.IngredientName, level.PumpNumber, level.CurrentQuantityMl)
		return domain.TypeLowStock, domain.SeverityWarning, message, true
	}
	return "", "", "", false
}
