// Package smarthome mirrors dispenser state onto the bus for
// home-automation consumers. Everything here is fire-and-forget.
package smarthome

import (
	"context"

	"github.com/openpour/openpour/bus"
	alertdomain "github.com/openpour/openpour/internal/alert/domain"
	dispensedomain "github.com/openpour/openpour/internal/dispense/domain"
	invdomain "github.com/openpour/openpour/internal/inventory/domain"
	"github.com/openpour/openpour/pkg/logger"
)

// StateBus publishes the smart-home state event
type StateBus interface {
	PublishSmartHomeState(ctx context.Context, event bus.SmartHomeStateEvent) error
}

// StatePublisher assembles and publishes dispenser state snapshots
type StatePublisher struct {
	bus       StateBus
	inventory invdomain.InventoryRepository
	alerts    alertdomain.AlertRepository
	dispense  dispensedomain.DispenseRepository
}

// NewStatePublisher creates a new smart-home state publisher
func NewStatePublisher(
	stateBus StateBus,
	inventory invdomain.InventoryRepository,
	alerts alertdomain.AlertRepository,
	dispense dispensedomain.DispenseRepository,
) *StatePublisher {
	return &StatePublisher{
		bus:       stateBus,
		inventory: inventory,
		alerts:    alerts,
		dispense:  dispense,
	}
}

// lastDispense is the subset of a dispense log mirrored outward
type lastDispense struct {
	LogID         uint    `json:"log_id"`
	RecipeName    string  `json:"recipe_name"`
	Status        string  `json:"status"`
	TotalVolumeMl float64 `json:"total_volume_ml"`
}

// PublishPumpStates mirrors the current fill state of every pump
func (p *StatePublisher) PublishPumpStates(ctx context.Context) {
	statuses, err := p.inventory.StatusList(ctx)
	if err != nil {
		logger.Error(ctx).Err(err).Msg("Failed to load pump states for smart-home mirror")
		return
	}
	unresolved, err := p.alerts.CountUnresolved(ctx)
	if err != nil {
		logger.Error(ctx).Err(err).Msg("Failed to count unresolved alerts for smart-home mirror")
		return
	}

	event := bus.SmartHomeStateEvent{
		Pumps:            statuses,
		UnresolvedAlerts: unresolved,
	}
	if err := p.bus.PublishSmartHomeState(ctx, event); err != nil {
		logger.Error(ctx).Err(err).Msg("Failed to publish smart-home pump states")
	}
}

// PublishLastDispense mirrors a finished dispense
func (p *StatePublisher) PublishLastDispense(ctx context.Context, logID uint) {
	log, err := p.dispense.FindByID(ctx, logID)
	if err != nil {
		logger.Error(ctx).Err(err).Uint("log_id", logID).Msg("Failed to load dispense for smart-home mirror")
		return
	}
	unresolved, err := p.alerts.CountUnresolved(ctx)
	if err != nil {
		logger.Error(ctx).Err(err).Msg("Failed to count unresolved alerts for smart-home mirror")
		return
	}

	event := bus.SmartHomeStateEvent{
		UnresolvedAlerts: unresolved,
		LastDispense: lastDispense{
			LogID:         log.ID,
			RecipeName:    log.RecipeName,
			Status:        string(log.Status),
			TotalVolumeMl: log.TotalVolumeMl,
		},
	}
	if err := p.bus.PublishSmartHomeState(ctx, event); err != nil {
		logger.Error(ctx).Err(err).Uint("log_id", logID).Msg("Failed to publish smart-home last dispense")
	}
}
