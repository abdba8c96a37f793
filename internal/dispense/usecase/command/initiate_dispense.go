package command

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/openpour/openpour/bus"
	"github.com/openpour/openpour/internal/dispense/domain"
	"github.com/openpour/openpour/internal/dispense/watchdog"
	invdomain "github.com/openpour/openpour/internal/inventory/domain"
	"github.com/openpour/openpour/internal/recipe/usecase/query"
	"github.com/openpour/openpour/pkg/logger"
)

// CommandPublisher dispatches a dispense command to the hardware bus
type CommandPublisher interface {
	PublishDispenseCommand(ctx context.Context, event bus.DispenseCommandEvent) error
}

// InitiateDispenseCommand represents the command to start a dispense
type InitiateDispenseCommand struct {
	RecipeID uint
	Strength query.Strength
}

// InitiateDispenseResult is returned to the caller immediately; hardware
// completion arrives later through the status handler.
type InitiateDispenseResult struct {
	LogID         uint              `json:"log_id"`
	RecipeName    string            `json:"recipe_name"`
	TotalVolumeMl float64           `json:"total_volume_ml"`
	Commands      []bus.PumpCommand `json:"commands"`
}

// InitiateDispenseHandler handles the initiate dispense command
type InitiateDispenseHandler struct {
	db            *gorm.DB
	resolver      *query.ResolveRecipeHandler
	dispenseRepo  domain.DispenseRepository
	inventoryRepo invdomain.InventoryRepository
	publisher     CommandPublisher
	watchdog      *watchdog.Watchdog
}

// NewInitiateDispenseHandler creates a new initiate dispense handler
func NewInitiateDispenseHandler(
	db *gorm.DB,
	resolver *query.ResolveRecipeHandler,
	dispenseRepo domain.DispenseRepository,
	inventoryRepo invdomain.InventoryRepository,
	publisher CommandPublisher,
	wd *watchdog.Watchdog,
) *InitiateDispenseHandler {
	return &InitiateDispenseHandler{
		db:            db,
		resolver:      resolver,
		dispenseRepo:  dispenseRepo,
		inventoryRepo: inventoryRepo,
		publisher:     publisher,
		watchdog:      wd,
	}
}

// Handle resolves the recipe, reserves inventory and creates the dispense
// log in one transaction, then dispatches the hardware command best-effort.
// A publish failure leaves the log as started; the watchdog fails it later
// if the hardware never reports.
func (h *InitiateDispenseHandler) Handle(ctx context.Context, cmd InitiateDispenseCommand) (*InitiateDispenseResult, error) {
	if cmd.RecipeID == 0 {
		return nil, fmt.Errorf("recipe_id is required")
	}

	resolved, err := h.resolver.Handle(query.ResolveRecipeQuery{
		RecipeID: cmd.RecipeID,
		Strength: cmd.Strength,
	})
	if err != nil {
		return nil, err
	}

	log := &domain.DispenseLog{
		RecipeID:      resolved.RecipeID,
		RecipeName:    resolved.RecipeName,
		TotalVolumeMl: resolved.TotalVolumeMl,
		Status:        domain.StatusStarted,
	}
	for _, item := range resolved.Items {
		log.Details = append(log.Details, domain.DispenseDetail{
			PumpID:         item.PumpID,
			IngredientID:   item.IngredientID,
			IngredientName: item.IngredientName,
			QuantityMl:     item.VolumeMl,
			OrderNumber:    item.OrderNumber,
		})
	}

	// Log insert and every reservation commit or roll back together.
	// Partial reservation must never be visible.
	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := h.dispenseRepo.CreateTx(tx, log); err != nil {
			return fmt.Errorf("failed to create dispense log: %w", err)
		}
		for _, item := range resolved.Items {
			if err := h.inventoryRepo.ReserveTx(tx, item.PumpID, item.VolumeMl); err != nil {
				return fmt.Errorf("failed to reserve %s on pump %d: %w", item.IngredientName, item.PumpID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	commands := make([]bus.PumpCommand, 0, len(resolved.Items))
	for _, item := range resolved.Items {
		commands = append(commands, bus.PumpCommand{
			PumpNumber: item.PumpNumber,
			QuantityMl: item.VolumeMl,
			Ingredient: item.IngredientName,
			Order:      item.OrderNumber,
		})
	}

	// Hardware dispatch is deliberately outside the transaction and
	// best-effort. The committed log plus the watchdog cover the case
	// where the command never reaches the controller.
	if err := h.publisher.PublishDispenseCommand(ctx, bus.DispenseCommandEvent{
		LogID:    log.ID,
		Commands: commands,
	}); err != nil {
		logger.Error(ctx).
			Err(err).
			Uint("log_id", log.ID).
			Msg("Failed to publish dispense command, relying on watchdog")
	}

	h.watchdog.Arm(log.ID)

	logger.Info(ctx).
		Uint("log_id", log.ID).
		Uint("recipe_id", resolved.RecipeID).
		Str("strength", string(resolved.Strength)).
		Float64("total_volume_ml", resolved.TotalVolumeMl).
		Msg("Dispense initiated")

	return &InitiateDispenseResult{
		LogID:         log.ID,
		RecipeName:    resolved.RecipeName,
		TotalVolumeMl: resolved.TotalVolumeMl,
		Commands:      commands,
	}, nil
}
