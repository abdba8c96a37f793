package command

import (
	"context"
	"fmt"

	"github.com/openpour/openpour/internal/inventory/domain"
)

// UpdateSettingsCommand represents the command to change a pump's bottle
// size and alert threshold
type UpdateSettingsCommand struct {
	PumpID             uint
	BottleSizeMl       float64
	MinQuantityAlertMl float64
}

// UpdateSettingsHandler handles update settings command
type UpdateSettingsHandler struct {
	repo domain.InventoryRepository
}

// NewUpdateSettingsHandler creates a new update settings handler
func NewUpdateSettingsHandler(repo domain.InventoryRepository) *UpdateSettingsHandler {
	return &UpdateSettingsHandler{repo: repo}
}

// Handle executes the update settings command
func (h *UpdateSettingsHandler) Handle(ctx context.Context, cmd UpdateSettingsCommand) error {
	if cmd.PumpID == 0 {
		return fmt.Errorf("pump_id is required")
	}
	if cmd.BottleSizeMl <= 0 {
		return fmt.Errorf("bottle size must be positive")
	}
	if cmd.MinQuantityAlertMl < 0 {
		return fmt.Errorf("alert threshold cannot be negative")
	}
	if cmd.MinQuantityAlertMl > cmd.BottleSizeMl {
		return fmt.Errorf("alert threshold cannot exceed bottle size")
	}

	if err := h.repo.UpdateSettings(ctx, cmd.PumpID, cmd.BottleSizeMl, cmd.MinQuantityAlertMl); err != nil {
		return fmt.Errorf("failed to update settings: %w", err)
	}

	return nil
}
