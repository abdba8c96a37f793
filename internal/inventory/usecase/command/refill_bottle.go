package command

import (
	"context"
	"fmt"

	"github.com/openpour/openpour/internal/inventory/domain"
)

// RefillBottleCommand represents the command to refill one pump's bottle
type RefillBottleCommand struct {
	PumpID       uint
	BottleSizeMl float64
	QuantityMl   float64
}

// RefillBottleHandler handles refill bottle command
type RefillBottleHandler struct {
	repo domain.InventoryRepository
}

// NewRefillBottleHandler creates a new refill bottle handler
func NewRefillBottleHandler(repo domain.InventoryRepository) *RefillBottleHandler {
	return &RefillBottleHandler{repo: repo}
}

// Handle executes the refill bottle command. A zero quantity refills to the
// bottle size; a zero bottle size keeps the stored one.
func (h *RefillBottleHandler) Handle(ctx context.Context, cmd RefillBottleCommand) error {
	if cmd.PumpID == 0 {
		return fmt.Errorf("pump_id is required")
	}
	if cmd.BottleSizeMl < 0 || cmd.QuantityMl < 0 {
		return fmt.Errorf("bottle size and quantity cannot be negative")
	}
	if cmd.BottleSizeMl > 0 && cmd.QuantityMl > cmd.BottleSizeMl {
		return fmt.Errorf("quantity cannot exceed bottle size")
	}

	if err := h.repo.RefillBottle(ctx, cmd.PumpID, cmd.BottleSizeMl, cmd.QuantityMl); err != nil {
		return fmt.Errorf("failed to refill bottle: %w", err)
	}

	return nil
}
