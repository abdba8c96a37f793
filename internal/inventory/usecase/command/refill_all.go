package command

import (
	"context"
	"fmt"

	"github.com/openpour/openpour/internal/inventory/domain"
)

// RefillAllHandler handles the bulk refill command
type RefillAllHandler struct {
	repo domain.InventoryRepository
}

// NewRefillAllHandler creates a new refill all handler
func NewRefillAllHandler(repo domain.InventoryRepository) *RefillAllHandler {
	return &RefillAllHandler{repo: repo}
}

// Handle refills every bottle to its configured size and resolves all
// outstanding stock alerts. Returns the number of refilled bottles.
func (h *RefillAllHandler) Handle(ctx context.Context) (int64, error) {
	refilled, err := h.repo.RefillAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to refill all bottles: %w", err)
	}
	return refilled, nil
}
