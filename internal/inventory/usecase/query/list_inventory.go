package query

import (
	"context"
	"fmt"

	"github.com/openpour/openpour/internal/inventory/domain"
)

// ListInventoryHandler handles the inventory status query
type ListInventoryHandler struct {
	repo domain.InventoryRepository
}

// NewListInventoryHandler creates a new list inventory handler
func NewListInventoryHandler(repo domain.InventoryRepository) *ListInventoryHandler {
	return &ListInventoryHandler{repo: repo}
}

// Handle returns the fill status of every pump, ordered by pump number
func (h *ListInventoryHandler) Handle(ctx context.Context) ([]domain.InventoryStatus, error) {
	statuses, err := h.repo.StatusList(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list inventory: %w", err)
	}
	return statuses, nil
}
