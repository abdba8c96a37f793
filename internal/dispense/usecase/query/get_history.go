package query

import (
	"context"
	"fmt"

	"github.com/openpour/openpour/internal/dispense/domain"
)

// GetHistoryQuery carries the history parameters
type GetHistoryQuery struct {
	Limit int
}

// GetHistoryHandler handles the dispense history query
type GetHistoryHandler struct {
	repo domain.DispenseRepository
}

// NewGetHistoryHandler creates a new get history handler
func NewGetHistoryHandler(repo domain.DispenseRepository) *GetHistoryHandler {
	return &GetHistoryHandler{repo: repo}
}

// Handle returns recent dispense attempts, newest first
func (h *GetHistoryHandler) Handle(ctx context.Context, query GetHistoryQuery) ([]domain.HistoryEntry, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}

	entries, err := h.repo.History(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load dispense history: %w", err)
	}
	return entries, nil
}
