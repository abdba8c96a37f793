package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/openpour/openpour/internal/inventory/domain"
	"github.com/openpour/openpour/internal/inventory/usecase/command"
	"github.com/openpour/openpour/internal/inventory/usecase/query"
	"github.com/openpour/openpour/pkg/logger"
)

// InventoryHandler handles HTTP requests for pump inventory
type InventoryHandler struct {
	refillBottleHandler   *command.RefillBottleHandler
	refillAllHandler      *command.RefillAllHandler
	updateSettingsHandler *command.UpdateSettingsHandler
	listHandler           *query.ListInventoryHandler
}

// NewInventoryHandler creates a new inventory handler
func NewInventoryHandler(
	refillBottleHandler *command.RefillBottleHandler,
	refillAllHandler *command.RefillAllHandler,
	updateSettingsHandler *command.UpdateSettingsHandler,
	listHandler *query.ListInventoryHandler,
) *InventoryHandler {
	return &InventoryHandler{
		refillBottleHandler:   refillBottleHandler,
		refillAllHandler:      refillAllHandler,
		updateSettingsHandler: updateSettingsHandler,
		listHandler:           listHandler,
	}
}

type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ListInventory handles GET /api/inventory
func (h *InventoryHandler) ListInventory(w http.ResponseWriter, r *http.Request) {
	statuses, err := h.listHandler.Handle(r.Context())
	if err != nil {
		logger.Error(r.Context()).Err(err).Msg("Failed to list inventory")
		respondJSON(w, http.StatusInternalServerError, Response{
			Success: false,
			Error:   "Failed to list inventory",
		})
		return
	}

	respondJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    statuses,
	})
}

// RefillBottle handles PUT /api/inventory/refill/{pump_id}
func (h *InventoryHandler) RefillBottle(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	pumpID, err := strconv.ParseUint(vars["pump_id"], 10, 32)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, Response{
			Success: false,
			Error:   "Invalid pump ID",
		})
		return
	}

	var req struct {
		BottleSizeMl float64 `json:"bottle_size_ml"`
		QuantityMl   float64 `json:"quantity_ml"`
	}
	if r.Body != nil {
		// Body is optional; an empty refill resets to the stored bottle size
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	cmd := command.RefillBottleCommand{
		PumpID:       uint(pumpID),
		BottleSizeMl: req.BottleSizeMl,
		QuantityMl:   req.QuantityMl,
	}

	if err := h.refillBottleHandler.Handle(r.Context(), cmd); err != nil {
		if errors.Is(err, domain.ErrPumpNotFound) {
			respondJSON(w, http.StatusNotFound, Response{
				Success: false,
				Error:   "Inventory record not found",
			})
			return
		}
		logger.Error(r.Context()).Err(err).Uint64("pump_id", pumpID).Msg("Failed to refill bottle")
		respondJSON(w, http.StatusBadRequest, Response{
			Success: false,
			Error:   err.Error(),
		})
		return
	}

	respondJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "Bottle refilled successfully",
	})
}

// RefillAll handles PUT /api/inventory/refill-all
func (h *InventoryHandler) RefillAll(w http.ResponseWriter, r *http.Request) {
	refilled, err := h.refillAllHandler.Handle(r.Context())
	if err != nil {
		logger.Error(r.Context()).Err(err).Msg("Failed to refill all bottles")
		respondJSON(w, http.StatusInternalServerError, Response{
			Success: false,
			Error:   "Failed to refill all bottles",
		})
		return
	}

	respondJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "All bottles refilled successfully",
		Data:    map[string]int64{"refilled": refilled},
	})
}

// UpdateSettings handles PUT /api/inventory/settings/{pump_id}
func (h *InventoryHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	pumpID, err := strconv.ParseUint(vars["pump_id"], 10, 32)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, Response{
			Success: false,
			Error:   "Invalid pump ID",
		})
		return
	}

	var req struct {
		BottleSizeMl       float64 `json:"bottle_size_ml"`
		MinQuantityAlertMl float64 `json:"min_quantity_alert_ml"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, Response{
			Success: false,
			Error:   "Invalid request body",
		})
		return
	}

	cmd := command.UpdateSettingsCommand{
		PumpID:             uint(pumpID),
		BottleSizeMl:       req.BottleSizeMl,
		MinQuantityAlertMl: req.MinQuantityAlertMl,
	}

	if err := h.updateSettingsHandler.Handle(r.Context(), cmd); err != nil {
		if errors.Is(err, domain.ErrPumpNotFound) {
			respondJSON(w, http.StatusNotFound, Response{
				Success: false,
				Error:   "Inventory record not found",
			})
			return
		}
		logger.Error(r.Context()).Err(err).Uint64("pump_id", pumpID).Msg("Failed to update settings")
		respondJSON(w, http.StatusBadRequest, Response{
			Success: false,
			Error:   err.Error(),
		})
		return
	}

	respondJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "Settings updated successfully",
	})
}

// RegisterRoutes registers all inventory routes
func (h *InventoryHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/inventory", h.ListInventory).Methods("GET")
	router.HandleFunc("/api/inventory/refill-all", h.RefillAll).Methods("PUT")
	router.HandleFunc("/api/inventory/refill/{pump_id}", h.RefillBottle).Methods("PUT")
	router.HandleFunc("/api/inventory/settings/{pump_id}", h.UpdateSettings).Methods("PUT")
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
