package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/openpour/openpour/internal/alert/domain"
	"github.com/openpour/openpour/pkg/logger"
)

// AlertHandler handles HTTP requests for alerts
type AlertHandler struct {
	repo domain.AlertRepository
}

// NewAlertHandler creates a new alert handler
func NewAlertHandler(repo domain.AlertRepository) *AlertHandler {
	return &AlertHandler{repo: repo}
}

type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ListAlerts handles GET /api/alerts
func (h *AlertHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	filter := domain.Filter{
		Severity: domain.Severity(r.URL.Query().Get("severity")),
		Type:     domain.Type(r.URL.Query().Get("type")),
	}
	if raw := r.URL.Query().Get("is_resolved"); raw != "" {
		resolved, err := strconv.ParseBool(raw)
		if err != nil {
			respondJSON(w, http.StatusBadRequest, Response{
				Success: false,
				Error:   "Invalid is_resolved value",
			})
			return
		}
		filter.IsResolved = &resolved
	}

	alerts, err := h.repo.List(r.Context(), filter)
	if err != nil {
		logger.Error(r.Context()).Err(err).Msg("Failed to list alerts")
		respondJSON(w, http.StatusInternalServerError, Response{
			Success: false,
			Error:   "Failed to list alerts",
		})
		return
	}

	respondJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    alerts,
	})
}

// ResolveAlert handles PUT /api/alerts/{id}/resolve
func (h *AlertHandler) ResolveAlert(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := strconv.ParseUint(vars["id"], 10, 32)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, Response{
			Success: false,
			Error:   "Invalid alert ID",
		})
		return
	}

	if err := h.repo.Resolve(r.Context(), uint(id)); err != nil {
		if errors.Is(err, domain.ErrAlertNotFound) {
			respondJSON(w, http.StatusNotFound, Response{
				Success: false,
				Error:   "Alert not found",
			})
			return
		}
		logger.Error(r.Context()).Err(err).Uint64("alert_id", id).Msg("Failed to resolve alert")
		respondJSON(w, http.StatusInternalServerError, Response{
			Success: false,
			Error:   "Failed to resolve alert",
		})
		return
	}

	respondJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "Alert resolved successfully",
	})
}

// DeleteAlert handles DELETE /api/alerts/{id}
func (h *AlertHandler) DeleteAlert(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := strconv.ParseUint(vars["id"], 10, 32)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, Response{
			Success: false,
			Error:   "Invalid alert ID",
		})
		return
	}

	if err := h.repo.Delete(r.Context(), uint(id)); err != nil {
		if errors.Is(err, domain.ErrAlertNotFound) {
			respondJSON(w, http.StatusNotFound, Response{
				Success: false,
				Error:   "Alert not found",
			})
			return
		}
		logger.Error(r.Context()).Err(err).Uint64("alert_id", id).Msg("Failed to delete alert")
		respondJSON(w, http.StatusInternalServerError, Response{
			Success: false,
			Error:   "Failed to delete alert",
		})
		return
	}

	respondJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "Alert deleted successfully",
	})
}

// RegisterRoutes registers all alert routes
func (h *AlertHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/alerts", h.ListAlerts).Methods("GET")
	router.HandleFunc("/api/alerts/{id}/resolve", h.ResolveAlert).Methods("PUT")
	router.HandleFunc("/api/alerts/{id}", h.DeleteAlert).Methods("DELETE")
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
