package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/openpour/openpour/internal/dispense/domain"
	"github.com/openpour/openpour/internal/dispense/usecase/command"
	"github.com/openpour/openpour/internal/dispense/usecase/query"
	invdomain "github.com/openpour/openpour/internal/inventory/domain"
	recipedomain "github.com/openpour/openpour/internal/recipe/domain"
	recipequery "github.com/openpour/openpour/internal/recipe/usecase/query"
	"github.com/openpour/openpour/pkg/logger"
)

var (
	dispenseMetricsOnce sync.Once
	dispenseInitiated   *prometheus.CounterVec
	dispenseCompleted   *prometheus.CounterVec
)

func initDispenseMetrics() {
	dispenseMetricsOnce.Do(func() {
		dispenseInitiated = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dispense_initiated_total",
				Help: "Total number of dispense initiations by outcome",
			},
			[]string{"outcome"},
		)
		dispenseCompleted = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dispense_terminal_total",
				Help: "Total number of dispenses reaching a terminal status",
			},
			[]string{"status"},
		)
		prometheus.MustRegister(dispenseInitiated, dispenseCompleted)
	})
}

// DispenseHandler handles HTTP requests for dispensing
type DispenseHandler struct {
	initiateHandler *command.InitiateDispenseHandler
	statusHandler   *command.ReportStatusHandler
	timeoutHandler  *command.ReportTimeoutHandler
	historyHandler  *query.GetHistoryHandler
}

// NewDispenseHandler creates a new dispense handler
func NewDispenseHandler(
	initiateHandler *command.InitiateDispenseHandler,
	statusHandler *command.ReportStatusHandler,
	timeoutHandler *command.ReportTimeoutHandler,
	historyHandler *query.GetHistoryHandler,
) *DispenseHandler {
	initDispenseMetrics()
	return &DispenseHandler{
		initiateHandler: initiateHandler,
		statusHandler:   statusHandler,
		timeoutHandler:  timeoutHandler,
		historyHandler:  historyHandler,
	}
}

type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// InitiateDispense handles POST /api/dispense
func (h *DispenseHandler) InitiateDispense(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RecipeID uint   `json:"recipe_id"`
		Strength string `json:"strength"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, Response{
			Success: false,
			Error:   "Invalid request body",
		})
		return
	}

	strength, err := recipequery.ParseStrength(req.Strength)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, Response{
			Success: false,
			Error:   err.Error(),
		})
		return
	}

	result, err := h.initiateHandler.Handle(r.Context(), command.InitiateDispenseCommand{
		RecipeID: req.RecipeID,
		Strength: strength,
	})
	if err != nil {
		var unavailable *recipedomain.UnavailableError
		switch {
		case errors.Is(err, recipedomain.ErrRecipeNotFound):
			dispenseInitiated.WithLabelValues("not_found").Inc()
			respondJSON(w, http.StatusNotFound, Response{
				Success: false,
				Error:   "Recipe not found or not available",
			})
		case errors.As(err, &unavailable):
			dispenseInitiated.WithLabelValues("unavailable").Inc()
			respondJSON(w, http.StatusBadRequest, Response{
				Success: false,
				Error:   "Insufficient ingredients",
				Data:    map[string][]string{"missing_ingredients": unavailable.Missing},
			})
		case errors.Is(err, invdomain.ErrInsufficientStock):
			// The reservation guard can still trip after the advisory
			// check passed; the caller sees the same unavailable shape.
			dispenseInitiated.WithLabelValues("unavailable").Inc()
			respondJSON(w, http.StatusBadRequest, Response{
				Success: false,
				Error:   "Insufficient ingredients",
			})
		default:
			dispenseInitiated.WithLabelValues("error").Inc()
			logger.Error(r.Context()).Err(err).Uint("recipe_id", req.RecipeID).Msg("Failed to initiate dispense")
			respondJSON(w, http.StatusInternalServerError, Response{
				Success: false,
				Error:   "Failed to initiate dispense",
			})
		}
		return
	}

	dispenseInitiated.WithLabelValues("started").Inc()
	respondJSON(w, http.StatusCreated, Response{
		Success: true,
		Message: "Dispense started",
		Data:    result,
	})
}

// ReportStatus handles PUT /api/dispense/status/{log_id}
func (h *DispenseHandler) ReportStatus(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	logID, err := strconv.ParseUint(vars["log_id"], 10, 32)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, Response{
			Success: false,
			Error:   "Invalid log ID",
		})
		return
	}

	var req struct {
		Status       string `json:"status"`
		ErrorMessage string `json:"error_message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, Response{
			Success: false,
			Error:   "Invalid request body",
		})
		return
	}

	cmd := command.ReportStatusCommand{
		LogID:        uint(logID),
		Status:       domain.Status(req.Status),
		ErrorMessage: req.ErrorMessage,
	}

	if err := h.statusHandler.Handle(r.Context(), cmd); err != nil {
		if errors.Is(err, domain.ErrLogNotFound) {
			respondJSON(w, http.StatusNotFound, Response{
				Success: false,
				Error:   "Dispense log not found",
			})
			return
		}
		respondJSON(w, http.StatusBadRequest, Response{
			Success: false,
			Error:   err.Error(),
		})
		return
	}

	if cmd.Status.IsTerminal() {
		dispenseCompleted.WithLabelValues(req.Status).Inc()
	}

	respondJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "Status recorded",
	})
}

// ReportTimeout handles POST /api/dispense/timeout/{log_id}
func (h *DispenseHandler) ReportTimeout(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	logID, err := strconv.ParseUint(vars["log_id"], 10, 32)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, Response{
			Success: false,
			Error:   "Invalid log ID",
		})
		return
	}

	result, err := h.timeoutHandler.Handle(r.Context(), command.ReportTimeoutCommand{LogID: uint(logID)})
	if err != nil {
		if errors.Is(err, domain.ErrLogNotFound) {
			respondJSON(w, http.StatusNotFound, Response{
				Success: false,
				Error:   "Dispense log not found",
			})
			return
		}
		logger.Error(r.Context()).Err(err).Uint64("log_id", logID).Msg("Failed to report timeout")
		respondJSON(w, http.StatusInternalServerError, Response{
			Success: false,
			Error:   "Failed to report timeout",
		})
		return
	}

	if result.AlertID != 0 {
		dispenseCompleted.WithLabelValues("failed").Inc()
	}

	respondJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "Timeout recorded",
		Data:    result,
	})
}

// GetHistory handles GET /api/dispense/history
func (h *DispenseHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := h.historyHandler.Handle(r.Context(), query.GetHistoryQuery{Limit: limit})
	if err != nil {
		logger.Error(r.Context()).Err(err).Msg("Failed to load dispense history")
		respondJSON(w, http.StatusInternalServerError, Response{
			Success: false,
			Error:   "Failed to load dispense history",
		})
		return
	}

	respondJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    entries,
	})
}

// RegisterRoutes registers all dispense routes
func (h *DispenseHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/dispense", h.InitiateDispense).Methods("POST")
	router.HandleFunc("/api/dispense/status/{log_id}", h.ReportStatus).Methods("PUT")
	router.HandleFunc("/api/dispense/timeout/{log_id}", h.ReportTimeout).Methods("POST")
	router.HandleFunc("/api/dispense/history", h.GetHistory).Methods("GET")
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
