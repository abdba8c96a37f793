package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/openpour/openpour/internal/notification"
	"github.com/openpour/openpour/internal/notification/domain"
	"github.com/openpour/openpour/pkg/logger"
)

// NotificationHandler handles HTTP requests for the mail audit log
type NotificationHandler struct {
	repo    domain.NotificationRepository
	gateway *notification.Gateway
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(repo domain.NotificationRepository, gateway *notification.Gateway) *NotificationHandler {
	return &NotificationHandler{repo: repo, gateway: gateway}
}

type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// GetHistory handles GET /api/email/notifications
func (h *NotificationHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := h.repo.History(r.Context(), limit)
	if err != nil {
		logger.Error(r.Context()).Err(err).Msg("Failed to load notification history")
		respondJSON(w, http.StatusInternalServerError, Response{
			Success: false,
			Error:   "Failed to load notification history",
		})
		return
	}

	respondJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    entries,
	})
}

// SendTest handles POST /api/email/test
func (h *NotificationHandler) SendTest(w http.ResponseWriter, r *http.Request) {
	if err := h.gateway.SendTest(r.Context()); err != nil {
		logger.Error(r.Context()).Err(err).Msg("Test notification failed")
		respondJSON(w, http.StatusBadGateway, Response{
			Success: false,
			Error:   err.Error(),
		})
		return
	}

	respondJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "Test notification sent",
	})
}

// RegisterRoutes registers all notification routes
func (h *NotificationHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/email/notifications", h.GetHistory).Methods("GET")
	router.HandleFunc("/api/email/test", h.SendTest).Methods("POST")
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
