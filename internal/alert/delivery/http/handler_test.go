package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"github.com/openpour/openpour/internal/alert/domain"
	"github.com/openpour/openpour/internal/alert/repository"
	"github.com/openpour/openpour/internal/db/mock"
)

func newServer(t *testing.T) (*gorm.DB, *mux.Router) {
	t.Helper()
	db, err := mock.New(context.Background())
	if err != nil {
		t.Fatalf("mock database: %v", err)
	}
	handler := NewAlertHandler(repository.NewGormAlertRepository(db))
	router := mux.NewRouter()
	handler.RegisterRoutes(router)
	return db, router
}

func seedAlerts(t *testing.T, db *gorm.DB) []domain.Alert {
	t.Helper()
	alerts := []domain.Alert{
		{Type: domain.TypeLowStock, Severity: domain.SeverityWarning, Message: "low"},
		{Type: domain.TypeEmptyBottle, Severity: domain.SeverityCritical, Message: "empty"},
		{Type: domain.TypeSystemError, Severity: domain.SeverityCritical, Message: "timeout", IsResolved: true},
	}
	for i := range alerts {
		if err := db.Create(&alerts[i]).Error; err != nil {
			t.Fatalf("seed alert: %v", err)
		}
	}
	return alerts
}

func TestListAlertsFiltersAndOrders(t *testing.T) {
	t.Parallel()

	db, router := newServer(t)
	seedAlerts(t, db)

	req := httptest.NewRequest(http.MethodGet, "/api/alerts?is_resolved=false", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp struct {
		Success bool          `json:"success"`
		Data    []domain.View `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Data) != 2 {
		t.Fatalf("alerts = %d, want 2", len(resp.Data))
	}
	// Critical first
	if resp.Data[0].Severity != domain.SeverityCritical {
		t.Errorf("first severity = %s, want critical", resp.Data[0].Severity)
	}
}

func TestListAlertsBySeverity(t *testing.T) {
	t.Parallel()

	db, router := newServer(t)
	seedAlerts(t, db)

	req := httptest.NewRequest(http.MethodGet, "/api/alerts?severity=warning", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var resp struct {
		Data []domain.View `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Data) != 1 || resp.Data[0].Type != domain.TypeLowStock {
		t.Fatalf("alerts = %+v, want the single warning", resp.Data)
	}
}

func TestResolveAlert(t *testing.T) {
	t.Parallel()

	db, router := newServer(t)
	alerts := seedAlerts(t, db)

	req := httptest.NewRequest(http.MethodPut, "/api/alerts/1/resolve", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var reloaded domain.Alert
	if err := db.First(&reloaded, alerts[0].ID).Error; err != nil {
		t.Fatalf("load alert: %v", err)
	}
	if !reloaded.IsResolved || reloaded.ResolvedAt == nil {
		t.Error("expected alert resolved with timestamp")
	}
}

func TestResolveUnknownAlert(t *testing.T) {
	t.Parallel()

	_, router := newServer(t)

	req := httptest.NewRequest(http.MethodPut, "/api/alerts/999/resolve", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestDeleteAlert(t *testing.T) {
	t.Parallel()

	db, router := newServer(t)
	alerts := seedAlerts(t, db)

	req := httptest.NewRequest(http.MethodDelete, "/api/alerts/2", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var count int64
	if err := db.Model(&domain.Alert{}).Where("id = ?", alerts[1].ID).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Error("expected alert deleted")
	}
}
