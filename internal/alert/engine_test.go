package alert

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/openpour/openpour/internal/alert/domain"
	alertrepo "github.com/openpour/openpour/internal/alert/repository"
	"github.com/openpour/openpour/internal/db/mock"
	invrepo "github.com/openpour/openpour/internal/inventory/repository"
)

type recordedNotify struct {
	alertID      uint
	skipThrottle bool
}

type stubNotifier struct {
	calls []recordedNotify
}

func (s *stubNotifier) Notify(ctx context.Context, alertID uint, skipThrottle bool) {
	s.calls = append(s.calls, recordedNotify{alertID: alertID, skipThrottle: skipThrottle})
}

func newEngineFixture(t *testing.T) (*gorm.DB, *Engine, *stubNotifier) {
	t.Helper()
	db, err := mock.New(context.Background())
	if err != nil {
		t.Fatalf("mock database: %v", err)
	}
	notifier := &stubNotifier{}
	engine := NewEngine(alertrepo.NewGormAlertRepository(db), invrepo.NewGormInventoryRepository(db), notifier)
	return db, engine, notifier
}

func unresolvedAlerts(t *testing.T, db *gorm.DB) []domain.Alert {
	t.Helper()
	var alerts []domain.Alert
	if err := db.Where("is_resolved = ?", false).Order("id ASC").Find(&alerts).Error; err != nil {
		t.Fatalf("load alerts: %v", err)
	}
	return alerts
}

func TestEvaluateCreatesLowStockAlert(t *testing.T) {
	t.Parallel()

	db, engine, notifier := newEngineFixture(t)
	pumpID, _, err := mock.SeedPump(db, mock.PumpFixture{PumpNumber: 1, Ingredient: "Rum", CurrentMl: 80, MinAlertMl: 100})
	if err != nil {
		t.Fatalf("seed pump: %v", err)
	}

	engine.Evaluate(context.Background(), []uint{pumpID})

	alerts := unresolvedAlerts(t, db)
	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(alerts))
	}
	if alerts[0].Type != domain.TypeLowStock || alerts[0].Severity != domain.SeverityWarning {
		t.Errorf("alert = %s/%s, want low_stock/warning", alerts[0].Type, alerts[0].Severity)
	}
	if len(notifier.calls) != 1 || notifier.calls[0].skipThrottle {
		t.Errorf("notify calls = %+v, want one throttled call", notifier.calls)
	}
}

func TestEvaluateRefreshesExistingAlert(t *testing.T) {
	t.Parallel()

	db, engine, notifier := newEngineFixture(t)
	pumpID, _, err := mock.SeedPump(db, mock.PumpFixture{PumpNumber: 1, Ingredient: "Rum", CurrentMl: 80, MinAlertMl: 100})
	if err != nil {
		t.Fatalf("seed pump: %v", err)
	}

	engine.Evaluate(context.Background(), []uint{pumpID})
	first := unresolvedAlerts(t, db)[0]

	time.Sleep(10 * time.Millisecond)
	engine.Evaluate(context.Background(), []uint{pumpID})

	alerts := unresolvedAlerts(t, db)
	if len(alerts) != 1 {
		t.Fatalf("expected still 1 unresolved alert, got %d", len(alerts))
	}
	if alerts[0].ID != first.ID {
		t.Errorf("alert id changed from %d to %d, want refresh in place", first.ID, alerts[0].ID)
	}
	if !alerts[0].CreatedAt.After(first.CreatedAt) {
		t.Error("expected created_at to be refreshed")
	}
	// A same-severity refresh is not a new condition; no second notification
	if len(notifier.calls) != 1 {
		t.Errorf("notify calls = %d, want 1", len(notifier.calls))
	}
}

func TestEvaluateEscalatesToCritical(t *testing.T) {
	t.Parallel()

	db, engine, notifier := newEngineFixture(t)
	pumpID, _, err := mock.SeedPump(db, mock.PumpFixture{PumpNumber: 1, Ingredient: "Rum", CurrentMl: 80, MinAlertMl: 100})
	if err != nil {
		t.Fatalf("seed pump: %v", err)
	}

	engine.Evaluate(context.Background(), []uint{pumpID})

	// Bottle drains to empty before the next evaluation
	if err := db.Table("inventory").Where("pump_id = ?", pumpID).Update("current_quantity_ml", 0).Error; err != nil {
		t.Fatalf("drain bottle: %v", err)
	}
	engine.Evaluate(context.Background(), []uint{pumpID})

	alerts := unresolvedAlerts(t, db)
	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(alerts))
	}
	if alerts[0].Type != domain.TypeEmptyBottle || alerts[0].Severity != domain.SeverityCritical {
		t.Errorf("alert = %s/%s, want empty_bottle/critical", alerts[0].Type, alerts[0].Severity)
	}
	if len(notifier.calls) != 2 {
		t.Fatalf("notify calls = %d, want 2", len(notifier.calls))
	}
	if notifier.calls[0].skipThrottle || !notifier.calls[1].skipThrottle {
		t.Errorf("notify calls = %+v, want throttled then unthrottled", notifier.calls)
	}
}

func TestEvaluateResolvesDuplicateAlerts(t *testing.T) {
	t.Parallel()

	db, engine, _ := newEngineFixture(t)
	pumpID, ingredientID, err := mock.SeedPump(db, mock.PumpFixture{PumpNumber: 1, Ingredient: "Rum", CurrentMl: 80, MinAlertMl: 100})
	if err != nil {
		t.Fatalf("seed pump: %v", err)
	}

	// Simulate data drift: two unresolved alerts for the same pair
	for i := 0; i < 2; i++ {
		alert := domain.Alert{
			Type:                domain.TypeLowStock,
			Severity:            domain.SeverityWarning,
			Message:             "drift",
			RelatedPumpID:       &pumpID,
			RelatedIngredientID: &ingredientID,
		}
		if err := db.Create(&alert).Error; err != nil {
			t.Fatalf("seed alert: %v", err)
		}
	}

	engine.Evaluate(context.Background(), []uint{pumpID})

	alerts := unresolvedAlerts(t, db)
	if len(alerts) != 1 {
		t.Fatalf("expected duplicates collapsed to 1, got %d", len(alerts))
	}
}

func TestEvaluateNoConditionLeavesAlertsAlone(t *testing.T) {
	t.Parallel()

	db, engine, notifier := newEngineFixture(t)
	pumpID, ingredientID, err := mock.SeedPump(db, mock.PumpFixture{PumpNumber: 1, Ingredient: "Rum", CurrentMl: 500, MinAlertMl: 100})
	if err != nil {
		t.Fatalf("seed pump: %v", err)
	}

	// An operator has not acted on this alert yet; healthy stock must not
	// auto-clear it
	alert := domain.Alert{
		Type:                domain.TypeLowStock,
		Severity:            domain.SeverityWarning,
		Message:             "stale",
		RelatedPumpID:       &pumpID,
		RelatedIngredientID: &ingredientID,
	}
	if err := db.Create(&alert).Error; err != nil {
		t.Fatalf("seed alert: %v", err)
	}

	engine.Evaluate(context.Background(), []uint{pumpID})

	alerts := unresolvedAlerts(t, db)
	if len(alerts) != 1 {
		t.Fatalf("expected stale alert untouched, got %d unresolved", len(alerts))
	}
	if len(notifier.calls) != 0 {
		t.Errorf("notify calls = %d, want 0", len(notifier.calls))
	}
}

func TestCreateSystemAlert(t *testing.T) {
	t.Parallel()

	db, engine, notifier := newEngineFixture(t)

	alertID, err := engine.CreateSystemAlert(context.Background(), "Dispense #7 timed out")
	if err != nil {
		t.Fatalf("create system alert: %v", err)
	}

	var alert domain.Alert
	if err := db.First(&alert, alertID).Error; err != nil {
		t.Fatalf("load alert: %v", err)
	}
	if alert.Type != domain.TypeSystemError || alert.Severity != domain.SeverityCritical {
		t.Errorf("alert = %s/%s, want system_error/critical", alert.Type, alert.Severity)
	}
	if len(notifier.calls) != 1 || !notifier.calls[0].skipThrottle {
		t.Errorf("notify calls = %+v, want one unthrottled call", notifier.calls)
	}
}
