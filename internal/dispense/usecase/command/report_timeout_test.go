package command

import (
	"context"
	"errors"
	"testing"

	alertdomain "github.com/openpour/openpour/internal/alert/domain"
	"github.com/openpour/openpour/internal/dispense/domain"
)

func TestReportTimeoutFailsDispenseAndAlerts(t *testing.T) {
	t.Parallel()

	f := newStatusFixture(t)

	result, err := f.timeout.Handle(context.Background(), ReportTimeoutCommand{LogID: f.logID})
	if err != nil {
		t.Fatalf("report timeout: %v", err)
	}
	if result.AlertID == 0 {
		t.Fatal("expected alert id")
	}

	log, err := f.repo.FindByID(context.Background(), f.logID)
	if err != nil {
		t.Fatalf("load log: %v", err)
	}
	if log.Status != domain.StatusFailed {
		t.Errorf("status = %s, want failed", log.Status)
	}
	if log.ErrorMessage == "" {
		t.Error("expected canned timeout error message")
	}

	var raised alertdomain.Alert
	if err := f.db.First(&raised, result.AlertID).Error; err != nil {
		t.Fatalf("load alert: %v", err)
	}
	if raised.Type != alertdomain.TypeSystemError || raised.Severity != alertdomain.SeverityCritical {
		t.Errorf("alert = %s/%s, want system_error/critical", raised.Type, raised.Severity)
	}

	// Timeouts bypass throttling
	calls := f.notifier.skipThrottleCalls()
	if len(calls) != 1 || !calls[0] {
		t.Errorf("notify calls = %v, want one unthrottled", calls)
	}

	if f.wd.Armed(f.logID) {
		t.Error("expected watchdog disarmed")
	}
}

func TestReportTimeoutAfterCompletionIsNoop(t *testing.T) {
	t.Parallel()

	f := newStatusFixture(t)

	if err := f.handler.Handle(context.Background(), ReportStatusCommand{LogID: f.logID, Status: domain.StatusCompleted}); err != nil {
		t.Fatalf("complete: %v", err)
	}

	result, err := f.timeout.Handle(context.Background(), ReportTimeoutCommand{LogID: f.logID})
	if err != nil {
		t.Fatalf("report timeout: %v", err)
	}
	if result.AlertID != 0 {
		t.Errorf("alert id = %d, want 0 for already-terminal log", result.AlertID)
	}

	log, _ := f.repo.FindByID(context.Background(), f.logID)
	if log.Status != domain.StatusCompleted {
		t.Errorf("status = %s, want completed to stick", log.Status)
	}

	var count int64
	if err := f.db.Model(&alertdomain.Alert{}).Where("type = ?", alertdomain.TypeSystemError).Count(&count).Error; err != nil {
		t.Fatalf("count alerts: %v", err)
	}
	if count != 0 {
		t.Errorf("system alerts = %d, want 0", count)
	}
}

func TestReportTimeoutUnknownLog(t *testing.T) {
	t.Parallel()

	f := newStatusFixture(t)

	_, err := f.timeout.Handle(context.Background(), ReportTimeoutCommand{LogID: 999})
	if !errors.Is(err, domain.ErrLogNotFound) {
		t.Fatalf("expected ErrLogNotFound, got %v", err)
	}
}
