package command

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/openpour/openpour/internal/alert"
	alertdomain "github.com/openpour/openpour/internal/alert/domain"
	alertrepo "github.com/openpour/openpour/internal/alert/repository"
	"github.com/openpour/openpour/internal/db/mock"
	"github.com/openpour/openpour/internal/dispense/domain"
	dispenserepo "github.com/openpour/openpour/internal/dispense/repository"
	"github.com/openpour/openpour/internal/dispense/watchdog"
	invrepo "github.com/openpour/openpour/internal/inventory/repository"
)

type stubNotifier struct {
	mu    sync.Mutex
	calls []bool // skipThrottle per call
}

func (s *stubNotifier) Notify(ctx context.Context, alertID uint, skipThrottle bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, skipThrottle)
}

func (s *stubNotifier) skipThrottleCalls() []bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]bool(nil), s.calls...)
}

type stubStatePublisher struct {
	mu     sync.Mutex
	logIDs []uint
}

func (s *stubStatePublisher) PublishLastDispense(ctx context.Context, logID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logIDs = append(s.logIDs, logID)
}

type statusFixture struct {
	db       *gorm.DB
	repo     *dispenserepo.GormDispenseRepository
	handler  *ReportStatusHandler
	timeout  *ReportTimeoutHandler
	notifier *stubNotifier
	states   *stubStatePublisher
	wd       *watchdog.Watchdog
	logID    uint
	pumpID   uint
}

func newStatusFixture(t *testing.T) *statusFixture {
	t.Helper()
	db, err := mock.New(context.Background())
	if err != nil {
		t.Fatalf("mock database: %v", err)
	}

	pumpID, ingredientID, err := mock.SeedPump(db, mock.PumpFixture{PumpNumber: 1, Ingredient: "Rum", CurrentMl: 80, MinAlertMl: 100})
	if err != nil {
		t.Fatalf("seed pump: %v", err)
	}

	repo := dispenserepo.NewGormDispenseRepository(db)
	log := &domain.DispenseLog{
		RecipeID:      1,
		RecipeName:    "Mojito",
		TotalVolumeMl: 240,
		Status:        domain.StatusStarted,
		Details: []domain.DispenseDetail{
			{PumpID: pumpID, IngredientID: ingredientID, IngredientName: "Rum", QuantityMl: 40, OrderNumber: 1},
		},
	}
	if err := db.Create(log).Error; err != nil {
		t.Fatalf("seed log: %v", err)
	}

	notifier := &stubNotifier{}
	engine := alert.NewEngine(alertrepo.NewGormAlertRepository(db), invrepo.NewGormInventoryRepository(db), notifier)
	states := &stubStatePublisher{}
	wd := watchdog.New(time.Minute)
	wd.Arm(log.ID)

	return &statusFixture{
		db:       db,
		repo:     repo,
		handler:  NewReportStatusHandler(repo, engine, states, wd),
		timeout:  NewReportTimeoutHandler(repo, engine, wd),
		notifier: notifier,
		states:   states,
		wd:       wd,
		logID:    log.ID,
		pumpID:   pumpID,
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestReportStatusProgress(t *testing.T) {
	t.Parallel()

	f := newStatusFixture(t)

	err := f.handler.Handle(context.Background(), ReportStatusCommand{LogID: f.logID, Status: domain.StatusDispensing})
	if err != nil {
		t.Fatalf("report dispensing: %v", err)
	}

	log, err := f.repo.FindByID(context.Background(), f.logID)
	if err != nil {
		t.Fatalf("load log: %v", err)
	}
	if log.Status != domain.StatusDispensing {
		t.Errorf("status = %s, want dispensing", log.Status)
	}
	if !f.wd.Armed(f.logID) {
		t.Error("progress report must not disarm the watchdog")
	}
}

func TestReportStatusCompletedTriggersEvaluation(t *testing.T) {
	t.Parallel()

	f := newStatusFixture(t)

	err := f.handler.Handle(context.Background(), ReportStatusCommand{LogID: f.logID, Status: domain.StatusCompleted})
	if err != nil {
		t.Fatalf("report completed: %v", err)
	}

	log, err := f.repo.FindByID(context.Background(), f.logID)
	if err != nil {
		t.Fatalf("load log: %v", err)
	}
	if log.Status != domain.StatusCompleted {
		t.Errorf("status = %s, want completed", log.Status)
	}
	if f.wd.Armed(f.logID) {
		t.Error("terminal report must disarm the watchdog")
	}

	// The rum pump sits below its threshold, so the async evaluation
	// raises a low-stock alert and the finished dispense is mirrored
	waitFor(t, func() bool {
		var count int64
		f.db.Model(&alertdomain.Alert{}).Where("is_resolved = ?", false).Count(&count)
		return count == 1
	})
	waitFor(t, func() bool {
		f.states.mu.Lock()
		defer f.states.mu.Unlock()
		return len(f.states.logIDs) == 1 && f.states.logIDs[0] == f.logID
	})
}

func TestReportStatusFailedDoesNotMirror(t *testing.T) {
	t.Parallel()

	f := newStatusFixture(t)

	err := f.handler.Handle(context.Background(), ReportStatusCommand{
		LogID:        f.logID,
		Status:       domain.StatusFailed,
		ErrorMessage: "pump jam",
	})
	if err != nil {
		t.Fatalf("report failed: %v", err)
	}

	log, _ := f.repo.FindByID(context.Background(), f.logID)
	if log.Status != domain.StatusFailed || log.ErrorMessage != "pump jam" {
		t.Errorf("log = %s/%q, want failed/pump jam", log.Status, log.ErrorMessage)
	}

	// Alert evaluation still runs for failures, but no smart-home mirror
	waitFor(t, func() bool {
		var count int64
		f.db.Model(&alertdomain.Alert{}).Count(&count)
		return count == 1
	})
	f.states.mu.Lock()
	mirrored := len(f.states.logIDs)
	f.states.mu.Unlock()
	if mirrored != 0 {
		t.Errorf("mirrored dispenses = %d, want 0", mirrored)
	}
}

func TestReportStatusLateReportIgnored(t *testing.T) {
	t.Parallel()

	f := newStatusFixture(t)

	if err := f.handler.Handle(context.Background(), ReportStatusCommand{LogID: f.logID, Status: domain.StatusCompleted}); err != nil {
		t.Fatalf("first report: %v", err)
	}
	if err := f.handler.Handle(context.Background(), ReportStatusCommand{LogID: f.logID, Status: domain.StatusFailed, ErrorMessage: "late"}); err != nil {
		t.Fatalf("late report: %v", err)
	}

	log, _ := f.repo.FindByID(context.Background(), f.logID)
	if log.Status != domain.StatusCompleted {
		t.Errorf("status = %s, want completed to stick", log.Status)
	}
}

func TestReportStatusValidation(t *testing.T) {
	t.Parallel()

	f := newStatusFixture(t)

	if err := f.handler.Handle(context.Background(), ReportStatusCommand{LogID: f.logID, Status: "pouring"}); err == nil {
		t.Error("expected error for unknown status")
	}
	if err := f.handler.Handle(context.Background(), ReportStatusCommand{LogID: f.logID, Status: domain.StatusStarted}); err == nil {
		t.Error("expected error for started status report")
	}
	err := f.handler.Handle(context.Background(), ReportStatusCommand{LogID: 999, Status: domain.StatusDispensing})
	if !errors.Is(err, domain.ErrLogNotFound) {
		t.Errorf("expected ErrLogNotFound, got %v", err)
	}
}
