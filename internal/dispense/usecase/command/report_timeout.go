package command

import (
	"context"
	"fmt"

	"github.com/openpour/openpour/internal/alert"
	"github.com/openpour/openpour/internal/dispense/domain"
	"github.com/openpour/openpour/internal/dispense/watchdog"
	"github.com/openpour/openpour/pkg/logger"
)

const timeoutMessage = "Dispense timed out waiting for hardware confirmation"

// ReportTimeoutCommand marks a dispense that never received a terminal
// hardware report
type ReportTimeoutCommand struct {
	LogID uint
}

// ReportTimeoutResult carries the id of the raised system alert, zero when
// the log had already finished.
type ReportTimeoutResult struct {
	AlertID uint `json:"alert_id,omitempty"`
}

// ReportTimeoutHandler fails a silent dispense and raises a critical alert.
// Timeouts always notify: the dispenser may be mid-pour with no feedback.
type ReportTimeoutHandler struct {
	dispenseRepo domain.DispenseRepository
	engine       *alert.Engine
	watchdog     *watchdog.Watchdog
}

// NewReportTimeoutHandler creates a new report timeout handler
func NewReportTimeoutHandler(
	dispenseRepo domain.DispenseRepository,
	engine *alert.Engine,
	wd *watchdog.Watchdog,
) *ReportTimeoutHandler {
	return &ReportTimeoutHandler{
		dispenseRepo: dispenseRepo,
		engine:       engine,
		watchdog:     wd,
	}
}

// Handle fails the dispense and creates the system alert. A log that
// already reached a terminal state is left untouched and no alert is
// raised. Returns domain.ErrLogNotFound for an unknown id.
func (h *ReportTimeoutHandler) Handle(ctx context.Context, cmd ReportTimeoutCommand) (*ReportTimeoutResult, error) {
	if cmd.LogID == 0 {
		return nil, fmt.Errorf("log_id is required")
	}

	h.watchdog.Disarm(cmd.LogID)

	transitioned, err := h.dispenseRepo.MarkTerminalIfActive(ctx, cmd.LogID, domain.StatusFailed, timeoutMessage)
	if err != nil {
		return nil, fmt.Errorf("failed to fail timed-out dispense: %w", err)
	}
	if !transitioned {
		logger.Debug(ctx).
			Uint("log_id", cmd.LogID).
			Msg("Timeout report for already-terminal dispense ignored")
		return &ReportTimeoutResult{}, nil
	}

	log, err := h.dispenseRepo.FindByID(ctx, cmd.LogID)
	if err != nil {
		return nil, fmt.Errorf("failed to load timed-out dispense: %w", err)
	}

	message := fmt.Sprintf("Dispense #%d (%s) timed out: no hardware response", log.ID, log.RecipeName)
	alertID, err := h.engine.CreateSystemAlert(ctx, message)
	if err != nil {
		return nil, err
	}

	logger.Error(ctx).
		Uint("log_id", cmd.LogID).
		Uint("alert_id", alertID).
		Msg("Dispense timed out")

	return &ReportTimeoutResult{AlertID: alertID}, nil
}
