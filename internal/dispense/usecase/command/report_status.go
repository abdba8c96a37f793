package command

import (
	"context"
	"fmt"

	"github.com/openpour/openpour/internal/alert"
	"github.com/openpour/openpour/internal/dispense/domain"
	"github.com/openpour/openpour/internal/dispense/watchdog"
	"github.com/openpour/openpour/pkg/logger"
)

// StatePublisher mirrors dispense results to external observers
type StatePublisher interface {
	PublishLastDispense(ctx context.Context, logID uint)
}

// ReportStatusCommand carries a hardware status report for a dispense
type ReportStatusCommand struct {
	LogID        uint
	Status       domain.Status
	ErrorMessage string
}

// ReportStatusHandler reconciles hardware status reports into the dispense
// log. Terminal states are sticky; a late or duplicate report for a
// finished log is ignored.
type ReportStatusHandler struct {
	dispenseRepo   domain.DispenseRepository
	engine         *alert.Engine
	statePublisher StatePublisher
	watchdog       *watchdog.Watchdog
}

// NewReportStatusHandler creates a new report status handler
func NewReportStatusHandler(
	dispenseRepo domain.DispenseRepository,
	engine *alert.Engine,
	statePublisher StatePublisher,
	wd *watchdog.Watchdog,
) *ReportStatusHandler {
	return &ReportStatusHandler{
		dispenseRepo:   dispenseRepo,
		engine:         engine,
		statePublisher: statePublisher,
		watchdog:       wd,
	}
}

// Handle applies one status report. Returns domain.ErrLogNotFound when the
// log id does not exist.
func (h *ReportStatusHandler) Handle(ctx context.Context, cmd ReportStatusCommand) error {
	if cmd.LogID == 0 {
		return fmt.Errorf("log_id is required")
	}
	if !cmd.Status.IsValid() {
		return fmt.Errorf("invalid status %q", cmd.Status)
	}
	if cmd.Status == domain.StatusStarted {
		return fmt.Errorf("status %q is set at creation and cannot be reported", cmd.Status)
	}

	if !cmd.Status.IsTerminal() {
		if err := h.dispenseRepo.SetStatusIfActive(ctx, cmd.LogID, cmd.Status); err != nil {
			return fmt.Errorf("failed to record progress status: %w", err)
		}
		return nil
	}

	transitioned, err := h.dispenseRepo.MarkTerminalIfActive(ctx, cmd.LogID, cmd.Status, cmd.ErrorMessage)
	if err != nil {
		return fmt.Errorf("failed to record terminal status: %w", err)
	}
	if !transitioned {
		logger.Debug(ctx).
			Uint("log_id", cmd.LogID).
			Str("status", string(cmd.Status)).
			Msg("Ignoring status report for already-terminal dispense")
		return nil
	}

	h.watchdog.Disarm(cmd.LogID)

	logger.Info(ctx).
		Uint("log_id", cmd.LogID).
		Str("status", string(cmd.Status)).
		Str("error_message", cmd.ErrorMessage).
		Msg("Dispense reached terminal state")

	// Stock evaluation and smart-home mirroring run after the response so
	// the bus consumer is never blocked on them.
	pumpIDs, err := h.dispenseRepo.PumpIDs(ctx, cmd.LogID)
	if err != nil {
		logger.Error(ctx).Err(err).Uint("log_id", cmd.LogID).Msg("Failed to load pump ids for evaluation")
		return nil
	}

	status := cmd.Status
	logID := cmd.LogID
	go func() {
		bg := context.Background()
		h.engine.Evaluate(bg, pumpIDs)
		if status == domain.StatusCompleted {
			h.statePublisher.PublishLastDispense(bg, logID)
		}
	}()

	return nil
}
