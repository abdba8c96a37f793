// Package notification delivers alert mail with per-alert throttling and
// an append-only send audit.
package notification

import (
	"context"
	"errors"
	"time"

	alertdomain "github.com/openpour/openpour/internal/alert/domain"
	"github.com/openpour/openpour/internal/notification/domain"
	"github.com/openpour/openpour/pkg/logger"
)

// Result is the outcome of one notification attempt
type Result string

const (
	ResultSent      Result = "sent"
	ResultThrottled Result = "throttled"
	ResultFailed    Result = "failed"
	ResultSkipped   Result = "skipped"
)

var errNoRecipient = errors.New("no alert recipient configured")

// Gateway sends alert notifications. Delivery is best-effort: a transport
// failure is recorded in the audit log and never propagated to the caller.
type Gateway struct {
	alerts         alertdomain.AlertRepository
	audit          domain.NotificationRepository
	transport      Transport
	recipient      string
	throttleWindow time.Duration
}

// NewGateway creates a new notification gateway
func NewGateway(
	alerts alertdomain.AlertRepository,
	audit domain.NotificationRepository,
	transport Transport,
	recipient string,
	throttleWindow time.Duration,
) *Gateway {
	return &Gateway{
		alerts:         alerts,
		audit:          audit,
		transport:      transport,
		recipient:      recipient,
		throttleWindow: throttleWindow,
	}
}

// Notify implements the alert engine's notifier contract
func (g *Gateway) Notify(ctx context.Context, alertID uint, skipThrottle bool) {
	g.Deliver(ctx, alertID, skipThrottle)
}

// Deliver attempts one notification for an alert. Within the throttle
// window a repeat for the same alert returns Throttled with no send and no
// audit row, unless skipThrottle forces delivery (severity escalation or
// hardware timeout). Every real send attempt writes exactly one audit row.
func (g *Gateway) Deliver(ctx context.Context, alertID uint, skipThrottle bool) Result {
	if g.recipient == "" {
		logger.Debug(ctx).
			Uint("alert_id", alertID).
			Msg("No alert recipient configured, skipping notification")
		return ResultSkipped
	}

	view, err := g.alerts.FindView(ctx, alertID)
	if err != nil {
		logger.Error(ctx).Err(err).Uint("alert_id", alertID).Msg("Failed to load alert for notification")
		return ResultFailed
	}

	if !skipThrottle {
		since := time.Now().Add(-g.throttleWindow)
		count, err := g.audit.CountSince(ctx, alertID, since)
		if err != nil {
			logger.Error(ctx).Err(err).Uint("alert_id", alertID).Msg("Failed to check notification throttle")
			return ResultFailed
		}
		if count > 0 {
			logger.Debug(ctx).
				Uint("alert_id", alertID).
				Dur("window", g.throttleWindow).
				Msg("Notification throttled")
			return ResultThrottled
		}
	}

	subject, body, err := render(view)
	if err != nil {
		logger.Error(ctx).Err(err).Uint("alert_id", alertID).Msg("Failed to render notification")
		return ResultFailed
	}

	record := &domain.EmailNotification{
		AlertID:   alertID,
		Type:      string(view.Type),
		Recipient: g.recipient,
		Status:    domain.StatusSent,
	}

	result := ResultSent
	if err := g.transport.Send(ctx, g.recipient, subject, body); err != nil {
		record.Status = domain.StatusFailed
		record.ErrorMessage = err.Error()
		result = ResultFailed
		logger.Error(ctx).
			Err(err).
			Uint("alert_id", alertID).
			Str("recipient", g.recipient).
			Msg("Failed to send alert notification")
	} else {
		logger.Info(ctx).
			Uint("alert_id", alertID).
			Str("recipient", g.recipient).
			Bool("skip_throttle", skipThrottle).
			Msg("Alert notification sent")
	}

	// The audit row doubles as the throttle marker, so it is written for
	// failed sends too.
	if err := g.audit.Create(ctx, record); err != nil {
		logger.Error(ctx).Err(err).Uint("alert_id", alertID).Msg("Failed to record notification audit row")
	}

	return result
}

// SendTest delivers a plain test mail to verify the transport
// configuration. No audit row is written.
func (g *Gateway) SendTest(ctx context.Context) error {
	if g.recipient == "" {
		return errNoRecipient
	}
	subject := "[Dispenser] Test notification"
	body := "<p>This is a test notification from the dispenser server.</p>"
	return g.transport.Send(ctx, g.recipient, subject, body)
}
