package notification

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm"

	alertdomain "github.com/openpour/openpour/internal/alert/domain"
	alertrepo "github.com/openpour/openpour/internal/alert/repository"
	"github.com/openpour/openpour/internal/db/mock"
	"github.com/openpour/openpour/internal/notification/domain"
	notificationrepo "github.com/openpour/openpour/internal/notification/repository"
)

type sentMail struct {
	to      string
	subject string
	body    string
}

type stubTransport struct {
	sent []sentMail
	err  error
}

func (s *stubTransport) Send(ctx context.Context, to, subject, htmlBody string) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sentMail{to: to, subject: subject, body: htmlBody})
	return nil
}

func newGatewayFixture(t *testing.T, transport Transport) (*gorm.DB, *Gateway, uint) {
	t.Helper()
	db, err := mock.New(context.Background())
	if err != nil {
		t.Fatalf("mock database: %v", err)
	}

	alert := alertdomain.Alert{
		Type:     alertdomain.TypeLowStock,
		Severity: alertdomain.SeverityWarning,
		Message:  "Rum is running low on pump 1",
	}
	if err := db.Create(&alert).Error; err != nil {
		t.Fatalf("seed alert: %v", err)
	}

	gateway := NewGateway(
		alertrepo.NewGormAlertRepository(db),
		notificationrepo.NewGormNotificationRepository(db),
		transport,
		"operator@example.com",
		time.Hour,
	)
	return db, gateway, alert.ID
}

func auditRows(t *testing.T, db *gorm.DB) []domain.EmailNotification {
	t.Helper()
	var rows []domain.EmailNotification
	if err := db.Order("id ASC").Find(&rows).Error; err != nil {
		t.Fatalf("load audit rows: %v", err)
	}
	return rows
}

func TestDeliverThrottlesWithinWindow(t *testing.T) {
	t.Parallel()

	transport := &stubTransport{}
	db, gateway, alertID := newGatewayFixture(t, transport)

	if result := gateway.Deliver(context.Background(), alertID, false); result != ResultSent {
		t.Fatalf("first deliver = %s, want sent", result)
	}
	if result := gateway.Deliver(context.Background(), alertID, false); result != ResultThrottled {
		t.Fatalf("second deliver = %s, want throttled", result)
	}

	rows := auditRows(t, db)
	if len(rows) != 1 {
		t.Fatalf("audit rows = %d, want 1", len(rows))
	}
	if len(transport.sent) != 1 {
		t.Fatalf("sends = %d, want 1", len(transport.sent))
	}
	if transport.sent[0].to != "operator@example.com" {
		t.Errorf("recipient = %q", transport.sent[0].to)
	}
}

func TestDeliverSkipThrottleAlwaysSends(t *testing.T) {
	t.Parallel()

	transport := &stubTransport{}
	db, gateway, alertID := newGatewayFixture(t, transport)

	if result := gateway.Deliver(context.Background(), alertID, true); result != ResultSent {
		t.Fatalf("first deliver = %s, want sent", result)
	}
	if result := gateway.Deliver(context.Background(), alertID, true); result != ResultSent {
		t.Fatalf("second deliver = %s, want sent", result)
	}

	if rows := auditRows(t, db); len(rows) != 2 {
		t.Fatalf("audit rows = %d, want 2", len(rows))
	}
	if len(transport.sent) != 2 {
		t.Fatalf("sends = %d, want 2", len(transport.sent))
	}
}

func TestDeliverRecordsTransportFailure(t *testing.T) {
	t.Parallel()

	transport := &stubTransport{err: errors.New("connection refused")}
	db, gateway, alertID := newGatewayFixture(t, transport)

	if result := gateway.Deliver(context.Background(), alertID, false); result != ResultFailed {
		t.Fatalf("deliver = %s, want failed", result)
	}

	rows := auditRows(t, db)
	if len(rows) != 1 {
		t.Fatalf("audit rows = %d, want 1", len(rows))
	}
	if rows[0].Status != domain.StatusFailed {
		t.Errorf("status = %s, want failed", rows[0].Status)
	}
	if rows[0].ErrorMessage == "" {
		t.Error("expected error message in audit row")
	}
	// The failed attempt still occupies the throttle window
	if result := gateway.Deliver(context.Background(), alertID, false); result != ResultThrottled {
		t.Fatalf("second deliver = %s, want throttled", result)
	}
}

func TestDeliverSkipsWithoutRecipient(t *testing.T) {
	t.Parallel()

	transport := &stubTransport{}
	db, err := mock.New(context.Background())
	if err != nil {
		t.Fatalf("mock database: %v", err)
	}
	gateway := NewGateway(
		alertrepo.NewGormAlertRepository(db),
		notificationrepo.NewGormNotificationRepository(db),
		transport,
		"",
		time.Hour,
	)

	if result := gateway.Deliver(context.Background(), 1, false); result != ResultSkipped {
		t.Fatalf("deliver = %s, want skipped", result)
	}
	if len(transport.sent) != 0 {
		t.Errorf("sends = %d, want 0", len(transport.sent))
	}
}

func TestRenderSelectsTemplateByType(t *testing.T) {
	t.Parallel()

	pumpNumber := 3
	emptyView := &alertdomain.View{
		Alert: alertdomain.Alert{
			Type:     alertdomain.TypeEmptyBottle,
			Severity: alertdomain.SeverityCritical,
			Message:  "Gin bottle on pump 3 is empty",
		},
		IngredientName: "Gin",
		PumpNumber:     &pumpNumber,
	}
	subject, body, err := render(emptyView)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if subject == "" {
		t.Error("expected non-empty subject")
	}
	if want := "Bottle empty"; !strings.Contains(body, want) {
		t.Errorf("body missing %q:\n%s", want, body)
	}
	if !strings.Contains(body, "Gin") {
		t.Errorf("body missing ingredient name:\n%s", body)
	}

	genericView := &alertdomain.View{
		Alert: alertdomain.Alert{
			Type:     alertdomain.TypeSystemError,
			Severity: alertdomain.SeverityCritical,
			Message:  "Dispense #7 timed out",
		},
	}
	_, body, err = render(genericView)
	if err != nil {
		t.Fatalf("render generic: %v", err)
	}
	if want := "Dispenser alert"; !strings.Contains(body, want) {
		t.Errorf("body missing %q:\n%s", want, body)
	}
}
