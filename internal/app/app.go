// Package app assembles the dispenser server from its components.
package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/openpour/openpour/bus"
	"github.com/openpour/openpour/internal/alert"
	alerthttp "github.com/openpour/openpour/internal/alert/delivery/http"
	alertrepo "github.com/openpour/openpour/internal/alert/repository"
	"github.com/openpour/openpour/internal/config"
	dispensehttp "github.com/openpour/openpour/internal/dispense/delivery/http"
	dispensedomain "github.com/openpour/openpour/internal/dispense/domain"
	dispenserepo "github.com/openpour/openpour/internal/dispense/repository"
	dispensecommand "github.com/openpour/openpour/internal/dispense/usecase/command"
	dispensequery "github.com/openpour/openpour/internal/dispense/usecase/query"
	"github.com/openpour/openpour/internal/dispense/watchdog"
	"github.com/openpour/openpour/internal/hardware"
	inventoryhttp "github.com/openpour/openpour/internal/inventory/delivery/http"
	inventoryrepo "github.com/openpour/openpour/internal/inventory/repository"
	inventorycommand "github.com/openpour/openpour/internal/inventory/usecase/command"
	inventoryquery "github.com/openpour/openpour/internal/inventory/usecase/query"
	"github.com/openpour/openpour/internal/notification"
	notificationhttp "github.com/openpour/openpour/internal/notification/delivery/http"
	notificationrepo "github.com/openpour/openpour/internal/notification/repository"
	reciperepo "github.com/openpour/openpour/internal/recipe/repository"
	recipequery "github.com/openpour/openpour/internal/recipe/usecase/query"
	"github.com/openpour/openpour/internal/smarthome"
	"github.com/openpour/openpour/pkg/logger"
)

// App holds the wired server components
type App struct {
	Config *config.Config
	DB     *gorm.DB

	DispenseHandler     *dispensehttp.DispenseHandler
	InventoryHandler    *inventoryhttp.InventoryHandler
	AlertHandler        *alerthttp.AlertHandler
	NotificationHandler *notificationhttp.NotificationHandler

	Liveness  *hardware.Store
	SmartHome *smarthome.StatePublisher
	Watchdog  *watchdog.Watchdog

	recipeRepo       *reciperepo.GormRecipeRepository
	inventoryRepo    *inventoryrepo.GormInventoryRepository
	dispenseRepo     *dispenserepo.GormDispenseRepository
	alertRepo        *alertrepo.GormAlertRepository
	notificationRepo *notificationrepo.GormNotificationRepository

	statusHandler *dispensecommand.ReportStatusHandler
}

// NewApp wires repositories, use cases and delivery handlers
func NewApp(
	cfg *config.Config,
	db *gorm.DB,
	publisher *bus.Publisher,
	consumer *bus.Consumer,
	redisClient *redis.Client,
) (*App, error) {
	recipeRepo := reciperepo.NewGormRecipeRepository(db)
	inventoryRepo := inventoryrepo.NewGormInventoryRepository(db)
	dispenseRepo := dispenserepo.NewGormDispenseRepository(db)
	alertRepo := alertrepo.NewGormAlertRepository(db)
	notificationRepo := notificationrepo.NewGormNotificationRepository(db)

	transport, err := notification.NewSMTPTransport(cfg.SMTP)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize mail transport: %w", err)
	}
	gateway := notification.NewGateway(alertRepo, notificationRepo, transport, cfg.SMTP.AlertEmail, cfg.ThrottleWindow)

	engine := alert.NewEngine(alertRepo, inventoryRepo, gateway)
	wd := watchdog.New(cfg.DispenseTimeout)
	statePublisher := smarthome.NewStatePublisher(publisher, inventoryRepo, alertRepo, dispenseRepo)

	resolver := recipequery.NewResolveRecipeHandler(recipeRepo)
	initiateHandler := dispensecommand.NewInitiateDispenseHandler(db, resolver, dispenseRepo, inventoryRepo, publisher, wd)
	statusHandler := dispensecommand.NewReportStatusHandler(dispenseRepo, engine, statePublisher, wd)
	timeoutHandler := dispensecommand.NewReportTimeoutHandler(dispenseRepo, engine, wd)
	historyHandler := dispensequery.NewGetHistoryHandler(dispenseRepo)

	// The watchdog fails silent dispenses through the same path the HTTP
	// timeout endpoint uses.
	wd.SetHandler(func(logID uint) {
		if _, err := timeoutHandler.Handle(context.Background(), dispensecommand.ReportTimeoutCommand{LogID: logID}); err != nil {
			logger.Logger.Error().Err(err).Uint("log_id", logID).Msg("Watchdog timeout handling failed")
		}
	})

	liveness := hardware.NewStore(redisClient)

	app := &App{
		Config: cfg,
		DB:     db,
		DispenseHandler: dispensehttp.NewDispenseHandler(
			initiateHandler,
			statusHandler,
			timeoutHandler,
			historyHandler,
		),
		InventoryHandler: inventoryhttp.NewInventoryHandler(
			inventorycommand.NewRefillBottleHandler(inventoryRepo),
			inventorycommand.NewRefillAllHandler(inventoryRepo),
			inventorycommand.NewUpdateSettingsHandler(inventoryRepo),
			inventoryquery.NewListInventoryHandler(inventoryRepo),
		),
		AlertHandler:        alerthttp.NewAlertHandler(alertRepo),
		NotificationHandler: notificationhttp.NewNotificationHandler(notificationRepo, gateway),
		Liveness:            liveness,
		SmartHome:           statePublisher,
		Watchdog:            wd,
		recipeRepo:          recipeRepo,
		inventoryRepo:       inventoryRepo,
		dispenseRepo:        dispenseRepo,
		alertRepo:           alertRepo,
		notificationRepo:    notificationRepo,
		statusHandler:       statusHandler,
	}

	app.registerBusHandlers(consumer)

	return app, nil
}

// Migrate runs all schema migrations
func (a *App) Migrate() error {
	migrations := []func() error{
		a.recipeRepo.AutoMigrate,
		a.inventoryRepo.AutoMigrate,
		a.dispenseRepo.AutoMigrate,
		a.alertRepo.AutoMigrate,
		a.notificationRepo.AutoMigrate,
	}
	for _, migrate := range migrations {
		if err := migrate(); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}
	return nil
}

func (a *App) registerBusHandlers(consumer *bus.Consumer) {
	consumer.OnStatusUpdate(func(ctx context.Context, event bus.StatusUpdateEvent) error {
		return a.statusHandler.Handle(ctx, dispensecommand.ReportStatusCommand{
			LogID:        event.LogID,
			Status:       dispensedomain.Status(event.Status),
			ErrorMessage: event.ErrorMessage,
		})
	})
	consumer.OnHeartbeat(func(ctx context.Context, event bus.HeartbeatEvent) error {
		return a.Liveness.Touch(ctx, event)
	})
}
