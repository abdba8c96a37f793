package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"github.com/openpour/openpour/bus"
	"github.com/openpour/openpour/internal/alert"
	alertrepo "github.com/openpour/openpour/internal/alert/repository"
	"github.com/openpour/openpour/internal/db/mock"
	"github.com/openpour/openpour/internal/dispense/domain"
	dispenserepo "github.com/openpour/openpour/internal/dispense/repository"
	"github.com/openpour/openpour/internal/dispense/usecase/command"
	"github.com/openpour/openpour/internal/dispense/usecase/query"
	"github.com/openpour/openpour/internal/dispense/watchdog"
	invdomain "github.com/openpour/openpour/internal/inventory/domain"
	invrepo "github.com/openpour/openpour/internal/inventory/repository"
	reciperepo "github.com/openpour/openpour/internal/recipe/repository"
	recipequery "github.com/openpour/openpour/internal/recipe/usecase/query"
)

type nopPublisher struct{}

func (nopPublisher) PublishDispenseCommand(ctx context.Context, event bus.DispenseCommandEvent) error {
	return nil
}

type nopNotifier struct{}

func (nopNotifier) Notify(ctx context.Context, alertID uint, skipThrottle bool) {}

type nopStatePublisher struct{}

func (nopStatePublisher) PublishLastDispense(ctx context.Context, logID uint) {}

type dispenseServer struct {
	db       *gorm.DB
	router   *mux.Router
	recipeID uint
	rumPump  uint
}

// A recipe pouring the same pump twice passes the per-row availability
// check while the cumulative reservation exceeds stock.
func newDispenseServer(t *testing.T, rumStockMl float64) *dispenseServer {
	t.Helper()
	db, err := mock.New(context.Background())
	if err != nil {
		t.Fatalf("mock database: %v", err)
	}

	rumPump, rumID, err := mock.SeedPump(db, mock.PumpFixture{PumpNumber: 1, Ingredient: "Rum", AlcoholPercentage: 40, CurrentMl: rumStockMl})
	if err != nil {
		t.Fatalf("seed pump: %v", err)
	}
	recipeID, err := mock.SeedRecipe(db, "Double Rum", []mock.RecipeItem{
		{IngredientID: rumID, Quantity: 40, OrderNumber: 1},
		{IngredientID: rumID, Quantity: 40, OrderNumber: 2},
	})
	if err != nil {
		t.Fatalf("seed recipe: %v", err)
	}

	dispenseRepo := dispenserepo.NewGormDispenseRepository(db)
	inventoryRepo := invrepo.NewGormInventoryRepository(db)
	engine := alert.NewEngine(alertrepo.NewGormAlertRepository(db), inventoryRepo, nopNotifier{})
	wd := watchdog.New(time.Minute)

	handler := NewDispenseHandler(
		command.NewInitiateDispenseHandler(
			db,
			recipequery.NewResolveRecipeHandler(reciperepo.NewGormRecipeRepository(db)),
			dispenseRepo,
			inventoryRepo,
			nopPublisher{},
			wd,
		),
		command.NewReportStatusHandler(dispenseRepo, engine, nopStatePublisher{}, wd),
		command.NewReportTimeoutHandler(dispenseRepo, engine, wd),
		query.NewGetHistoryHandler(dispenseRepo),
	)
	router := mux.NewRouter()
	handler.RegisterRoutes(router)

	return &dispenseServer{db: db, router: router, recipeID: recipeID, rumPump: rumPump}
}

func (s *dispenseServer) initiate(t *testing.T) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(map[string]uint{"recipe_id": s.recipeID})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/dispense", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestInitiateDispenseStarted(t *testing.T) {
	t.Parallel()

	s := newDispenseServer(t, 500)
	rec := s.initiate(t)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			LogID uint `json:"log_id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success || resp.Data.LogID == 0 {
		t.Fatalf("response = %s, want success with log id", rec.Body.String())
	}
}

func TestInitiateDispenseReservationShortfallIsUnavailable(t *testing.T) {
	t.Parallel()

	// 50ml covers either 40ml pour on its own but not both
	s := newDispenseServer(t, 50)
	rec := s.initiate(t)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Success || resp.Error != "Insufficient ingredients" {
		t.Errorf("response = %s, want the unavailable shape", rec.Body.String())
	}

	// The failed transaction leaves no log and no partial reservation
	var count int64
	if err := s.db.Model(&domain.DispenseLog{}).Count(&count).Error; err != nil {
		t.Fatalf("count logs: %v", err)
	}
	if count != 0 {
		t.Errorf("log rows = %d, want 0", count)
	}
	var inv invdomain.Inventory
	if err := s.db.Where("pump_id = ?", s.rumPump).First(&inv).Error; err != nil {
		t.Fatalf("load inventory: %v", err)
	}
	if inv.CurrentQuantityMl != 50 {
		t.Errorf("stock = %.0f, want 50", inv.CurrentQuantityMl)
	}
}
