// Package mock provides an in-memory database for tests.
package mock

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	alertdomain "github.com/openpour/openpour/internal/alert/domain"
	dispensedomain "github.com/openpour/openpour/internal/dispense/domain"
	invdomain "github.com/openpour/openpour/internal/inventory/domain"
	notificationdomain "github.com/openpour/openpour/internal/notification/domain"
	recipedomain "github.com/openpour/openpour/internal/recipe/domain"
)

var dbSeq atomic.Int64

// New returns an in-memory sqlite database with the full dispenser schema.
// Each call gets its own database so parallel tests do not share state.
func New(ctx context.Context) (*gorm.DB, error) {
	dsn := fmt.Sprintf("file:openpour-mock-%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, err
	}

	if err := db.WithContext(ctx).AutoMigrate(
		&recipedomain.Ingredient{},
		&recipedomain.Recipe{},
		&recipedomain.RecipeIngredient{},
		&invdomain.Pump{},
		&invdomain.Inventory{},
		&dispensedomain.DispenseLog{},
		&dispensedomain.DispenseDetail{},
		&alertdomain.Alert{},
		&notificationdomain.EmailNotification{},
	); err != nil {
		return nil, err
	}

	return db, nil
}

// PumpFixture describes one seeded pump with its bottle and ingredient
type PumpFixture struct {
	PumpNumber        int
	Ingredient        string
	AlcoholPercentage float64
	BottleSizeMl      float64
	CurrentMl         float64
	MinAlertMl        float64
	Inactive          bool
}

// SeedPump inserts an ingredient, pump and inventory row. Returns the pump
// and ingredient ids.
func SeedPump(db *gorm.DB, f PumpFixture) (uint, uint, error) {
	ingredient := recipedomain.Ingredient{
		Name:              f.Ingredient,
		AlcoholPercentage: f.AlcoholPercentage,
		Unit:              "ml",
	}
	if err := db.Create(&ingredient).Error; err != nil {
		return 0, 0, err
	}

	pump := invdomain.Pump{
		PumpNumber:   f.PumpNumber,
		IngredientID: &ingredient.ID,
		IsActive:     !f.Inactive,
	}
	if err := db.Create(&pump).Error; err != nil {
		return 0, 0, err
	}

	bottleSize := f.BottleSizeMl
	if bottleSize == 0 {
		bottleSize = 700
	}
	minAlert := f.MinAlertMl
	if minAlert == 0 {
		minAlert = 100
	}
	inventory := invdomain.Inventory{
		PumpID:             pump.ID,
		IngredientID:       ingredient.ID,
		BottleSizeMl:       bottleSize,
		InitialQuantityMl:  f.CurrentMl,
		CurrentQuantityMl:  f.CurrentMl,
		MinQuantityAlertMl: minAlert,
	}
	if err := db.Create(&inventory).Error; err != nil {
		return 0, 0, err
	}

	return pump.ID, ingredient.ID, nil
}

// RecipeItem is one seeded recipe component
type RecipeItem struct {
	IngredientID uint
	Quantity     float64
	Unit         string
	OrderNumber  int
}

// SeedRecipe inserts an active recipe with the given components
func SeedRecipe(db *gorm.DB, name string, items []RecipeItem) (uint, error) {
	recipe := recipedomain.Recipe{Name: name, IsActive: true}
	if err := db.Create(&recipe).Error; err != nil {
		return 0, err
	}
	for _, item := range items {
		unit := item.Unit
		if unit == "" {
			unit = "ml"
		}
		ri := recipedomain.RecipeIngredient{
			RecipeID:     recipe.ID,
			IngredientID: item.IngredientID,
			Quantity:     item.Quantity,
			Unit:         unit,
			OrderNumber:  item.OrderNumber,
		}
		if err := db.Create(&ri).Error; err != nil {
			return 0, err
		}
	}
	return recipe.ID, nil
}
