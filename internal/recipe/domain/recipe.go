package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrRecipeNotFound is returned when a recipe does not exist, is inactive,
// or has no resolvable ingredient rows.
var ErrRecipeNotFound = errors.New("recipe not found or not available")

// Ingredient represents a dispensable ingredient
type Ingredient struct {
	ID                uint    `json:"id" gorm:"primaryKey"`
	Name              string  `json:"name" gorm:"not null;uniqueIndex"`
	AlcoholPercentage float64 `json:"alcohol_percentage" gorm:"not null;default:0"`
	Unit              string  `json:"unit" gorm:"not null;default:'ml'"`
	CostPerUnit       float64 `json:"cost_per_unit" gorm:"not null;default:0"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// TableName specifies the table name
func (Ingredient) TableName() string {
	return "ingredients"
}

// IsAlcoholic reports whether the ingredient counts toward strength scaling
func (i *Ingredient) IsAlcoholic() bool {
	return i.AlcoholPercentage > 0
}

// Recipe represents a drink recipe
type Recipe struct {
	ID          uint               `json:"id" gorm:"primaryKey"`
	Name        string             `json:"name" gorm:"not null"`
	IsActive    bool               `json:"is_active" gorm:"not null;default:true"`
	Ingredients []RecipeIngredient `json:"ingredients" gorm:"foreignKey:RecipeID"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// TableName specifies the table name
func (Recipe) TableName() string {
	return "recipes"
}

// RecipeIngredient is one ordered component of a recipe
type RecipeIngredient struct {
	ID           uint    `json:"id" gorm:"primaryKey"`
	RecipeID     uint    `json:"recipe_id" gorm:"not null;index"`
	IngredientID uint    `json:"ingredient_id" gorm:"not null"`
	Quantity     float64 `json:"quantity" gorm:"not null"`
	Unit         string  `json:"unit" gorm:"not null;default:'ml'"`
	OrderNumber  int     `json:"order_number" gorm:"not null;default:0"`
}

// TableName specifies the table name
func (RecipeIngredient) TableName() string {
	return "recipe_ingredients"
}

// ResolutionRow is the joined recipe/ingredient/pump/inventory row used by
// the resolver. One row per recipe ingredient.
type ResolutionRow struct {
	RecipeID          uint
	RecipeName        string
	IngredientID      uint
	IngredientName    string
	AlcoholPercentage float64
	Quantity          float64
	Unit              string
	OrderNumber       int
	PumpID            uint
	PumpNumber        int
	PumpActive        bool
	CurrentQuantityMl float64
}

// RecipeRepository defines the contract for recipe data access
type RecipeRepository interface {
	// FindResolutionRows loads the joined rows for an active recipe,
	// ordered by order number. Returns an empty slice when the recipe is
	// missing or inactive.
	FindResolutionRows(recipeID uint) ([]ResolutionRow, error)
}

// ConvertToMl normalizes a declared quantity to milliliters
func ConvertToMl(quantity float64, unit string) float64 {
	switch unit {
	case "cl":
		return quantity * 10
	case "l":
		return quantity * 1000
	default: // ml
		return quantity
	}
}

// UnavailableError reports which ingredients lack sufficient stock or sit on
// an inactive pump.
type UnavailableError struct {
	Missing []string
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("insufficient ingredients: %s", strings.Join(e.Missing, ", "))
}
