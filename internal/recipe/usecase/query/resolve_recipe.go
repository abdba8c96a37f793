package query

import (
	"errors"
	"fmt"

	"github.com/openpour/openpour/internal/recipe/domain"
)

// Strength selects how heavily the alcoholic ingredients are dosed.
// Scaling preserves the recipe's total volume: whatever the alcoholic
// ingredients gain or lose is redistributed evenly across the
// non-alcoholic ones.
type Strength string

const (
	StrengthWeak   Strength = "weak"
	StrengthNormal Strength = "normal"
	StrengthStrong Strength = "strong"
)

var strengthMultipliers = map[Strength]float64{
	StrengthWeak:   0.75,
	StrengthNormal: 1.0,
	StrengthStrong: 1.25,
}

// ParseStrength validates a requested strength. An empty value defaults
// to normal.
func ParseStrength(value string) (Strength, error) {
	if value == "" {
		return StrengthNormal, nil
	}
	s := Strength(value)
	if _, ok := strengthMultipliers[s]; !ok {
		return "", fmt.Errorf("invalid strength %q: must be weak, normal or strong", value)
	}
	return s, nil
}

// ResolvedItem is one per-pump pour computed from a recipe ingredient
type ResolvedItem struct {
	PumpID         uint    `json:"pump_id"`
	PumpNumber     int     `json:"pump_number"`
	IngredientID   uint    `json:"ingredient_id"`
	IngredientName string  `json:"ingredient_name"`
	VolumeMl       float64 `json:"volume_ml"`
	OrderNumber    int     `json:"order_number"`
}

// ResolvedRecipe is a recipe mapped onto the current pump configuration
// with strength scaling applied.
type ResolvedRecipe struct {
	RecipeID      uint           `json:"recipe_id"`
	RecipeName    string         `json:"recipe_name"`
	Strength      Strength       `json:"strength"`
	TotalVolumeMl float64        `json:"total_volume_ml"`
	Items         []ResolvedItem `json:"items"`
}

// ResolveRecipeQuery carries the resolution parameters
type ResolveRecipeQuery struct {
	RecipeID uint
	Strength Strength
}

// ResolveRecipeHandler maps a recipe onto pumps and checks availability
type ResolveRecipeHandler struct {
	recipeRepo domain.RecipeRepository
}

// NewResolveRecipeHandler creates a new resolver
func NewResolveRecipeHandler(recipeRepo domain.RecipeRepository) *ResolveRecipeHandler {
	return &ResolveRecipeHandler{recipeRepo: recipeRepo}
}

// Handle resolves the recipe. It returns ErrRecipeNotFound when the recipe
// is missing or inactive, and UnavailableError when any ingredient sits on
// an inactive pump or lacks stock for its scaled volume.
func (h *ResolveRecipeHandler) Handle(query ResolveRecipeQuery) (*ResolvedRecipe, error) {
	if query.RecipeID == 0 {
		return nil, errors.New("recipe id is required")
	}
	strength := query.Strength
	if strength == "" {
		strength = StrengthNormal
	}
	multiplier, ok := strengthMultipliers[strength]
	if !ok {
		return nil, fmt.Errorf("invalid strength %q", strength)
	}

	rows, err := h.recipeRepo.FindResolutionRows(query.RecipeID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve recipe %d: %w", query.RecipeID, err)
	}
	if len(rows) == 0 {
		return nil, domain.ErrRecipeNotFound
	}

	// First pass: base volumes in ml, split by alcohol content
	baseMl := make([]float64, len(rows))
	var totalMl, alcoholicMl float64
	nonAlcoholicCount := 0
	for i, row := range rows {
		ml := domain.ConvertToMl(row.Quantity, row.Unit)
		baseMl[i] = ml
		totalMl += ml
		if row.AlcoholPercentage > 0 {
			alcoholicMl += ml
		} else {
			nonAlcoholicCount++
		}
	}

	// Alcoholic volumes scale by the strength multiplier; the delta is
	// spread evenly over the non-alcoholic ingredients so the glass still
	// ends up with the same total.
	newAlcoholicMl := alcoholicMl * multiplier
	fillerScale := 1.0
	if fillerMl := totalMl - alcoholicMl; nonAlcoholicCount > 0 && fillerMl > 0 {
		remaining := totalMl - newAlcoholicMl
		if remaining < 0 {
			remaining = 0
		}
		fillerScale = remaining / fillerMl
	}

	resolved := &ResolvedRecipe{
		RecipeID:   rows[0].RecipeID,
		RecipeName: rows[0].RecipeName,
		Strength:   strength,
		Items:      make([]ResolvedItem, 0, len(rows)),
	}

	var missing []string
	for i, row := range rows {
		volumeMl := baseMl[i]
		if row.AlcoholPercentage > 0 {
			volumeMl *= multiplier
		} else {
			volumeMl *= fillerScale
		}

		if !row.PumpActive || row.CurrentQuantityMl < volumeMl {
			missing = append(missing, row.IngredientName)
		}

		resolved.TotalVolumeMl += volumeMl
		resolved.Items = append(resolved.Items, ResolvedItem{
			PumpID:         row.PumpID,
			PumpNumber:     row.PumpNumber,
			IngredientID:   row.IngredientID,
			IngredientName: row.IngredientName,
			VolumeMl:       volumeMl,
			OrderNumber:    row.OrderNumber,
		})
	}

	if len(missing) > 0 {
		return nil, &domain.UnavailableError{Missing: missing}
	}

	return resolved, nil
}
