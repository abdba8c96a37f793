package repository

import (
	"github.com/openpour/openpour/internal/recipe/domain"
	"gorm.io/gorm"
)

type GormRecipeRepository struct {
	db *gorm.DB
}

func NewGormRecipeRepository(db *gorm.DB) *GormRecipeRepository {
	return &GormRecipeRepository{db: db}
}

func (r *GormRecipeRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&domain.Ingredient{}, &domain.Recipe{}, &domain.RecipeIngredient{})
}

func (r *GormRecipeRepository) FindResolutionRows(recipeID uint) ([]domain.ResolutionRow, error) {
	var rows []domain.ResolutionRow
	err := r.db.
		Table("recipes r").
		Select(`r.id AS recipe_id, r.name AS recipe_name,
			ri.ingredient_id, ri.quantity, ri.unit, ri.order_number,
			i.name AS ingredient_name, i.alcohol_percentage,
			p.id AS pump_id, p.pump_number, p.is_active AS pump_active,
			inv.current_quantity_ml`).
		Joins("JOIN recipe_ingredients ri ON ri.recipe_id = r.id").
		Joins("JOIN ingredients i ON i.id = ri.ingredient_id").
		Joins("JOIN inventory inv ON inv.ingredient_id = i.id").
		Joins("JOIN pumps p ON p.id = inv.pump_id").
		Where("r.id = ? AND r.is_active = ?", recipeID, true).
		Order("ri.order_number").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
