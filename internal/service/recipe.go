package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pantrychef/backend/internal/models"
)

// RecipeService handles recipe persistence and lookup
type RecipeService struct {
	db *gorm.DB
}

// NewRecipeService creates a new RecipeService instance
func NewRecipeService(db *gorm.DB) *RecipeService {
	return &RecipeService{db: db}
}

// CreateRecipe persists a newly generated recipe
func (s *RecipeService) CreateRecipe(ctx context.Context, recipe *models.Recipe) (*models.Recipe, error) {
	if recipe.ID == uuid.Nil {
		recipe.ID = uuid.New()
	}
	if err := s.db.WithContext(ctx).Create(recipe).Error; err != nil {
		return nil, err
	}
	return recipe, nil
}

// GetRecipe retrieves a recipe by ID
func (s *RecipeService) GetRecipe(ctx context.Context, id uuid.UUID) (*models.Recipe, error) {
	var recipe models.Recipe
	if err := s.db.WithContext(ctx).First(&recipe, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &recipe, nil
}

// ListUserRecipes lists a user's saved recipes, newest first
func (s *RecipeService) ListUserRecipes(ctx context.Context, userID uuid.UUID) ([]*models.Recipe, error) {
	var recipes []models.Recipe
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&recipes).Error; err != nil {
		return nil, err
	}
	result := make([]*models.Recipe, len(recipes))
	for i := range recipes {
		result[i] = &recipes[i]
	}
	return result, nil
}

// DeleteRecipe deletes a recipe owned by the given user. Returns
// gorm.ErrRecordNotFound when the recipe does not exist or belongs to
// someone else, so callers cannot distinguish the two.
func (s *RecipeService) DeleteRecipe(ctx context.Context, id, userID uuid.UUID) error {
	var recipe models.Recipe
	if err := s.db.WithContext(ctx).First(&recipe, "id = ? AND user_id = ?", id, userID).Error; err != nil {
		return err
	}
	return s.db.WithContext(ctx).Delete(&models.Recipe{}, "id = ?", recipe.ID).Error
}

// CreateModified persists the outcome of a modification as a new recipe
// linked to its source. The original row is never mutated.
func (s *RecipeService) CreateModified(ctx context.Context, original *models.Recipe, modified *GeneratedRecipe, modificationRequest string) (*models.Recipe, error) {
	recipe := modified.ToModel(original.UserID)
	recipe.ParentRecipeID = &original.ID
	recipe.ModificationRequest = modificationRequest
	recipe.ModificationCount = original.ModificationCount + 1

	if err := s.db.WithContext(ctx).Create(recipe).Error; err != nil {
		return nil, err
	}
	return recipe, nil
}

// SearchUserRecipes searches a user's recipes by keyword, ranked by
// embedding similarity on postgres.
func (s *RecipeService) SearchUserRecipes(ctx context.Context, userID uuid.UUID, query string) ([]*models.Recipe, error) {
	var recipes []models.Recipe

	dbQuery := s.db.WithContext(ctx).Where("user_id = ?", userID)

	if query != "" {
		like := "%" + strings.ToLower(query) + "%"
		if s.db.Dialector.Name() == "postgres" {
			vec := GenerateEmbedding(query)
			subQuery := s.db.Model(&models.Recipe{}).
				Select("id, embedding <-> ? as similarity", vec).
				Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ? OR LOWER(ingredients::text) LIKE ?",
					like, like, like)
			dbQuery = dbQuery.Joins("JOIN (?) as search ON recipes.id = search.id", subQuery).
				Order("search.similarity ASC")
		} else {
			dbQuery = dbQuery.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ? OR LOWER(ingredients) LIKE ?",
				like, like, like)
		}
	}

	if err := dbQuery.Find(&recipes).Error; err != nil {
		return nil, err
	}

	result := make([]*models.Recipe, len(recipes))
	for i := range recipes {
		result[i] = &recipes[i]
	}
	return result, nil
}
