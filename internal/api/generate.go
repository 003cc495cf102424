package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/pantrychef/backend/internal/models"
	"github.com/pantrychef/backend/internal/service"
	"github.com/pantrychef/backend/internal/types"
)

// GenerationBackend abstracts the model calls so handler tests can run
// against a stub instead of a live endpoint. *service.LLMService
// satisfies it.
type GenerationBackend interface {
	GenerateRecipe(ctx context.Context, req service.GenerationRequest) (*service.GenerationResult, error)
	ModifyRecipe(ctx context.Context, original *models.Recipe, modificationRequest string, dietaryPrefs, allergies []string) (*service.ModificationResult, error)
}

type GenerationHandler struct {
	ledger   *service.TokenLedgerService
	llm      GenerationBackend
	recipes  *service.RecipeService
	profiles *service.ProfileService
	logger   zerolog.Logger
}

func NewGenerationHandler(ledger *service.TokenLedgerService, llm GenerationBackend, recipes *service.RecipeService, profiles *service.ProfileService, logger zerolog.Logger) *GenerationHandler {
	return &GenerationHandler{
		ledger:   ledger,
		llm:      llm,
		recipes:  recipes,
		profiles: profiles,
		logger:   logger,
	}
}

type generateRecipeRequest struct {
	Ingredients                  []string `json:"ingredients" binding:"required,min=1"`
	MaxPrepTime                  int      `json:"max_prep_time"`
	Servings                     int      `json:"servings"`
	Cuisine                      string   `json:"cuisine"`
	IncludeAdditionalIngredients bool     `json:"include_additional_ingredients"`
}

// GenerateRecipe turns the caller's pantry into a persisted recipe.
// Order matters: validate the balance before paying for the model call,
// consume only once the call yields a usable recipe.
func (h *GenerationHandler) GenerateRecipe(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req generateRecipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	validation, err := h.ledger.ValidateForUsage(c.Request.Context(), userID, types.UsageRecipeGeneration)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to validate tokens"})
		return
	}
	if !validation.CanGenerate {
		c.JSON(http.StatusPaymentRequired, gin.H{"error": "Insufficient tokens", "details": validation})
		return
	}

	dietaryPrefs, allergies, err := h.profiles.UserPreferences(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load preferences"})
		return
	}

	result, err := h.llm.GenerateRecipe(c.Request.Context(), service.GenerationRequest{
		AvailableIngredients:         req.Ingredients,
		DietaryPreferences:           dietaryPrefs,
		Allergies:                    allergies,
		MaxPrepTime:                  req.MaxPrepTime,
		Servings:                     req.Servings,
		Cuisine:                      req.Cuisine,
		IncludeAdditionalIngredients: req.IncludeAdditionalIngredients,
	})
	var rejection *service.RejectionError
	if errors.As(err, &rejection) {
		// Rejections are free: the model produced no recipe to pay for.
		c.JSON(http.StatusBadRequest, gin.H{
			"error":       rejection.Message,
			"suggestions": rejection.Suggestions,
		})
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID.String()).Msg("recipe generation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Recipe generation failed, please try again"})
		return
	}

	balance, err := h.ledger.Consume(c.Request.Context(), userID, types.UsageRecipeGeneration)
	if errors.Is(err, service.ErrInsufficientTokens) {
		// Lost a race with a concurrent spend since validation.
		c.JSON(http.StatusPaymentRequired, gin.H{"error": "Insufficient tokens"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to consume tokens"})
		return
	}

	recipe, err := h.recipes.CreateRecipe(c.Request.Context(), result.Recipe.ToModel(userID))
	if err != nil {
		// Tokens are spent; surface the recipe anyway so the result is not lost.
		h.logger.Error().Err(err).Str("user_id", userID.String()).Msg("failed to persist generated recipe")
		c.JSON(http.StatusOK, gin.H{
			"recipe":     result.Recipe,
			"saved":      false,
			"tokens":     balance,
			"generation": generationMeta(result),
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"recipe":     recipe,
		"saved":      true,
		"tokens":     balance,
		"generation": generationMeta(result),
	})
}

func generationMeta(result *service.GenerationResult) gin.H {
	return gin.H{
		"used_ingredients":                 result.UsedIngredients,
		"suggested_additional_ingredients": result.SuggestedAdditionalIngredients,
		"confidence":                       result.Confidence,
	}
}

type modifyRecipeRequest struct {
	Request string `json:"request" binding:"required"`
}

// ModifyRecipe applies a freeform modification request to one of the
// caller's saved recipes. The result is a new recipe linked to the
// original; the same pay-after-success ordering as generation applies.
func (h *GenerationHandler) ModifyRecipe(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	recipeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid recipe ID"})
		return
	}

	var req modifyRecipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	original, err := h.recipes.GetRecipe(c.Request.Context(), recipeID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Recipe not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load recipe"})
		return
	}
	if original.UserID != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "Recipe not found"})
		return
	}

	validation, err := h.ledger.ValidateForUsage(c.Request.Context(), userID, types.UsageRecipeGeneration)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to validate tokens"})
		return
	}
	if !validation.CanGenerate {
		c.JSON(http.StatusPaymentRequired, gin.H{"error": "Insufficient tokens", "details": validation})
		return
	}

	dietaryPrefs, allergies, err := h.profiles.UserPreferences(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load preferences"})
		return
	}

	result, err := h.llm.ModifyRecipe(c.Request.Context(), original, req.Request, dietaryPrefs, allergies)
	var rejection *service.RejectionError
	if errors.As(err, &rejection) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":       rejection.Message,
			"suggestions": rejection.Suggestions,
		})
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID.String()).Msg("recipe modification failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Recipe modification failed, please try again"})
		return
	}

	balance, err := h.ledger.Consume(c.Request.Context(), userID, types.UsageRecipeGeneration)
	if errors.Is(err, service.ErrInsufficientTokens) {
		c.JSON(http.StatusPaymentRequired, gin.H{"error": "Insufficient tokens"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to consume tokens"})
		return
	}

	modified, err := h.recipes.CreateModified(c.Request.Context(), original, result.ModifiedRecipe, req.Request)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID.String()).Msg("failed to persist modified recipe")
		c.JSON(http.StatusOK, gin.H{
			"recipe":              result.ModifiedRecipe,
			"saved":               false,
			"tokens":              balance,
			"changes_explanation": result.ChangesExplanation,
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"recipe":              modified,
		"saved":               true,
		"tokens":              balance,
		"changes_explanation": result.ChangesExplanation,
	})
}
