package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pantrychef/backend/config"
	"github.com/pantrychef/backend/internal/models"
)

// RetryPolicy bounds the retry loop around a model call. Attempts beyond
// the first wait Delay between them; the wait is abandoned when the
// request context is cancelled.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultRetryPolicy matches the product's bounded retry behavior.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 3, Delay: time.Second}

// RejectionError is a semantic refusal from the model: the call succeeded
// mechanically but the request is infeasible (e.g. an irreconcilable
// dietary conflict). Tokens are never consumed for a rejection.
type RejectionError struct {
	Message     string
	Suggestions []string
}

func (e *RejectionError) Error() string {
	return e.Message
}

// GenerationRequest carries the user's pantry and preferences into a
// recipe generation call.
type GenerationRequest struct {
	AvailableIngredients         []string
	DietaryPreferences           []string
	Allergies                    []string
	MaxPrepTime                  int
	Servings                     int
	Cuisine                      string
	IncludeAdditionalIngredients bool
}

// GeneratedNutrition mirrors the nutrition block the model returns.
type GeneratedNutrition struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
	Fiber    float64 `json:"fiber"`
	Sugar    float64 `json:"sugar"`
	Sodium   float64 `json:"sodium"`
}

// GeneratedRecipe is the recipe shape the model is instructed to return.
type GeneratedRecipe struct {
	Title         string                    `json:"title"`
	Description   string                    `json:"description"`
	PrepTime      int                       `json:"prep_time"`
	CookTime      int                       `json:"cook_time"`
	Servings      int                       `json:"servings"`
	Difficulty    string                    `json:"difficulty"`
	Cuisine       string                    `json:"cuisine"`
	DietaryTags   []string                  `json:"dietary_tags"`
	Ingredients   []models.RecipeIngredient `json:"ingredients"`
	Instructions  []models.RecipeStep       `json:"instructions"`
	Nutrition     GeneratedNutrition        `json:"nutrition"`
	Tips          []string                  `json:"tips"`
	EstimatedCost string                    `json:"estimated_cost"`
}

// ToModel converts a generated recipe into a persistable row for the user.
func (g *GeneratedRecipe) ToModel(userID uuid.UUID) *models.Recipe {
	return &models.Recipe{
		ID:           uuid.New(),
		Title:        g.Title,
		Description:  g.Description,
		PrepTime:     g.PrepTime,
		CookTime:     g.CookTime,
		Servings:     g.Servings,
		Difficulty:   g.Difficulty,
		Cuisine:      g.Cuisine,
		DietaryTags:  models.JSONBStringArray(g.DietaryTags),
		Ingredients:  models.JSONBIngredients(g.Ingredients),
		Instructions: models.JSONBSteps(g.Instructions),
		Tips:         models.JSONBStringArray(g.Tips),
		Calories:     g.Nutrition.Calories,
		Protein:      g.Nutrition.Protein,
		Carbs:        g.Nutrition.Carbs,
		Fat:          g.Nutrition.Fat,
		Fiber:        g.Nutrition.Fiber,
		Sugar:        g.Nutrition.Sugar,
		Sodium:       g.Nutrition.Sodium,
		EstimatedCost: g.EstimatedCost,
		Embedding:     GenerateEmbedding(g.Title + " " + g.Description),
		UserID:        userID,
	}
}

// GenerationResult is the full payload of a generation call.
type GenerationResult struct {
	Recipe                         *GeneratedRecipe `json:"recipe"`
	UsedIngredients                []string         `json:"used_ingredients"`
	SuggestedAdditionalIngredients []string         `json:"suggested_additional_ingredients"`
	Confidence                     float64          `json:"confidence"`
}

// ModificationResult is the full payload of a modification call.
type ModificationResult struct {
	ModifiedRecipe     *GeneratedRecipe `json:"modified_recipe"`
	Confidence         float64          `json:"confidence"`
	ChangesExplanation string           `json:"changes_explanation"`
}

// LLMService handles interactions with the DeepSeek API
type LLMService struct {
	apiKey string
	apiURL string
	client *http.Client
	retry  RetryPolicy
	logger zerolog.Logger
}

// NewLLMService creates a new LLMService instance
func NewLLMService(cfg *config.Config, logger zerolog.Logger) (*LLMService, error) {
	apiKey := cfg.DeepSeekAPIKey
	if apiKey == "" {
		apiKeyFile := os.Getenv("DEEPSEEK_API_KEY_FILE")
		if apiKeyFile == "" {
			return nil, fmt.Errorf("DEEPSEEK_API_KEY or DEEPSEEK_API_KEY_FILE must be set")
		}

		apiKeyBytes, err := os.ReadFile(apiKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read API key file: %w", err)
		}

		apiKey = strings.TrimSpace(string(apiKeyBytes))
		if apiKey == "" {
			return nil, fmt.Errorf("API key file is empty")
		}
	}

	return &LLMService{
		apiKey: apiKey,
		apiURL: cfg.DeepSeekAPIURL,
		client: &http.Client{Timeout: 60 * time.Second},
		retry:  DefaultRetryPolicy,
		logger: logger,
	}, nil
}

// Message represents a message in the chat
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request represents a request to the DeepSeek API
type Request struct {
	Model          string            `json:"model"`
	Messages       []Message         `json:"messages"`
	ResponseFormat map[string]string `json:"response_format"`
	Temperature    float64           `json:"temperature,omitempty"`
}

const generationSystemPrompt = `You are a professional chef and nutritionist specializing in creating healthy, high-protein meals. Generate a recipe based on the user's available pantry ingredients and preferences.

You must respond with a single valid JSON object and nothing else, using this structure:
{
  "recipe": {
    "title": "Recipe Title",
    "description": "Brief description of the recipe",
    "prep_time": 15,
    "cook_time": 25,
    "servings": 4,
    "difficulty": "Easy/Medium/Hard",
    "cuisine": "Mediterranean",
    "dietary_tags": ["High-Protein", "Low-Carb"],
    "ingredients": [{"name": "Ingredient", "amount": "2", "unit": "cups", "notes": "optional"}],
    "instructions": [{"step_number": 1, "instruction": "Step description", "time_minutes": 5}],
    "nutrition": {"calories": 450, "protein": 35, "carbs": 25, "fat": 20, "fiber": 8, "sugar": 5, "sodium": 600},
    "tips": ["Tip 1"],
    "estimated_cost": "Budget/Moderate/Premium"
  },
  "used_ingredients": ["ingredient1"],
  "suggested_additional_ingredients": ["optional1"],
  "confidence": 0.9
}

If the request is infeasible (for example the ingredients cannot produce a safe or coherent recipe under the stated restrictions), respond instead with:
{"error": true, "message": "explanation", "suggestions": ["suggestion1", "suggestion2"]}

Guidelines:
- Prioritize high-protein recipes (aim for 25-40g protein per serving)
- Use available ingredients as the primary focus
- Strictly avoid any ingredients that match the user's allergies
- Ensure all nutritional values are realistic
- All numeric fields must be numbers, not strings`

const modificationSystemPrompt = `You are a professional chef and nutritionist specializing in recipe modifications. Adapt the given recipe per the modification request while maintaining its appeal and high-protein focus.

You must respond with a single valid JSON object in one of two formats:
SUCCESS: {"modified_recipe": {...same structure as the original recipe...}, "confidence": 0.85, "changes_explanation": "what changed and why"}
ERROR: {"error": true, "message": "why the modification cannot be made", "suggestions": ["alternative 1", "alternative 2"]}

Only reject if the request conflicts with fundamental recipe characteristics in an irreversible way, would make the recipe unsafe or inedible, or essential ingredients cannot be substituted without completely changing the dish. Most requests can be accommodated.

The modified_recipe must contain ALL recipe fields: title, description, prep_time, cook_time, servings, difficulty, cuisine, dietary_tags, ingredients, instructions, nutrition, tips, estimated_cost. Update every affected component, including nutrition. All numeric fields must be numbers, not strings.`

// llmRejection is the model's refusal shape, checked before the success shape.
type llmRejection struct {
	Error       bool     `json:"error"`
	Message     string   `json:"message"`
	Suggestions []string `json:"suggestions"`
}

// GenerateRecipe asks the model for a recipe built from the user's pantry.
// Structural failures (transport errors, unparseable output) are retried
// per the service's retry policy; a semantic refusal is returned as a
// *RejectionError without retrying.
func (s *LLMService) GenerateRecipe(ctx context.Context, req GenerationRequest) (*GenerationResult, error) {
	messages := []Message{
		{Role: "system", Content: generationSystemPrompt},
		{Role: "user", Content: buildGenerationPrompt(req)},
	}

	var result GenerationResult
	if err := s.completeJSON(ctx, messages, 0.7, &result, func() error {
		if result.Recipe == nil || result.Recipe.Title == "" {
			return fmt.Errorf("response missing recipe")
		}
		return nil
	}); err != nil {
		return nil, err
	}

	return &result, nil
}

// ModifyRecipe asks the model to adapt an existing recipe. The returned
// recipe is not persisted here; the caller owns lineage and persistence.
func (s *LLMService) ModifyRecipe(ctx context.Context, original *models.Recipe, modificationRequest string, dietaryPrefs, allergies []string) (*ModificationResult, error) {
	messages := []Message{
		{Role: "system", Content: modificationSystemPrompt},
		{Role: "user", Content: buildModificationPrompt(original, modificationRequest, dietaryPrefs, allergies)},
	}

	var result ModificationResult
	if err := s.completeJSON(ctx, messages, 0.7, &result, func() error {
		if result.ModifiedRecipe == nil || result.ModifiedRecipe.Title == "" {
			return fmt.Errorf("response missing modified recipe")
		}
		return nil
	}); err != nil {
		return nil, err
	}

	return &result, nil
}

// ExtractPantryIngredients asks the model to read a pantry photo and list
// the ingredients it can identify.
func (s *LLMService) ExtractPantryIngredients(ctx context.Context, photoURL string) ([]string, error) {
	messages := []Message{
		{
			Role:    "system",
			Content: `You are a kitchen assistant. Identify the food ingredients visible in the photo at the given URL. Respond only with JSON like {"ingredients": ["ingredient1", "ingredient2"]}. If nothing edible is identifiable, respond with {"error": true, "message": "explanation", "suggestions": []}.`,
		},
		{Role: "user", Content: "Photo URL: " + photoURL},
	}

	var result struct {
		Ingredients []string `json:"ingredients"`
	}
	if err := s.completeJSON(ctx, messages, 0, &result, func() error {
		if len(result.Ingredients) == 0 {
			return fmt.Errorf("response missing ingredients")
		}
		return nil
	}); err != nil {
		return nil, err
	}

	return result.Ingredients, nil
}

// completeJSON runs the bounded retry loop around a structured-output model
// call. validate rejects structurally incomplete payloads so they count as
// failed attempts. A semantic rejection short-circuits the loop.
func (s *LLMService) completeJSON(ctx context.Context, messages []Message, temperature float64, dest interface{}, validate func() error) error {
	var lastErr error
	for attempt := 1; attempt <= s.retry.MaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.retry.Delay):
			}
		}

		content, err := s.chat(ctx, messages, temperature)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Warn().Err(err).Int("attempt", attempt).Msg("model call failed")
			lastErr = err
			continue
		}

		var rejection llmRejection
		if err := json.Unmarshal([]byte(content), &rejection); err == nil && rejection.Error {
			return &RejectionError{Message: rejection.Message, Suggestions: rejection.Suggestions}
		}

		if err := json.Unmarshal([]byte(content), dest); err != nil {
			s.logger.Warn().Err(err).Int("attempt", attempt).Msg("failed to parse model output")
			lastErr = fmt.Errorf("failed to parse model output: %w", err)
			continue
		}
		if err := validate(); err != nil {
			s.logger.Warn().Err(err).Int("attempt", attempt).Msg("model output incomplete")
			lastErr = err
			continue
		}
		return nil
	}

	return fmt.Errorf("model call failed after %d attempts: %w", s.retry.MaxAttempts, lastErr)
}

// chat performs a single chat-completion round trip.
func (s *LLMService) chat(ctx context.Context, messages []Message, temperature float64) (string, error) {
	reqBody := Request{
		Model:          "deepseek-chat",
		Messages:       messages,
		ResponseFormat: map[string]string{"type": "json_object"},
		Temperature:    temperature,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no response from API")
	}

	return result.Choices[0].Message.Content, nil
}

func buildGenerationPrompt(req GenerationRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Please create a healthy, high-protein recipe using these available ingredients: %s.",
		strings.Join(req.AvailableIngredients, ", "))

	if len(req.DietaryPreferences) > 0 {
		fmt.Fprintf(&b, "\n\nDietary preferences: %s.", strings.Join(req.DietaryPreferences, ", "))
	}
	if len(req.Allergies) > 0 {
		fmt.Fprintf(&b, "\n\nAllergies to avoid: %s.", strings.Join(req.Allergies, ", "))
	}
	if req.MaxPrepTime > 0 {
		fmt.Fprintf(&b, "\n\nMaximum prep time: %d minutes.", req.MaxPrepTime)
	}

	servings := req.Servings
	if servings == 0 {
		servings = 4
	}
	fmt.Fprintf(&b, "\n\nServings: %d.", servings)

	if req.Cuisine != "" {
		fmt.Fprintf(&b, "\n\nPreferred cuisine: %s.", req.Cuisine)
	}
	if req.IncludeAdditionalIngredients {
		b.WriteString("\n\nYou may suggest additional ingredients that would enhance the recipe, but focus primarily on the available ingredients.")
	}

	return b.String()
}

func buildModificationPrompt(original *models.Recipe, modificationRequest string, dietaryPrefs, allergies []string) string {
	var b strings.Builder
	b.WriteString("You have been asked to modify the following recipe:\n\nORIGINAL RECIPE:\n")
	fmt.Fprintf(&b, "Title: %s\nDescription: %s\n", original.Title, original.Description)
	fmt.Fprintf(&b, "Prep Time: %d minutes\nCook Time: %d minutes\nServings: %d\nDifficulty: %s\nCuisine: %s\n",
		original.PrepTime, original.CookTime, original.Servings, original.Difficulty, original.Cuisine)
	fmt.Fprintf(&b, "Dietary Tags: %s\n", strings.Join(original.DietaryTags, ", "))

	b.WriteString("\nINGREDIENTS:\n")
	for _, ing := range original.Ingredients {
		fmt.Fprintf(&b, "- %s %s %s", ing.Amount, ing.Unit, ing.Name)
		if ing.Notes != "" {
			fmt.Fprintf(&b, " (%s)", ing.Notes)
		}
		b.WriteString("\n")
	}

	b.WriteString("\nINSTRUCTIONS:\n")
	for _, step := range original.Instructions {
		fmt.Fprintf(&b, "%d. %s", step.StepNumber, step.Instruction)
		if step.TimeMinutes > 0 {
			fmt.Fprintf(&b, " (%d min)", step.TimeMinutes)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\nNUTRITIONAL INFO:\n- Calories: %.0f\n- Protein: %.0fg\n- Carbs: %.0fg\n- Fat: %.0fg\n",
		original.Calories, original.Protein, original.Carbs, original.Fat)

	fmt.Fprintf(&b, "\nMODIFICATION REQUEST:\n%s\n", modificationRequest)

	if len(dietaryPrefs) > 0 {
		fmt.Fprintf(&b, "\nDIETARY PREFERENCES:\n%s\n", strings.Join(dietaryPrefs, ", "))
	}
	if len(allergies) > 0 {
		fmt.Fprintf(&b, "\nALLERGIES TO AVOID:\n%s\n", strings.Join(allergies, ", "))
	}

	return b.String()
}
