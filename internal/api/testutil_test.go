package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/pantrychef/backend/internal/middleware"
	"github.com/pantrychef/backend/internal/models"
	"github.com/pantrychef/backend/internal/service"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	statements := []string{
		`CREATE TABLE users (
			id TEXT PRIMARY KEY,
			created_at DATETIME,
			updated_at DATETIME,
			deleted_at DATETIME,
			name TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL
		);`,
		`CREATE TABLE user_profiles (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL UNIQUE,
			username TEXT NOT NULL UNIQUE,
			bio TEXT,
			created_at DATETIME,
			updated_at DATETIME,
			deleted_at DATETIME
		);`,
		`CREATE TABLE dietary_preferences (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			preference_type TEXT NOT NULL,
			custom_name TEXT,
			created_at DATETIME,
			updated_at DATETIME
		);`,
		`CREATE TABLE allergens (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			allergen_name TEXT NOT NULL,
			severity_level INTEGER NOT NULL,
			created_at DATETIME,
			updated_at DATETIME
		);`,
		`CREATE TABLE user_tokens (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL UNIQUE,
			tokens_balance INTEGER NOT NULL DEFAULT 0 CHECK (tokens_balance >= 0),
			total_generations_used INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME,
			updated_at DATETIME
		);`,
		`CREATE TABLE token_transactions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			transaction_type TEXT NOT NULL,
			amount INTEGER NOT NULL,
			description TEXT,
			created_at DATETIME
		);`,
		`CREATE TABLE recipes (
			id TEXT PRIMARY KEY,
			created_at DATETIME,
			updated_at DATETIME,
			deleted_at DATETIME,
			title TEXT NOT NULL,
			description TEXT,
			prep_time INTEGER,
			cook_time INTEGER,
			servings INTEGER,
			difficulty TEXT,
			cuisine TEXT,
			dietary_tags TEXT NOT NULL DEFAULT '[]',
			ingredients TEXT NOT NULL DEFAULT '[]',
			instructions TEXT NOT NULL DEFAULT '[]',
			tips TEXT NOT NULL DEFAULT '[]',
			calories REAL,
			protein REAL,
			carbs REAL,
			fat REAL,
			fiber REAL,
			sugar REAL,
			sodium REAL,
			estimated_cost TEXT,
			parent_recipe_id TEXT,
			modification_request TEXT,
			modification_count INTEGER NOT NULL DEFAULT 0,
			embedding TEXT,
			user_id TEXT NOT NULL
		);`,
	}
	for _, stmt := range statements {
		require.NoError(t, db.Exec(stmt).Error)
	}

	return db
}

// stubLLM is a scripted GenerationBackend for handler tests.
type stubLLM struct {
	generateResult *service.GenerationResult
	modifyResult   *service.ModificationResult
	err            error
	calls          int
}

func (s *stubLLM) GenerateRecipe(ctx context.Context, req service.GenerationRequest) (*service.GenerationResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.generateResult, nil
}

func (s *stubLLM) ModifyRecipe(ctx context.Context, original *models.Recipe, modificationRequest string, dietaryPrefs, allergies []string) (*service.ModificationResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.modifyResult, nil
}

// testEnv wires real services over sqlite with a stubbed model backend.
type testEnv struct {
	router *gin.Engine
	db     *gorm.DB
	ledger *service.TokenLedgerService
	auth   *service.AuthService
	llm    *stubLLM
	token  string
	userID uuid.UUID
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := setupTestDB(t)
	logger := zerolog.Nop()

	ledger := service.NewTokenLedgerService(db, nil, logger)
	authService := service.NewAuthService(db, ledger, "test-secret", logger)
	profileService := service.NewProfileService(db)
	recipeService := service.NewRecipeService(db)
	llm := &stubLLM{}

	authHandler := NewAuthHandler(authService, profileService)
	tokenHandler := NewTokenHandler(ledger)
	recipeHandler := NewRecipeHandler(recipeService)
	generationHandler := NewGenerationHandler(ledger, llm, recipeService, profileService, logger)

	router := gin.New()
	v1 := router.Group("/api/v1")
	v1.POST("/auth/register", authHandler.Register)
	v1.POST("/auth/login", authHandler.Login)

	protected := v1.Group("")
	protected.Use(middleware.AuthMiddleware(authService))
	protected.GET("/tokens", tokenHandler.GetTokens)
	protected.POST("/tokens", tokenHandler.TokenAction)
	protected.GET("/recipes", recipeHandler.ListRecipes)
	protected.GET("/recipes/:id", recipeHandler.GetRecipe)
	protected.DELETE("/recipes/:id", recipeHandler.DeleteRecipe)
	protected.POST("/recipes/generate", generationHandler.GenerateRecipe)
	protected.POST("/recipes/:id/modify", generationHandler.ModifyRecipe)

	env := &testEnv{
		router: router,
		db:     db,
		ledger: ledger,
		auth:   authService,
		llm:    llm,
	}
	env.registerUser(t)
	return env
}

func (e *testEnv) registerUser(t *testing.T) {
	t.Helper()
	token, err := e.auth.Register(context.Background(), service.RegisterParams{
		Name:         "Test User",
		Email:        "test@example.com",
		Password:     "password123",
		Username:     "testuser",
		DietaryPrefs: "vegetarian",
		Allergies:    "peanuts",
	})
	require.NoError(t, err)
	e.token = token

	claims, err := e.auth.ValidateToken(token)
	require.NoError(t, err)
	e.userID = claims.UserID
}

// request performs an authenticated JSON request against the test router.
func (e *testEnv) request(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.token)

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}
