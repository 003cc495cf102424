package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pantrychef/backend/internal/types"
)

func TestGetTokensLazyCreate(t *testing.T) {
	env := setupTestEnv(t)

	// Registration already seeded the record; drop it to exercise the
	// lazy-create path.
	require.NoError(t, env.db.Exec("DELETE FROM user_tokens").Error)

	w := env.request(t, http.MethodGet, "/api/v1/tokens", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, float64(types.TokensOnSignup), body["tokens_balance"])
	assert.Equal(t, float64(0), body["total_generations_used"])

	// A second read must not grant again.
	w = env.request(t, http.MethodGet, "/api/v1/tokens", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body = decodeBody(t, w)
	assert.Equal(t, float64(types.TokensOnSignup), body["tokens_balance"])
}

func TestGetTokensUnauthenticated(t *testing.T) {
	env := setupTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tokens", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTokenActionValidate(t *testing.T) {
	env := setupTestEnv(t)

	w := env.request(t, http.MethodPost, "/api/v1/tokens", gin.H{"action": "validate"})
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, true, body["can_generate"])
	assert.Equal(t, float64(types.TokensOnSignup), body["remaining_tokens"])
	assert.Equal(t, float64(types.CostPerRecipeGeneration), body["cost_per_generation"])
}

func TestTokenActionValidatePhotoAnalysis(t *testing.T) {
	env := setupTestEnv(t)

	w := env.request(t, http.MethodPost, "/api/v1/tokens", gin.H{
		"action":    "validate",
		"usageType": "photo_analysis",
	})
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, float64(types.CostPerPhotoAnalysis), body["cost_per_generation"])
}

func TestTokenActionUse(t *testing.T) {
	env := setupTestEnv(t)

	w := env.request(t, http.MethodPost, "/api/v1/tokens", gin.H{"action": "use"})
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, true, body["success"])
	balance := body["balance"].(map[string]interface{})
	assert.Equal(t, float64(types.TokensOnSignup-1), balance["tokens_balance"])
	assert.Equal(t, float64(1), balance["total_generations_used"])
}

func TestTokenActionUseInsufficient(t *testing.T) {
	env := setupTestEnv(t)

	for i := 0; i < types.TokensOnSignup; i++ {
		w := env.request(t, http.MethodPost, "/api/v1/tokens", gin.H{"action": "use"})
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := env.request(t, http.MethodPost, "/api/v1/tokens", gin.H{"action": "use"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Insufficient tokens", decodeBody(t, w)["error"])
}

func TestTokenActionUnknownAction(t *testing.T) {
	env := setupTestEnv(t)

	w := env.request(t, http.MethodPost, "/api/v1/tokens", gin.H{"action": "refund"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTokenActionUnknownUsageType(t *testing.T) {
	env := setupTestEnv(t)

	w := env.request(t, http.MethodPost, "/api/v1/tokens", gin.H{
		"action":    "use",
		"usageType": "video_rendering",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Unknown usage type", decodeBody(t, w)["error"])
}
