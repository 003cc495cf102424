package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pantrychef/backend/internal/service"
	"github.com/pantrychef/backend/internal/types"
)

type TokenHandler struct {
	ledger *service.TokenLedgerService
}

func NewTokenHandler(ledger *service.TokenLedgerService) *TokenHandler {
	return &TokenHandler{ledger: ledger}
}

// GetTokens returns the caller's balance, creating the record with the
// signup grant if this is their first balance read.
func (h *TokenHandler) GetTokens(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	if _, err := h.ledger.EnsureRecord(c.Request.Context(), userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load token balance"})
		return
	}

	balance, err := h.ledger.GetBalance(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load token balance"})
		return
	}

	c.JSON(http.StatusOK, balance)
}

type tokenActionRequest struct {
	Action    string `json:"action" binding:"required"`
	UsageType string `json:"usageType"`
}

// TokenAction validates or spends tokens on behalf of the caller.
func (h *TokenHandler) TokenAction(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req tokenActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	kind := types.UsageRecipeGeneration
	if req.UsageType != "" {
		kind = types.UsageKind(req.UsageType)
	}

	switch req.Action {
	case "validate":
		result, err := h.ledger.ValidateForUsage(c.Request.Context(), userID, kind)
		if errors.Is(err, service.ErrUnknownUsageKind) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown usage type"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to validate tokens"})
			return
		}
		c.JSON(http.StatusOK, result)

	case "use":
		balance, err := h.ledger.Consume(c.Request.Context(), userID, kind)
		if errors.Is(err, service.ErrInsufficientTokens) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Insufficient tokens"})
			return
		}
		if errors.Is(err, service.ErrUnknownUsageKind) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown usage type"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to consume tokens"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "balance": balance})

	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown action"})
	}
}
