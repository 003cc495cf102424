package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pantrychef/backend/internal/service"
	"github.com/pantrychef/backend/internal/types"
)

// maxPhotoSize bounds pantry photo uploads.
const maxPhotoSize = 10 << 20

// PantryAnalyzer abstracts photo analysis so handler tests can stub S3
// and the vision model. *service.PhotoService satisfies it.
type PantryAnalyzer interface {
	AnalyzePantryPhoto(ctx context.Context, userID uuid.UUID, photoData []byte, contentType string) (*service.PhotoAnalysis, error)
}

type PhotoHandler struct {
	ledger *service.TokenLedgerService
	photos PantryAnalyzer
	logger zerolog.Logger
}

func NewPhotoHandler(ledger *service.TokenLedgerService, photos PantryAnalyzer, logger zerolog.Logger) *PhotoHandler {
	return &PhotoHandler{
		ledger: ledger,
		photos: photos,
		logger: logger,
	}
}

// AnalyzePantryPhoto accepts a multipart photo upload, extracts the
// ingredients in it and charges the photo analysis cost. Same ordering
// contract as generation: the charge lands only after a usable result.
func (h *PhotoHandler) AnalyzePantryPhoto(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	validation, err := h.ledger.ValidateForUsage(c.Request.Context(), userID, types.UsagePhotoAnalysis)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to validate tokens"})
		return
	}
	if !validation.CanGenerate {
		c.JSON(http.StatusPaymentRequired, gin.H{"error": "Insufficient tokens", "details": validation})
		return
	}

	file, header, err := c.Request.FormFile("photo")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing photo upload"})
		return
	}
	defer func() { _ = file.Close() }()

	if header.Size > maxPhotoSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Photo too large"})
		return
	}

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Upload must be an image"})
		return
	}

	photoData, err := io.ReadAll(io.LimitReader(file, maxPhotoSize))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read photo"})
		return
	}

	analysis, err := h.photos.AnalyzePantryPhoto(c.Request.Context(), userID, photoData, contentType)
	var rejection *service.RejectionError
	if errors.As(err, &rejection) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":       rejection.Message,
			"suggestions": rejection.Suggestions,
		})
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID.String()).Msg("pantry photo analysis failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Photo analysis failed, please try again"})
		return
	}

	balance, err := h.ledger.Consume(c.Request.Context(), userID, types.UsagePhotoAnalysis)
	if errors.Is(err, service.ErrInsufficientTokens) {
		c.JSON(http.StatusPaymentRequired, gin.H{"error": "Insufficient tokens"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to consume tokens"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"photo_key":   analysis.PhotoKey,
		"ingredients": analysis.Ingredients,
		"tokens":      balance,
	})
}
