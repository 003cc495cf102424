package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/pantrychef/backend/internal/service"
)

// maxWebhookBody bounds Stripe webhook payloads.
const maxWebhookBody = 256 * 1024

type PaymentHandler struct {
	payments *service.PaymentService
	logger   zerolog.Logger
}

func NewPaymentHandler(payments *service.PaymentService, logger zerolog.Logger) *PaymentHandler {
	return &PaymentHandler{
		payments: payments,
		logger:   logger,
	}
}

type purchaseRequest struct {
	AmountDollars int `json:"amount_dollars" binding:"required"`
}

// PurchaseTokens creates a payment intent for a token top-up. Tokens are
// credited by the webhook once the processor confirms the charge.
func (h *PaymentHandler) PurchaseTokens(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req purchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	intent, err := h.payments.CreateTokenPurchaseIntent(c.Request.Context(), userID, req.AmountDollars)
	if errors.Is(err, service.ErrInvalidAmount) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID.String()).Msg("failed to create purchase intent")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create purchase"})
		return
	}

	c.JSON(http.StatusOK, intent)
}

// StripeWebhook receives payment events. A bad signature is the only
// rejection; once the event is verified, processing failures are logged
// and acknowledged so the processor does not retry indefinitely.
func (h *PaymentHandler) StripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read payload"})
		return
	}

	event, err := h.payments.ConstructEvent(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		h.logger.Warn().Err(err).Msg("webhook signature verification failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid signature"})
		return
	}

	if err := h.payments.HandleEvent(c.Request.Context(), &event); err != nil {
		h.logger.Error().Err(err).Str("event_type", string(event.Type)).Msg("webhook processing failed")
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
