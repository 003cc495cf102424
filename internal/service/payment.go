package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v83"

	"github.com/pantrychef/backend/config"
	"github.com/pantrychef/backend/internal/metrics"
	"github.com/pantrychef/backend/internal/types"
)

// Metadata keys attached to every token purchase intent. The webhook
// handler uses them to route the payment back to the right ledger record.
const (
	metadataPurchaseType = "purchase_type"
	metadataUserID       = "user_id"
	metadataTokenAmount  = "token_amount"

	purchaseTypeTokens = "token_purchase"
)

// PurchaseIntent is what the client needs to complete a token purchase.
type PurchaseIntent struct {
	PaymentIntentID string `json:"payment_intent_id"`
	ClientSecret    string `json:"client_secret"`
	AmountCents     int64  `json:"amount_cents"`
	TokenAmount     int    `json:"token_amount"`
}

// PaymentService creates Stripe payment intents for token purchases and
// turns verified webhook events into ledger credits. It is the only
// component that calls AddCredits with the trusted flag set.
type PaymentService struct {
	client        *stripe.Client
	webhookSecret string
	ledger        *TokenLedgerService
	logger        zerolog.Logger
}

// NewPaymentService creates a new PaymentService instance.
func NewPaymentService(cfg *config.Config, ledger *TokenLedgerService, logger zerolog.Logger) *PaymentService {
	return &PaymentService{
		client:        stripe.NewClient(cfg.StripeSecretKey),
		webhookSecret: cfg.StripeWebhookSecret,
		ledger:        ledger,
		logger:        logger,
	}
}

// CreateTokenPurchaseIntent creates a payment intent for the given dollar
// amount. Tokens are credited later by the webhook, never here.
func (s *PaymentService) CreateTokenPurchaseIntent(ctx context.Context, userID uuid.UUID, amountDollars int) (*PurchaseIntent, error) {
	if amountDollars < types.MinPurchaseDollars || amountDollars > types.MaxPurchaseDollars {
		return nil, fmt.Errorf("%w: purchase must be between $%d and $%d",
			ErrInvalidAmount, types.MinPurchaseDollars, types.MaxPurchaseDollars)
	}

	tokenAmount := amountDollars * types.TokensPerDollar
	amountCents := int64(amountDollars) * 100

	params := &stripe.PaymentIntentCreateParams{
		Amount:   stripe.Int64(amountCents),
		Currency: stripe.String(string(stripe.CurrencyUSD)),
		AutomaticPaymentMethods: &stripe.PaymentIntentCreateAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.AddMetadata(metadataPurchaseType, purchaseTypeTokens)
	params.AddMetadata(metadataUserID, userID.String())
	params.AddMetadata(metadataTokenAmount, strconv.Itoa(tokenAmount))

	intent, err := s.client.V1PaymentIntents.Create(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	s.logger.Info().
		Str("user_id", userID.String()).
		Str("payment_intent_id", intent.ID).
		Int("token_amount", tokenAmount).
		Msg("token purchase intent created")

	return &PurchaseIntent{
		PaymentIntentID: intent.ID,
		ClientSecret:    intent.ClientSecret,
		AmountCents:     amountCents,
		TokenAmount:     tokenAmount,
	}, nil
}

// ConstructEvent verifies the Stripe-Signature header against the raw
// webhook payload and returns the decoded event.
func (s *PaymentService) ConstructEvent(payload []byte, signature string) (stripe.Event, error) {
	return stripe.ConstructEvent(payload, signature, s.webhookSecret)
}

// HandleEvent processes a signature-verified webhook event. Events that
// are not successful token purchases are acknowledged without effect.
func (s *PaymentService) HandleEvent(ctx context.Context, event *stripe.Event) error {
	switch event.Type {
	case "payment_intent.succeeded":
		err := s.handlePaymentSucceeded(ctx, event)
		status := "ok"
		if err != nil {
			status = "error"
		}
		metrics.WebhookEvents.WithLabelValues(string(event.Type), status).Inc()
		return err
	default:
		s.logger.Debug().Str("event_type", string(event.Type)).Msg("ignoring webhook event")
		metrics.WebhookEvents.WithLabelValues(string(event.Type), "ignored").Inc()
		return nil
	}
}

func (s *PaymentService) handlePaymentSucceeded(ctx context.Context, event *stripe.Event) error {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return fmt.Errorf("failed to decode payment intent: %w", err)
	}

	if intent.Metadata[metadataPurchaseType] != purchaseTypeTokens {
		s.logger.Debug().Str("payment_intent_id", intent.ID).Msg("not a token purchase, ignoring")
		return nil
	}
	if intent.Status != stripe.PaymentIntentStatusSucceeded {
		return fmt.Errorf("payment intent %s has status %s, expected succeeded", intent.ID, intent.Status)
	}

	userID, err := uuid.Parse(intent.Metadata[metadataUserID])
	if err != nil {
		return fmt.Errorf("payment intent %s has invalid user_id metadata: %w", intent.ID, err)
	}
	tokenAmount, err := strconv.Atoi(intent.Metadata[metadataTokenAmount])
	if err != nil || tokenAmount <= 0 {
		return fmt.Errorf("payment intent %s has invalid token_amount metadata %q", intent.ID, intent.Metadata[metadataTokenAmount])
	}

	balance, err := s.ledger.AddCredits(ctx, userID, tokenAmount, true)
	if err != nil {
		return fmt.Errorf("failed to credit tokens for payment intent %s: %w", intent.ID, err)
	}

	s.logger.Info().
		Str("user_id", userID.String()).
		Str("payment_intent_id", intent.ID).
		Int("token_amount", tokenAmount).
		Int("new_balance", balance.TokensBalance).
		Msg("tokens credited from webhook")
	return nil
}
