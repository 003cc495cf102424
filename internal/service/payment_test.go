package service

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v83"

	"github.com/pantrychef/backend/internal/types"
)

func newTestPaymentService(t *testing.T) (*PaymentService, *TokenLedgerService) {
	t.Helper()
	ledger, _, _ := newTestLedger(t)
	return &PaymentService{
		webhookSecret: "whsec_test",
		ledger:        ledger,
		logger:        zerolog.Nop(),
	}, ledger
}

// paymentSucceededEvent builds the event shape Stripe delivers for a
// completed payment intent.
func paymentSucceededEvent(t *testing.T, userID string, tokenAmount string, status stripe.PaymentIntentStatus, purchaseType string) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(map[string]interface{}{
		"id":     "pi_test_123",
		"status": string(status),
		"metadata": map[string]string{
			metadataPurchaseType: purchaseType,
			metadataUserID:       userID,
			metadataTokenAmount:  tokenAmount,
		},
	})
	require.NoError(t, err)

	return &stripe.Event{
		Type: "payment_intent.succeeded",
		Data: &stripe.EventData{Raw: raw},
	}
}

func TestHandleEventCreditsTokens(t *testing.T) {
	svc, ledger := newTestPaymentService(t)
	ctx := context.Background()
	userID := uuid.New()

	_, err := ledger.EnsureRecord(ctx, userID)
	require.NoError(t, err)

	event := paymentSucceededEvent(t, userID.String(), "500", stripe.PaymentIntentStatusSucceeded, purchaseTypeTokens)
	require.NoError(t, svc.HandleEvent(ctx, event))

	balance, err := ledger.GetBalance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, types.TokensOnSignup+500, balance.TokensBalance)
}

func TestHandleEventCreditsMissingRecord(t *testing.T) {
	svc, ledger := newTestPaymentService(t)
	ctx := context.Background()
	userID := uuid.New()

	// A payment can land before the user's first balance read.
	event := paymentSucceededEvent(t, userID.String(), "100", stripe.PaymentIntentStatusSucceeded, purchaseTypeTokens)
	require.NoError(t, svc.HandleEvent(ctx, event))

	balance, err := ledger.GetBalance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 100, balance.TokensBalance)
	assert.Equal(t, 0, balance.TotalGenerationsUsed)
}

func TestHandleEventIgnoresOtherPurchaseTypes(t *testing.T) {
	svc, ledger := newTestPaymentService(t)
	ctx := context.Background()
	userID := uuid.New()

	event := paymentSucceededEvent(t, userID.String(), "500", stripe.PaymentIntentStatusSucceeded, "subscription")
	require.NoError(t, svc.HandleEvent(ctx, event))

	_, err := ledger.GetBalance(ctx, userID)
	assert.ErrorIs(t, err, ErrTokenRecordNotFound)
}

func TestHandleEventRejectsNonSucceededStatus(t *testing.T) {
	svc, ledger := newTestPaymentService(t)
	ctx := context.Background()
	userID := uuid.New()

	event := paymentSucceededEvent(t, userID.String(), "500", stripe.PaymentIntentStatusRequiresPaymentMethod, purchaseTypeTokens)
	err := svc.HandleEvent(ctx, event)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected succeeded")

	_, err = ledger.GetBalance(ctx, userID)
	assert.ErrorIs(t, err, ErrTokenRecordNotFound)
}

func TestHandleEventRejectsBadMetadata(t *testing.T) {
	svc, _ := newTestPaymentService(t)
	ctx := context.Background()

	for name, event := range map[string]*stripe.Event{
		"bad user id":      paymentSucceededEvent(t, "not-a-uuid", "500", stripe.PaymentIntentStatusSucceeded, purchaseTypeTokens),
		"bad token amount": paymentSucceededEvent(t, uuid.New().String(), "lots", stripe.PaymentIntentStatusSucceeded, purchaseTypeTokens),
		"zero tokens":      paymentSucceededEvent(t, uuid.New().String(), "0", stripe.PaymentIntentStatusSucceeded, purchaseTypeTokens),
	} {
		assert.Error(t, svc.HandleEvent(ctx, event), name)
	}
}

func TestHandleEventIgnoresUnrelatedEventTypes(t *testing.T) {
	svc, _ := newTestPaymentService(t)

	event := &stripe.Event{
		Type: "customer.subscription.updated",
		Data: &stripe.EventData{Raw: json.RawMessage(`{}`)},
	}
	assert.NoError(t, svc.HandleEvent(context.Background(), event))
}

func TestConstructEventRejectsBadSignature(t *testing.T) {
	svc, _ := newTestPaymentService(t)

	payload := []byte(`{"type": "payment_intent.succeeded"}`)
	_, err := svc.ConstructEvent(payload, "t=1,v1=deadbeef")
	assert.Error(t, err)
}

func TestCreateTokenPurchaseIntentValidatesAmount(t *testing.T) {
	svc, _ := newTestPaymentService(t)
	ctx := context.Background()
	userID := uuid.New()

	for _, dollars := range []int{0, -5, types.MaxPurchaseDollars + 1} {
		_, err := svc.CreateTokenPurchaseIntent(ctx, userID, dollars)
		assert.ErrorIs(t, err, ErrInvalidAmount, fmt.Sprintf("dollars=%d", dollars))
	}
}
