package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pantrychef/backend/internal/metrics"
	"github.com/pantrychef/backend/internal/models"
	"github.com/pantrychef/backend/internal/types"
)

// TokenLedgerService is the single source of truth for a user's spendable
// credits. All balance mutations go through Consume and AddCredits; no
// other component touches the user_tokens table.
type TokenLedgerService struct {
	db       *gorm.DB
	notifier BalanceNotifier
	logger   zerolog.Logger
}

// NewTokenLedgerService creates a new TokenLedgerService instance.
func NewTokenLedgerService(db *gorm.DB, notifier BalanceNotifier, logger zerolog.Logger) *TokenLedgerService {
	if notifier == nil {
		notifier = NoopBalanceNotifier{}
	}
	return &TokenLedgerService{
		db:       db,
		notifier: notifier,
		logger:   logger,
	}
}

// GetBalance is a pure read of the user's ledger record. Returns
// ErrTokenRecordNotFound if the user has no record yet.
func (s *TokenLedgerService) GetBalance(ctx context.Context, userID uuid.UUID) (*types.TokenBalance, error) {
	var rec models.UserTokens
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTokenRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load token record: %w", err)
	}

	return &types.TokenBalance{
		TokensBalance:        rec.TokensBalance,
		TotalGenerationsUsed: rec.TotalGenerationsUsed,
	}, nil
}

// EnsureRecord creates the user's ledger record with the signup grant if it
// does not exist. Idempotent: an existing record is never overwritten.
// Returns true if a record was created by this call.
func (s *TokenLedgerService) EnsureRecord(ctx context.Context, userID uuid.UUID) (bool, error) {
	created := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec := models.UserTokens{
			UserID:        userID,
			TokensBalance: types.TokensOnSignup,
		}
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).Create(&rec)
		if res.Error != nil {
			return fmt.Errorf("failed to create token record: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil // already existed
		}
		created = true

		journal := models.TokenTransaction{
			UserID:          userID,
			TransactionType: models.TransactionBonus,
			Amount:          types.TokensOnSignup,
			Description:     "signup grant",
		}
		if err := tx.Create(&journal).Error; err != nil {
			return fmt.Errorf("failed to record signup grant: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	if created {
		metrics.CreditsGranted.WithLabelValues("signup").Add(float64(types.TokensOnSignup))
		s.logger.Info().Str("user_id", userID.String()).Int("tokens", types.TokensOnSignup).Msg("token record created with signup grant")
		s.notifier.BalanceChanged(ctx, userID)
	}
	return created, nil
}

// ValidateForUsage checks whether the user can afford the given usage kind
// without mutating anything. A missing record is treated as balance 0 so
// the caller can present a uniform "no tokens" message.
func (s *TokenLedgerService) ValidateForUsage(ctx context.Context, userID uuid.UUID, kind types.UsageKind) (*types.TokenValidationResult, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownUsageKind, kind)
	}
	cost := kind.Cost()

	balance, err := s.GetBalance(ctx, userID)
	if errors.Is(err, ErrTokenRecordNotFound) {
		return &types.TokenValidationResult{
			CanGenerate:       false,
			RemainingTokens:   0,
			CostPerGeneration: cost,
		}, nil
	}
	if err != nil {
		return nil, err
	}

	return &types.TokenValidationResult{
		CanGenerate:       balance.TokensBalance >= cost,
		RemainingTokens:   balance.TokensBalance,
		CostPerGeneration: cost,
	}, nil
}

// Consume atomically spends the tokens for one usage of the given kind.
// The precondition check and the decrement execute as a single guarded
// UPDATE, so concurrent consumes for the same user can never overdraw the
// balance. Returns ErrInsufficientTokens when the guard rejects the spend.
func (s *TokenLedgerService) Consume(ctx context.Context, userID uuid.UUID, kind types.UsageKind) (*types.TokenBalance, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownUsageKind, kind)
	}
	cost := kind.Cost()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.UserTokens{}).
			Where("user_id = ? AND tokens_balance >= ?", userID, cost).
			Updates(map[string]interface{}{
				"tokens_balance":         gorm.Expr("tokens_balance - ?", cost),
				"total_generations_used": gorm.Expr("total_generations_used + ?", 1),
			})
		if res.Error != nil {
			return fmt.Errorf("failed to decrement balance: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrInsufficientTokens
		}

		journal := models.TokenTransaction{
			UserID:          userID,
			TransactionType: models.TransactionUsage,
			Amount:          -cost,
			Description:     string(kind),
		}
		if err := tx.Create(&journal).Error; err != nil {
			return fmt.Errorf("failed to record usage transaction: %w", err)
		}
		return nil
	})
	if errors.Is(err, ErrInsufficientTokens) {
		metrics.ConsumeRejected.WithLabelValues(string(kind)).Inc()
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	metrics.TokensConsumed.WithLabelValues(string(kind)).Add(float64(cost))
	s.notifier.BalanceChanged(ctx, userID)
	return s.GetBalance(ctx, userID)
}

// AddCredits increments the user's balance by amount. Creates the record
// with amount as the initial balance if none exists. Only callable with
// trusted=true, i.e. from a path that has independently verified payment
// success; the ledger performs no further authorization.
func (s *TokenLedgerService) AddCredits(ctx context.Context, userID uuid.UUID, amount int, trusted bool) (*types.TokenBalance, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if !trusted {
		return nil, ErrUntrustedCaller
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.UserTokens{}).
			Where("user_id = ?", userID).
			Update("tokens_balance", gorm.Expr("tokens_balance + ?", amount))
		if res.Error != nil {
			return fmt.Errorf("failed to increment balance: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			rec := models.UserTokens{UserID: userID, TokensBalance: amount}
			ins := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "user_id"}},
				DoNothing: true,
			}).Create(&rec)
			if ins.Error != nil {
				return fmt.Errorf("failed to create token record: %w", ins.Error)
			}
			if ins.RowsAffected == 0 {
				// Lost an insert race; the row exists now, apply the increment.
				res = tx.Model(&models.UserTokens{}).
					Where("user_id = ?", userID).
					Update("tokens_balance", gorm.Expr("tokens_balance + ?", amount))
				if res.Error != nil {
					return fmt.Errorf("failed to increment balance: %w", res.Error)
				}
			}
		}

		journal := models.TokenTransaction{
			UserID:          userID,
			TransactionType: models.TransactionPurchase,
			Amount:          amount,
			Description:     "token purchase",
		}
		if err := tx.Create(&journal).Error; err != nil {
			return fmt.Errorf("failed to record purchase transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.CreditsGranted.WithLabelValues("purchase").Add(float64(amount))
	s.logger.Info().Str("user_id", userID.String()).Int("amount", amount).Msg("credits added")
	s.notifier.BalanceChanged(ctx, userID)
	return s.GetBalance(ctx, userID)
}
