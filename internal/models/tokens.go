package models

import (
	"time"

	"github.com/google/uuid"
)

// UserTokens is the per-account token ledger record. One row per user;
// tokens_balance never goes negative (the guarded update in the ledger
// service enforces this) and total_generations_used only grows.
type UserTokens struct {
	ID                   uint      `gorm:"primarykey" json:"id"`
	UserID               uuid.UUID `gorm:"type:varchar(36);not null;uniqueIndex" json:"user_id"`
	TokensBalance        int       `gorm:"not null;default:0;check:tokens_balance >= 0" json:"tokens_balance"`
	TotalGenerationsUsed int       `gorm:"not null;default:0" json:"total_generations_used"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

func (UserTokens) TableName() string {
	return "user_tokens"
}

// TokenTransaction is a journal row recorded alongside every balance
// mutation. Amount is positive for purchases/bonuses, negative for usage.
type TokenTransaction struct {
	ID              uint      `gorm:"primarykey" json:"id"`
	UserID          uuid.UUID `gorm:"type:varchar(36);not null;index" json:"user_id"`
	TransactionType string    `gorm:"size:20;not null" json:"transaction_type"`
	Amount          int       `gorm:"not null" json:"amount"`
	Description     string    `gorm:"size:255" json:"description"`
	CreatedAt       time.Time `json:"created_at"`
}

// Transaction types
const (
	TransactionPurchase = "purchase"
	TransactionUsage    = "usage"
	TransactionBonus    = "bonus"
)
