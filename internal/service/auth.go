package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/pantrychef/backend/internal/models"
	"github.com/pantrychef/backend/internal/types"
)

var (
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// AuthService handles registration, login and JWT issuance. Registration
// also seeds the user's token ledger record with the signup grant.
type AuthService struct {
	db        *gorm.DB
	ledger    *TokenLedgerService
	jwtSecret string
	logger    zerolog.Logger
}

// NewAuthService creates a new AuthService instance.
func NewAuthService(db *gorm.DB, ledger *TokenLedgerService, jwtSecret string, logger zerolog.Logger) *AuthService {
	return &AuthService{
		db:        db,
		ledger:    ledger,
		jwtSecret: jwtSecret,
		logger:    logger,
	}
}

// RegisterParams are the inputs to Register. Dietary preferences and
// allergies are comma separated lists and may be empty.
type RegisterParams struct {
	Name         string
	Email        string
	Password     string
	Username     string
	DietaryPrefs string
	Allergies    string
}

func (s *AuthService) Register(ctx context.Context, params RegisterParams) (string, error) {
	var existingUser models.User
	if err := s.db.WithContext(ctx).Where("email = ?", params.Email).First(&existingUser).Error; err == nil {
		return "", ErrUserExists
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(params.Password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	user := models.User{
		ID:           uuid.New(),
		Name:         params.Name,
		Email:        params.Email,
		PasswordHash: string(hashedPassword),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}

		profile := models.UserProfile{
			ID:       uuid.New(),
			UserID:   user.ID,
			Username: params.Username,
		}
		if err := tx.Create(&profile).Error; err != nil {
			return err
		}

		for _, p := range strings.Split(params.DietaryPrefs, ",") {
			pref := strings.TrimSpace(p)
			if pref == "" {
				continue
			}
			dp := models.DietaryPreference{
				ID:             uuid.New(),
				UserID:         user.ID,
				PreferenceType: pref,
			}
			if pref == "custom" {
				dp.CustomName = "Custom Diet"
			}
			if err := tx.Create(&dp).Error; err != nil {
				return err
			}
		}

		for _, a := range strings.Split(params.Allergies, ",") {
			name := strings.TrimSpace(a)
			if name == "" {
				continue
			}
			record := models.Allergen{
				ID:            uuid.New(),
				UserID:        user.ID,
				AllergenName:  name,
				SeverityLevel: 1,
			}
			if err := tx.Create(&record).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	// Seed the ledger with the signup grant. A failure here should not
	// lose the account; the record is lazily created on first balance read.
	if _, err := s.ledger.EnsureRecord(ctx, user.ID); err != nil {
		s.logger.Error().Err(err).Str("user_id", user.ID.String()).Msg("failed to seed token record on signup")
	}

	return s.generateToken(user.ID, params.Username)
}

func (s *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return "", ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	var profile models.UserProfile
	username := ""
	if err := s.db.WithContext(ctx).Where("user_id = ?", user.ID).First(&profile).Error; err == nil {
		username = profile.Username
	}

	return s.generateToken(user.ID, username)
}

func (s *AuthService) generateToken(userID uuid.UUID, username string) (string, error) {
	claims := types.TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		UserID:   userID,
		Username: username,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtSecret))
}

// ValidateToken parses and verifies a JWT and returns its claims.
func (s *AuthService) ValidateToken(tokenString string) (*types.TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &types.TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*types.TokenClaims)
	if !ok || !token.Valid || claims.UserID == uuid.Nil {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
