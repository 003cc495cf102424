package service

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pantrychef/backend/internal/models"
)

// ProfileService handles user profile and preference operations
type ProfileService struct {
	db *gorm.DB
}

// NewProfileService creates a new ProfileService instance
func NewProfileService(db *gorm.DB) *ProfileService {
	return &ProfileService{db: db}
}

// GetProfile retrieves a user's profile by user ID
func (s *ProfileService) GetProfile(ctx context.Context, userID uuid.UUID) (*models.UserProfile, error) {
	var profile models.UserProfile
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

// UpdateProfile updates the mutable profile fields
func (s *ProfileService) UpdateProfile(ctx context.Context, userID uuid.UUID, username, bio string) (*models.UserProfile, error) {
	updates := map[string]interface{}{}
	if username != "" {
		updates["username"] = username
	}
	if bio != "" {
		updates["bio"] = bio
	}
	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&models.UserProfile{}).
			Where("user_id = ?", userID).
			Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return s.GetProfile(ctx, userID)
}

// UserPreferences loads the user's dietary preferences and allergen names.
// Generation prompts include both so the model can honor them.
func (s *ProfileService) UserPreferences(ctx context.Context, userID uuid.UUID) (dietaryPrefs, allergies []string, err error) {
	var prefs []models.DietaryPreference
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&prefs).Error; err != nil {
		return nil, nil, err
	}
	for _, p := range prefs {
		name := p.PreferenceType
		if p.PreferenceType == "custom" && p.CustomName != "" {
			name = p.CustomName
		}
		dietaryPrefs = append(dietaryPrefs, name)
	}

	var allergens []models.Allergen
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&allergens).Error; err != nil {
		return nil, nil, err
	}
	for _, a := range allergens {
		allergies = append(allergies, a.AllergenName)
	}

	return dietaryPrefs, allergies, nil
}
