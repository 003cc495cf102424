package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	pgvector "github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

// JSONBStringArray is a custom type for handling string arrays in JSONB
type JSONBStringArray []string

// Value implements the driver.Valuer interface
func (a JSONBStringArray) Value() (driver.Value, error) {
	if len(a) == 0 {
		return "[]", nil
	}
	return json.Marshal(a)
}

// Scan implements the sql.Scanner interface
func (a *JSONBStringArray) Scan(value interface{}) error {
	if value == nil {
		*a = JSONBStringArray{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return nil
	}

	return json.Unmarshal(bytes, a)
}

// RecipeIngredient is one ingredient line with its amount and unit.
type RecipeIngredient struct {
	Name   string `json:"name"`
	Amount string `json:"amount"`
	Unit   string `json:"unit,omitempty"`
	Notes  string `json:"notes,omitempty"`
}

// RecipeStep is one numbered instruction.
type RecipeStep struct {
	StepNumber  int    `json:"step_number"`
	Instruction string `json:"instruction"`
	TimeMinutes int    `json:"time_minutes,omitempty"`
}

// JSONBIngredients stores structured ingredient lines in a JSONB column.
type JSONBIngredients []RecipeIngredient

func (a JSONBIngredients) Value() (driver.Value, error) {
	if len(a) == 0 {
		return "[]", nil
	}
	return json.Marshal(a)
}

func (a *JSONBIngredients) Scan(value interface{}) error {
	return scanJSONB(value, a)
}

// JSONBSteps stores structured instruction steps in a JSONB column.
type JSONBSteps []RecipeStep

func (a JSONBSteps) Value() (driver.Value, error) {
	if len(a) == 0 {
		return "[]", nil
	}
	return json.Marshal(a)
}

func (a *JSONBSteps) Scan(value interface{}) error {
	return scanJSONB(value, a)
}

func scanJSONB(value, dest interface{}) error {
	if value == nil {
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return nil
	}

	return json.Unmarshal(bytes, dest)
}

// Recipe is a persisted recipe in the user's recipe book. Modified
// recipes are new rows linked to their source via ParentRecipeID.
type Recipe struct {
	ID          uuid.UUID        `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	DeletedAt   gorm.DeletedAt   `gorm:"index" json:"-"`
	Title       string           `gorm:"size:255;not null" json:"title"`
	Description string           `gorm:"type:text" json:"description"`
	PrepTime    int              `json:"prep_time"`
	CookTime    int              `json:"cook_time"`
	Servings    int              `json:"servings"`
	Difficulty  string           `gorm:"size:20" json:"difficulty"`
	Cuisine     string           `gorm:"size:50" json:"cuisine"`
	DietaryTags JSONBStringArray `gorm:"type:jsonb;not null;default:'[]'" json:"dietary_tags"`

	Ingredients  JSONBIngredients `gorm:"type:jsonb;not null;default:'[]'" json:"ingredients"`
	Instructions JSONBSteps       `gorm:"type:jsonb;not null;default:'[]'" json:"instructions"`
	Tips         JSONBStringArray `gorm:"type:jsonb;not null;default:'[]'" json:"tips"`

	Calories float64 `gorm:"type:float" json:"calories"`
	Protein  float64 `gorm:"type:float" json:"protein"`
	Carbs    float64 `gorm:"type:float" json:"carbs"`
	Fat      float64 `gorm:"type:float" json:"fat"`
	Fiber    float64 `gorm:"type:float" json:"fiber"`
	Sugar    float64 `gorm:"type:float" json:"sugar"`
	Sodium   float64 `gorm:"type:float" json:"sodium"`

	EstimatedCost string `gorm:"size:20" json:"estimated_cost"`

	// Modification lineage
	ParentRecipeID      *uuid.UUID `gorm:"type:uuid" json:"parent_recipe_id,omitempty"`
	ModificationRequest string     `gorm:"type:text" json:"modification_request,omitempty"`
	ModificationCount   int        `gorm:"not null;default:0" json:"modification_count"`

	Embedding pgvector.Vector `gorm:"type:vector(3)" json:"-"`
	UserID    uuid.UUID       `gorm:"type:varchar(36);not null;index" json:"user_id"`
}
