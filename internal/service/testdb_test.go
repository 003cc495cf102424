package service

import (
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupTestDB opens an in-memory sqlite database with the schema the
// service tests need. Postgres-only types (jsonb, vector) map to TEXT.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}

	statements := []string{
		`CREATE TABLE users (
			id TEXT PRIMARY KEY,
			created_at DATETIME,
			updated_at DATETIME,
			deleted_at DATETIME,
			name TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL
		);`,
		`CREATE TABLE user_profiles (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL UNIQUE,
			username TEXT NOT NULL UNIQUE,
			bio TEXT,
			created_at DATETIME,
			updated_at DATETIME,
			deleted_at DATETIME
		);`,
		`CREATE TABLE dietary_preferences (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			preference_type TEXT NOT NULL,
			custom_name TEXT,
			created_at DATETIME,
			updated_at DATETIME
		);`,
		`CREATE TABLE allergens (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			allergen_name TEXT NOT NULL,
			severity_level INTEGER NOT NULL,
			created_at DATETIME,
			updated_at DATETIME
		);`,
		`CREATE TABLE user_tokens (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL UNIQUE,
			tokens_balance INTEGER NOT NULL DEFAULT 0 CHECK (tokens_balance >= 0),
			total_generations_used INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME,
			updated_at DATETIME
		);`,
		`CREATE TABLE token_transactions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			transaction_type TEXT NOT NULL,
			amount INTEGER NOT NULL,
			description TEXT,
			created_at DATETIME
		);`,
		`CREATE TABLE recipes (
			id TEXT PRIMARY KEY,
			created_at DATETIME,
			updated_at DATETIME,
			deleted_at DATETIME,
			title TEXT NOT NULL,
			description TEXT,
			prep_time INTEGER,
			cook_time INTEGER,
			servings INTEGER,
			difficulty TEXT,
			cuisine TEXT,
			dietary_tags TEXT NOT NULL DEFAULT '[]',
			ingredients TEXT NOT NULL DEFAULT '[]',
			instructions TEXT NOT NULL DEFAULT '[]',
			tips TEXT NOT NULL DEFAULT '[]',
			calories REAL,
			protein REAL,
			carbs REAL,
			fat REAL,
			fiber REAL,
			sugar REAL,
			sodium REAL,
			estimated_cost TEXT,
			parent_recipe_id TEXT,
			modification_request TEXT,
			modification_count INTEGER NOT NULL DEFAULT 0,
			embedding TEXT,
			user_id TEXT NOT NULL
		);`,
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("failed to create table: %v", err)
		}
	}

	return db
}
