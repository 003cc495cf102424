package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/pantrychef/backend/config"
)

// New opens the gorm connection used by all services.
func New(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN()), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("error accessing database pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(25)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	log.Info().Str("host", cfg.DBHost).Str("database", cfg.DBName).Msg("connected to database")
	return db, nil
}

// HealthDB is a plain database/sql connection kept for liveness probes,
// separate from the gorm pool so a saturated pool does not fail health
// checks spuriously.
type HealthDB struct {
	*sql.DB
}

// NewHealthDB opens the probe connection.
func NewHealthDB(cfg *config.Config) (*HealthDB, error) {
	db, err := sql.Open("postgres", cfg.DatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("error opening health connection: %w", err)
	}
	db.SetMaxOpenConns(2)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}
	return &HealthDB{db}, nil
}

// HealthCheck checks if the database is accessible
func (db *HealthDB) HealthCheck(ctx context.Context) error {
	return db.PingContext(ctx)
}
