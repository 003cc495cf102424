package main

import (
	"flag"
	"os"

	"github.com/rs/zerolog"

	"github.com/pantrychef/backend/config"
	"github.com/pantrychef/backend/internal/database"
)

func main() {
	migrationsDir := flag.String("dir", "migrations", "directory containing SQL migration files")
	flag.Parse()

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	db, err := database.New(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	if err := database.RunMigrations(db, *migrationsDir); err != nil {
		logger.Fatal().Err(err).Msg("migrations failed")
	}

	logger.Info().Msg("all migrations applied")
}
