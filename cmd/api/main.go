package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/pantrychef/backend/config"
	"github.com/pantrychef/backend/internal/api"
	"github.com/pantrychef/backend/internal/database"
	"github.com/pantrychef/backend/internal/router"
	"github.com/pantrychef/backend/internal/server"
	"github.com/pantrychef/backend/internal/service"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if config.IsDevelopment() {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	zlog.Logger = logger

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	if err := config.ValidateConfig(cfg); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	db, err := database.New(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	healthDB, err := database.NewHealthDB(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open health check connection")
	}

	redisClient, err := database.NewRedisClient(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to Redis")
	}

	s3Config, err := config.NewS3Config(context.Background(), cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure S3")
	}

	notifier := service.NewRedisBalanceNotifier(redisClient, logger)
	ledger := service.NewTokenLedgerService(db, notifier, logger)
	authService := service.NewAuthService(db, ledger, cfg.JWTSecret, logger)
	profileService := service.NewProfileService(db)
	recipeService := service.NewRecipeService(db)
	paymentService := service.NewPaymentService(cfg, ledger, logger)

	llmService, err := service.NewLLMService(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure LLM service")
	}
	photoService := service.NewPhotoService(s3Config, llmService, logger)

	handlers := router.Handlers{
		Auth:       api.NewAuthHandler(authService, profileService),
		Token:      api.NewTokenHandler(ledger),
		Recipe:     api.NewRecipeHandler(recipeService),
		Generation: api.NewGenerationHandler(ledger, llmService, recipeService, profileService, logger),
		Payment:    api.NewPaymentHandler(paymentService, logger),
		Photo:      api.NewPhotoHandler(ledger, photoService, logger),
		Health:     healthDB,
	}

	engine := router.SetupRouter(handlers, authService, redisClient)
	srv := server.New(engine, cfg.ServerHost+":"+cfg.ServerPort, logger)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		if err != nil {
			logger.Fatal().Err(err).Msg("server error")
		}
	case sig := <-quit:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	if err := srv.Shutdown(context.Background()); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown error")
	}
	logger.Info().Msg("server stopped")
}
