package integration

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/pantrychef/backend/internal/database"
	"github.com/pantrychef/backend/internal/models"
	"github.com/pantrychef/backend/internal/service"
	"github.com/pantrychef/backend/internal/types"
)

// setupPostgres starts a disposable postgres and runs the migrations.
func setupPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "pgvector/pgvector:pg16",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "testuser",
				"POSTGRES_PASSWORD": "testpass",
				"POSTGRES_DB":       "testdb",
			},
			WaitingFor: wait.ForAll(
				wait.ForListeningPort("5432/tcp"),
				wait.ForLog("database system is ready to accept connections"),
			).WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("host=%s port=%s user=testuser password=testpass dbname=testdb sslmode=disable",
		host, port.Port())
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, database.RunMigrations(db, "../../migrations"))
	return db
}

// TestConcurrentConsumeNeverOverdraws hammers Consume from many
// goroutines against a small balance. The guarded decrement must admit
// exactly balance/cost spends and reject the rest; the balance can never
// go negative.
func TestConcurrentConsumeNeverOverdraws(t *testing.T) {
	db := setupPostgres(t)
	ledger := service.NewTokenLedgerService(db, nil, zerolog.Nop())
	ctx := context.Background()
	userID := uuid.New()

	created, err := ledger.EnsureRecord(ctx, userID)
	require.NoError(t, err)
	require.True(t, created)

	const workers = 50

	var wg sync.WaitGroup
	successes := make(chan struct{}, workers)
	rejections := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ledger.Consume(ctx, userID, types.UsageRecipeGeneration)
			if err != nil {
				rejections <- err
				return
			}
			successes <- struct{}{}
		}()
	}
	wg.Wait()
	close(successes)
	close(rejections)

	require.Len(t, successes, types.TokensOnSignup)
	for err := range rejections {
		require.ErrorIs(t, err, service.ErrInsufficientTokens)
	}

	balance, err := ledger.GetBalance(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, 0, balance.TokensBalance)
	require.Equal(t, types.TokensOnSignup, balance.TotalGenerationsUsed)

	// Every admitted spend left a journal row and nothing else did.
	var usageCount int64
	require.NoError(t, db.Model(&models.TokenTransaction{}).
		Where("user_id = ? AND transaction_type = ?", userID, models.TransactionUsage).
		Count(&usageCount).Error)
	require.Equal(t, int64(types.TokensOnSignup), usageCount)
}

// TestConcurrentEnsureRecordGrantsOnce proves the signup grant is applied
// exactly once even when many requests race to create the record.
func TestConcurrentEnsureRecordGrantsOnce(t *testing.T) {
	db := setupPostgres(t)
	ledger := service.NewTokenLedgerService(db, nil, zerolog.Nop())
	ctx := context.Background()
	userID := uuid.New()

	const workers = 20

	var wg sync.WaitGroup
	created := make(chan bool, workers)
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			wasCreated, err := ledger.EnsureRecord(ctx, userID)
			if err != nil {
				errs <- err
				return
			}
			created <- wasCreated
		}()
	}
	wg.Wait()
	close(created)
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	var creations int
	for c := range created {
		if c {
			creations++
		}
	}
	require.Equal(t, 1, creations)

	balance, err := ledger.GetBalance(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, types.TokensOnSignup, balance.TokensBalance)
}

// TestConcurrentTopUpsAreAdditive proves concurrent AddCredits calls all
// land, including the racing create-if-missing path.
func TestConcurrentTopUpsAreAdditive(t *testing.T) {
	db := setupPostgres(t)
	ledger := service.NewTokenLedgerService(db, nil, zerolog.Nop())
	ctx := context.Background()
	userID := uuid.New()

	const workers = 20
	const amount = 100

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := ledger.AddCredits(ctx, userID, amount, true); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	balance, err := ledger.GetBalance(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, workers*amount, balance.TokensBalance)
}
