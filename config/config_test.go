package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("DB_HOST", "dbhost")
	t.Setenv("DB_PORT", "5433")
	t.Setenv("DB_USER", "pantry")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("DB_NAME", "pantrychef_test")
	t.Setenv("DB_SSL_MODE", "require")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_123")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_123")

	cfg, err := LoadConfig()
	assert.NoError(t, err)
	assert.NotNil(t, cfg)

	assert.Equal(t, "dbhost", cfg.DBHost)
	assert.Equal(t, "5433", cfg.DBPort)
	assert.Equal(t, "pantry", cfg.DBUser)
	assert.Equal(t, "secret", cfg.DBPassword)
	assert.Equal(t, "pantrychef_test", cfg.DBName)
	assert.Equal(t, "require", cfg.DBSSLMode)
	assert.Equal(t, "test-secret", cfg.JWTSecret)
	assert.Equal(t, "redis://localhost:6379", cfg.RedisURL)
	assert.Equal(t, "sk_test_123", cfg.StripeSecretKey)
	assert.Equal(t, "whsec_123", cfg.StripeWebhookSecret)
}

func TestLoadConfigWithDefaults(t *testing.T) {
	// Point the secrets dir somewhere empty so host secrets don't leak in
	t.Setenv("SECRETS_DIR", t.TempDir())

	cfg, err := LoadConfig()
	assert.NoError(t, err)
	assert.NotNil(t, cfg)

	assert.Equal(t, "localhost", cfg.DBHost)
	assert.Equal(t, "5432", cfg.DBPort)
	assert.Equal(t, "pantrychef", cfg.DBName)
	assert.Equal(t, "disable", cfg.DBSSLMode)
	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, "https://api.deepseek.com/v1/chat/completions", cfg.DeepSeekAPIURL)
}

func TestDatabaseDSN(t *testing.T) {
	cfg := &Config{
		DBHost:     "localhost",
		DBPort:     "5432",
		DBUser:     "pantry",
		DBPassword: "pw",
		DBName:     "pantrychef",
		DBSSLMode:  "disable",
	}

	assert.Equal(t,
		"host=localhost port=5432 user=pantry password=pw dbname=pantrychef sslmode=disable",
		cfg.DatabaseDSN())
}

func TestGetEnvironment(t *testing.T) {
	t.Setenv("ENV", "")
	assert.Equal(t, Development, GetEnvironment())
	assert.True(t, IsDevelopment())

	t.Setenv("ENV", "production")
	assert.Equal(t, Production, GetEnvironment())
	assert.True(t, IsProduction())

	t.Setenv("ENV", "staging")
	assert.Equal(t, Development, GetEnvironment())
}

func TestValidateConfigProduction(t *testing.T) {
	t.Setenv("ENV", "production")

	err := ValidateConfig(&Config{DBHost: "localhost", DBName: "pantrychef"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
	assert.Contains(t, err.Error(), "STRIPE_SECRET_KEY")
}
