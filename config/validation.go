package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateConfig checks that values required for the current environment are present.
// Development keeps permissive defaults so the server can start against local
// docker-compose services; production requires every external credential.
func ValidateConfig(cfg *Config) error {
	var errors []string

	if cfg.DBHost == "" {
		errors = append(errors, "DB_HOST is required")
	}
	if cfg.DBName == "" {
		errors = append(errors, "DB_NAME is required")
	}

	if IsProduction() {
		if cfg.JWTSecret == "" {
			errors = append(errors, "JWT_SECRET (or jwt_secret secret) is required in production")
		}
		if cfg.StripeSecretKey == "" {
			errors = append(errors, "STRIPE_SECRET_KEY (or stripe_secret_key secret) is required in production")
		}
		if cfg.StripeWebhookSecret == "" {
			errors = append(errors, "STRIPE_WEBHOOK_SECRET (or stripe_webhook_secret secret) is required in production")
		}
		if cfg.DeepSeekAPIKey == "" {
			errors = append(errors, "DEEPSEEK_API_KEY (or deepseek_api_key secret) is required in production")
		}
		if cfg.DBPassword == "" {
			errors = append(errors, "DB_PASSWORD (or db_password secret) is required in production")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(errors, "\n"))
	}

	return nil
}
