package config

import (
	"os"
)

// Environment represents the current runtime environment
type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
)

// GetEnvironment reads ENV; anything other than "production" runs as
// development.
func GetEnvironment() Environment {
	if os.Getenv("ENV") == "production" {
		return Production
	}
	return Development
}

// IsDevelopment returns true if the current environment is development
func IsDevelopment() bool {
	return GetEnvironment() == Development
}

// IsProduction returns true if the current environment is production
func IsProduction() bool {
	return GetEnvironment() == Production
}
