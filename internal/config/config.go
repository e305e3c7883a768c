// Package config gathers the per-package settings read from the
// environment and validates them once at startup.
package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/ovaphlow/pitchfork/service-persona-ai/internal/oidc"
	"github.com/ovaphlow/pitchfork/service-persona-ai/internal/vision"
	"github.com/ovaphlow/pitchfork/service-persona-ai/pkg/database"
	"github.com/ovaphlow/pitchfork/service-persona-ai/pkg/utilities"
)

type Config struct {
	HTTPAddr  string `validate:"required,hostname_port"`
	StaticDir string `validate:"omitempty,dir"`
	Log       utilities.Config
	Database  database.Config
	Vision    vision.Config
	OIDC      oidc.Config
}

// FromEnv reads every setting without validating.
func FromEnv() Config {
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = "0.0.0.0:8431"
	}
	return Config{
		HTTPAddr:  addr,
		StaticDir: os.Getenv("STATIC_DIR"),
		Log:       utilities.ConfigFromEnv(),
		Database:  database.ConfigFromEnv(),
		Vision:    vision.ConfigFromEnv(),
		OIDC:      oidc.ConfigFromEnv(),
	}
}

// Load reads and validates the configuration.
func Load() (Config, error) {
	cfg := FromEnv()
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func Validate(cfg Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
