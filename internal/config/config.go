// Package config loads runtime settings from the environment, with an optional .env file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Workflow WorkflowConfig
	LogLevel string
	Env      string
	TenantID int64 // CLI only: tenant the commands act on
	UserID   int64 // CLI only: user stamped on created documents
}

type ServerConfig struct {
	Port           string
	AllowedOrigins string
	JWTSecret      string
	JWTExpiry      time.Duration
}

type DatabaseConfig struct {
	URL string
}

type WorkflowConfig struct {
	TxTimeout               time.Duration
	DefaultPaymentTermsDays int
}

// Load reads envFiles (missing files are ignored) and then the process
// environment. Process variables win over file values.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		_ = godotenv.Load(f)
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("TX_TIMEOUT", "10s")
	v.SetDefault("JWT_EXPIRY", "24h")
	v.SetDefault("DEFAULT_PAYMENT_TERMS_DAYS", 30)
	v.SetDefault("TENANT_ID", 1)
	v.SetDefault("USER_ID", 1)
	_ = v.BindEnv("SERVER_PORT", "SERVER_PORT", "PORT")

	cfg := &Config{
		Server: ServerConfig{
			Port:           v.GetString("SERVER_PORT"),
			AllowedOrigins: v.GetString("ALLOWED_ORIGINS"),
			JWTSecret:      v.GetString("JWT_SECRET"),
			JWTExpiry:      v.GetDuration("JWT_EXPIRY"),
		},
		Database: DatabaseConfig{URL: v.GetString("DATABASE_URL")},
		Workflow: WorkflowConfig{
			TxTimeout:               v.GetDuration("TX_TIMEOUT"),
			DefaultPaymentTermsDays: v.GetInt("DEFAULT_PAYMENT_TERMS_DAYS"),
		},
		LogLevel: v.GetString("LOG_LEVEL"),
		Env:      v.GetString("APP_ENV"),
		TenantID: v.GetInt64("TENANT_ID"),
		UserID:   v.GetInt64("USER_ID"),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Workflow.TxTimeout <= 0 {
		return fmt.Errorf("TX_TIMEOUT must be positive, got %s", c.Workflow.TxTimeout)
	}
	if c.Workflow.DefaultPaymentTermsDays < 0 {
		return fmt.Errorf("DEFAULT_PAYMENT_TERMS_DAYS must not be negative, got %d", c.Workflow.DefaultPaymentTermsDays)
	}
	if c.TenantID <= 0 {
		return fmt.Errorf("TENANT_ID must be positive, got %d", c.TenantID)
	}
	return nil
}

// Production reports whether APP_ENV names a production deployment.
func (c *Config) Production() bool {
	return strings.EqualFold(c.Env, "production")
}

// RequireServer checks the settings only the HTTP server needs.
func (c *Config) RequireServer() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is not set")
	}
	if c.Server.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is not set")
	}
	return nil
}
