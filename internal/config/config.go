package config

import (
	"fmt"
	"os"
	"strconv"
)

// SMTPConfig holds outbound mail settings. All fields optional; when Host
// is empty the server falls back to a log-only mailer.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Config holds the application configuration
type Config struct {
	DatabaseURL  string
	Port         string
	JWTSecret    string
	ClientOrigin string
	Production   bool
	SMTP         SMTPConfig
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:         "8080", // default port
		ClientOrigin: "http://localhost:5173",
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}
	cfg.DatabaseURL = databaseURL

	if port := os.Getenv("PORT"); port != "" {
		cfg.Port = port
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}
	cfg.JWTSecret = jwtSecret

	if origin := os.Getenv("CLIENT_ORIGIN"); origin != "" {
		cfg.ClientOrigin = origin
	}

	cfg.Production = os.Getenv("APP_ENV") == "production"

	cfg.SMTP = SMTPConfig{
		Host:     os.Getenv("SMTP_HOST"),
		Port:     587,
		Username: os.Getenv("SMTP_USER"),
		Password: os.Getenv("SMTP_PASS"),
		From:     os.Getenv("SMTP_FROM"),
	}
	if p := os.Getenv("SMTP_PORT"); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid SMTP_PORT: %w", err)
		}
		cfg.SMTP.Port = port
	}
	if cfg.SMTP.From == "" {
		cfg.SMTP.From = "no-reply@example.com"
	}

	return cfg, nil
}
