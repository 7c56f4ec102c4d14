// Package config reads runtime configuration from environment variables.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds runtime configuration sourced from env vars.
type Config struct {
	Port          string
	DatabaseURL   string
	JWTSecret     string
	CardKey       []byte // 32-byte card codec key
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SweepInterval time.Duration
}

// Load reads configuration from the environment and performs minimal validation.
func Load() (Config, error) {
	cfg := Config{
		Port:          fallback(os.Getenv("PORT"), "8080"),
		DatabaseURL:   strings.TrimSpace(os.Getenv("DATABASE_URL")),
		JWTSecret:     strings.TrimSpace(os.Getenv("JWT_SECRET")),
		AccessTTL:     minutes("ACCESS_TTL_MINUTES", 15),
		RefreshTTL:    minutes("REFRESH_TTL_MINUTES", 7*24*60),
		SweepInterval: minutes("SWEEP_INTERVAL_MINUTES", 24*60),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return Config{}, errors.New("JWT_SECRET is required")
	}

	rawKey := strings.TrimSpace(os.Getenv("CARD_KEY"))
	if rawKey == "" {
		return Config{}, errors.New("CARD_KEY is required")
	}
	key, err := base64.StdEncoding.DecodeString(rawKey)
	if err != nil {
		return Config{}, fmt.Errorf("CARD_KEY must be base64: %w", err)
	}
	if len(key) != 32 {
		return Config{}, errors.New("CARD_KEY must decode to 32 bytes")
	}
	cfg.CardKey = key

	return cfg, nil
}

// HTTPAddress returns the host:port pair for the HTTP server to bind to.
func (c Config) HTTPAddress() string {
	return fmt.Sprintf(":%s", c.Port)
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return strings.TrimSpace(value)
}

func minutes(name string, def int) time.Duration {
	raw := fallback(os.Getenv(name), strconv.Itoa(def))
	if v, err := strconv.Atoi(raw); err == nil && v > 0 {
		return time.Duration(v) * time.Minute
	}
	return time.Duration(def) * time.Minute
}
