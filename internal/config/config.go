// Copyright 2026 The cartsync Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the runtime configuration for a cartsync client process.
type Config struct {
	// Backend connection
	ServerURL   string
	RealtimeURL string
	JWTSecret   string
	UserID      string
	DeviceName  string

	// Local storage
	DatabaseFile string

	// Sync loop timing
	BackoffMin time.Duration
	BackoffMax time.Duration

	// Auth
	TokenExpiry time.Duration

	// Logging
	LogLevel string
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		ServerURL:    "http://localhost:8080",
		RealtimeURL:  "ws://localhost:8080/ws",
		JWTSecret:    "dev-secret",
		UserID:       "local-user",
		DeviceName:   "cartsync-cli",
		DatabaseFile: "cartsync.db",
		BackoffMin:   1 * time.Second,
		BackoffMax:   60 * time.Second,
		TokenExpiry:  time.Hour,
		LogLevel:     "info",
	}
}

// Load reads configuration from the environment, applying defaults for
// anything unset. A .env file in the working directory is honored when
// present.
func Load() *Config {
	_ = godotenv.Load()

	cfg := Default()
	cfg.ServerURL = envString("CARTSYNC_SERVER_URL", cfg.ServerURL)
	cfg.RealtimeURL = envString("CARTSYNC_REALTIME_URL", cfg.RealtimeURL)
	cfg.JWTSecret = envString("CARTSYNC_JWT_SECRET", cfg.JWTSecret)
	cfg.UserID = envString("CARTSYNC_USER_ID", cfg.UserID)
	cfg.DeviceName = envString("CARTSYNC_DEVICE_NAME", cfg.DeviceName)
	cfg.DatabaseFile = envString("CARTSYNC_DB_FILE", cfg.DatabaseFile)
	cfg.BackoffMin = envDuration("CARTSYNC_BACKOFF_MIN", cfg.BackoffMin)
	cfg.BackoffMax = envDuration("CARTSYNC_BACKOFF_MAX", cfg.BackoffMax)
	cfg.TokenExpiry = envDuration("CARTSYNC_TOKEN_EXPIRY", cfg.TokenExpiry)
	cfg.LogLevel = envString("CARTSYNC_LOG_LEVEL", cfg.LogLevel)
	return cfg
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
