package config

import (
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	DatabaseURL string
	TerminalID  string
	LogLevel    string
}

// Load reads configuration from the environment, after merging an optional
// .env file. DATABASE_URL empty means run on the in-memory store (single
// terminal, no sharing).
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:        getEnv("PORT", "8082"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		TerminalID:  getEnv("TERMINAL_ID", hostnameFallback()),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func hostnameFallback() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "terminal-1"
	}
	return h
}
