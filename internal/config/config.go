// Package config loads runtime configuration from the environment.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config stores the application configuration. Flags may override the
// engine fields after loading.
type Config struct {
	Port string

	// Catalog API access.
	APIBaseURL string
	APIToken   string

	// Audio engine (MPD) connection.
	EngineHost     string
	EnginePort     int
	EnginePassword string

	// Transport limits.
	MaxExternalClients int
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first; existing environment variables win.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found, relying on environment variables and defaults")
	}

	return &Config{
		Port:               getEnv("PORT", "3001"),
		APIBaseURL:         getEnv("API_BASE_URL", "http://localhost:8787"),
		APIToken:           os.Getenv("API_TOKEN"),
		EngineHost:         getEnv("MPD_HOST", "localhost"),
		EnginePort:         getEnvInt("MPD_PORT", 6600),
		EnginePassword:     os.Getenv("MPD_PASSWORD"),
		MaxExternalClients: getEnvInt("MAX_EXTERNAL_CLIENTS", 4),
	}
}
