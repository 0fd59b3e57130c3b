package config

import (
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	Port   string
	DB_DSN string
}

// Load reads configuration from the environment, with an optional .env
// file. An empty DB_DSN selects the in-memory store.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Port:   getEnv("APP_PORT", "8080"),
		DB_DSN: getEnv("DB_DSN", ""),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
