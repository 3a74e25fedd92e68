package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port         int
	NatsURL      string
	NatsToken    string
	DatabaseURL  string
	LogLevel     string
	OpenAIAPIKey string
	BaseModel    string

	ExportDir string
	OutputDir string

	ShiftDelay     time.Duration
	TrailingWindow time.Duration
	MaxSnapshot    int
}

func Load() Config {
	return Config{
		Port:         envInt("PYTHIA_PORT", 8760),
		NatsURL:      envStr("NATS_URL", "nats://hermes:4222"),
		NatsToken:    envStr("NATS_TOKEN", ""),
		DatabaseURL:  envStr("DATABASE_URL", ""),
		LogLevel:     envStr("LOG_LEVEL", "info"),
		OpenAIAPIKey: envStr("OPENAI_API_KEY", ""),
		BaseModel:    envStr("PYTHIA_BASE_MODEL", "gpt-4.1-mini"),

		ExportDir: envStr("PYTHIA_EXPORT_DIR", ""),
		OutputDir: envStr("PYTHIA_OUTPUT_DIR", "./data"),

		ShiftDelay:     envDuration("PYTHIA_SHIFT_DELAY", time.Second),
		TrailingWindow: envDuration("PYTHIA_TRAILING_WINDOW", time.Second),
		MaxSnapshot:    envInt("PYTHIA_MAX_SNAPSHOT", 20),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
