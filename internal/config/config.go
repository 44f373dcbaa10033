package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port string

	// Model artifacts
	ModelPath   string
	EncoderPath string

	// Auth: a service key for integrations, and signed per-user tokens.
	APIKey    string
	JWTSecret string
	TokenTTL  time.Duration

	// History store; empty keeps predictions in memory.
	DataDir      string
	HistoryLimit int

	// HTTP
	CORSAllowedOrigins []string
	RateLimitRequests  int
	RateLimitWindow    time.Duration

	// Batch worker pool
	WorkerCount    int
	MaxQueueSize   int
	MaxUploadBytes int64
	JobTTL         time.Duration

	StatsWindow time.Duration
	Debug       bool
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "5001"),

		ModelPath:   envOr("MODEL_PATH", "model/irrigation_tree.json"),
		EncoderPath: envOr("ENCODER_PATH", "model/encoder.json"),

		APIKey:    os.Getenv("AQUASENS_API_KEY"),
		JWTSecret: os.Getenv("AQUASENS_JWT_SECRET"),
		TokenTTL:  envDuration("AUTH_TOKEN_TTL", 24*time.Hour),

		DataDir:      os.Getenv("DATA_DIR"),
		HistoryLimit: envInt("HISTORY_LIMIT", 100),

		CORSAllowedOrigins: envList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:8080"}),
		RateLimitRequests:  envInt("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:    envDuration("RATE_LIMIT_WINDOW", time.Minute),

		WorkerCount:    envInt("WORKER_COUNT", 4),
		MaxQueueSize:   envInt("MAX_QUEUE_SIZE", 100),
		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 10485760), // 10MB
		JobTTL:         envDuration("JOB_TTL", 1*time.Hour),

		StatsWindow: envDuration("STATS_WINDOW", 1*time.Hour),
		Debug:       envBool("DEBUG", false),
	}

	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 100
	}
	if cfg.RateLimitRequests <= 0 {
		cfg.RateLimitRequests = 60
	}
	if cfg.RateLimitWindow <= 0 {
		cfg.RateLimitWindow = time.Minute
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10485760
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}
	if cfg.StatsWindow <= 0 {
		cfg.StatsWindow = 1 * time.Hour
	}

	return cfg
}

func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("AQUASENS_API_KEY is required")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("AQUASENS_JWT_SECRET must be at least 32 characters")
	}
	if c.ModelPath == "" {
		return fmt.Errorf("MODEL_PATH is required")
	}
	if c.EncoderPath == "" {
		return fmt.Errorf("ENCODER_PATH is required")
	}
	return nil
}

func envOr(key, fallback string) string {
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

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
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

// envList splits a comma-separated value, dropping blanks.
func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
