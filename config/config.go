package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every setting read from the environment.
type Config struct {
	Port string

	MaxHistory     int
	RoomIdleGrace  time.Duration
	MoodInterval   time.Duration
	MoodSampleSize int
	WriteTimeout   time.Duration

	ClassifierMode       string
	ClassifierURL        string
	ClassifierTimeout    time.Duration
	ClassifierFixedLabel string

	CORSAllowOrigins  []string
	RoomCreateLimit   int
	RoomCreateWindow  time.Duration
	RedisAddr         string
	MessagesPerSecond int
	MessageBurst      int
}

// Load reads .env when present and then the process environment.
func Load() Config {
	// Load local .env (dev only)
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from the current environment, falling back to
// defaults for unset or invalid values.
func FromEnv() Config {
	return Config{
		Port: getEnv("PORT", "3000"),

		MaxHistory:     getEnvInt("MAX_HISTORY", 20),
		RoomIdleGrace:  getEnvDuration("ROOM_IDLE_GRACE", 10*time.Second),
		MoodInterval:   getEnvDuration("MOOD_INTERVAL", 20*time.Second),
		MoodSampleSize: getEnvInt("MOOD_SAMPLE_SIZE", 10),
		WriteTimeout:   getEnvDuration("WRITE_TIMEOUT", 10*time.Second),

		ClassifierMode:       strings.ToLower(getEnv("CLASSIFIER_MODE", "fixed")),
		ClassifierURL:        getEnv("CLASSIFIER_URL", ""),
		ClassifierTimeout:    getEnvDuration("CLASSIFIER_TIMEOUT", 5*time.Second),
		ClassifierFixedLabel: getEnv("CLASSIFIER_FIXED_LABEL", "neutral"),

		CORSAllowOrigins:  splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		RoomCreateLimit:   getEnvInt("ROOM_CREATE_LIMIT", 10),
		RoomCreateWindow:  getEnvDuration("ROOM_CREATE_WINDOW", time.Minute),
		RedisAddr:         getEnv("REDIS_ADDR", ""),
		MessagesPerSecond: getEnvInt("MESSAGES_PER_SECOND", 10),
		MessageBurst:      getEnvInt("MESSAGE_BURST", 20),
	}
}

// getEnv returns the env var or a default
func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// getEnvInt parses a positive int env var with a fallback
func getEnvInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		var i int
		_, _ = fmt.Sscanf(v, "%d", &i)
		if i > 0 {
			return i
		}
	}
	return def
}

// getEnvDuration parses a positive duration env var with a fallback
func getEnvDuration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}

// splitCSV trims and filters a comma-separated list
func splitCSV(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
