package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv, AppPort string
	CORSOrigins     []string
	MaxBodyBytes    int

	UpstreamBaseURL string
	UpstreamKey     string
	UpstreamTimeout time.Duration
	UpstreamRPS     int
	UpstreamBurst   int
	BackendsFile    string

	RedisAddr string
	RedisDB   int
	StatusTTL time.Duration

	RateLimitMax    int
	RateLimitWindow time.Duration
}

// Load reads the environment (and an optional .env). A missing upstream key
// is not fatal here; requests fail with a configuration error instead.
func Load() *Config {
	_ = godotenv.Load()

	c := &Config{
		AppEnv:          get("APP_ENV", "dev"),
		AppPort:         get("APP_PORT", "8080"),
		CORSOrigins:     split(get("CORS_ORIGINS", "http://localhost:5173")),
		MaxBodyBytes:    GetEnvInt("MAX_BODY_BYTES", 4*1024*1024),
		UpstreamBaseURL: get("UPSTREAM_BASE_URL", "https://openrouter.ai/api/v1"),
		UpstreamKey:     get("UPSTREAM_API_KEY", ""),
		UpstreamTimeout: mustDuration(get("UPSTREAM_TIMEOUT", "120s")),
		UpstreamRPS:     atoi(get("UPSTREAM_RPS", "0")),
		UpstreamBurst:   atoi(get("UPSTREAM_BURST", "0")),
		BackendsFile:    get("BACKENDS_FILE", ""),
		RedisAddr:       get("REDIS_ADDR", ""),
		RedisDB:         atoi(get("REDIS_DB", "0")),
		StatusTTL:       mustDuration(get("STATUS_TTL", "24h")),
		RateLimitMax:    GetEnvInt("RATE_LIMIT_MAX", 30),
		RateLimitWindow: mustDuration(get("RATE_LIMIT_WINDOW", "1m")),
	}
	return c
}

func GetEnvInt(k string, d int) int {
	if v := os.Getenv(k); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return d
}

func get(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}
func atoi(s string) int                   { i, _ := strconv.Atoi(s); return i }
func mustDuration(s string) time.Duration { d, _ := time.ParseDuration(s); return d }
func split(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func GetEnv(k, d string) string {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	return v
}
