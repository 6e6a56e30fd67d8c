package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	IrisBaseURL string
	IrisWSURL   string
	// IrisEgress is http, ws or auto.
	IrisEgress string

	BotPrefix string

	XUserID    string
	XUserEmail string
	XSessionID string

	RedisURL    string
	DatabaseURL string

	AllowedRooms []string

	HTTPAddr       string
	ProfileBaseURL string
	MessagesDir    string

	TowerSeed       int
	TickInterval    time.Duration
	HealthDecay     float64
	LeaderboardSize int
	IdleTimeout     time.Duration
	PrimeTimeout    time.Duration
}

// Load reads the environment, after priming it from a .env file when one exists.
// Variables already set in the process win over the file.
func Load() (*AppConfig, error) {
	_ = godotenv.Load()
	return FromEnv()
}

func FromEnv() (*AppConfig, error) {
	cfg := &AppConfig{
		IrisEgress:      "http",
		TowerSeed:       10,
		TickInterval:    200 * time.Millisecond,
		HealthDecay:     0.01,
		LeaderboardSize: 5,
		IdleTimeout:     600 * time.Second,
		PrimeTimeout:    3000 * time.Millisecond,
	}

	cfg.IrisBaseURL = env("IRIS_BASE_URL")
	cfg.IrisWSURL = env("IRIS_WS_URL")
	if v := strings.ToLower(env("IRIS_EGRESS")); v != "" {
		cfg.IrisEgress = v
	}
	cfg.BotPrefix = env("BOT_PREFIX")

	cfg.XUserID = env("X_USER_ID")
	cfg.XUserEmail = env("X_USER_EMAIL")
	cfg.XSessionID = env("X_SESSION_ID")

	cfg.RedisURL = env("REDIS_URL")
	cfg.DatabaseURL = env("DATABASE_URL")

	if v := env("ALLOWED_ROOMS"); v != "" {
		for _, p := range strings.Split(v, ",") {
			if s := strings.TrimSpace(p); s != "" {
				cfg.AllowedRooms = append(cfg.AllowedRooms, s)
			}
		}
	}

	cfg.HTTPAddr = env("HTTP_ADDR")
	cfg.ProfileBaseURL = env("PROFILE_BASE_URL")
	cfg.MessagesDir = env("MESSAGES_DIR")

	if n, ok := positiveInt("SUSHI_TOWER_SEED"); ok {
		cfg.TowerSeed = n
	}
	if n, ok := positiveInt("SUSHI_TICK_MS"); ok {
		cfg.TickInterval = time.Duration(n) * time.Millisecond
	}
	if v := env("SUSHI_HEALTH_DECAY"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 && f <= 1 {
			cfg.HealthDecay = f
		}
	}
	if n, ok := positiveInt("SUSHI_LEADERBOARD_SIZE"); ok {
		cfg.LeaderboardSize = n
	}
	if n, ok := positiveInt("SUSHI_IDLE_TIMEOUT_SEC"); ok {
		cfg.IdleTimeout = time.Duration(n) * time.Second
	}
	if n, ok := positiveInt("SUSHI_PRIME_TIMEOUT_MS"); ok {
		cfg.PrimeTimeout = time.Duration(n) * time.Millisecond
	}

	if cfg.IrisBaseURL == "" {
		return nil, errors.New("IRIS_BASE_URL is required")
	}
	if cfg.IrisWSURL == "" {
		return nil, errors.New("IRIS_WS_URL is required")
	}
	if cfg.BotPrefix == "" {
		return nil, errors.New("BOT_PREFIX is required")
	}
	switch cfg.IrisEgress {
	case "http", "ws", "auto":
	default:
		return nil, errors.New("IRIS_EGRESS must be http, ws or auto")
	}
	return cfg, nil
}

// Headers are the X-User-* values some Iris deployments require on every call.
func (c *AppConfig) Headers() map[string]string {
	h := map[string]string{}
	if c.XUserID != "" {
		h["X-User-Id"] = c.XUserID
	}
	if c.XUserEmail != "" {
		h["X-User-Email"] = c.XUserEmail
	}
	if c.XSessionID != "" {
		h["X-Session-Id"] = c.XSessionID
	}
	return h
}

func env(key string) string { return strings.TrimSpace(os.Getenv(key)) }

// 잘못된 값은 조용히 기본값 유지
func positiveInt(key string) (int, bool) {
	v := env(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
