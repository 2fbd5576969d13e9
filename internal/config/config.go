// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every environment-driven setting used by the server and the historian.
type Config struct {
	Env      string
	Port     string
	LogLevel string

	// DatabaseURL wins over the discrete POSTGRES_* / PG_* variables when set.
	DatabaseURL string

	RedisAddr       string
	RedisDB         int
	ActionQueueName string

	AllowedOrigins []string

	// TokenExpire is zero when tokens never expire.
	TokenExpire time.Duration
	// Raw ed25519 key files; a fresh pair is generated when either is empty.
	PrivateKeyPath string
	PublicKeyPath  string

	TurnTimeout      time.Duration
	RollRevealDelay  time.Duration
	RollAdvanceDelay time.Duration

	StartingBalance int64

	HistorianBatchSize  int
	HistorianFlushDelay time.Duration
	RoundInactivity     time.Duration
}

// Load reads the process environment. Call after godotenv/autoload has run.
func Load() (*Config, error) {
	cfg := &Config{
		Env:                 getEnv("DICETABLE_ENV", "dev"),
		Port:                getEnv("PORT", "8080"),
		LogLevel:            getEnv("LOG_LEVEL", ""),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		RedisAddr:           getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:             getEnvInt("REDIS_DB", 0),
		ActionQueueName:     getEnv("ACTION_QUEUE_NAME", "dicetable_actions"),
		AllowedOrigins:      strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
		PrivateKeyPath:      os.Getenv("JWT_PRIVATE_KEY_PATH"),
		PublicKeyPath:       os.Getenv("JWT_PUBLIC_KEY_PATH"),
		StartingBalance:     int64(getEnvInt("STARTING_BALANCE", 1000)),
		HistorianBatchSize:  getEnvInt("HISTORIAN_BATCH_SIZE", 20),
		HistorianFlushDelay: time.Duration(getEnvInt("HISTORIAN_FLUSH_MS", 500)) * time.Millisecond,
		RoundInactivity:     time.Duration(getEnvInt("ROUND_INACTIVITY_TIMEOUT_SEC", 600)) * time.Second,
	}

	var err error
	if cfg.TurnTimeout, err = getEnvDuration("TURN_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.RollRevealDelay, err = getEnvDuration("ROLL_REVEAL_DELAY", 1500*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.RollAdvanceDelay, err = getEnvDuration("ROLL_ADVANCE_DELAY", 3500*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.RollAdvanceDelay < cfg.RollRevealDelay {
		return nil, fmt.Errorf("ROLL_ADVANCE_DELAY (%s) must not be shorter than ROLL_REVEAL_DELAY (%s)", cfg.RollAdvanceDelay, cfg.RollRevealDelay)
	}

	switch expire := os.Getenv("TOKEN_EXPIRE_TIME"); expire {
	case "", "0", "never":
		cfg.TokenExpire = 0
	default:
		d, err := time.ParseDuration(expire)
		if err != nil {
			return nil, fmt.Errorf("failed to parse TOKEN_EXPIRE_TIME: %w", err)
		}
		cfg.TokenExpire = d
	}

	if cfg.LogLevel == "" {
		if cfg.IsProduction() {
			cfg.LogLevel = "info"
		} else {
			cfg.LogLevel = "debug"
		}
	}
	return cfg, nil
}

// IsProduction reports whether DICETABLE_ENV names a production deployment.
func (c *Config) IsProduction() bool {
	return c.Env == "prod" || c.Env == "production"
}

// PostgresDSN returns DATABASE_URL, or assembles one from the discrete variables.
func (c *Config) PostgresDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		os.Getenv("POSTGRES_USER"),
		os.Getenv("POSTGRES_PASSWORD"),
		getEnv("PG_HOST", "localhost"),
		getEnv("PG_PORT", "5432"),
		getEnv("PG_DATABASE", "dicetable"),
	)
}

// getEnv is a helper to read an environment variable or return a default value.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getEnvInt is a helper to parse an environment variable as integer, else a default value.
func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

func getEnvDuration(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, d)
	}
	return d, nil
}
