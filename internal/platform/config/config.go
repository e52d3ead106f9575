package config

import (
	"fmt"
	"log/slog"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"pollster/pkg/platform/middleware/metadata"
	s "pollster/pkg/string"
)

const devJWTSecret = "dev-secret-change-in-production"

// Config is the process configuration, read once at startup.
type Config struct {
	Addr        string
	Environment string
	LogLevel    slog.Level

	DatabaseURL string
	Redis       RedisConfig
	Auth        AuthConfig

	CORSAllowedOrigins []string
	TrustedProxies     []netip.Prefix

	// RateLimits holds per-class overrides keyed by the RATE_LIMIT_ suffix
	// in lower snake case, e.g. "create_poll".
	RateLimits map[string]RateLimit
	CSRF       CSRFConfig
	Session    SessionConfig
}

// RedisConfig configures the optional shared store. An empty URL keeps all
// guard state in process memory.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// AuthConfig describes the hosted auth service.
type AuthConfig struct {
	JWTSecret string
	URL       string
	APIKey    string
}

type RateLimit struct {
	Max    int
	Window time.Duration
}

type CSRFConfig struct {
	TokenTTL time.Duration
	// Secret keys the token digest. Empty means a per-process random key,
	// which is only correct for a single instance.
	Secret string
}

type SessionConfig struct {
	InactivityTimeout time.Duration
	WarningLead       time.Duration
	MaxDuration       time.Duration
	RefreshLead       time.Duration
}

// IsProduction reports whether ENVIRONMENT is "production".
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

// Load reads an optional .env file and then builds the configuration from
// the environment. Variables already set take precedence over the file.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config using getenv. Unparseable values are errors.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Config{
		Addr:        stringOr(getenv("POLLSTER_ADDR"), ":8080"),
		Environment: stringOr(getenv("ENVIRONMENT"), "development"),
		DatabaseURL: getenv("DATABASE_URL"),
		Redis: RedisConfig{
			URL:          getenv("REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Auth: AuthConfig{
			JWTSecret: getenv("AUTH_JWT_SECRET"),
			URL:       strings.TrimRight(getenv("AUTH_URL"), "/"),
			APIKey:    getenv("AUTH_API_KEY"),
		},
		CORSAllowedOrigins: s.SplitList(getenv("CORS_ALLOWED_ORIGINS")),
		RateLimits:         make(map[string]RateLimit),
		CSRF: CSRFConfig{
			TokenTTL: 24 * time.Hour,
			Secret:   getenv("CSRF_SECRET"),
		},
		Session: SessionConfig{
			InactivityTimeout: 2 * time.Hour,
			WarningLead:       5 * time.Minute,
			MaxDuration:       8 * time.Hour,
			RefreshLead:       10 * time.Minute,
		},
	}

	level, err := parseLevel(getenv("LOG_LEVEL"))
	if err != nil {
		return Config{}, err
	}
	cfg.LogLevel = level

	if cfg.Auth.JWTSecret == "" {
		if cfg.IsProduction() {
			return Config{}, fmt.Errorf("AUTH_JWT_SECRET is required in production")
		}
		cfg.Auth.JWTSecret = devJWTSecret
	}

	if raw := getenv("TRUSTED_PROXIES"); raw != "" {
		prefixes, err := metadata.ParseTrustedProxies(s.SplitList(raw))
		if err != nil {
			return Config{}, fmt.Errorf("TRUSTED_PROXIES: %w", err)
		}
		cfg.TrustedProxies = prefixes
	}

	for _, class := range []string{"GENERIC", "CREATE_POLL", "VOTING", "AUTH"} {
		key := "RATE_LIMIT_" + class
		raw := getenv(key)
		if raw == "" {
			continue
		}
		limit, err := ParseRateLimit(raw)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", key, err)
		}
		cfg.RateLimits[strings.ToLower(class)] = limit
	}

	durations := []struct {
		key    string
		target *time.Duration
	}{
		{"CSRF_TOKEN_TTL", &cfg.CSRF.TokenTTL},
		{"SESSION_INACTIVITY_TIMEOUT", &cfg.Session.InactivityTimeout},
		{"SESSION_WARNING_LEAD", &cfg.Session.WarningLead},
		{"SESSION_MAX_DURATION", &cfg.Session.MaxDuration},
		{"SESSION_REFRESH_LEAD", &cfg.Session.RefreshLead},
	}
	for _, d := range durations {
		if err := parseDuration(getenv(d.key), d.target); err != nil {
			return Config{}, fmt.Errorf("%s: %w", d.key, err)
		}
	}
	if cfg.Session.WarningLead >= cfg.Session.InactivityTimeout {
		return Config{}, fmt.Errorf("SESSION_WARNING_LEAD must be shorter than SESSION_INACTIVITY_TIMEOUT")
	}

	return cfg, nil
}

// ParseRateLimit parses "<max>/<window>", e.g. "100/15m".
func ParseRateLimit(raw string) (RateLimit, error) {
	maxStr, windowStr, ok := strings.Cut(strings.TrimSpace(raw), "/")
	if !ok {
		return RateLimit{}, fmt.Errorf("expected <max>/<window>, got %q", raw)
	}
	limit, err := strconv.Atoi(maxStr)
	if err != nil || limit <= 0 {
		return RateLimit{}, fmt.Errorf("max must be a positive integer, got %q", maxStr)
	}
	window, err := time.ParseDuration(windowStr)
	if err != nil || window <= 0 {
		return RateLimit{}, fmt.Errorf("window must be a positive duration, got %q", windowStr)
	}
	return RateLimit{Max: limit, Window: window}, nil
}

func parseDuration(raw string, target *time.Duration) error {
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return err
	}
	if d <= 0 {
		return fmt.Errorf("must be positive, got %s", raw)
	}
	*target = d
	return nil
}

func parseLevel(raw string) (slog.Level, error) {
	if raw == "" {
		return slog.LevelInfo, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return level, nil
}

func stringOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
