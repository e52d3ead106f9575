package config

import (
	"log/slog"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envFrom(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv(envFrom(nil))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, devJWTSecret, cfg.Auth.JWTSecret)
	assert.Equal(t, 24*time.Hour, cfg.CSRF.TokenTTL)
	assert.Equal(t, SessionConfig{
		InactivityTimeout: 2 * time.Hour,
		WarningLead:       5 * time.Minute,
		MaxDuration:       8 * time.Hour,
		RefreshLead:       10 * time.Minute,
	}, cfg.Session)
	assert.Empty(t, cfg.RateLimits)
	assert.Empty(t, cfg.TrustedProxies)
	assert.False(t, cfg.IsProduction())
}

func TestFromEnvOverrides(t *testing.T) {
	cfg, err := FromEnv(envFrom(map[string]string{
		"POLLSTER_ADDR":              ":9090",
		"ENVIRONMENT":                "production",
		"LOG_LEVEL":                  "debug",
		"AUTH_JWT_SECRET":            "s3cret",
		"AUTH_URL":                   "https://auth.example.com/",
		"CORS_ALLOWED_ORIGINS":       "https://polls.example.com, https://www.polls.example.com",
		"TRUSTED_PROXIES":            "10.0.0.0/8",
		"RATE_LIMIT_CREATE_POLL":     "5/30m",
		"SESSION_INACTIVITY_TIMEOUT": "1h",
	}))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "https://auth.example.com", cfg.Auth.URL)
	assert.Equal(t, []string{"https://polls.example.com", "https://www.polls.example.com"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")}, cfg.TrustedProxies)
	assert.Equal(t, RateLimit{Max: 5, Window: 30 * time.Minute}, cfg.RateLimits["create_poll"])
	assert.Equal(t, time.Hour, cfg.Session.InactivityTimeout)
}

func TestFromEnvRejectsInvalidValues(t *testing.T) {
	cases := map[string]map[string]string{
		"missing secret in production": {"ENVIRONMENT": "production"},
		"bad log level":                {"LOG_LEVEL": "loud"},
		"bad rate limit":               {"RATE_LIMIT_VOTING": "fifty per minute"},
		"zero rate limit":              {"RATE_LIMIT_VOTING": "0/15m"},
		"bad duration":                 {"CSRF_TOKEN_TTL": "a day"},
		"negative duration":            {"SESSION_MAX_DURATION": "-1h"},
		"bad proxy":                    {"TRUSTED_PROXIES": "10.0.0.0/99"},
		"warning longer than timeout":  {"SESSION_WARNING_LEAD": "3h"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := FromEnv(envFrom(env))
			assert.Error(t, err)
		})
	}
}

func TestParseRateLimit(t *testing.T) {
	limit, err := ParseRateLimit("100/15m")
	require.NoError(t, err)
	assert.Equal(t, RateLimit{Max: 100, Window: 15 * time.Minute}, limit)

	_, err = ParseRateLimit("100")
	assert.Error(t, err)
}
