package config

import (
	"net/http"
	"strings"
	"time"
)

const (
	DefaultTokenTTL = 24 * time.Hour
	HeaderName      = "X-CSRF-Token"
	CookieName      = "csrf-token"
)

// Config holds CSRF guard configuration.
type Config struct {
	TokenTTL time.Duration
	// ProtectedMethods are validated; every other method passes through.
	ProtectedMethods map[string]bool
	// ExemptPaths skip validation. An entry ending in "/*" matches the
	// prefix before it.
	ExemptPaths []string
	// SecureCookie sets the Secure attribute on the token cookie.
	SecureCookie bool
}

func DefaultConfig() *Config {
	return &Config{
		TokenTTL: DefaultTokenTTL,
		ProtectedMethods: map[string]bool{
			http.MethodPost:   true,
			http.MethodPut:    true,
			http.MethodPatch:  true,
			http.MethodDelete: true,
		},
	}
}

// RequiresToken reports whether a request with method and path must carry
// a valid token.
func (c *Config) RequiresToken(method, path string) bool {
	if !c.ProtectedMethods[method] {
		return false
	}
	for _, exempt := range c.ExemptPaths {
		if prefix, ok := strings.CutSuffix(exempt, "/*"); ok {
			if path == prefix || strings.HasPrefix(path, prefix+"/") {
				return false
			}
			continue
		}
		if path == exempt {
			return false
		}
	}
	return true
}
