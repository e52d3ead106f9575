package config

import (
	"fmt"
	"time"
)

const (
	DefaultInactivityTimeout = 2 * time.Hour
	DefaultWarningLead       = 5 * time.Minute
	DefaultMaxDuration       = 8 * time.Hour
	DefaultRefreshLead       = 10 * time.Minute
)

// Config holds session guard timings.
type Config struct {
	// InactivityTimeout ends a session this long after its last activity.
	InactivityTimeout time.Duration
	// WarningLead is how long before the inactivity cutoff the one-time
	// warning becomes due.
	WarningLead time.Duration
	// MaxDuration caps a session regardless of activity.
	MaxDuration time.Duration
	// RefreshLead signals a credential refresh when the credential expires
	// within this window.
	RefreshLead time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		InactivityTimeout: DefaultInactivityTimeout,
		WarningLead:       DefaultWarningLead,
		MaxDuration:       DefaultMaxDuration,
		RefreshLead:       DefaultRefreshLead,
	}
}

func (c *Config) Validate() error {
	if c.InactivityTimeout <= 0 || c.MaxDuration <= 0 || c.RefreshLead < 0 || c.WarningLead < 0 {
		return fmt.Errorf("session timings must be positive")
	}
	if c.WarningLead >= c.InactivityTimeout {
		return fmt.Errorf("warning lead %s must be shorter than inactivity timeout %s", c.WarningLead, c.InactivityTimeout)
	}
	return nil
}
