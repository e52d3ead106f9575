package config

import (
	"time"

	"pollster/internal/ratelimit/models"
)

// DefaultSweepProbability is the chance that a check also sweeps expired buckets.
const DefaultSweepProbability = 0.01

// Config holds rate limiting configuration.
type Config struct {
	Limits           map[models.LimitClass]models.Limit
	SweepProbability float64
}

// DefaultConfig returns the per-class defaults.
func DefaultConfig() *Config {
	return &Config{
		Limits: map[models.LimitClass]models.Limit{
			models.ClassGeneric:    {MaxRequests: 100, Window: 15 * time.Minute},
			models.ClassCreatePoll: {MaxRequests: 10, Window: time.Hour},
			models.ClassVoting:     {MaxRequests: 50, Window: 15 * time.Minute},
			models.ClassAuth:       {MaxRequests: 20, Window: 15 * time.Minute},
		},
		SweepProbability: DefaultSweepProbability,
	}
}

// Override replaces the limit for a class.
func (c *Config) Override(class models.LimitClass, limit models.Limit) {
	c.Limits[class] = limit
}

// LimitFor returns the limit for class, falling back to the generic limit.
func (c *Config) LimitFor(class models.LimitClass) models.Limit {
	if l, ok := c.Limits[class]; ok {
		return l
	}
	return c.Limits[models.ClassGeneric]
}
