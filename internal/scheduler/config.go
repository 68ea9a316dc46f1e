package scheduler

import (
	"time"

	appconfig "github.com/smallbiznis/storefront/internal/config"
)

// Config controls sweep cadence and per-run limits.
type Config struct {
	RunInterval  time.Duration
	SweepTimeout time.Duration
	LockTTL      time.Duration

	// LowStockThreshold gates the low stock sweep. Zero disables it.
	LowStockThreshold int
}

func DefaultConfig() Config {
	return Config{
		RunInterval:  time.Minute,
		SweepTimeout: 30 * time.Second,
		LockTTL:      2 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.SweepTimeout <= 0 {
		c.SweepTimeout = defaults.SweepTimeout
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	return c
}

func ProvideConfig(cfg appconfig.Config) Config {
	c := Config{
		RunInterval:       time.Duration(cfg.SweepIntervalSeconds) * time.Second,
		LowStockThreshold: cfg.LowStockThreshold,
	}
	return c.withDefaults()
}
