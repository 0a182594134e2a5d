package scheduler

import (
	"time"

	"github.com/smallbiznis/invoicerecovery/internal/config"
)

// Config controls sweep cadence, batch sizes and fan-out.
type Config struct {
	RunInterval time.Duration
	BatchSize   int
	Concurrency int
	JobTimeout  time.Duration
	LockWait    time.Duration
}

func DefaultConfig() Config {
	return Config{
		RunInterval: time.Minute,
		BatchSize:   50,
		Concurrency: 4,
		JobTimeout:  5 * time.Minute,
		LockWait:    2 * time.Second,
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		RunInterval: cfg.Scheduler.RunInterval,
		BatchSize:   cfg.Scheduler.BatchSize,
		Concurrency: cfg.Scheduler.Concurrency,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.Concurrency <= 0 {
		c.Concurrency = defaults.Concurrency
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.LockWait <= 0 {
		c.LockWait = defaults.LockWait
	}
	return c
}
