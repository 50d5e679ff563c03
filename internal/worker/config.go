// Package worker runs the gateway's background jobs: bounded session refresh
// pools, the incident-change subscriber and cron schedules.
package worker

import (
	"time"
)

// RefreshConfig holds configuration for a session refresh job.
type RefreshConfig struct {
	// Concurrency is the number of sessions refreshed at once.
	// Default: 4
	Concurrency int

	// Timeout bounds each session refresh.
	// Default: 20 seconds
	Timeout time.Duration
}

// DefaultRefreshConfig returns the default refresh configuration.
func DefaultRefreshConfig() RefreshConfig {
	return RefreshConfig{
		Concurrency: 4,
		Timeout:     20 * time.Second,
	}
}

func (c RefreshConfig) withDefaults() RefreshConfig {
	d := DefaultRefreshConfig()
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	return c
}

// SubscriberDefaults are the Pub/Sub receive settings used when a
// PubSubConfig leaves them unset.
const (
	DefaultMaxOutstandingMessages = 10
	DefaultMaxExtension           = 5 * time.Minute
)
