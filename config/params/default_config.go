package params

import (
	"time"
)

var defaultCoordinatorConfig = &Config{
	VerifyDeadline:          time.Hour,
	ContributionTimeout:     time.Hour,
	DynamicTimeoutThreshold: 100,
	TimeoutPenalty:          time.Hour,
	TimeoutSweepInterval:    time.Minute,
	WorkerStartupDeadline:   3 * time.Minute,
	WorkerPollInterval:      5 * time.Second,
	CommandPollInterval:     2 * time.Second,
	CommandDeadline:         10 * time.Minute,
	TranscriptSettleDelay:   3 * time.Second,
}

// DefaultConfig returns the default coordinator config.
func DefaultConfig() *Config {
	return defaultCoordinatorConfig
}
