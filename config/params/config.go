// Package params defines the coordination constants shared by every
// coordinator service: timeout windows, verification command deadlines and
// artifact URL expiry. The active config is process-global and replaced
// wholesale via OverrideCoordinatorConfig.
package params

import (
	"time"
)

// Config contains the coordination constants of the ceremony coordinator.
type Config struct {
	// VerifyDeadline bounds a whole verification handler invocation. Large
	// circuits verify slowly, so the default is generous.
	VerifyDeadline time.Duration
	// ContributionTimeout is the fixed window a contributor may hold a
	// circuit before the sweeper times it out. It applies while the circuit
	// has no rolling full-contribution average yet.
	ContributionTimeout time.Duration
	// DynamicTimeoutThreshold is the percentage slack granted on top of a
	// circuit's rolling full-contribution average before the current
	// contributor counts as blocking.
	DynamicTimeoutThreshold int64
	// TimeoutPenalty is how long a timed out participant stays barred from
	// resuming.
	TimeoutPenalty time.Duration
	// TimeoutSweepInterval is how often open ceremonies are scanned for
	// blocking contributors.
	TimeoutSweepInterval time.Duration
	// WorkerStartupDeadline bounds how long a verification waits for its
	// worker to come online before failing the contribution.
	WorkerStartupDeadline time.Duration
	// WorkerPollInterval is how often a starting worker is probed for
	// readiness.
	WorkerPollInterval time.Duration
	// CommandPollInterval is how often an in-flight verification command is
	// polled for completion.
	CommandPollInterval time.Duration
	// CommandDeadline bounds a single verification command. A command still
	// pending past the deadline fails the contribution.
	CommandDeadline time.Duration
	// TranscriptSettleDelay is how long the valid path waits for the
	// uploaded transcript to land before recording the contribution.
	TranscriptSettleDelay time.Duration
}
