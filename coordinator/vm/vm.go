// Package vm defines the worker pool executing contribution verification
// commands on isolated compute instances. One worker is shared per circuit
// and identified by the instance id persisted on the circuit document.
package vm

import (
	"context"
)

// CommandState is the lifecycle phase of a command invocation on a worker.
type CommandState string

const (
	StatePending    CommandState = "PENDING"
	StateInProgress CommandState = "IN_PROGRESS"
	StateSuccess    CommandState = "SUCCESS"
	StateFailed     CommandState = "FAILED"
)

// Done reports whether the command has reached a terminal state.
func (s CommandState) Done() bool {
	return s == StateSuccess || s == StateFailed
}

// CommandOutput is one observation of a command invocation: its current
// state and the combined stdout/stderr captured so far.
type CommandOutput struct {
	State  CommandState
	Output string
}

// Pool controls verification workers.
type Pool interface {
	// Start powers on the worker.
	Start(ctx context.Context, instanceID string) error
	// IsRunning probes whether the worker is up and accepting commands.
	IsRunning(ctx context.Context, instanceID string) (bool, error)
	// RunCommand submits an ordered shell script to the worker and returns
	// the command id to poll.
	RunCommand(ctx context.Context, instanceID string, commands []string) (string, error)
	// FetchOutput retrieves the invocation state and combined output of a
	// previously submitted command.
	FetchOutput(ctx context.Context, commandID, instanceID string) (*CommandOutput, error)
	// Stop powers off the worker.
	Stop(ctx context.Context, instanceID string) error
}
