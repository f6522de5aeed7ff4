// Package testing provides a scripted worker pool for coordinator tests.
package testing

import (
	"context"
	"sync"

	"github.com/cryptocole01/p0tion/coordinator/vm"
	"github.com/pkg/errors"
)

// MockPool implements vm.Pool with scripted responses and records every
// lifecycle call for later inspection.
type MockPool struct {
	mu sync.Mutex

	// Started and Stopped collect instance ids in call order.
	Started []string
	Stopped []string
	// Commands collects every submitted script.
	Commands [][]string

	// RunningAfter is how many IsRunning probes report false before the
	// worker counts as up. NeverRunning keeps it down forever.
	RunningAfter int
	NeverRunning bool
	probes       int

	// CommandID is returned by RunCommand. Defaults to "command-1".
	CommandID string
	// Outputs is the sequence of observations FetchOutput walks through;
	// the last entry repeats. An empty sequence reports instant success
	// with empty output.
	Outputs []vm.CommandOutput
	fetches int

	StartErr error
	ProbeErr error
	RunErr   error
	FetchErr error
	StopErr  error
}

var _ vm.Pool = (*MockPool)(nil)

// NewMockPool returns a pool whose worker is immediately running and whose
// commands succeed with the given combined output.
func NewMockPool(output string) *MockPool {
	return &MockPool{
		Outputs: []vm.CommandOutput{{State: vm.StateSuccess, Output: output}},
	}
}

func (m *MockPool) Start(_ context.Context, instanceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.StartErr != nil {
		return m.StartErr
	}
	m.Started = append(m.Started, instanceID)
	return nil
}

func (m *MockPool) IsRunning(_ context.Context, _ string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ProbeErr != nil {
		return false, m.ProbeErr
	}
	if m.NeverRunning {
		return false, nil
	}
	m.probes++
	return m.probes > m.RunningAfter, nil
}

func (m *MockPool) RunCommand(_ context.Context, _ string, commands []string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.RunErr != nil {
		return "", m.RunErr
	}
	m.Commands = append(m.Commands, commands)
	if m.CommandID == "" {
		return "command-1", nil
	}
	return m.CommandID, nil
}

func (m *MockPool) FetchOutput(_ context.Context, commandID, _ string) (*vm.CommandOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FetchErr != nil {
		return nil, m.FetchErr
	}
	if commandID == "" {
		return nil, errors.New("no command id")
	}
	if len(m.Outputs) == 0 {
		return &vm.CommandOutput{State: vm.StateSuccess}, nil
	}
	out := m.Outputs[m.fetches]
	if m.fetches < len(m.Outputs)-1 {
		m.fetches++
	}
	return &out, nil
}

func (m *MockPool) Stop(_ context.Context, instanceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Stopped = append(m.Stopped, instanceID)
	return m.StopErr
}
