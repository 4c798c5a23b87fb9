// Package runnertest provides a scripted runner.Runner for tests.
package runnertest

import (
	"context"
	"sync"

	"github.com/breeze-rmm/host-inventory/internal/runner"
)

// Stub answers commands from a fixed table keyed by the rendered command
// line. Commands missing from the table return runner.NotAvailable, the same
// as a command that failed on a real host.
type Stub struct {
	Outputs map[string]string

	mu    sync.Mutex
	calls []runner.Command
}

// NewStub returns a Stub answering from outputs.
func NewStub(outputs map[string]string) *Stub {
	return &Stub{Outputs: outputs}
}

// Run implements runner.Runner.
func (s *Stub) Run(_ context.Context, cmd runner.Command) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, cmd)
	if out, ok := s.Outputs[cmd.String()]; ok {
		return out
	}
	return runner.NotAvailable
}

// Calls returns the rendered command lines in the order they were run.
func (s *Stub) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines := make([]string, len(s.calls))
	for i, c := range s.calls {
		lines[i] = c.String()
	}
	return lines
}
