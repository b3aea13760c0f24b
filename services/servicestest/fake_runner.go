// Package servicestest provides a scripted dbt runner for tests.
package servicestest

import (
	"context"
	"sync"

	"github.com/dbt-cloudrun/models"
)

// FakeRunner records every invocation and answers from per-command outcomes.
// Commands are keyed by their first argument ("source", "build").
type FakeRunner struct {
	mu       sync.Mutex
	calls    [][]string
	failures map[string]bool
	errs     map[string]error
	// Block makes Invoke wait for the context to end before returning its error
	Block bool
}

// NewFakeRunner returns a runner on which every command succeeds
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{
		failures: map[string]bool{},
		errs:     map[string]error{},
	}
}

// Fail makes dbt report failure for command
func (f *FakeRunner) Fail(command string) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[command] = true
	return f
}

// Error makes command fail to run at all
func (f *FakeRunner) Error(command string, err error) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[command] = err
	return f
}

// Invoke implements services.DbtRunner
func (f *FakeRunner) Invoke(ctx context.Context, args []string) (*models.InvocationResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string(nil), args...))
	command := ""
	if len(args) > 0 {
		command = args[0]
	}
	err := f.errs[command]
	failed := f.failures[command]
	block := f.Block
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}

	result := &models.InvocationResult{Args: args, Success: !failed}
	if failed {
		result.ExitCode = 1
		result.Output = "ERROR: " + command + " failed"
	}
	return result, nil
}

// Calls returns a copy of every argument list seen so far
func (f *FakeRunner) Calls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.calls...)
}

// CallCount returns how often command was invoked
func (f *FakeRunner) CallCount(command string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, call := range f.calls {
		if len(call) > 0 && call[0] == command {
			n++
		}
	}
	return n
}
