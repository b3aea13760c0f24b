package models

import "time"

// InvocationResult holds what one dbt invocation reported
type InvocationResult struct {
	Args     []string      `json:"args"`
	Success  bool          `json:"success"`
	ExitCode int           `json:"exitCode"`
	Output   string        `json:"output"`
	Duration time.Duration `json:"duration"`
}

// StepResult pairs a pipeline step with what dbt reported for it
type StepResult struct {
	Step   string            `json:"step"`
	Result *InvocationResult `json:"result"`
}

// RunResult is the outcome of one /daily call
type RunResult struct {
	Target string       `json:"target"`
	Steps  []StepResult `json:"steps"`
}

// Succeeded reports whether at least one step ran and every step passed
func (r *RunResult) Succeeded() bool {
	if len(r.Steps) == 0 {
		return false
	}
	for _, step := range r.Steps {
		if step.Result == nil || !step.Result.Success {
			return false
		}
	}
	return true
}
