package services

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/dbt-cloudrun/config"
	"github.com/dbt-cloudrun/lib/kubernetes"
	"github.com/dbt-cloudrun/logging"
	"github.com/dbt-cloudrun/models"
)

// DbtRunner invokes dbt with a full argument list. A returned error means dbt
// could not be run at all; a dbt-reported failure comes back as Success=false.
type DbtRunner interface {
	Invoke(ctx context.Context, args []string) (*models.InvocationResult, error)
}

// NewDbtRunner builds the runner selected by cfg.Runner
func NewDbtRunner(cfg *config.Config) (DbtRunner, error) {
	switch cfg.Runner {
	case config.RunnerExec:
		runner := NewExecRunner(cfg.Binary)
		runner.Dir = cfg.WorkDir
		return runner, nil
	case config.RunnerKubernetes:
		client, err := kubernetes.NewClientWithOptions(kubernetes.ProxyOptions{Host: cfg.K8sProxyURL})
		if err != nil {
			return nil, err
		}
		return NewJobRunner(client, JobRunnerOptions{
			Namespace:      cfg.JobNamespace,
			Image:          cfg.JobImage,
			Deadline:       cfg.JobDeadline,
			ServiceAccount: cfg.JobServiceAccount,
			EnvSecret:      cfg.JobEnvSecret,
		}), nil
	default:
		return nil, eris.Errorf("unknown dbt runner %q", cfg.Runner)
	}
}

// ExecRunner runs the dbt executable installed next to the service
type ExecRunner struct {
	Binary string
	// Dir is the working directory for dbt; empty means the service's own
	Dir string
}

// NewExecRunner creates a new ExecRunner instance
func NewExecRunner(binary string) *ExecRunner {
	return &ExecRunner{Binary: binary}
}

// Invoke runs dbt and waits for it to exit
func (r *ExecRunner) Invoke(ctx context.Context, args []string) (*models.InvocationResult, error) {
	logger := logging.Log(ctx)
	name := r.Binary
	if len(args) > 0 {
		name += " " + args[0]
	}
	logger.Debug().Str("command", r.Binary+" "+strings.Join(args, " ")).Msg("Executing dbt")

	start := time.Now()
	cmd := exec.CommandContext(ctx, r.Binary, args...)
	cmd.Dir = r.Dir
	output, err := cmd.CombinedOutput()

	result := &models.InvocationResult{
		Args:     args,
		Output:   string(output),
		Duration: time.Since(start),
	}

	if err != nil {
		if ctx.Err() != nil {
			return result, eris.Wrapf(ctx.Err(), "%s was interrupted", name)
		}

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			logger.Warn().
				Int("exitCode", result.ExitCode).
				Str("output", result.Output).
				Msgf("%s reported failure", name)
			return result, nil
		}

		return result, eris.Wrapf(err, "failed to run %s", r.Binary)
	}

	result.Success = true
	logger.Info().
		Dur("duration", result.Duration).
		Str("output", result.Output).
		Msgf("%s finished", name)

	return result, nil
}
