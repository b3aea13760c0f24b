package services

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/dbt-cloudrun/dto"
	"github.com/dbt-cloudrun/logging"
	"github.com/dbt-cloudrun/models"
)

// Step is one dbt command of a run
type Step struct {
	Name           string
	Command        []string
	FailureMessage string
}

// DailySteps is the daily run: check source freshness, then build
var DailySteps = []Step{
	{
		Name:           "source freshness",
		Command:        []string{"source", "freshness"},
		FailureMessage: "DBT source freshness failed",
	},
	{
		Name:           "build",
		Command:        []string{"build"},
		FailureMessage: "DBT build failed",
	},
}

// StepError is returned when dbt ran a step and reported failure
type StepError struct {
	Step   Step
	Result *models.InvocationResult
}

func (e *StepError) Error() string {
	return e.Step.FailureMessage
}

// DbtService runs a fixed list of dbt steps against a project, stopping at the first failure
type DbtService struct {
	runner      DbtRunner
	projectDir  string
	profilesDir string
	timeout     time.Duration
	steps       []Step
}

// NewDbtService creates a new DbtService running DailySteps
func NewDbtService(runner DbtRunner, projectDir, profilesDir string, timeout time.Duration) *DbtService {
	return &DbtService{
		runner:      runner,
		projectDir:  projectDir,
		profilesDir: profilesDir,
		timeout:     timeout,
		steps:       DailySteps,
	}
}

// Args builds the full dbt argument list for a step
func (s *DbtService) Args(step Step, target string) []string {
	args := make([]string, 0, len(step.Command)+6)
	args = append(args, step.Command...)
	return append(args,
		"--project-dir", s.projectDir,
		"--profiles-dir", s.profilesDir,
		"--target", target,
	)
}

// Run executes every step in order for target. It returns a *StepError when dbt
// reports a failure and any other error when dbt could not be run.
func (s *DbtService) Run(ctx context.Context, target string) (*models.RunResult, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	logger := logging.Log(ctx).With().Str("target", target).Logger()
	run := &models.RunResult{Target: target}

	for _, step := range s.steps {
		logger.Info().Msgf("Running: dbt %s", step.Name)

		result, err := s.runner.Invoke(ctx, s.Args(step, target))
		if err != nil {
			return run, eris.Wrapf(err, "dbt %s", step.Name)
		}

		run.Steps = append(run.Steps, models.StepResult{Step: step.Name, Result: result})
		if !result.Success {
			return run, &StepError{Step: step, Result: result}
		}
	}

	logger.Info().Msg(dto.DailySuccessMessage)
	return run, nil
}
