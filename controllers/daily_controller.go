package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rotisserie/eris"

	"github.com/dbt-cloudrun/dto"
	"github.com/dbt-cloudrun/logging"
	"github.com/dbt-cloudrun/models"
	"github.com/dbt-cloudrun/services"
)

// DailyController triggers the daily dbt run
type DailyController struct {
	service *services.DbtService
}

// NewDailyController creates a new DailyController
func NewDailyController(service *services.DbtService) *DailyController {
	return &DailyController{service: service}
}

// RunDaily runs source freshness then build for the requested target
func (dc *DailyController) RunDaily(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		fail(c, eris.Wrap(err, "failed to read request body"))
		return
	}

	req, err := dto.ParseTargetRequest(body)
	if err != nil {
		fail(c, err)
		return
	}

	if err := req.Validate(); err != nil {
		fail(c, err)
		return
	}

	// The run outlives a disconnected caller; DBT_TIMEOUT bounds it instead.
	ctx := context.WithoutCancel(c.Request.Context())

	run, err := dc.service.Run(ctx, req.ResolvedTarget())
	logRun(ctx, run)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.DailySuccessMessage)
}

// logRun records how each step of a run went
func logRun(ctx context.Context, run *models.RunResult) {
	if run == nil {
		return
	}

	logger := logging.Log(ctx)
	for _, step := range run.Steps {
		if step.Result == nil {
			continue
		}
		logger.Info().
			Str("target", run.Target).
			Str("step", step.Step).
			Bool("success", step.Result.Success).
			Int("exit_code", step.Result.ExitCode).
			Dur("duration", step.Result.Duration).
			Msg("dbt step finished")
	}

	logger.Info().
		Str("target", run.Target).
		Int("steps", len(run.Steps)).
		Bool("succeeded", run.Succeeded()).
		Msg("Daily run finished")
}
