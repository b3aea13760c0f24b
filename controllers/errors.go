package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dbt-cloudrun/dto"
	"github.com/dbt-cloudrun/logging"
	"github.com/dbt-cloudrun/services"
)

// fail logs err and answers with a 500 carrying its message
func fail(c *gin.Context, err error) {
	logger := logging.Log(c.Request.Context())

	var stepErr *services.StepError
	if errors.As(err, &stepErr) {
		event := logger.Error().Str("step", stepErr.Step.Name)
		if stepErr.Result != nil {
			event = event.Int("exit_code", stepErr.Result.ExitCode).Str("output", stepErr.Result.Output)
		}
		event.Msg(stepErr.Error())
	} else {
		logger.Error().Err(err).Msg("Daily run failed")
	}

	c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Detail: err.Error()})
}
