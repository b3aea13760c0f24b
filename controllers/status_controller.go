package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dbt-cloudrun/config"
	"github.com/dbt-cloudrun/logging"
)

const (
	StatusMessage   = "It's running!"
	UnknownService  = "Unknown service"
	UnknownRevision = "Unknown revision"
)

// Status renders the index page with the Cloud Run service and revision
func Status(c *gin.Context) {
	service := config.GetEnv("K_SERVICE", UnknownService)
	revision := config.GetEnv("K_REVISION", UnknownRevision)

	logging.Log(c.Request.Context()).Info().Msgf("Service: %s, Revision: %s", service, revision)

	c.HTML(http.StatusOK, "index.html", gin.H{
		"message":  StatusMessage,
		"Service":  service,
		"Revision": revision,
	})
}
