package routes

import (
	"html/template"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/dbt-cloudrun/config"
	"github.com/dbt-cloudrun/controllers"
	"github.com/dbt-cloudrun/middleware"
)

// SetupRoutes registers the status page and the daily trigger
func SetupRoutes(router *gin.Engine, cfg *config.Config, tmpl *template.Template, daily *controllers.DailyController) {
	router.Use(cors.New(corsConfig(cfg)))
	router.Use(middleware.SecureHeaders(cfg.GinMode == gin.DebugMode))

	router.SetHTMLTemplate(tmpl)

	// Public routes
	router.GET("/", controllers.Status)

	// Trigger, guarded when an API key or JWT secret is configured
	router.POST("/daily", middleware.AuthMiddleware(cfg), daily.RunDaily)
}

func corsConfig(cfg *config.Config) cors.Config {
	corsCfg := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", "X-API-Key"},
	}

	if len(cfg.CORSAllowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.CORSAllowedOrigins
		corsCfg.AllowCredentials = true
	}

	return corsCfg
}
