package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dbt-cloudrun/config"
	"github.com/dbt-cloudrun/controllers"
	"github.com/dbt-cloudrun/logging"
	"github.com/dbt-cloudrun/middleware"
	"github.com/dbt-cloudrun/routes"
	"github.com/dbt-cloudrun/services"
	"github.com/dbt-cloudrun/templates"
)

const shutdownTimeout = 10 * time.Second

func main() {
	config.LoadEnv()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	logging.Setup(cfg)
	gin.SetMode(cfg.GinMode)

	runner, err := services.NewDbtRunner(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize dbt runner")
	}
	dbtService := services.NewDbtService(runner, cfg.ProjectDir, cfg.ProfilesDir, cfg.Timeout)

	tmpl, err := templates.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load templates")
	}

	// Initialize router
	router := gin.New()
	router.Use(logging.RequestLogger(cfg.GoogleCloudProject), middleware.Recovery())
	routes.SetupRoutes(router, cfg, tmpl, controllers.NewDailyController(dbtService))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().
			Str("port", cfg.Port).
			Str("runner", cfg.Runner).
			Bool("auth", cfg.AuthEnabled()).
			Msg("dbt runner starting")
		if !cfg.AuthEnabled() {
			log.Warn().Msg("POST /daily is unauthenticated, set API_KEY_HASH or JWT_SECRET to protect it")
		}

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}
}
