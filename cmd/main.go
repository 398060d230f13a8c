package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"studio"
	"studio/internal/api/handler/endpoints"
	"studio/internal/api/models"
	"studio/internal/api/service"
	"studio/pkg"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/graceful"
	"github.com/gin-gonic/gin"
)

func main() {
	studio.InitConfig(".env")
	gin.SetMode(gin.ReleaseMode)

	if studio.GetConfig().Mode == "dev" {
		if err := studio.DB.AutoMigrate(
			&models.Asset{},
			&models.NodeParameterStat{},
		); err != nil {
			studio.Logger.Fatal().Err(err).Msg("Failed to migrate database")
		}
		studio.Logger.Info().Msg("Database migrated successfully")
		gin.SetMode(gin.DebugMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	router, err := graceful.Default(graceful.WithAddr(studio.GetConfig().ApiPort))
	pkg.AssertNoError(err)
	defer stop()
	defer router.Close()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	workflows := service.NewWorkflowService()
	defer workflows.Shutdown()
	go closeIdleSessions(ctx, workflows, studio.GetConfig().Sessions.IdleTimeout)

	initAPI(router, workflows)

	studio.Logger.Debug().Msgf("Starting studio API on port %s", studio.GetConfig().ApiPort)
	if err = router.RunWithContext(ctx); err != nil && !errors.Is(err, context.Canceled) {
		studio.Logger.Fatal().Msg(err.Error())
		panic(err)
	}
}

func initAPI(router *graceful.Graceful, workflows *service.WorkflowService) {
	endpoints.AssetHandler(router)
	endpoints.SuggestionHandler(router)
	endpoints.WorkflowHandler(router, workflows)
}

func closeIdleSessions(ctx context.Context, workflows *service.WorkflowService, maxIdle time.Duration) {
	if maxIdle <= 0 {
		return
	}
	ticker := time.NewTicker(max(maxIdle/4, time.Second))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := workflows.CloseIdle(maxIdle); n > 0 {
				studio.Logger.Info().Int("closed", n).Msg("Closed idle workflow sessions")
			}
		}
	}
}
