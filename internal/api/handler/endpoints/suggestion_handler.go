package endpoints

import (
	"net/http"

	"studio"
	"studio/internal/api/handler/middleware"
	"studio/internal/api/handler/request"
	"studio/internal/api/handler/response"
	"studio/internal/api/service"
	"studio/pkg"

	"github.com/gin-contrib/graceful"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type suggestionHandler struct {
	statsService *service.StatsService
	config       studio.AppConfig
	logger       zerolog.Logger
}

func newSuggestionHandler() *suggestionHandler {
	return &suggestionHandler{
		statsService: service.NewStatsService(),
		config:       studio.GetConfig(),
		logger:       studio.Logger,
	}
}

// SuggestionHandler serves parameter usage statistics.
func SuggestionHandler(router *graceful.Graceful) {
	h := newSuggestionHandler()

	routes := router.Group("/api/suggestions")
	routes.Use(middleware.AuthMiddleware(h.config))
	{
		routes.GET("/recommend", h.recommend)
		routes.POST("/report", h.report)
	}
}

func (slf *suggestionHandler) recommend(c *gin.Context) {
	var req request.Recommend
	if err := pkg.ParseQueryAndValidate(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, response.APIError{Message: err.Error()})
		return
	}

	stats, err := slf.statsService.Recommend(c.Request.Context(), req.ClassType, req.Limit)
	if err != nil {
		respondError(c, slf.logger, err, "Failed to load recommendations")
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (slf *suggestionHandler) report(c *gin.Context) {
	var req request.ReportUsage
	if err := pkg.ParseAndValidate(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, response.APIError{Message: err.Error()})
		return
	}

	if err := slf.statsService.Report(c.Request.Context(), req.Items); err != nil {
		respondError(c, slf.logger, err, "Failed to record usage")
		return
	}
	c.JSON(http.StatusOK, gin.H{"recorded": len(req.Items)})
}
