package endpoints

import (
	"net/http"

	"studio"
	"studio/internal/api/handler/middleware"
	"studio/internal/api/handler/response"
	"studio/internal/api/models"
	"studio/internal/api/service"

	"github.com/gin-contrib/graceful"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type assetHandler struct {
	assetService *service.AssetService
	config       studio.AppConfig
	logger       zerolog.Logger
}

func newAssetHandler() *assetHandler {
	return &assetHandler{
		assetService: service.NewAssetService(),
		config:       studio.GetConfig(),
		logger:       studio.Logger,
	}
}

// AssetHandler exposes the versioned asset store. Paths keep the trailing
// slash remote asset clients use.
func AssetHandler(router *graceful.Graceful) {
	h := newAssetHandler()

	routes := router.Group("/api/assets")
	routes.Use(middleware.AuthMiddleware(h.config))
	{
		routes.GET("/", h.list)
		routes.GET("/:id", h.get)
		routes.POST("/", middleware.RequireRole(middleware.RoleEditor, middleware.RoleAdmin), h.create)
		routes.PUT("/:id", middleware.RequireRole(middleware.RoleEditor, middleware.RoleAdmin), h.update)
	}
}

func (slf *assetHandler) list(c *gin.Context) {
	assets, err := slf.assetService.List(c.Request.Context(), models.AssetType(c.Query("type")))
	if err != nil {
		respondError(c, slf.logger, err, "Failed to list assets")
		return
	}
	c.JSON(http.StatusOK, assets)
}

func (slf *assetHandler) get(c *gin.Context) {
	asset, err := slf.assetService.Get(c.Request.Context(), models.AssetID(c.Param("id")))
	if err != nil {
		respondError(c, slf.logger, err, "Failed to get asset")
		return
	}
	c.JSON(http.StatusOK, asset)
}

func (slf *assetHandler) create(c *gin.Context) {
	var req models.AssetEnvelope
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.APIError{Message: err.Error()})
		return
	}

	created, err := slf.assetService.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, slf.logger, err, "Failed to create asset")
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (slf *assetHandler) update(c *gin.Context) {
	var req models.AssetEnvelope
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.APIError{Message: err.Error()})
		return
	}

	updated, err := slf.assetService.Update(c.Request.Context(), models.AssetID(c.Param("id")), req)
	if err != nil {
		respondError(c, slf.logger, err, "Failed to update asset")
		return
	}
	c.JSON(http.StatusOK, updated)
}
