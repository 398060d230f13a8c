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

type workflowHandler struct {
	workflowService *service.WorkflowService
	config          studio.AppConfig
	logger          zerolog.Logger
}

func newWorkflowHandler(workflows *service.WorkflowService, config studio.AppConfig, logger zerolog.Logger) *workflowHandler {
	return &workflowHandler{
		workflowService: workflows,
		config:          config,
		logger:          logger,
	}
}

// WorkflowHandler serves the workflow editor: one session per open document.
func WorkflowHandler(router *graceful.Graceful, workflows *service.WorkflowService) {
	h := newWorkflowHandler(workflows, studio.GetConfig(), studio.Logger)

	routes := router.Group("/api/v1/workflows/sessions")
	routes.Use(middleware.AuthMiddleware(h.config))
	h.register(routes)
}

func (slf *workflowHandler) register(routes *gin.RouterGroup) {
	routes.POST("", slf.open)
	routes.GET("/:id", slf.get)
	routes.DELETE("/:id", slf.close)
	routes.GET("/:id/warnings", slf.warnings)

	// Suggestions
	routes.GET("/:id/suggestions", slf.suggestAll)
	routes.GET("/:id/nodes/:nodeId/suggestions", slf.suggestNode)

	// Parameter table
	routes.GET("/:id/nodes/:nodeId/parameters", slf.nodeParameters)
	routes.PUT("/:id/nodes/:nodeId/parameters", slf.editNode)
	routes.POST("/:id/parameters", slf.bind)
	routes.PATCH("/:id/parameters/:name", slf.rename)
	routes.DELETE("/:id/parameters/:name", slf.unbind)

	// Document lifecycle
	routes.POST("/:id/replace", slf.replace)
	routes.POST("/:id/save", slf.save)
	routes.POST("/:id/instantiate", slf.instantiate)
}

func (slf *workflowHandler) open(c *gin.Context) {
	var req request.OpenSession
	if err := pkg.ParseAndValidate(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, response.APIError{Message: err.Error()})
		return
	}

	var (
		view service.SessionView
		err  error
	)
	if req.AssetID != "" {
		view, err = slf.workflowService.Open(c.Request.Context(), req.AssetID)
	} else {
		view, err = slf.workflowService.New(req.Name, req.WorkflowJSON)
	}
	if err != nil {
		respondError(c, slf.logger, err, "Failed to open workflow")
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (slf *workflowHandler) get(c *gin.Context) {
	view, err := slf.workflowService.Get(c.Param("id"))
	if err != nil {
		respondError(c, slf.logger, err, "Failed to get session")
		return
	}
	c.JSON(http.StatusOK, view)
}

func (slf *workflowHandler) close(c *gin.Context) {
	if err := slf.workflowService.Close(c.Param("id")); err != nil {
		respondError(c, slf.logger, err, "Failed to close session")
		return
	}
	c.Status(http.StatusNoContent)
}

func (slf *workflowHandler) warnings(c *gin.Context) {
	warnings, err := slf.workflowService.Warnings(c.Param("id"))
	if err != nil {
		respondError(c, slf.logger, err, "Failed to get warnings")
		return
	}
	c.JSON(http.StatusOK, response.Warnings{Warnings: warnings})
}

func (slf *workflowHandler) suggestAll(c *gin.Context) {
	suggestions, err := slf.workflowService.SuggestAll(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, slf.logger, err, "Failed to compute suggestions")
		return
	}
	c.JSON(http.StatusOK, suggestions)
}

// suggestNode returns what the node edit dialog needs: the current bindings
// and the proposals seeded by them.
func (slf *workflowHandler) suggestNode(c *gin.Context) {
	sessionID, nodeID := c.Param("id"), c.Param("nodeId")

	bindings, err := slf.workflowService.NodeBindings(sessionID, nodeID)
	if err != nil {
		respondError(c, slf.logger, err, "Failed to get node parameters")
		return
	}
	suggestions, err := slf.workflowService.Suggest(c.Request.Context(), sessionID, nodeID)
	if err != nil {
		respondError(c, slf.logger, err, "Failed to compute suggestions")
		return
	}
	c.JSON(http.StatusOK, response.NodeSuggestions{NodeID: nodeID, Parameters: bindings, Suggestions: suggestions})
}

func (slf *workflowHandler) nodeParameters(c *gin.Context) {
	nodeID := c.Param("nodeId")
	bindings, err := slf.workflowService.NodeBindings(c.Param("id"), nodeID)
	if err != nil {
		respondError(c, slf.logger, err, "Failed to get node parameters")
		return
	}
	c.JSON(http.StatusOK, response.NodeParameters{NodeID: nodeID, Parameters: bindings})
}

func (slf *workflowHandler) editNode(c *gin.Context) {
	var req request.EditNodeParameters
	if err := pkg.ParseAndValidate(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, response.APIError{Message: err.Error()})
		return
	}

	sessionID := c.Param("id")
	if err := slf.workflowService.EditNode(sessionID, c.Param("nodeId"), req.Parameters); err != nil {
		respondError(c, slf.logger, err, "Failed to update node parameters")
		return
	}
	slf.respondView(c, sessionID)
}

func (slf *workflowHandler) bind(c *gin.Context) {
	var req request.BindParameter
	if err := pkg.ParseAndValidate(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, response.APIError{Message: err.Error()})
		return
	}

	sessionID := c.Param("id")
	if err := slf.workflowService.Bind(sessionID, req.Name, req.NodeID, req.Field); err != nil {
		respondError(c, slf.logger, err, "Failed to bind parameter")
		return
	}
	slf.respondView(c, sessionID)
}

func (slf *workflowHandler) rename(c *gin.Context) {
	var req request.RenameParameter
	if err := pkg.ParseAndValidate(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, response.APIError{Message: err.Error()})
		return
	}

	sessionID := c.Param("id")
	if err := slf.workflowService.Rename(sessionID, c.Param("name"), req.NewName); err != nil {
		respondError(c, slf.logger, err, "Failed to rename parameter")
		return
	}
	slf.respondView(c, sessionID)
}

func (slf *workflowHandler) unbind(c *gin.Context) {
	sessionID := c.Param("id")
	if err := slf.workflowService.Unbind(sessionID, c.Param("name")); err != nil {
		respondError(c, slf.logger, err, "Failed to remove parameter")
		return
	}
	slf.respondView(c, sessionID)
}

func (slf *workflowHandler) replace(c *gin.Context) {
	var req request.ReplaceDocument
	if err := pkg.ParseAndValidate(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, response.APIError{Message: err.Error()})
		return
	}

	view, err := slf.workflowService.Replace(c.Request.Context(), c.Param("id"), req.AssetID)
	if err != nil {
		respondError(c, slf.logger, err, "Failed to load workflow")
		return
	}
	c.JSON(http.StatusOK, view)
}

func (slf *workflowHandler) save(c *gin.Context) {
	var req request.SaveSession
	if c.Request.ContentLength != 0 {
		if err := pkg.ParseAndValidate(c, &req); err != nil {
			c.JSON(http.StatusBadRequest, response.APIError{Message: err.Error()})
			return
		}
	}

	result, err := slf.workflowService.Save(c.Request.Context(), c.Param("id"), req.Name)
	if err != nil {
		respondError(c, slf.logger, err, "Failed to save workflow")
		return
	}
	c.JSON(http.StatusOK, result)
}

func (slf *workflowHandler) instantiate(c *gin.Context) {
	var req request.Instantiate
	if err := pkg.ParseAndValidate(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, response.APIError{Message: err.Error()})
		return
	}

	doc, err := slf.workflowService.Instantiate(c.Param("id"), req.Values)
	if err != nil {
		respondError(c, slf.logger, err, "Failed to instantiate workflow")
		return
	}
	c.JSON(http.StatusOK, response.Instantiated{WorkflowJSON: doc})
}

func (slf *workflowHandler) respondView(c *gin.Context, sessionID string) {
	view, err := slf.workflowService.Get(sessionID)
	if err != nil {
		respondError(c, slf.logger, err, "Failed to get session")
		return
	}
	c.JSON(http.StatusOK, view)
}
