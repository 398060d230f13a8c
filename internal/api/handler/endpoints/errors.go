package endpoints

import (
	"errors"
	"net/http"

	"studio/internal/api/client"
	"studio/internal/api/handler/response"
	"studio/internal/api/models"
	"studio/internal/api/service"
	"studio/internal/params"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func statusFor(err error) int {
	var statusErr *client.StatusError
	switch {
	case errors.Is(err, params.ErrDuplicateName), errors.Is(err, service.ErrStaleDocument):
		return http.StatusConflict
	case service.IsValidationError(err),
		errors.Is(err, service.ErrNotWorkflow),
		errors.Is(err, service.ErrInvalidAsset),
		errors.Is(err, models.ErrMalformedDocument),
		errors.Is(err, models.ErrMalformedPath):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, service.ErrNodeNotFound),
		errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrPersistenceFailure), errors.As(err, &statusErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// errorData exposes the structured part of an error to the client.
func errorData(err error) interface{} {
	var dup *params.DuplicateNameError
	if errors.As(err, &dup) {
		return gin.H{"name": dup.Name, "nodeId": dup.Existing.NodeID, "field": dup.Existing.Path}
	}
	var invalid *params.InvalidPathError
	if errors.As(err, &invalid) {
		return gin.H{"nodeId": invalid.NodeID, "field": invalid.Path, "reason": invalid.Reason}
	}
	var broken params.BrokenBinding
	if errors.As(err, &broken) {
		return broken
	}
	return nil
}

func respondError(c *gin.Context, logger zerolog.Logger, err error, msg string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error().Err(err).Str("path", c.FullPath()).Msg(msg)
		c.JSON(status, response.APIError{Message: msg})
		return
	}
	if status == http.StatusBadGateway {
		logger.Error().Err(err).Str("path", c.FullPath()).Msg(msg)
		c.JSON(status, response.APIError{Message: err.Error()})
		return
	}
	logger.Warn().Err(err).Str("path", c.FullPath()).Int("status", status).Msg(msg)
	c.JSON(status, response.APIError{Message: err.Error(), Data: errorData(err)})
}
