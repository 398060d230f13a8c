package service

import (
	"errors"

	"studio/internal/api/models"
)

var (
	ErrPersistenceFailure = errors.New("workflow could not be saved")
	ErrNotWorkflow        = models.ErrNotWorkflowAsset
	ErrStaleDocument      = errors.New("document was replaced while the request was running")
	ErrSessionNotFound    = errors.New("session not found")
	ErrNodeNotFound       = errors.New("node not found")
)
