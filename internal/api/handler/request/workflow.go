package request

import (
	"encoding/json"

	"studio/internal/api/models"
	"studio/internal/params"
)

// OpenSession opens an existing asset (AssetID) or starts a new, unsaved
// workflow from WorkflowJSON.
type OpenSession struct {
	AssetID      models.AssetID  `json:"assetId" validate:"required_without=WorkflowJSON"`
	Name         string          `json:"name"`
	WorkflowJSON json.RawMessage `json:"workflowJson" validate:"required_without=AssetID"`
}

// EditNodeParameters replaces every parameter of one node.
type EditNodeParameters struct {
	Parameters []params.NodeBinding `json:"parameters" validate:"dive"`
}

type BindParameter struct {
	Name   string           `json:"name" validate:"required"`
	NodeID string           `json:"nodeId" validate:"required"`
	Field  models.FieldPath `json:"field" validate:"required"`
}

type RenameParameter struct {
	NewName string `json:"newName" validate:"required"`
}

type ReplaceDocument struct {
	AssetID models.AssetID `json:"assetId" validate:"required"`
}

type SaveSession struct {
	Name string `json:"name"`
}

type Instantiate struct {
	Values map[string]any `json:"values" validate:"required"`
}
