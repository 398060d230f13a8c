package response

import (
	"studio/internal/api/models"
	"studio/internal/params"
)

type NodeParameters struct {
	NodeID     string               `json:"nodeId"`
	Parameters []params.NodeBinding `json:"parameters"`
}

type NodeSuggestions struct {
	NodeID      string              `json:"nodeId"`
	Parameters  []params.NodeBinding `json:"parameters"`
	Suggestions []models.Suggestion `json:"suggestions"`
}

type Warnings struct {
	Warnings []string `json:"warnings"`
}

type Instantiated struct {
	WorkflowJSON models.WorkflowDocument `json:"workflowJson"`
}
