package service

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"studio/internal/api/models"
	"studio/internal/graph"
	"studio/internal/params"
)

// workflowState is everything derived from one loaded document. It is
// replaced as a whole when another asset is loaded into the session.
type workflowState struct {
	assetID   models.AssetID
	name      string
	version   int
	doc       models.WorkflowDocument
	graph     *graph.Graph
	table     *params.Table
	thumbnail *string
	// loadWarnings are produced once, when the parameters are read.
	loadWarnings []string
}

// WorkflowSession is one open document with its parameter table. All access
// goes through the owning WorkflowService.
type WorkflowSession struct {
	ID string

	mu         sync.Mutex
	generation uint64
	state      workflowState
	lastUsed   time.Time
}

// SessionView is a read-only snapshot of a session.
type SessionView struct {
	ID         string                 `json:"id"`
	AssetID    models.AssetID         `json:"assetId,omitempty"`
	Name       string                 `json:"name"`
	Version    int                    `json:"version,omitempty"`
	Generation uint64                 `json:"generation"`
	Graph      *graph.Graph           `json:"graph"`
	Parameters models.Parameters      `json:"parameters"`
	Broken     []params.BrokenBinding `json:"broken"`
	Warnings   []string               `json:"warnings"`
}

func buildState(assetID models.AssetID, name string, version int, data models.WorkflowData, placement graph.Placement) (workflowState, error) {
	doc, err := models.DecodeWorkflow(data.WorkflowJSON)
	if err != nil {
		return workflowState{}, err
	}
	table, warnings := params.FromParameters(data.Parameters)
	if warnings == nil {
		warnings = []string{}
	}
	return workflowState{
		assetID:      assetID,
		name:         name,
		version:      version,
		doc:          doc,
		graph:        graph.Extract(doc, graph.WithPlacement(placement)),
		table:        table,
		thumbnail:    data.ThumbnailNodeID,
		loadWarnings: warnings,
	}, nil
}

// view must be called with mu held.
func (slf *WorkflowSession) view() SessionView {
	broken := slf.state.table.Validate(slf.state.doc)
	warnings := append([]string{}, slf.state.loadWarnings...)
	for _, d := range slf.state.graph.Diagnostics {
		warnings = append(warnings, fmt.Sprintf("node %s: %s", d.NodeID, d.Message))
	}
	for _, b := range broken {
		warnings = append(warnings, b.Error())
	}
	return SessionView{
		ID:         slf.ID,
		AssetID:    slf.state.assetID,
		Name:       slf.state.name,
		Version:    slf.state.version,
		Generation: slf.generation,
		Graph:      slf.state.graph,
		Parameters: slf.state.table.Parameters(),
		Broken:     broken,
		Warnings:   warnings,
	}
}

// payload must be called with mu held.
func (slf *WorkflowSession) payload() (models.WorkflowData, error) {
	raw, err := json.Marshal(slf.state.doc)
	if err != nil {
		return models.WorkflowData{}, err
	}
	return models.WorkflowData{
		WorkflowJSON:    raw,
		Parameters:      slf.state.table.Parameters(),
		ThumbnailNodeID: slf.state.thumbnail,
	}, nil
}

// seeds returns, per top-level field of nodeID, the name it is bound to.
// mu must be held.
func (slf *WorkflowSession) seeds(nodeID string) map[string]string {
	out := make(map[string]string)
	for _, b := range slf.state.table.BindingsForNode(nodeID) {
		keys, err := b.Path.Keys()
		if err != nil || len(keys) != 1 {
			continue
		}
		if _, taken := out[keys[0]]; !taken {
			out[keys[0]] = b.Name
		}
	}
	return out
}
