package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"gorm.io/datatypes"
)

type AssetType string

const (
	AssetTypeWorkflow  AssetType = "workflow"
	AssetTypePrompt    AssetType = "prompt"
	AssetTypeImage     AssetType = "image"
	AssetTypeVideo     AssetType = "video"
	AssetTypeCharacter AssetType = "character"
)

// Asset is a stored, versioned asset. Updating an asset stores a new row whose
// ParentID points at the previous version.
type Asset struct {
	ID          uint           `gorm:"primaryKey"`
	Type        AssetType      `gorm:"size:50;not null;index:idx_asset_type"`
	Name        string         `gorm:"size:200;not null"`
	Description string         `gorm:"type:text"`
	Tags        datatypes.JSON `gorm:"type:jsonb"`
	Data        datatypes.JSON `gorm:"type:jsonb;not null"`
	Version     int            `gorm:"not null;default:1"`
	ParentID    *uint          `gorm:"index:idx_asset_parent"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AssetID identifies an asset on the wire. Backends send it as a number or a
// string; it is always carried as a string.
type AssetID string

func (id *AssetID) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*id = ""
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*id = AssetID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return fmt.Errorf("asset id: %w", err)
	}
	*id = AssetID(n.String())
	return nil
}

// Uint parses a numeric asset id.
func (id AssetID) Uint() (uint, error) {
	n, err := strconv.ParseUint(string(id), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("asset id %q is not numeric", string(id))
	}
	return uint(n), nil
}

// WorkflowData is the payload of an asset of type "workflow".
type WorkflowData struct {
	WorkflowJSON    json.RawMessage `json:"workflow_json"`
	Parameters      Parameters      `json:"parameters"`
	ThumbnailNodeID *string         `json:"thumbnail_node_id,omitempty"`
}

// Validate checks the payload the way the asset store does before accepting it.
func (slf WorkflowData) Validate() error {
	trimmed := bytes.TrimSpace(slf.WorkflowJSON)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return errors.New("workflow_json must be an object")
	}
	for name, ref := range slf.Parameters {
		if ref.NodeID == "" {
			return fmt.Errorf("parameter %q: node_id is required", name)
		}
		if ref.Field == "" {
			return fmt.Errorf("parameter %q: field is required", name)
		}
	}
	return nil
}

// AssetEnvelope is the wire shape of an asset: { type, name, data }.
type AssetEnvelope struct {
	ID          AssetID         `json:"id,omitempty"`
	Type        AssetType       `json:"type"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Tags        []string        `json:"tags"`
	Data        json.RawMessage `json:"data"`
	Version     int             `json:"version,omitempty"`
}

var ErrNotWorkflowAsset = errors.New("asset is not a workflow")

// WorkflowData decodes the payload. It refuses any asset whose type is not "workflow".
func (slf AssetEnvelope) WorkflowData() (WorkflowData, error) {
	if slf.Type != AssetTypeWorkflow {
		return WorkflowData{}, fmt.Errorf("%w: type %q", ErrNotWorkflowAsset, slf.Type)
	}
	var data WorkflowData
	if err := json.Unmarshal(slf.Data, &data); err != nil {
		return WorkflowData{}, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	if data.Parameters == nil {
		data.Parameters = Parameters{}
	}
	return data, nil
}

// NewWorkflowEnvelope wraps a workflow payload for persistence.
func NewWorkflowEnvelope(name string, data WorkflowData) (AssetEnvelope, error) {
	if data.Parameters == nil {
		data.Parameters = Parameters{}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return AssetEnvelope{}, err
	}
	return AssetEnvelope{
		Type: AssetTypeWorkflow,
		Name: name,
		Tags: []string{},
		Data: raw,
	}, nil
}
