package models

// ParameterRef is the persisted location of a named parameter.
type ParameterRef struct {
	NodeID string    `json:"node_id" validate:"required"`
	Field  FieldPath `json:"field" validate:"required"`
}

// Parameters maps externally visible parameter names to locations.
type Parameters map[string]ParameterRef
