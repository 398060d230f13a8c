package models

// Suggestion proposes one input field of a node as a parameter.
type Suggestion struct {
	Field        string `json:"field" yaml:"field"`
	FriendlyName string `json:"friendlyName" yaml:"friendly_name"`
	AutoSelect   bool   `json:"autoSelect" yaml:"auto_select"`
}

// FieldStat is one row of a usage recommendation for a node type.
type FieldStat struct {
	Field string `json:"field"`
	Count int    `json:"count"`
}

// UsageItem records that a field of a node type was exposed as a parameter.
type UsageItem struct {
	ClassType string `json:"class_type" validate:"required"`
	Field     string `json:"field" validate:"required"`
}
