package params

import (
	"errors"
	"fmt"

	"studio/internal/api/models"
)

var (
	ErrDuplicateName    = errors.New("duplicate parameter name")
	ErrInvalidPath      = errors.New("invalid parameter path")
	ErrInvalidName      = errors.New("invalid parameter name")
	ErrUnknownParameter = errors.New("unknown parameter")
	ErrBrokenBinding    = errors.New("broken binding")
	ErrInvalidValue     = errors.New("invalid parameter value")
)

// DuplicateNameError is returned when a name is already bound to another location.
type DuplicateNameError struct {
	Name     string
	Existing Binding
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("parameter %q is already bound to node %s at %s", e.Name, e.Existing.NodeID, e.Existing.Path)
}

func (e *DuplicateNameError) Unwrap() error { return ErrDuplicateName }

// InvalidPathError is returned when a location cannot hold a parameter.
type InvalidPathError struct {
	NodeID string
	Path   models.FieldPath
	Reason string
}

func (e *InvalidPathError) Error() string {
	return fmt.Sprintf("node %s path %s: %s", e.NodeID, e.Path, e.Reason)
}

func (e *InvalidPathError) Unwrap() error { return ErrInvalidPath }

// BrokenBinding is a binding whose location no longer holds a scalar in the
// document it was validated against.
type BrokenBinding struct {
	Name   string           `json:"name"`
	NodeID string           `json:"nodeId"`
	Path   models.FieldPath `json:"field"`
	Reason string           `json:"reason"`
}

func (b BrokenBinding) Error() string {
	return fmt.Sprintf("parameter %q (node %s, %s): %s", b.Name, b.NodeID, b.Path, b.Reason)
}

func (b BrokenBinding) Unwrap() error { return ErrBrokenBinding }
