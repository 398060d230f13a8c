package params

import (
	"fmt"
	"sort"

	"studio/internal/api/models"
)

// Apply returns a copy of doc with each named value written at the location
// its parameter is bound to. doc itself is left untouched. Values must be
// strings, numbers, booleans or nil.
func Apply(doc models.WorkflowDocument, table *Table, values map[string]any) (models.WorkflowDocument, error) {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	out := doc.Clone()
	for _, name := range names {
		binding, ok := table.Get(name)
		if !ok {
			return models.WorkflowDocument{}, fmt.Errorf("%w: %q", ErrUnknownParameter, name)
		}
		if err := checkLocation(out, binding.NodeID, binding.Path); err != nil {
			return models.WorkflowDocument{}, BrokenBinding{Name: name, NodeID: binding.NodeID, Path: binding.Path, Reason: err.Error()}
		}
		value, err := models.NewScalar(values[name])
		if err != nil {
			return models.WorkflowDocument{}, fmt.Errorf("%w: %q: %v", ErrInvalidValue, name, err)
		}
		if err := out.SetField(binding.NodeID, binding.Path, value); err != nil {
			return models.WorkflowDocument{}, fmt.Errorf("parameter %q: %w", name, err)
		}
	}
	return out, nil
}
