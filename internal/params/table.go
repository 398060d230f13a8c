// Package params holds the table of named parameters exposed by a workflow:
// each name points at one scalar input of one node.
package params

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"studio/internal/api/models"
)

// Binding is the location a parameter name points at.
type Binding struct {
	NodeID string           `json:"node_id"`
	Path   models.FieldPath `json:"field"`
}

// NodeBinding is one entry of a node's bindings, as edited one node at a time.
type NodeBinding struct {
	Path models.FieldPath `json:"field" validate:"required"`
	Name string           `json:"name" validate:"required"`
}

// Table maps trimmed, unique parameter names to bindings. Every mutation
// validates first and changes nothing when it fails.
//
// A Table is not safe for concurrent use.
type Table struct {
	entries map[string]Binding
}

func NewTable() *Table {
	return &Table{entries: make(map[string]Binding)}
}

// FromParameters builds a table from the persisted wire shape. Names are
// trimmed; when two keys collide after trimming the first one in sorted order
// is kept and a warning is returned for the others.
func FromParameters(parameters models.Parameters) (*Table, []string) {
	t := NewTable()
	var warnings []string

	keys := make([]string, 0, len(parameters))
	for k := range parameters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		ref := parameters[key]
		name := strings.TrimSpace(key)
		if name == "" {
			warnings = append(warnings, fmt.Sprintf("parameter %q ignored: empty name", key))
			continue
		}
		if _, exists := t.entries[name]; exists {
			warnings = append(warnings, fmt.Sprintf("parameter %q ignored: name %q already loaded", key, name))
			continue
		}
		t.entries[name] = Binding{NodeID: ref.NodeID, Path: ref.Field}
	}
	return t, warnings
}

// Parameters returns the wire shape of the table.
func (slf *Table) Parameters() models.Parameters {
	out := make(models.Parameters, len(slf.entries))
	for name, b := range slf.entries {
		out[name] = models.ParameterRef{NodeID: b.NodeID, Field: b.Path}
	}
	return out
}

// Bind points name at (nodeID, path). Binding a name again to the same
// location is a no-op.
func (slf *Table) Bind(doc models.WorkflowDocument, name, nodeID string, path models.FieldPath) error {
	name, err := normalizeName(name)
	if err != nil {
		return err
	}
	want := Binding{NodeID: nodeID, Path: path}
	if existing, ok := slf.entries[name]; ok {
		if existing == want {
			return nil
		}
		return &DuplicateNameError{Name: name, Existing: existing}
	}
	if err := checkLocation(doc, nodeID, path); err != nil {
		return err
	}
	slf.entries[name] = want
	return nil
}

// Rename moves a binding to a new name. If newName already points at the same
// location the two entries collapse into one.
func (slf *Table) Rename(oldName, newName string) error {
	oldName = strings.TrimSpace(oldName)
	binding, ok := slf.entries[oldName]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownParameter, oldName)
	}
	newName, err := normalizeName(newName)
	if err != nil {
		return err
	}
	if newName == oldName {
		return nil
	}
	if existing, ok := slf.entries[newName]; ok && existing != binding {
		return &DuplicateNameError{Name: newName, Existing: existing}
	}
	delete(slf.entries, oldName)
	slf.entries[newName] = binding
	return nil
}

func (slf *Table) Unbind(name string) error {
	name = strings.TrimSpace(name)
	if _, ok := slf.entries[name]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownParameter, name)
	}
	delete(slf.entries, name)
	return nil
}

// BindingsForNode returns the bindings of nodeID ordered by name.
func (slf *Table) BindingsForNode(nodeID string) []NodeBinding {
	out := []NodeBinding{}
	for name, b := range slf.entries {
		if b.NodeID == nodeID {
			out = append(out, NodeBinding{Path: b.Path, Name: name})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ReplaceNode swaps every binding of nodeID for entries in one step. The whole
// set is checked before anything changes; bindings of other nodes are never
// touched. An empty set removes all bindings of the node.
func (slf *Table) ReplaceNode(doc models.WorkflowDocument, nodeID string, entries []NodeBinding) error {
	next := make(map[string]Binding, len(entries))
	for _, entry := range entries {
		name, err := normalizeName(entry.Name)
		if err != nil {
			return err
		}
		want := Binding{NodeID: nodeID, Path: entry.Path}
		if prev, ok := next[name]; ok && prev != want {
			return &DuplicateNameError{Name: name, Existing: prev}
		}
		if existing, ok := slf.entries[name]; ok && existing.NodeID != nodeID {
			return &DuplicateNameError{Name: name, Existing: existing}
		}
		if err := checkLocation(doc, nodeID, entry.Path); err != nil {
			return err
		}
		next[name] = want
	}

	for name, b := range slf.entries {
		if b.NodeID == nodeID {
			delete(slf.entries, name)
		}
	}
	for name, b := range next {
		slf.entries[name] = b
	}
	return nil
}

// Validate lists the bindings that no longer resolve to a scalar in doc,
// ordered by name.
func (slf *Table) Validate(doc models.WorkflowDocument) []BrokenBinding {
	broken := []BrokenBinding{}
	for _, name := range slf.Names() {
		b := slf.entries[name]
		if err := checkLocation(doc, b.NodeID, b.Path); err != nil {
			reason := err.Error()
			var pathErr *InvalidPathError
			if errors.As(err, &pathErr) {
				reason = pathErr.Reason
			}
			broken = append(broken, BrokenBinding{Name: name, NodeID: b.NodeID, Path: b.Path, Reason: reason})
		}
	}
	return broken
}

func (slf *Table) Get(name string) (Binding, bool) {
	b, ok := slf.entries[strings.TrimSpace(name)]
	return b, ok
}

func (slf *Table) Len() int {
	return len(slf.entries)
}

// Names returns the bound names in sorted order.
func (slf *Table) Names() []string {
	names := make([]string, 0, len(slf.entries))
	for name := range slf.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Bindings returns a copy of the table contents.
func (slf *Table) Bindings() map[string]Binding {
	out := make(map[string]Binding, len(slf.entries))
	for name, b := range slf.entries {
		out[name] = b
	}
	return out
}

func (slf *Table) Clone() *Table {
	return &Table{entries: slf.Bindings()}
}

func normalizeName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", fmt.Errorf("%w: name is empty", ErrInvalidName)
	}
	return trimmed, nil
}

// checkLocation reports whether path in nodeID currently holds a scalar.
func checkLocation(doc models.WorkflowDocument, nodeID string, path models.FieldPath) error {
	if _, err := path.Keys(); err != nil {
		return &InvalidPathError{NodeID: nodeID, Path: path, Reason: err.Error()}
	}
	if _, ok := doc.Node(nodeID); !ok {
		return &InvalidPathError{NodeID: nodeID, Path: path, Reason: "node not found"}
	}
	value, ok := doc.LookupField(nodeID, path)
	if !ok {
		return &InvalidPathError{NodeID: nodeID, Path: path, Reason: "field not found"}
	}
	if !value.IsScalar() {
		return &InvalidPathError{NodeID: nodeID, Path: path, Reason: fmt.Sprintf("value is a %s, not a scalar", value.Kind)}
	}
	return nil
}
