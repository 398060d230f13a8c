package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// NodeMeta is the presentation block ("_meta") of a node record.
type NodeMeta struct {
	Title string
	X     *float64
	Y     *float64
}

// NodeRecord is one processing step of a workflow document.
type NodeRecord struct {
	ClassType string
	Inputs    map[string]FieldValue
	Meta      *NodeMeta
	// Issues lists what could not be read from the record. A record with
	// issues is still part of the document.
	Issues []string

	meta  json.RawMessage
	extra map[string]json.RawMessage
	raw   json.RawMessage
}

type rawMeta struct {
	Title *string `json:"title"`
	Node  *struct {
		X *float64 `json:"x"`
		Y *float64 `json:"y"`
	} `json:"node"`
}

// WorkflowDocument maps node ids to node records.
type WorkflowDocument struct {
	Nodes map[string]NodeRecord
}

// DecodeWorkflow reads a workflow document. Only a document that is not a JSON
// object fails; unreadable node records and fields are kept as node issues.
func DecodeWorkflow(data []byte) (WorkflowDocument, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return WorkflowDocument{}, fmt.Errorf("%w: document is not an object", ErrMalformedDocument)
	}

	var records map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &records); err != nil {
		return WorkflowDocument{}, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}

	doc := WorkflowDocument{Nodes: make(map[string]NodeRecord, len(records))}
	for id, raw := range records {
		doc.Nodes[id] = decodeNodeRecord(raw)
	}
	return doc, nil
}

func decodeNodeRecord(raw json.RawMessage) NodeRecord {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return NodeRecord{raw: cloneRaw(trimmed), Issues: []string{"node record is not an object"}}
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return NodeRecord{raw: cloneRaw(trimmed), Issues: []string{err.Error()}}
	}

	rec := NodeRecord{extra: make(map[string]json.RawMessage)}
	for key, value := range obj {
		switch key {
		case "class_type":
			var classType string
			if isJSONString(value) && json.Unmarshal(value, &classType) == nil && classType != "" {
				rec.ClassType = classType
			} else {
				rec.extra[key] = value
			}
		case "inputs":
			rec.decodeInputs(value)
		case "_meta":
			rec.meta = value
			var m rawMeta
			if err := json.Unmarshal(value, &m); err != nil {
				rec.Issues = append(rec.Issues, "unreadable _meta: "+err.Error())
				continue
			}
			meta := &NodeMeta{}
			if m.Title != nil {
				meta.Title = *m.Title
			}
			if m.Node != nil {
				meta.X, meta.Y = m.Node.X, m.Node.Y
			}
			rec.Meta = meta
		default:
			rec.extra[key] = value
		}
	}

	if rec.ClassType == "" {
		rec.Issues = append(rec.Issues, "missing class_type")
	}
	sort.Strings(rec.Issues)
	return rec
}

func (slf *NodeRecord) decodeInputs(value json.RawMessage) {
	trimmed := bytes.TrimSpace(value)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		slf.extra["inputs"] = value
		slf.Issues = append(slf.Issues, "inputs is not an object")
		return
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		slf.extra["inputs"] = value
		slf.Issues = append(slf.Issues, "unreadable inputs: "+err.Error())
		return
	}
	slf.Inputs = make(map[string]FieldValue, len(fields))
	for name, raw := range fields {
		fv, err := DecodeFieldValue(raw)
		if err != nil {
			slf.Issues = append(slf.Issues, fmt.Sprintf("input %q: %v", name, err))
			continue
		}
		slf.Inputs[name] = fv
	}
}

func isJSONString(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '"'
}

// Malformed reports whether the record had anything that could not be read.
func (slf NodeRecord) Malformed() bool {
	return len(slf.Issues) > 0
}

// Lookup resolves a field path inside the record's inputs.
func (slf NodeRecord) Lookup(path FieldPath) (FieldValue, bool) {
	keys, err := path.Keys()
	if err != nil || slf.Inputs == nil {
		return FieldValue{}, false
	}
	return FieldValue{Kind: ValueMap, Map: slf.Inputs}.Lookup(keys)
}

// ScalarFields returns the sorted top-level input names holding a scalar.
func (slf NodeRecord) ScalarFields() []string {
	fields := make([]string, 0, len(slf.Inputs))
	for name, value := range slf.Inputs {
		if value.IsScalar() {
			fields = append(fields, name)
		}
	}
	sort.Strings(fields)
	return fields
}

// Clone returns a deep copy of the record.
func (slf NodeRecord) Clone() NodeRecord {
	out := NodeRecord{
		ClassType: slf.ClassType,
		meta:      cloneRaw(slf.meta),
		raw:       cloneRaw(slf.raw),
	}
	if slf.Issues != nil {
		out.Issues = append([]string(nil), slf.Issues...)
	}
	if slf.Meta != nil {
		meta := *slf.Meta
		out.Meta = &meta
	}
	if slf.Inputs != nil {
		out.Inputs = make(map[string]FieldValue, len(slf.Inputs))
		for k, v := range slf.Inputs {
			out.Inputs[k] = v.Clone()
		}
	}
	if slf.extra != nil {
		out.extra = make(map[string]json.RawMessage, len(slf.extra))
		for k, v := range slf.extra {
			out.extra[k] = cloneRaw(v)
		}
	}
	return out
}

func (slf NodeRecord) MarshalJSON() ([]byte, error) {
	if slf.raw != nil {
		return slf.raw, nil
	}
	obj := make(map[string]any, len(slf.extra)+3)
	for k, v := range slf.extra {
		obj[k] = v
	}
	if slf.ClassType != "" {
		obj["class_type"] = slf.ClassType
	}
	if slf.Inputs != nil {
		obj["inputs"] = slf.Inputs
	}
	if slf.meta != nil {
		obj["_meta"] = slf.meta
	}
	return json.Marshal(obj)
}

func (slf *NodeRecord) UnmarshalJSON(data []byte) error {
	*slf = decodeNodeRecord(data)
	return nil
}

// NodeIDs returns the document's node ids, numeric ids first in numeric order.
func (slf WorkflowDocument) NodeIDs() []string {
	ids := make([]string, 0, len(slf.Nodes))
	for id := range slf.Nodes {
		ids = append(ids, id)
	}
	SortNodeIDs(ids)
	return ids
}

func (slf WorkflowDocument) Node(id string) (NodeRecord, bool) {
	rec, ok := slf.Nodes[id]
	return rec, ok
}

// LookupField resolves a path inside a node. The second result is false when
// either the node or the path does not exist.
func (slf WorkflowDocument) LookupField(nodeID string, path FieldPath) (FieldValue, bool) {
	rec, ok := slf.Nodes[nodeID]
	if !ok {
		return FieldValue{}, false
	}
	return rec.Lookup(path)
}

// ScalarFields lists the bindable top-level fields of a node, nil when the
// node does not exist.
func (slf WorkflowDocument) ScalarFields(nodeID string) []string {
	rec, ok := slf.Nodes[nodeID]
	if !ok {
		return nil
	}
	return rec.ScalarFields()
}

// SetField replaces the value at path inside a node. It only replaces existing
// values and mutates the receiver, so callers work on a Clone.
func (slf WorkflowDocument) SetField(nodeID string, path FieldPath, value FieldValue) error {
	rec, ok := slf.Nodes[nodeID]
	if !ok {
		return fmt.Errorf("node %q not found", nodeID)
	}
	keys, err := path.Keys()
	if err != nil {
		return err
	}
	if rec.Inputs == nil || !(FieldValue{Kind: ValueMap, Map: rec.Inputs}).set(keys, value) {
		return fmt.Errorf("field %q not found on node %q", path, nodeID)
	}
	return nil
}

// Clone returns a deep copy of the document.
func (slf WorkflowDocument) Clone() WorkflowDocument {
	out := WorkflowDocument{Nodes: make(map[string]NodeRecord, len(slf.Nodes))}
	for id, rec := range slf.Nodes {
		out.Nodes[id] = rec.Clone()
	}
	return out
}

func (slf WorkflowDocument) MarshalJSON() ([]byte, error) {
	if slf.Nodes == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(slf.Nodes)
}

func (slf *WorkflowDocument) UnmarshalJSON(data []byte) error {
	doc, err := DecodeWorkflow(data)
	if err != nil {
		return err
	}
	*slf = doc
	return nil
}

// SortNodeIDs orders ids so that "2" sorts before "10"; non-numeric ids follow
// numeric ones in lexical order.
func SortNodeIDs(ids []string) {
	sort.Slice(ids, func(i, j int) bool {
		return CompareNodeIDs(ids[i], ids[j]) < 0
	})
}

func CompareNodeIDs(a, b string) int {
	ai, aErr := strconv.ParseInt(a, 10, 64)
	bi, bErr := strconv.ParseInt(b, 10, 64)
	switch {
	case aErr == nil && bErr == nil:
		if ai != bi {
			if ai < bi {
				return -1
			}
			return 1
		}
		return strings.Compare(a, b)
	case aErr == nil:
		return -1
	case bErr == nil:
		return 1
	default:
		return strings.Compare(a, b)
	}
}
