package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ValueKind tags a decoded input value. The tag is assigned once, when the
// workflow document is decoded, and is never re-derived from the value shape.
type ValueKind int

const (
	ValueScalar ValueKind = iota
	ValueReference
	ValueMap
	ValueList
)

func (k ValueKind) String() string {
	switch k {
	case ValueScalar:
		return "scalar"
	case ValueReference:
		return "reference"
	case ValueMap:
		return "map"
	case ValueList:
		return "list"
	default:
		return "unknown"
	}
}

// Reference points at an output slot of another node.
// Slot is -1 when the second element of the source array is not an integer.
type Reference struct {
	SourceID string
	Slot     int
}

// FieldValue is one node input value: a scalar, a reference to another node's
// output, or a nested map/list of those. Scalars and references keep their raw
// JSON so re-encoding a document is lossless.
type FieldValue struct {
	Kind ValueKind
	Ref  Reference
	Map  map[string]FieldValue
	List []FieldValue
	raw  json.RawMessage
}

// DecodeFieldValue classifies raw JSON into a FieldValue.
//
// Any array with at least two elements whose first element is a string is a
// Reference. The workflow format carries no type information to tell a literal
// such as ["auto", 5] apart from a link, so such literals are read as links.
func DecodeFieldValue(raw json.RawMessage) (FieldValue, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return FieldValue{}, fmt.Errorf("%w: empty value", ErrMalformedDocument)
	}

	switch trimmed[0] {
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return FieldValue{}, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
		}
		m := make(map[string]FieldValue, len(obj))
		for key, item := range obj {
			fv, err := DecodeFieldValue(item)
			if err != nil {
				return FieldValue{}, fmt.Errorf("%s: %w", key, err)
			}
			m[key] = fv
		}
		return FieldValue{Kind: ValueMap, Map: m}, nil

	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return FieldValue{}, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
		}
		if ref, ok := referenceShape(items); ok {
			return FieldValue{Kind: ValueReference, Ref: ref, raw: cloneRaw(trimmed)}, nil
		}
		list := make([]FieldValue, len(items))
		for i, item := range items {
			fv, err := DecodeFieldValue(item)
			if err != nil {
				return FieldValue{}, fmt.Errorf("[%d]: %w", i, err)
			}
			list[i] = fv
		}
		return FieldValue{Kind: ValueList, List: list}, nil

	default:
		if !json.Valid(trimmed) {
			return FieldValue{}, fmt.Errorf("%w: invalid scalar %q", ErrMalformedDocument, string(trimmed))
		}
		return FieldValue{Kind: ValueScalar, raw: cloneRaw(trimmed)}, nil
	}
}

func referenceShape(items []json.RawMessage) (Reference, bool) {
	if len(items) < 2 {
		return Reference{}, false
	}
	first := bytes.TrimSpace(items[0])
	if len(first) == 0 || first[0] != '"' {
		return Reference{}, false
	}
	var source string
	if err := json.Unmarshal(first, &source); err != nil {
		return Reference{}, false
	}

	slot := -1
	if n, err := strconv.Atoi(string(bytes.TrimSpace(items[1]))); err == nil {
		slot = n
	}
	return Reference{SourceID: source, Slot: slot}, true
}

// NewScalar builds a scalar FieldValue from a Go value. Only strings, numbers,
// booleans and nil are accepted.
func NewScalar(v any) (FieldValue, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return FieldValue{}, err
	}
	fv, err := DecodeFieldValue(data)
	if err != nil {
		return FieldValue{}, err
	}
	if fv.Kind != ValueScalar {
		return FieldValue{}, fmt.Errorf("value of kind %s is not a scalar", fv.Kind)
	}
	return fv, nil
}

func (slf FieldValue) IsScalar() bool {
	return slf.Kind == ValueScalar
}

// Raw returns the JSON bytes of a scalar or reference value.
func (slf FieldValue) Raw() json.RawMessage {
	return slf.raw
}

// Scalar decodes a scalar value. Numbers are returned as json.Number.
func (slf FieldValue) Scalar() (any, error) {
	if slf.Kind != ValueScalar {
		return nil, fmt.Errorf("value of kind %s is not a scalar", slf.Kind)
	}
	dec := json.NewDecoder(bytes.NewReader(slf.raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// Lookup follows path through nested maps (by key) and lists (by decimal index).
func (slf FieldValue) Lookup(path []string) (FieldValue, bool) {
	current := slf
	for _, segment := range path {
		switch current.Kind {
		case ValueMap:
			next, ok := current.Map[segment]
			if !ok {
				return FieldValue{}, false
			}
			current = next
		case ValueList:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(current.List) {
				return FieldValue{}, false
			}
			current = current.List[idx]
		default:
			return FieldValue{}, false
		}
	}
	return current, true
}

// set replaces the value at path. The receiver must be a deep copy owned by the caller.
func (slf FieldValue) set(path []string, value FieldValue) bool {
	if len(path) == 0 {
		return false
	}
	parent, ok := slf.Lookup(path[:len(path)-1])
	if !ok {
		return false
	}
	last := path[len(path)-1]
	switch parent.Kind {
	case ValueMap:
		if _, exists := parent.Map[last]; !exists {
			return false
		}
		parent.Map[last] = value
		return true
	case ValueList:
		idx, err := strconv.Atoi(last)
		if err != nil || idx < 0 || idx >= len(parent.List) {
			return false
		}
		parent.List[idx] = value
		return true
	default:
		return false
	}
}

// Clone returns a deep copy.
func (slf FieldValue) Clone() FieldValue {
	out := FieldValue{Kind: slf.Kind, Ref: slf.Ref, raw: cloneRaw(slf.raw)}
	if slf.Map != nil {
		out.Map = make(map[string]FieldValue, len(slf.Map))
		for k, v := range slf.Map {
			out.Map[k] = v.Clone()
		}
	}
	if slf.List != nil {
		out.List = make([]FieldValue, len(slf.List))
		for i, v := range slf.List {
			out.List[i] = v.Clone()
		}
	}
	return out
}

func (slf FieldValue) MarshalJSON() ([]byte, error) {
	switch slf.Kind {
	case ValueScalar, ValueReference:
		if slf.raw == nil {
			return []byte("null"), nil
		}
		return slf.raw, nil
	case ValueMap:
		if slf.Map == nil {
			return []byte("{}"), nil
		}
		return json.Marshal(slf.Map)
	case ValueList:
		if slf.List == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(slf.List)
	default:
		return nil, fmt.Errorf("unknown value kind %d", slf.Kind)
	}
}

func (slf *FieldValue) UnmarshalJSON(data []byte) error {
	fv, err := DecodeFieldValue(data)
	if err != nil {
		return err
	}
	*slf = fv
	return nil
}

func cloneRaw(raw []byte) json.RawMessage {
	if raw == nil {
		return nil
	}
	out := make([]byte, len(raw))
	copy(out, raw)
	return out
}
