package models

import (
	"fmt"
	"strings"
)

// InputsSegment is the mandatory first segment of every FieldPath.
const InputsSegment = "inputs"

const pathSeparator = "/"

// FieldPath locates a value inside a node record, e.g. "inputs/seed" or
// "inputs/sampler/steps". List elements are addressed by decimal index.
// Keys containing "/" cannot be addressed.
type FieldPath string

// NewFieldPath builds a FieldPath from the key sequence below "inputs".
func NewFieldPath(keys ...string) FieldPath {
	return FieldPath(strings.Join(append([]string{InputsSegment}, keys...), pathSeparator))
}

// Keys returns the key sequence below "inputs".
func (p FieldPath) Keys() ([]string, error) {
	segments := strings.Split(string(p), pathSeparator)
	if len(segments) < 2 || segments[0] != InputsSegment {
		return nil, fmt.Errorf("%w: %q", ErrMalformedPath, string(p))
	}
	keys := segments[1:]
	for _, key := range keys {
		if key == "" {
			return nil, fmt.Errorf("%w: empty segment in %q", ErrMalformedPath, string(p))
		}
	}
	return keys, nil
}

// Field returns the path without its "inputs/" prefix.
func (p FieldPath) Field() string {
	return strings.TrimPrefix(string(p), InputsSegment+pathSeparator)
}

func (p FieldPath) String() string {
	return string(p)
}
