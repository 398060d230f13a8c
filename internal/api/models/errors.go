package models

import "errors"

// ErrMalformedDocument marks workflow content that cannot be read as a node graph.
var ErrMalformedDocument = errors.New("malformed workflow document")

// ErrMalformedPath marks a field path that is not of the form inputs/<key>[/<key>...].
var ErrMalformedPath = errors.New("malformed field path")

// ErrNotFound is returned by asset stores when the requested asset does not exist.
var ErrNotFound = errors.New("not found")
