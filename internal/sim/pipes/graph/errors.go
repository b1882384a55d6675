package graph

import "errors"

// ErrNodeNotFound is returned when an operation targets a location with no
// cached node.
var ErrNodeNotFound = errors.New("pipe node not found")
