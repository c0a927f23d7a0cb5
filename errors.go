package vecbench

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedMetric is returned for metrics outside
	// {InnerProduct, Euclidean}.
	ErrUnsupportedMetric = errors.New("unsupported metric")

	// ErrUnsupportedQuantizerKind is returned for scalar quantizer kinds
	// outside {fp16, int8}.
	ErrUnsupportedQuantizerKind = errors.New("unsupported quantizer kind")

	// ErrProbesExceedLists is returned when a search parameter requests more
	// probes than the index has inverted lists.
	ErrProbesExceedLists = errors.New("probe count exceeds list count")

	// ErrIndexTypeMismatch is returned when a persisted index was written by
	// a different variant than the one loading it.
	ErrIndexTypeMismatch = errors.New("index type mismatch")

	// ErrNotBuilt is returned when search or save is attempted before Build
	// or Load.
	ErrNotBuilt = errors.New("index has not been built")
)

// ErrInvalidBuildParam indicates an out-of-range build parameter.
type ErrInvalidBuildParam struct {
	Field string
	Value any
}

func (e *ErrInvalidBuildParam) Error() string {
	return fmt.Sprintf("invalid build parameter %s: %v", e.Field, e.Value)
}
