package sapling

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownResource is returned when an operation names a resource id
	// that the store does not hold.
	ErrUnknownResource = errors.New("sapling: unknown resource")

	// ErrUnknownType is returned when a resource type tag has no handler in
	// the registry.
	ErrUnknownType = errors.New("sapling: unknown resource type")

	// ErrWrongType is returned by a typed handler given an instance of a
	// different Go type.
	ErrWrongType = errors.New("sapling: resource instance has wrong type")

	// ErrEditInProgress is returned when an edit is started while another is
	// still open on the same StateManager.
	ErrEditInProgress = errors.New("sapling: edit already in progress")

	// ErrNoDocument is returned by operations that need a present document
	// before any bundle has been loaded.
	ErrNoDocument = errors.New("sapling: no document loaded")

	// ErrEditClosed is returned when a committed or aborted edit is used again.
	ErrEditClosed = errors.New("sapling: edit already closed")
)

// MalformedBundleError reports a bundle whose resources do not cover every id
// its project references.
type MalformedBundleError struct {
	Missing []ResourceID
}

func (e *MalformedBundleError) Error() string {
	ids := make([]string, len(e.Missing))
	for i, id := range e.Missing {
		ids[i] = string(id)
	}
	return fmt.Sprintf("sapling: malformed bundle: missing resources [%s]", strings.Join(ids, ", "))
}

// ScriptError wraps a failure raised while compiling or running an event
// script.
type ScriptError struct {
	EventID int
	Err     error
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("sapling: script for event %d: %v", e.EventID, e.Err)
}

func (e *ScriptError) Unwrap() error {
	return e.Err
}
