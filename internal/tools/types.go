package tools

import "errors"

// Error taxonomy for dispatch. The caller distinguishes an unknown tool
// (its own bug or a hallucinated call) from bad arguments and from a
// handler failure.
var (
	// ErrConflict is returned when registering a duplicate tool name.
	ErrConflict = errors.New("tools: name already registered")
	// ErrNotFound is returned when dispatching to an unregistered name.
	ErrNotFound = errors.New("tools: unknown tool")
	// ErrInvalidArgs is returned when arguments fail schema validation.
	ErrInvalidArgs = errors.New("tools: invalid arguments")
	// ErrExecution wraps failures from the tool handler itself.
	ErrExecution = errors.New("tools: execution failed")
)
