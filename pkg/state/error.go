package state

import "fmt"

// ExecutionError reports an engine-level failure: a node error, a store
// error, a missing transition, cancellation, or an exceeded step limit.
// It is never used for outcomes that a node models in state.
type ExecutionError struct {
	NodeName string
	RunID    string
	State    State
	Path     []string
	Err      error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("run %s failed at node %s: %v", e.RunID, e.NodeName, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
