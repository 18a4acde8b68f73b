package state

import (
	"context"
	"errors"
	"time"
)

// ErrRunNotFound is returned by Store.Load for an unknown run id.
var ErrRunNotFound = errors.New("run not found")

// Store persists run state. Merge must be atomic per run id: concurrent
// merges into the same run are applied one after the other and never lose
// keys written by either side.
type Store interface {
	// Load returns the persisted state of runID or ErrRunNotFound.
	Load(ctx context.Context, runID string) (State, error)

	// Merge copies update over the persisted values of runID, creating the
	// run when absent. A non-empty node replaces CheckpointNode; an empty
	// node leaves it unchanged. The merged state is returned.
	Merge(ctx context.Context, runID string, update Update, node string) (State, error)

	// List returns a summary of every stored run, most recently updated first.
	List(ctx context.Context) ([]Summary, error)

	// Delete removes runID. Deleting an unknown run returns ErrRunNotFound.
	Delete(ctx context.Context, runID string) error

	// Close releases the resources held by the store.
	Close() error
}

// Summary describes a stored run without its values.
type Summary struct {
	RunID          string    `json:"run_id"`
	CheckpointNode string    `json:"checkpoint_node"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
