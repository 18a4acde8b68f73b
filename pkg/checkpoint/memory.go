package checkpoint

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/Montabos/Projet/pkg/state"
)

type memoryRecord struct {
	data      []byte
	node      string
	createdAt time.Time
	updatedAt time.Time
}

// Memory keeps runs in process memory. Values are stored encoded so every
// Load returns an independent copy with the same types a durable backend
// would produce.
type Memory struct {
	mu   sync.Mutex
	runs map[string]*memoryRecord
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{runs: make(map[string]*memoryRecord)}
}

func (m *Memory) Backend() string { return BackendMemory }

func (m *Memory) Durable() bool { return false }

func (m *Memory) Load(ctx context.Context, runID string) (state.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.runs[runID]
	if !ok {
		return state.State{}, state.ErrRunNotFound
	}
	return rec.decode(runID)
}

func (m *Memory) Merge(ctx context.Context, runID string, update state.Update, node string) (state.State, error) {
	if err := validateRunID(runID); err != nil {
		return state.State{}, err
	}
	if err := ctx.Err(); err != nil {
		return state.State{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	rec, ok := m.runs[runID]
	if !ok {
		rec = &memoryRecord{createdAt: now}
	}

	data, err := mergeData(rec.data, update)
	if err != nil {
		return state.State{}, err
	}

	next := &memoryRecord{
		data:      data,
		node:      rec.node,
		createdAt: rec.createdAt,
		updatedAt: now,
	}
	if node != "" {
		next.node = node
	}
	m.runs[runID] = next

	return next.decode(runID)
}

func (m *Memory) List(ctx context.Context) ([]state.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]state.Summary, 0, len(m.runs))
	for _, id := range slices.Sorted(maps.Keys(m.runs)) {
		rec := m.runs[id]
		out = append(out, state.Summary{
			RunID:          id,
			CheckpointNode: rec.node,
			CreatedAt:      rec.createdAt,
			UpdatedAt:      rec.updatedAt,
		})
	}
	sortSummaries(out)
	return out, nil
}

func (m *Memory) Delete(ctx context.Context, runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.runs[runID]; !ok {
		return state.ErrRunNotFound
	}
	delete(m.runs, runID)
	return nil
}

func (m *Memory) Close() error { return nil }

func (r *memoryRecord) decode(runID string) (state.State, error) {
	data, err := state.DecodeData(r.data)
	if err != nil {
		return state.State{}, err
	}
	return state.State{
		Data:           data,
		RunID:          runID,
		CheckpointNode: r.node,
		Timestamp:      r.updatedAt,
	}, nil
}
