package state

import (
	"encoding/json"
	"fmt"
	"maps"
	"time"
)

// End is the pseudo-node that terminates a run. A persisted CheckpointNode
// equal to End marks the run as complete.
const End = "__end__"

// Update is a partial set of values returned by a node. Keys absent from
// an Update keep their previous value when merged.
type Update map[string]any

// State is the persisted record of a run: its values plus the provenance
// the engine needs to resume it.
type State struct {
	Data           map[string]any `json:"data"`
	RunID          string         `json:"run_id"`
	CheckpointNode string         `json:"checkpoint_node"`
	Timestamp      time.Time      `json:"timestamp"`
}

// New creates an empty State for runID.
func New(runID string) State {
	return State{
		Data:      make(map[string]any),
		RunID:     runID,
		Timestamp: time.Now(),
	}
}

// Clone returns a copy with its own top-level data map.
func (s State) Clone() State {
	c := s
	c.Data = maps.Clone(s.Data)
	if c.Data == nil {
		c.Data = make(map[string]any)
	}
	return c
}

// Get retrieves a value by key.
func (s State) Get(key string) (any, bool) {
	val, exists := s.Data[key]
	return val, exists
}

// Set returns a new State with key set to value.
func (s State) Set(key string, value any) State {
	c := s.Clone()
	c.Data[key] = value
	return c
}

// Merge returns a new State with every key of u copied over s.
// Keys not present in u are left untouched.
func (s State) Merge(u Update) State {
	c := s.Clone()
	maps.Copy(c.Data, u)
	return c
}

// SetCheckpointNode returns a new State recording node as the last applied
// node and refreshing the timestamp.
func (s State) SetCheckpointNode(node string) State {
	c := s.Clone()
	c.CheckpointNode = node
	c.Timestamp = time.Now()
	return c
}

// Terminal reports whether the run has reached End.
func (s State) Terminal() bool {
	return s.CheckpointNode == End
}

// Normalize round-trips Data through JSON so that values have the same
// dynamic types a durable store would return (float64 numbers, []any
// slices, map[string]any objects).
func (s State) Normalize() (State, error) {
	data, err := normalize(s.Data)
	if err != nil {
		return s, err
	}
	c := s
	c.Data = data
	return c, nil
}

// EncodeData serializes a data map for storage.
func EncodeData(data map[string]any) ([]byte, error) {
	if data == nil {
		data = map[string]any{}
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode state data: %w", err)
	}
	return b, nil
}

// DecodeData parses a data map produced by EncodeData.
func DecodeData(b []byte) (map[string]any, error) {
	data := make(map[string]any)
	if len(b) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(b, &data); err != nil {
		return nil, fmt.Errorf("decode state data: %w", err)
	}
	return data, nil
}

func normalize(data map[string]any) (map[string]any, error) {
	b, err := EncodeData(data)
	if err != nil {
		return nil, err
	}
	return DecodeData(b)
}
