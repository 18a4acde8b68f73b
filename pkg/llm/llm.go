// Package llm defines the language-model and embedding capabilities used by
// the workflow and provides OpenAI-compatible implementations.
package llm

import (
	"context"
	"errors"
)

// ErrEmptyResponse indicates the provider returned no choices.
var ErrEmptyResponse = errors.New("model returned no choices")

// Model completes a single-turn prompt.
type Model interface {
	Complete(ctx context.Context, prompt string) (string, error)
	// Name returns the provider model identifier, e.g. "gpt-4o-mini".
	Name() string
}

// Tunable is a Model that can derive a copy with a different sampling
// temperature.
type Tunable interface {
	Model
	WithTemperature(t float32) Model
}

// Embedder turns texts into vectors, one per input, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Derive returns m at temperature t when m is Tunable, otherwise m itself.
// A nil model stays nil.
func Derive(m Model, t float32) Model {
	if m == nil {
		return nil
	}
	if tm, ok := m.(Tunable); ok {
		return tm.WithTemperature(t)
	}
	return m
}
