package observability

import (
	"context"
	"log/slog"
)

// SlogObserver writes events to a structured logger at the level carried
// by each event, so verbose graph traffic stays below the default Info
// threshold.
type SlogObserver struct {
	logger *slog.Logger
}

// NewSlogObserver creates a SlogObserver. A nil logger uses slog.Default.
func NewSlogObserver(logger *slog.Logger) *SlogObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogObserver{logger: logger}
}

func (o *SlogObserver) OnEvent(ctx context.Context, event Event) {
	o.logger.Log(
		ctx,
		event.Level.SlogLevel(),
		"event",
		"type", event.Type,
		"source", event.Source,
		"data", event.Data,
	)
}
