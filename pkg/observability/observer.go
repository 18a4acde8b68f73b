// Package observability carries workflow execution events to logs, metrics,
// and message subscribers. Levels follow OpenTelemetry severity numbers so
// events translate to log records without a lookup table.
package observability

import (
	"context"
	"log/slog"
	"time"
)

// Level represents event severity aligned with OTel SeverityNumber ranges.
type Level int

const (
	LevelVerbose Level = 5  // OTel DEBUG
	LevelInfo    Level = 9  // OTel INFO
	LevelWarning Level = 13 // OTel WARN
	LevelError   Level = 17 // OTel ERROR
)

// String returns the OTel severity text for the level.
func (l Level) String() string {
	switch {
	case l <= 4:
		return "TRACE"
	case l <= 8:
		return "DEBUG"
	case l <= 12:
		return "INFO"
	case l <= 16:
		return "WARN"
	case l <= 20:
		return "ERROR"
	default:
		return "FATAL"
	}
}

// SlogLevel maps the level onto the slog level used when logging the event.
func (l Level) SlogLevel() slog.Level {
	switch {
	case l <= 8:
		return slog.LevelDebug
	case l <= 12:
		return slog.LevelInfo
	case l <= 16:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

// EventType identifies the kind of event, e.g. "node.complete".
type EventType string

// Event is a single execution occurrence. Data holds telemetry such as node
// names, run ids and durations, never draft content.
type Event struct {
	Type      EventType      `json:"type"`
	Level     Level          `json:"level"`
	Timestamp time.Time      `json:"timestamp"`
	Source    string         `json:"source"`
	Data      map[string]any `json:"data,omitempty"`
}

// Observer receives events. Implementations must not block execution or
// report failures back to the emitter.
type Observer interface {
	OnEvent(ctx context.Context, event Event)
}
