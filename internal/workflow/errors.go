package workflow

import (
	"errors"
	"net/http"

	"github.com/Montabos/Projet/pkg/checkpoint"
	"github.com/Montabos/Projet/pkg/state"
)

// Sentinel errors for workflow operations.
var (
	ErrEmptyInstruction = errors.New("instruction must not be empty")
	ErrEmptyDraft       = errors.New("draft text must not be empty")
	ErrRunExists        = errors.New("run already exists")
	ErrNoDraft          = errors.New("run has no draft")
	ErrProtectedKey     = errors.New("key cannot be updated externally")
	ErrRevisionLimit    = errors.New("revision limit reached without approval")
)

// MapHTTPStatus maps workflow errors to HTTP status codes. Engine failures
// map to 500.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, state.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrRunExists), errors.Is(err, ErrNoDraft):
		return http.StatusConflict
	case errors.Is(err, ErrEmptyInstruction),
		errors.Is(err, ErrEmptyDraft),
		errors.Is(err, ErrProtectedKey):
		return http.StatusBadRequest
	}
	return checkpoint.MapHTTPStatus(err)
}
