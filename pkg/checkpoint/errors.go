package checkpoint

import (
	"errors"
	"net/http"

	"github.com/Montabos/Projet/pkg/state"
)

const maxRunIDLength = 200

var (
	// ErrEmptyRunID indicates a merge without a run id.
	ErrEmptyRunID = errors.New("run id must not be empty")
	// ErrInvalidRunID indicates a run id longer than the stored column allows.
	ErrInvalidRunID = errors.New("run id is too long")
	// ErrUnknownBackend indicates an unsupported store.backend value.
	ErrUnknownBackend = errors.New("unknown checkpoint backend")
)

// MapHTTPStatus maps checkpoint errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, state.ErrRunNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrEmptyRunID) || errors.Is(err, ErrInvalidRunID) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
