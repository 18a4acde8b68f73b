package checkpoint

import (
	"cmp"
	"maps"
	"slices"

	"github.com/Montabos/Projet/pkg/state"
)

func mergeData(existing []byte, update state.Update) ([]byte, error) {
	data, err := state.DecodeData(existing)
	if err != nil {
		return nil, err
	}
	maps.Copy(data, update)
	return state.EncodeData(data)
}

func validateRunID(runID string) error {
	if runID == "" {
		return ErrEmptyRunID
	}
	if len(runID) > maxRunIDLength {
		return ErrInvalidRunID
	}
	return nil
}

func sortSummaries(s []state.Summary) {
	slices.SortStableFunc(s, func(a, b state.Summary) int {
		return cmp.Compare(b.UpdatedAt.UnixNano(), a.UpdatedAt.UnixNano())
	})
}
