package repository

import (
	"database/sql"
	"errors"
)

// MapError translates sql.ErrNoRows to notFoundErr. Other errors are
// returned unchanged.
func MapError(err error, notFoundErr error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return notFoundErr
	}
	return err
}
