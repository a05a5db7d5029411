// Package repository defines error values that are reused across multiple
// repositories. These sentinels allow higher layers such as handlers and
// the lifecycle manager to distinguish failure scenarios without string
// matching. Not-found is signalled with sql.ErrNoRows, following the rest
// of the codebase.
package repository

import (
	"errors"
	"fmt"
)

// ErrForbidden is returned when the caller attempts an operation on a
// resource they are not a party to. Handlers translate this into an
// HTTP 403 response without revealing who the resource belongs to.
var ErrForbidden = errors.New("forbidden")

// ErrDuplicateReview is returned when a second review is submitted for
// a booking that already has one. The UNIQUE constraint on
// ratings.booking_id is the authority; the pre-insert check only makes
// the error friendlier. Handlers translate this into HTTP 409.
var ErrDuplicateReview = errors.New("booking already reviewed")

// ErrEmailExists is returned when registration collides with an
// existing email address. Handlers translate this into HTTP 409.
var ErrEmailExists = errors.New("email already exists")

// ErrStoreUnavailable marks a data-store I/O failure. Read paths wrap
// driver errors with it so callers can tell "truly no data" apart from
// "the store could not be reached". Handlers translate this into a
// retryable HTTP 503.
var ErrStoreUnavailable = errors.New("store unavailable")

// Unavailable wraps err with ErrStoreUnavailable while preserving the
// underlying cause for logs. A nil err returns nil.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
