package store

import "errors"

// Sentinel kinds for store errors.
var (
	// ErrNotFound indicates the requested id has no stored profile.
	ErrNotFound = errors.New("profile not found")

	// ErrUnavailable indicates an I/O failure against the backing store.
	ErrUnavailable = errors.New("store unavailable")

	// ErrMalformedVector indicates mismatched index/value lengths in a
	// sparse vector. Fatal to the single point, not to a whole batch.
	ErrMalformedVector = errors.New("malformed sparse vector")
)

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
