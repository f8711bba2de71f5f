package artifact

import "errors"

var (
	// ErrNotFound is returned when an artifact (or requested version) for the
	// given session / id pair does not exist in the underlying store.
	ErrNotFound = errors.New("artifact not found")
)
