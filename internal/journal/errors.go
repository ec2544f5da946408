package journal

import "errors"

var (
	// ErrInvalidEntry is returned by Record for entries missing required fields.
	ErrInvalidEntry = errors.New("journal: invalid entry")

	// ErrInvalidRetention is returned by Prune for a non-positive window.
	ErrInvalidRetention = errors.New("journal: retention must be positive")
)
