// Package apperr defines the error kinds shared by the planner packages.
// Use errors.Is to check: errors.Is(err, apperr.ErrNotFound)
package apperr

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrConflict            = errors.New("conflict")
)

// Kind returns the sentinel err wraps, or nil for unclassified errors.
func Kind(err error) error {
	for _, kind := range []error{ErrNotFound, ErrInvalidArgument, ErrUpstreamUnavailable, ErrConflict} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
