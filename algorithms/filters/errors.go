package filters

import "errors"

var (
	// ErrInvalidConfiguration is returned when a filter is constructed with
	// parameters that cannot produce decaying weights.
	ErrInvalidConfiguration = errors.New("invalid filter configuration")

	// ErrInvalidShape is returned for non-rectangular, rank-0 or non-numeric input.
	ErrInvalidShape = errors.New("invalid signal shape")

	// ErrEmptySignal is returned when the time axis has no frames.
	ErrEmptySignal = errors.New("empty signal")
)
