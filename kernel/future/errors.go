package future

import "errors"

var (
	// ErrRegistryFull indicates the sleep registry is at capacity.
	ErrRegistryFull = errors.New("future: future list full")

	// ErrInvalidFuture indicates a zero or already consumed Future.
	ErrInvalidFuture = errors.New("future: invalid future")
)
