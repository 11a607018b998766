package dynamic

import "errors"

var (
	// ErrDataError marks a malformed stored value. Only the affected product is defaulted.
	ErrDataError = errors.New("malformed stored data")

	// ErrNotFound is returned by Store lookups for missing rows
	ErrNotFound = errors.New("not found")

	ErrStoreRequired = errors.New("store is required")
	ErrCacheRequired = errors.New("cache is required")
)
