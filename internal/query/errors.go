package query

import "errors"

var (
	// ErrInvalidArgument marks requests rejected before traversal starts.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrDataSourceUnavailable marks failures reaching or reading the backing
	// graph. It is never reported as an empty result.
	ErrDataSourceUnavailable = errors.New("data source unavailable")
)
