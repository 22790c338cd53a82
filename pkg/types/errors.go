package types

import "errors"

var (
	// ErrInvalidSelector is returned for bad reactor lines, signal kinds,
	// malformed ranges or selectors. It is raised before any I/O.
	ErrInvalidSelector = errors.New("invalid selector")

	// ErrQueryFailed wraps a historian or registry query that reached the
	// server but failed.
	ErrQueryFailed = errors.New("query failed")

	// ErrNotFound is returned when no batch, tag value or lookup row matches.
	ErrNotFound = errors.New("not found")

	// ErrConnectionUnavailable means the historian could not be reached.
	// It is absorbed by the historian package and never returned to callers.
	ErrConnectionUnavailable = errors.New("historian connection unavailable")
)
