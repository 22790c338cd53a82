// Package logging builds the process logger: JSON slog records on stdout,
// optionally mirrored to a size-rotated file.
package logging
