// Package formats provides parsers for the chunked WDT/ADT terrain container formats.
package formats

import (
	"errors"
	"fmt"
)

// Common format errors.
var (
	// ErrFormat is the root of every framing and layout error raised by this package.
	ErrFormat = errors.New("malformed chunk data")
)

// FormatError describes a framing problem at a specific offset of a chunk region.
type FormatError struct {
	Offset int64  // Offset of the offending record header, relative to the region
	Tag    Tag    // Tag of the offending record, zero when the header itself was cut
	Reason string // Short human-readable description
}

func (e *FormatError) Error() string {
	if e.Tag == 0 {
		return fmt.Sprintf("%v at offset %d: %s", ErrFormat, e.Offset, e.Reason)
	}
	return fmt.Sprintf("%v at offset %d (%s): %s", ErrFormat, e.Offset, e.Tag, e.Reason)
}

// Unwrap allows errors.Is(err, ErrFormat).
func (e *FormatError) Unwrap() error {
	return ErrFormat
}

func formatErrorf(offset int64, tag Tag, format string, args ...any) *FormatError {
	return &FormatError{Offset: offset, Tag: tag, Reason: fmt.Sprintf(format, args...)}
}
