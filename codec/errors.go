// Package codec converts between the byte stream of a dump container and
// typed GS bus transactions.
package codec

import (
	"errors"
	"fmt"
)

// ErrCorruptDump is matched by every structural violation found while
// decoding: a record cut short, an unknown kind, or a malformed length. The
// session cannot continue after it.
var ErrCorruptDump = errors.New("corrupt dump")

// ErrPayloadTooLarge is returned when a record declares a buffer larger than
// the decoder is allowed to allocate. Nothing is allocated in that case.
var ErrPayloadTooLarge = errors.New("payload too large")

// DefaultMaxPayload bounds single payload and readback allocations.
const DefaultMaxPayload = 256 << 20

func corrupt(offset int64, format string, args ...any) error {
	return fmt.Errorf("%w at offset %d: %s",
		ErrCorruptDump, offset, fmt.Sprintf(format, args...))
}

func corruptRead(offset int64, what string, err error) error {
	return fmt.Errorf("%w at offset %d: reading %s: %w",
		ErrCorruptDump, offset, what, err)
}
