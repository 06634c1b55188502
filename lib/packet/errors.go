// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

package packet

import "errors"

var (
	// ErrTruncatedHeader means the stream ended partway through a
	// length header.
	ErrTruncatedHeader = errors.New("stream ended inside packet header")

	// ErrTruncatedPayload means the stream ended before the number of
	// payload bytes announced by the header arrived.
	ErrTruncatedPayload = errors.New("stream ended inside packet payload")

	// ErrPacketTooLarge means a packet exceeds the configured maximum.
	ErrPacketTooLarge = errors.New("packet exceeds maximum size")

	// ErrSizeMismatch means an event header's size field disagrees with
	// its payload length.
	ErrSizeMismatch = errors.New("event header size does not match payload")

	// ErrRecordTooLong means a delimited record exceeded its limit
	// before a delimiter was found.
	ErrRecordTooLong = errors.New("delimited record exceeds maximum length")
)

// FramingError reports a malformed or oversized packet. It wraps one of
// the sentinel errors above.
type FramingError struct {
	// Op is "read" or "write".
	Op string

	// Size is the announced or attempted payload size, when known.
	Size uint64

	// Limit is the configured maximum payload size.
	Limit uint64

	Err error
}

func (e *FramingError) Error() string {
	message := "packet " + e.Op + ": " + e.Err.Error()
	if errors.Is(e.Err, ErrPacketTooLarge) {
		message += " (" + formatUint(e.Size) + " > " + formatUint(e.Limit) + " bytes)"
	}
	return message
}

func (e *FramingError) Unwrap() error {
	return e.Err
}

// IsFramingError reports whether err is or wraps a *FramingError.
func IsFramingError(err error) bool {
	var framing *FramingError
	return errors.As(err, &framing)
}
