// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

package packet

import (
	"io"
)

// ReadDelimited reads bytes until delimiter and returns them without
// the delimiter. found is false when maxLength bytes arrived with no
// delimiter among them; the delimiter, if it comes next, is left
// unread. Zero maxLength means no limit.
//
// At end of stream it returns io.EOF if nothing was read, and
// io.ErrUnexpectedEOF together with the partial record otherwise.
//
// Wrap unbuffered streams in a bufio.Reader: ReadDelimited reads one
// byte at a time so it never consumes past the delimiter.
func ReadDelimited(source io.Reader, delimiter byte, maxLength int) (record []byte, found bool, err error) {
	byteReader, ok := source.(io.ByteReader)
	if !ok {
		byteReader = &singleByteReader{source: source}
	}
	for maxLength <= 0 || len(record) < maxLength {
		b, err := byteReader.ReadByte()
		if err == io.EOF {
			if len(record) > 0 {
				err = io.ErrUnexpectedEOF
			}
			return record, false, err
		}
		if err != nil {
			return record, false, err
		}
		if b == delimiter {
			return record, true, nil
		}
		record = append(record, b)
	}
	return record, false, nil
}

// WriteDelimited writes record followed by delimiter and flushes sink
// if it buffers.
func WriteDelimited(sink io.Writer, record []byte, delimiter byte) error {
	buffer := make([]byte, 0, len(record)+1)
	buffer = append(append(buffer, record...), delimiter)
	if _, err := sink.Write(buffer); err != nil {
		return err
	}
	if f, ok := sink.(flusher); ok {
		return f.Flush()
	}
	return nil
}

type singleByteReader struct {
	source io.Reader
	buffer [1]byte
}

func (r *singleByteReader) ReadByte() (byte, error) {
	for {
		n, err := r.source.Read(r.buffer[:])
		if n == 1 {
			return r.buffer[0], nil
		}
		if err != nil {
			return 0, err
		}
	}
}
