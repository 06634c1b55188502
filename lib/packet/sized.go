// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

package packet

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"sync"
)

// HeaderSize is the size of the length prefix of a sized packet.
const HeaderSize = 4

// DefaultMaxPayload is the payload limit used when a constructor is
// given zero.
const DefaultMaxPayload = 1 << 20

// readChunk bounds each individual read and each growth step of the
// payload buffer.
const readChunk = 32 << 10

func formatUint(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func checkLimit(maxPayload int) uint32 {
	if maxPayload == 0 {
		return DefaultMaxPayload
	}
	if maxPayload < 0 || uint64(maxPayload) > math.MaxUint32 {
		panic(fmt.Sprintf("packet: maximum payload %d does not fit a 32-bit length header", maxPayload))
	}
	return uint32(maxPayload)
}

// flusher is implemented by buffered writers such as *bufio.Writer.
type flusher interface {
	Flush() error
}

// Reader reads length-prefixed packets from an underlying stream.
// A Reader is not safe for concurrent use.
type Reader struct {
	source io.Reader
	limit  uint32
	header [HeaderSize]byte
	chunk  []byte

	// err is sticky: once set every later read returns it.
	err error
}

// NewReader returns a Reader accepting payloads of at most maxPayload
// bytes. Zero selects [DefaultMaxPayload]. It panics if maxPayload is
// negative or larger than the 32-bit header can express.
func NewReader(source io.Reader, maxPayload int) *Reader {
	return &Reader{source: source, limit: checkLimit(maxPayload)}
}

// MaxPayload returns the configured payload limit.
func (r *Reader) MaxPayload() int {
	return int(r.limit)
}

// ReadPacket returns the next packet's payload.
//
// It returns io.EOF when the stream ends cleanly between packets and a
// *FramingError when it ends inside a packet or a header announces a
// payload above the limit. Errors from the underlying stream are
// returned unwrapped. Every error is sticky.
func (r *Reader) ReadPacket() ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}
	size, err := r.readHeader(r.header[:])
	if err != nil {
		r.err = err
		return nil, err
	}
	payload, err := r.readPayload(size)
	if err != nil {
		r.err = err
		return nil, err
	}
	return payload, nil
}

// readHeader fills header and returns the decoded length prefix found
// in its last four bytes.
func (r *Reader) readHeader(header []byte) (uint32, error) {
	n, err := io.ReadFull(r.source, header)
	switch {
	case err == io.EOF && n == 0:
		return 0, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		return 0, &FramingError{Op: "read", Err: ErrTruncatedHeader}
	case err != nil:
		return 0, err
	}
	size := binary.BigEndian.Uint32(header[len(header)-HeaderSize:])
	if size > r.limit {
		return 0, &FramingError{Op: "read", Size: uint64(size), Limit: uint64(r.limit), Err: ErrPacketTooLarge}
	}
	return size, nil
}

// readPayload reads exactly size bytes. The buffer grows with the data
// actually received rather than the announced size.
func (r *Reader) readPayload(size uint32) ([]byte, error) {
	if r.chunk == nil {
		r.chunk = make([]byte, readChunk)
	}
	payload := make([]byte, 0, min(int(size), readChunk))
	for remaining := int(size); remaining > 0; {
		n, err := io.ReadFull(r.source, r.chunk[:min(remaining, readChunk)])
		payload = append(payload, r.chunk[:n]...)
		remaining -= n
		if err == io.EOF || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, &FramingError{Op: "read", Size: uint64(size), Limit: uint64(r.limit), Err: ErrTruncatedPayload}
		}
		if err != nil {
			return nil, err
		}
	}
	return payload, nil
}

// Writer writes length-prefixed packets. It is safe for concurrent use;
// each packet is written whole before the next begins.
type Writer struct {
	mu     sync.Mutex
	sink   io.Writer
	limit  uint32
	buffer []byte
}

// NewWriter returns a Writer refusing payloads larger than maxPayload
// bytes. Zero selects [DefaultMaxPayload].
func NewWriter(sink io.Writer, maxPayload int) *Writer {
	return &Writer{sink: sink, limit: checkLimit(maxPayload)}
}

// MaxPayload returns the configured payload limit.
func (w *Writer) MaxPayload() int {
	return int(w.limit)
}

// WritePacket writes payload as a single packet. An oversized payload
// is rejected with a *FramingError before anything is written. If the
// underlying writer buffers, it is flushed.
func (w *Writer) WritePacket(payload []byte) error {
	if uint64(len(payload)) > uint64(w.limit) {
		return &FramingError{Op: "write", Size: uint64(len(payload)), Limit: uint64(w.limit), Err: ErrPacketTooLarge}
	}
	var header [HeaderSize]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))

	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writeFramed(header[:], payload)
}

// writeFramed writes header and payload back to back. Small packets are
// coalesced into one write. The caller holds w.mu.
func (w *Writer) writeFramed(header, payload []byte) error {
	if len(payload) <= readChunk {
		w.buffer = append(append(w.buffer[:0], header...), payload...)
		if _, err := w.sink.Write(w.buffer); err != nil {
			return err
		}
	} else {
		if _, err := w.sink.Write(header); err != nil {
			return err
		}
		if _, err := w.sink.Write(payload); err != nil {
			return err
		}
	}
	if f, ok := w.sink.(flusher); ok {
		return f.Flush()
	}
	return nil
}
