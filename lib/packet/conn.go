// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

package packet

import (
	"errors"
	"io"
)

// Conn pairs a Reader and a Writer over the two directions of a
// conversation, typically one ToChild and one FromChild pipe.
type Conn struct {
	*Reader
	*Writer

	closers []io.Closer
}

// NewConn returns a Conn reading from source and writing to sink with
// the same payload limit in both directions. Close closes whichever of
// source and sink implement io.Closer.
func NewConn(source io.Reader, sink io.Writer, maxPayload int) *Conn {
	conn := &Conn{
		Reader: NewReader(source, maxPayload),
		Writer: NewWriter(sink, maxPayload),
	}
	if c, ok := sink.(io.Closer); ok {
		conn.closers = append(conn.closers, c)
	}
	if c, ok := source.(io.Closer); ok {
		conn.closers = append(conn.closers, c)
	}
	return conn
}

// MaxPayload returns the payload limit shared by both directions.
func (c *Conn) MaxPayload() int {
	return c.Reader.MaxPayload()
}

// Close closes the write side first so the peer sees end-of-stream,
// then the read side.
func (c *Conn) Close() error {
	var errs []error
	for _, closer := range c.closers {
		errs = append(errs, closer.Close())
	}
	c.closers = nil
	return errors.Join(errs...)
}
