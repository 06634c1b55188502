// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/grackle-zero/grackle/lib/packet"
	"github.com/grackle-zero/grackle/sandbox"
)

// relay connects grackle's own standard streams to whichever of the
// child's slots 0-2 are pipes. In framed mode each input line becomes
// one length-prefixed packet on the child's stdin, and each packet the
// child writes to stdout becomes one output line.
type relay struct {
	framed    bool
	maxPacket int
	stdin     io.Reader
	stdout    io.Writer
	stderr    io.Writer
	logger    *slog.Logger
}

// Handle runs until the child's output streams end. Input is fed in the
// background and abandoned once the child stops reading.
func (r *relay) Handle(ctx context.Context, child *sandbox.Child) error {
	if stream, err := child.TakeStreamToChild(0); err == nil {
		go func() {
			defer stream.Close()
			if err := r.feed(stream); err != nil {
				r.logger.Debug("stdin relay stopped", "error", err)
			}
		}()
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for slot, sink := range []io.Writer{1: r.stdout, 2: r.stderr} {
		if sink == nil {
			continue
		}
		stream, err := child.TakeStreamFromChild(slot)
		if err != nil {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer stream.Close()
			var err error
			if slot == 1 && r.framed {
				err = r.drainPackets(stream, sink)
			} else {
				_, err = io.Copy(sink, stream)
			}
			if err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("relaying slot %d: %w", slot, err))
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return errors.Join(errs...)
}

// feed copies grackle's stdin into the child.
func (r *relay) feed(sink io.Writer) error {
	if !r.framed {
		_, err := io.Copy(sink, r.stdin)
		return err
	}
	writer := packet.NewWriter(sink, r.maxPacket)
	source := bufio.NewReader(r.stdin)
	// One byte past the packet limit tells an oversized line apart from
	// one that fills a packet exactly.
	limit := r.maxPacket
	if limit > 0 {
		limit++
	}
	for {
		record, found, err := packet.ReadDelimited(source, '\n', limit)
		switch {
		case err == io.EOF:
			return nil
		case err == io.ErrUnexpectedEOF:
			return writer.WritePacket(record)
		case err != nil:
			return err
		case !found:
			return &packet.FramingError{Op: "read", Size: uint64(len(record)), Limit: uint64(r.maxPacket), Err: packet.ErrRecordTooLong}
		}
		if err := writer.WritePacket(record); err != nil {
			return err
		}
	}
}

// drainPackets writes each packet from the child as one line.
func (r *relay) drainPackets(source io.Reader, sink io.Writer) error {
	reader := packet.NewReader(source, r.maxPacket)
	for {
		payload, err := reader.ReadPacket()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := packet.WriteDelimited(sink, payload, '\n'); err != nil {
			return err
		}
	}
}
