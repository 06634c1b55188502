// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

package packet

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"sync"
	"testing"
)

func TestPacketRoundTrip(t *testing.T) {
	var stream bytes.Buffer
	writer := NewWriter(&stream, 64)
	payloads := [][]byte{[]byte("a"), {}, bytes.Repeat([]byte{0xAB}, 64)}
	for _, payload := range payloads {
		if err := writer.WritePacket(payload); err != nil {
			t.Fatalf("WritePacket(%d bytes): %v", len(payload), err)
		}
	}

	reader := NewReader(&stream, 64)
	for i, want := range payloads {
		got, err := reader.ReadPacket()
		if err != nil {
			t.Fatalf("ReadPacket #%d: %v", i, err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("packet #%d = %x, want %x", i, got, want)
		}
	}
	if _, err := reader.ReadPacket(); err != io.EOF {
		t.Fatalf("ReadPacket at end = %v, want io.EOF", err)
	}
}

func TestHeaderIsBigEndianLength(t *testing.T) {
	var stream bytes.Buffer
	if err := NewWriter(&stream, 0).WritePacket([]byte("hello")); err != nil {
		t.Fatalf("WritePacket: %v", err)
	}
	want := []byte{0, 0, 0, 5, 'h', 'e', 'l', 'l', 'o'}
	if !bytes.Equal(stream.Bytes(), want) {
		t.Fatalf("wire bytes = %x, want %x", stream.Bytes(), want)
	}
}

func TestTruncatedHeader(t *testing.T) {
	reader := NewReader(bytes.NewReader([]byte{0, 0}), 16)
	_, err := reader.ReadPacket()
	if !errors.Is(err, ErrTruncatedHeader) || !IsFramingError(err) {
		t.Fatalf("ReadPacket = %v, want truncated header framing error", err)
	}
}

func TestTruncatedPayload(t *testing.T) {
	reader := NewReader(bytes.NewReader([]byte{0, 0, 0, 8, 1, 2, 3}), 16)
	_, err := reader.ReadPacket()
	if !errors.Is(err, ErrTruncatedPayload) {
		t.Fatalf("ReadPacket = %v, want ErrTruncatedPayload", err)
	}
}

func TestOversizedHeaderRejectedBeforeAllocation(t *testing.T) {
	// Announces 4 GiB - 1 with no payload behind it.
	source := &countingReader{data: []byte{0xFF, 0xFF, 0xFF, 0xFF}}
	reader := NewReader(source, 1024)
	_, err := reader.ReadPacket()
	var framing *FramingError
	if !errors.As(err, &framing) || !errors.Is(err, ErrPacketTooLarge) {
		t.Fatalf("ReadPacket = %v, want ErrPacketTooLarge", err)
	}
	if framing.Size != 0xFFFFFFFF || framing.Limit != 1024 {
		t.Errorf("FramingError size/limit = %d/%d", framing.Size, framing.Limit)
	}
	if source.consumed != HeaderSize {
		t.Errorf("reader consumed %d bytes, want only the header", source.consumed)
	}
}

func TestErrorsAreSticky(t *testing.T) {
	data := []byte{0, 0, 0, 9, 0, 0, 0, 1, 'x'}
	reader := NewReader(bytes.NewReader(data), 4)
	_, first := reader.ReadPacket()
	if !errors.Is(first, ErrPacketTooLarge) {
		t.Fatalf("first ReadPacket = %v, want ErrPacketTooLarge", first)
	}
	_, second := reader.ReadPacket()
	if second != first {
		t.Fatalf("second ReadPacket = %v, want the same sticky error", second)
	}
}

func TestWriterRejectsOversizedPayload(t *testing.T) {
	var stream bytes.Buffer
	err := NewWriter(&stream, 3).WritePacket([]byte("four"))
	if !errors.Is(err, ErrPacketTooLarge) {
		t.Fatalf("WritePacket = %v, want ErrPacketTooLarge", err)
	}
	if stream.Len() != 0 {
		t.Fatalf("oversized packet wrote %d bytes", stream.Len())
	}
}

func TestLargePayloadReadInChunks(t *testing.T) {
	payload := bytes.Repeat([]byte("0123456789abcdef"), 8192) // 128 KiB
	var stream bytes.Buffer
	if err := NewWriter(&stream, len(payload)).WritePacket(payload); err != nil {
		t.Fatalf("WritePacket: %v", err)
	}
	got, err := NewReader(iotestOneByteAtATime(&stream), len(payload)).ReadPacket()
	if err != nil {
		t.Fatalf("ReadPacket: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatal("large payload corrupted")
	}
}

func TestConcurrentWritersDoNotInterleave(t *testing.T) {
	var stream lockedBuffer
	writer := NewWriter(&stream, 1<<16)

	const writers = 8
	const perWriter = 50
	var group sync.WaitGroup
	for i := range writers {
		group.Add(1)
		go func(marker byte) {
			defer group.Done()
			payload := bytes.Repeat([]byte{marker}, 40000)
			for range perWriter {
				if err := writer.WritePacket(payload); err != nil {
					t.Errorf("WritePacket: %v", err)
					return
				}
			}
		}(byte('A' + i))
	}
	group.Wait()

	reader := NewReader(bytes.NewReader(stream.Bytes()), 1<<16)
	count := 0
	for {
		payload, err := reader.ReadPacket()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("ReadPacket #%d: %v", count, err)
		}
		if len(payload) != 40000 || bytes.Count(payload, payload[:1]) != len(payload) {
			t.Fatalf("packet #%d is interleaved", count)
		}
		count++
	}
	if count != writers*perWriter {
		t.Fatalf("read %d packets, want %d", count, writers*perWriter)
	}
}

func TestWriterFlushesBufferedSink(t *testing.T) {
	var stream bytes.Buffer
	buffered := bufio.NewWriter(&stream)
	if err := NewWriter(buffered, 0).WritePacket([]byte("x")); err != nil {
		t.Fatalf("WritePacket: %v", err)
	}
	if stream.Len() != HeaderSize+1 {
		t.Fatalf("underlying stream has %d bytes after WritePacket, want flushed packet", stream.Len())
	}
}

func TestNewReaderPanicsOnNegativeLimit(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("NewReader(-1) did not panic")
		}
	}()
	NewReader(bytes.NewReader(nil), -1)
}

func TestConnExchange(t *testing.T) {
	upReader, upWriter := io.Pipe()
	downReader, downWriter := io.Pipe()
	parent := NewConn(upReader, downWriter, 128)
	child := NewConn(downReader, upWriter, 128)

	go func() {
		request, err := child.ReadPacket()
		if err != nil {
			upWriter.CloseWithError(err)
			return
		}
		_ = child.WritePacket(append([]byte("re: "), request...))
		child.Close()
	}()

	if err := parent.WritePacket([]byte("ping")); err != nil {
		t.Fatalf("WritePacket: %v", err)
	}
	reply, err := parent.ReadPacket()
	if err != nil {
		t.Fatalf("ReadPacket: %v", err)
	}
	if string(reply) != "re: ping" {
		t.Fatalf("reply = %q", reply)
	}
	if err := parent.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

type countingReader struct {
	data     []byte
	consumed int
}

func (r *countingReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	r.consumed += n
	return n, nil
}

type lockedBuffer struct {
	mu     sync.Mutex
	buffer bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buffer.Write(p)
}

func (b *lockedBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buffer.Bytes()
}

type oneByteReader struct{ source io.Reader }

func (r oneByteReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	return r.source.Read(p[:1])
}

func iotestOneByteAtATime(source io.Reader) io.Reader {
	return oneByteReader{source: source}
}
