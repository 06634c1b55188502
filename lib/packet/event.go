// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

package packet

import (
	"encoding/binary"
	"strings"
)

// EventIDSize is the fixed width of the event identifier.
const EventIDSize = 12

// EventHeaderSize is the size of an event packet header: packet ID,
// command packet ID, event ID and payload length.
const EventHeaderSize = 8 + 8 + EventIDSize + HeaderSize

// EventHeader is the fixed-width prefix of an event packet.
type EventHeader struct {
	PacketID        uint64
	CommandPacketID uint64
	EventID         [EventIDSize]byte
	Size            uint32
}

// EventName returns the event identifier with trailing zero padding
// removed.
func (h EventHeader) EventName() string {
	return strings.TrimRight(string(h.EventID[:]), "\x00")
}

// Event is an event header and its payload.
type Event struct {
	Header  EventHeader
	Payload []byte
}

// MakeEventID converts name to the fixed-width identifier, zero padding
// short names and truncating long ones.
func MakeEventID(name string) [EventIDSize]byte {
	var id [EventIDSize]byte
	copy(id[:], name)
	return id
}

func (h EventHeader) marshal() [EventHeaderSize]byte {
	var buffer [EventHeaderSize]byte
	binary.BigEndian.PutUint64(buffer[0:8], h.PacketID)
	binary.BigEndian.PutUint64(buffer[8:16], h.CommandPacketID)
	copy(buffer[16:16+EventIDSize], h.EventID[:])
	binary.BigEndian.PutUint32(buffer[16+EventIDSize:], h.Size)
	return buffer
}

func unmarshalEventHeader(buffer []byte) EventHeader {
	var header EventHeader
	header.PacketID = binary.BigEndian.Uint64(buffer[0:8])
	header.CommandPacketID = binary.BigEndian.Uint64(buffer[8:16])
	copy(header.EventID[:], buffer[16:16+EventIDSize])
	header.Size = binary.BigEndian.Uint32(buffer[16+EventIDSize:])
	return header
}

// ReadEvent reads the next event packet. Its error behavior matches
// [Reader.ReadPacket]; the two must not be mixed on one stream.
func (r *Reader) ReadEvent() (*Event, error) {
	if r.err != nil {
		return nil, r.err
	}
	var buffer [EventHeaderSize]byte
	size, err := r.readHeader(buffer[:])
	if err != nil {
		r.err = err
		return nil, err
	}
	payload, err := r.readPayload(size)
	if err != nil {
		r.err = err
		return nil, err
	}
	return &Event{Header: unmarshalEventHeader(buffer[:]), Payload: payload}, nil
}

// WriteEvent writes event. The header's Size must equal the payload
// length; a mismatch or oversized payload is rejected before anything
// is written.
func (w *Writer) WriteEvent(event *Event) error {
	if uint64(len(event.Payload)) > uint64(w.limit) {
		return &FramingError{Op: "write", Size: uint64(len(event.Payload)), Limit: uint64(w.limit), Err: ErrPacketTooLarge}
	}
	if uint64(event.Header.Size) != uint64(len(event.Payload)) {
		return &FramingError{Op: "write", Size: uint64(event.Header.Size), Limit: uint64(w.limit), Err: ErrSizeMismatch}
	}
	header := event.Header.marshal()

	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writeFramed(header[:], event.Payload)
}

// WriteEventString builds an event from its parts and writes it. The
// size field is computed from payload.
func (w *Writer) WriteEventString(packetID, commandPacketID uint64, eventName string, payload []byte) error {
	if uint64(len(payload)) > uint64(w.limit) {
		return &FramingError{Op: "write", Size: uint64(len(payload)), Limit: uint64(w.limit), Err: ErrPacketTooLarge}
	}
	return w.WriteEvent(&Event{
		Header: EventHeader{
			PacketID:        packetID,
			CommandPacketID: commandPacketID,
			EventID:         MakeEventID(eventName),
			Size:            uint32(len(payload)),
		},
		Payload: payload,
	})
}
