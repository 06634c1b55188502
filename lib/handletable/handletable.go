// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

// Package handletable encodes the slot-to-handle table handed to
// sandboxed Windows children.
//
// Windows has no descriptor numbers beyond the three standard handles,
// so the launcher tells the child where each extra channel landed
// through an environment variable:
//
//	SANDBOX_HANDLES=3:0x1f4;4:0x1fc;
//
// Each entry is a decimal slot number, a colon, and the handle value in
// lowercase hexadecimal with a 0x prefix. Entries end with a semicolon.
// The format is plain text so it can be produced and checked on any
// platform.
package handletable

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// EnvName is the environment variable carrying the table.
const EnvName = "SANDBOX_HANDLES"

// Entry maps a channel slot to the handle value visible in the child.
type Entry struct {
	Slot   uint32
	Handle uint64
}

// ErrMalformed is wrapped by Parse for any syntax error.
var ErrMalformed = errors.New("malformed handle table")

// Encode renders entries in slot order.
func Encode(entries []Entry) string {
	sorted := append([]Entry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Slot < sorted[j].Slot })
	var builder strings.Builder
	for _, entry := range sorted {
		builder.WriteString(strconv.FormatUint(uint64(entry.Slot), 10))
		builder.WriteString(":0x")
		builder.WriteString(strconv.FormatUint(entry.Handle, 16))
		builder.WriteByte(';')
	}
	return builder.String()
}

// Parse decodes a table. The trailing semicolon is optional and an
// empty string is an empty table. Duplicate slots are rejected.
func Parse(text string) ([]Entry, error) {
	var entries []Entry
	seen := make(map[uint32]bool)
	for _, field := range strings.Split(text, ";") {
		if field == "" {
			continue
		}
		slotText, handleText, ok := strings.Cut(field, ":")
		if !ok {
			return nil, fmt.Errorf("%w: entry %q has no ':'", ErrMalformed, field)
		}
		slot, err := strconv.ParseUint(slotText, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: slot in %q: %v", ErrMalformed, field, err)
		}
		digits, ok := strings.CutPrefix(handleText, "0x")
		if !ok {
			digits, ok = strings.CutPrefix(handleText, "0X")
		}
		if !ok {
			return nil, fmt.Errorf("%w: handle in %q lacks 0x prefix", ErrMalformed, field)
		}
		handle, err := strconv.ParseUint(digits, 16, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: handle in %q: %v", ErrMalformed, field, err)
		}
		if seen[uint32(slot)] {
			return nil, fmt.Errorf("%w: slot %d listed twice", ErrMalformed, slot)
		}
		seen[uint32(slot)] = true
		entries = append(entries, Entry{Slot: uint32(slot), Handle: handle})
	}
	return entries, nil
}

// Lookup returns the handle recorded for slot.
func Lookup(entries []Entry, slot uint32) (uint64, bool) {
	for _, entry := range entries {
		if entry.Slot == slot {
			return entry.Handle, true
		}
	}
	return 0, false
}
