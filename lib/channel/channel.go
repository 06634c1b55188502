// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

package channel

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// MaxSlot is the largest descriptor number a Set may name.
const MaxSlot = 65535

// Mode is how a single child descriptor slot is provisioned.
type Mode int

const (
	// Closed guarantees the slot is not open in the child.
	Closed Mode = iota
	// ToChild creates a pipe the parent writes and the child reads.
	ToChild
	// FromChild creates a pipe the child writes and the parent reads.
	FromChild
	// KeepInChild passes the parent's descriptor of the same number
	// through to the child.
	KeepInChild
)

var modeNames = map[Mode]string{
	Closed:      "closed",
	ToChild:     "to-child",
	FromChild:   "from-child",
	KeepInChild: "keep",
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return "Mode(" + strconv.Itoa(int(m)) + ")"
}

// Valid reports whether m is one of the defined modes.
func (m Mode) Valid() bool {
	_, ok := modeNames[m]
	return ok
}

// Piped reports whether the mode creates a new pipe.
func (m Mode) Piped() bool {
	return m == ToChild || m == FromChild
}

// ParseMode parses the names produced by [Mode.String]. "in" and "out"
// are accepted as aliases for to-child and from-child.
func ParseMode(name string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "closed", "close":
		return Closed, nil
	case "to-child", "in":
		return ToChild, nil
	case "from-child", "out":
		return FromChild, nil
	case "keep", "inherit":
		return KeepInChild, nil
	}
	return Closed, fmt.Errorf("unknown channel mode %q (valid: closed, to-child, from-child, keep)", name)
}

// Slot pairs a child descriptor number with its mode.
type Slot struct {
	Number int
	Mode   Mode
}

func (s Slot) String() string {
	return strconv.Itoa(s.Number) + ":" + s.Mode.String()
}

// ParseSlot parses "N:mode", the form produced by [Slot.String].
func ParseSlot(text string) (Slot, error) {
	number, modeName, ok := strings.Cut(text, ":")
	if !ok {
		return Slot{}, fmt.Errorf("channel %q: expected SLOT:MODE", text)
	}
	n, err := strconv.Atoi(strings.TrimSpace(number))
	if err != nil {
		return Slot{}, fmt.Errorf("channel %q: invalid slot number: %w", text, err)
	}
	mode, err := ParseMode(modeName)
	if err != nil {
		return Slot{}, fmt.Errorf("channel %q: %w", text, err)
	}
	return Slot{Number: n, Mode: mode}, nil
}

var (
	// ErrDuplicateSlot is returned by [Set.Validate] when two entries
	// name the same descriptor number.
	ErrDuplicateSlot = errors.New("duplicate channel slot")

	// ErrInvalidSlot is returned by [Set.Validate] for negative or
	// oversized descriptor numbers and undefined modes.
	ErrInvalidSlot = errors.New("invalid channel slot")
)

// Set is the channel configuration of one launch. The zero value has
// no slots: the child starts with every descriptor closed.
type Set struct {
	slots []Slot
}

// Basic returns a Set that assigns modes to slots 0, 1, 2, ... in order.
func Basic(modes ...Mode) Set {
	slots := make([]Slot, len(modes))
	for i, mode := range modes {
		slots[i] = Slot{Number: i, Mode: mode}
	}
	return Set{slots: slots}
}

// Std returns the Set that passes the parent's standard streams through.
func Std() Set {
	return Basic(KeepInChild, KeepInChild, KeepInChild)
}

// FromSlots returns a Set with the given slots in the given order.
// Duplicates are reported by [Set.Validate], not here.
func FromSlots(slots ...Slot) Set {
	return Set{slots: append([]Slot(nil), slots...)}
}

// FromMap returns a Set built from a slot-to-mode map, ordered by slot
// number.
func FromMap(modes map[int]Mode) Set {
	slots := make([]Slot, 0, len(modes))
	for number, mode := range modes {
		slots = append(slots, Slot{Number: number, Mode: mode})
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].Number < slots[j].Number })
	return Set{slots: slots}
}

// With returns a copy of s with slot appended.
func (s Set) With(number int, mode Mode) Set {
	slots := make([]Slot, len(s.slots), len(s.slots)+1)
	copy(slots, s.slots)
	return Set{slots: append(slots, Slot{Number: number, Mode: mode})}
}

// Slots returns a copy of the slots in configuration order.
func (s Set) Slots() []Slot {
	return append([]Slot(nil), s.slots...)
}

// Len returns the number of configured slots.
func (s Set) Len() int {
	return len(s.slots)
}

// Mode returns the mode configured for number.
func (s Set) Mode(number int) (Mode, bool) {
	for _, slot := range s.slots {
		if slot.Number == number {
			return slot.Mode, true
		}
	}
	return Closed, false
}

// PipedCount returns the number of slots that need a new pipe.
func (s Set) PipedCount() int {
	count := 0
	for _, slot := range s.slots {
		if slot.Mode.Piped() {
			count++
		}
	}
	return count
}

// Validate checks that every slot number is in range, appears once,
// and has a defined mode.
func (s Set) Validate() error {
	seen := make(map[int]bool, len(s.slots))
	var errs []error
	for _, slot := range s.slots {
		if slot.Number < 0 || slot.Number > MaxSlot {
			errs = append(errs, fmt.Errorf("%w: slot %d out of range 0..%d", ErrInvalidSlot, slot.Number, MaxSlot))
			continue
		}
		if !slot.Mode.Valid() {
			errs = append(errs, fmt.Errorf("%w: slot %d has %v", ErrInvalidSlot, slot.Number, slot.Mode))
		}
		if seen[slot.Number] {
			errs = append(errs, fmt.Errorf("%w: slot %d", ErrDuplicateSlot, slot.Number))
		}
		seen[slot.Number] = true
	}
	return errors.Join(errs...)
}

func (s Set) String() string {
	parts := make([]string, len(s.slots))
	for i, slot := range s.slots {
		parts[i] = slot.String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}
