// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

package channel

import (
	"errors"
	"fmt"
	"os"
)

// Pipe is the materialized form of one slot.
//
// For piped modes both ends are set. For KeepInChild only Child is set
// and refers to the parent's inherited stream. For Closed both are nil.
type Pipe struct {
	Slot int
	Mode Mode

	// Parent is the end retained by the launching process.
	Parent *os.File

	// Child is the end installed into the child at descriptor Slot.
	Child *os.File

	// ownsChild is false when Child is a process-wide stream such as
	// os.Stdin that must outlive the launch.
	ownsChild bool
}

// InheritFunc resolves the parent's descriptor for a KeepInChild slot.
// It reports whether the returned file is owned by the table (and
// therefore closed with it) or shared with the rest of the process.
type InheritFunc func(slot int) (file *os.File, owned bool, err error)

// Table holds the descriptors opened for one launch.
type Table struct {
	pipes []*Pipe
}

// Open validates set and creates its pipes. KeepInChild slots are
// resolved through inherit, or [Inherit] when inherit is nil. On error
// every descriptor opened so far is closed.
func Open(set Set, inherit InheritFunc) (*Table, error) {
	if err := set.Validate(); err != nil {
		return nil, err
	}
	if inherit == nil {
		inherit = Inherit
	}

	table := &Table{pipes: make([]*Pipe, 0, set.Len())}
	for _, slot := range set.slots {
		pipe := &Pipe{Slot: slot.Number, Mode: slot.Mode}
		switch slot.Mode {
		case ToChild:
			reader, writer, err := os.Pipe()
			if err != nil {
				table.Close()
				return nil, fmt.Errorf("creating pipe for slot %d: %w", slot.Number, err)
			}
			pipe.Parent, pipe.Child, pipe.ownsChild = writer, reader, true
		case FromChild:
			reader, writer, err := os.Pipe()
			if err != nil {
				table.Close()
				return nil, fmt.Errorf("creating pipe for slot %d: %w", slot.Number, err)
			}
			pipe.Parent, pipe.Child, pipe.ownsChild = reader, writer, true
		case KeepInChild:
			file, owned, err := inherit(slot.Number)
			if err != nil {
				table.Close()
				return nil, fmt.Errorf("inheriting slot %d: %w", slot.Number, err)
			}
			pipe.Child, pipe.ownsChild = file, owned
		}
		table.pipes = append(table.pipes, pipe)
	}
	return table, nil
}

// Pipes returns the materialized slots in configuration order.
func (t *Table) Pipes() []*Pipe {
	return t.pipes
}

// Lookup returns the pipe for slot, or nil.
func (t *Table) Lookup(slot int) *Pipe {
	for _, pipe := range t.pipes {
		if pipe.Slot == slot {
			return pipe
		}
	}
	return nil
}

// CloseChildEnds closes the parent's copies of every child end it owns.
// Call it once the child holds its own duplicates, so that end-of-stream
// on a FromChild pipe depends only on the child.
func (t *Table) CloseChildEnds() error {
	var errs []error
	for _, pipe := range t.pipes {
		if pipe.Child == nil {
			continue
		}
		if pipe.ownsChild {
			if err := pipe.Child.Close(); err != nil {
				errs = append(errs, fmt.Errorf("closing child end of slot %d: %w", pipe.Slot, err))
			}
		}
		pipe.Child = nil
	}
	return errors.Join(errs...)
}

// DetachParentEnds transfers ownership of the parent ends to the
// caller, keyed by slot. The table no longer closes them.
func (t *Table) DetachParentEnds() map[int]*Pipe {
	detached := make(map[int]*Pipe)
	for _, pipe := range t.pipes {
		if pipe.Parent == nil {
			continue
		}
		detached[pipe.Slot] = &Pipe{Slot: pipe.Slot, Mode: pipe.Mode, Parent: pipe.Parent}
		pipe.Parent = nil
	}
	return detached
}

// Close releases every descriptor the table still owns.
func (t *Table) Close() error {
	errs := []error{t.CloseChildEnds()}
	for _, pipe := range t.pipes {
		if pipe.Parent != nil {
			if err := pipe.Parent.Close(); err != nil {
				errs = append(errs, fmt.Errorf("closing parent end of slot %d: %w", pipe.Slot, err))
			}
			pipe.Parent = nil
		}
	}
	return errors.Join(errs...)
}
