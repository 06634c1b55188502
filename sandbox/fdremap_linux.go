// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package sandbox

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"

	"golang.org/x/sys/unix"
)

// fdMapping moves descriptor Source in the helper to Target in the
// exec'd child.
type fdMapping struct {
	Source int `cbor:"source"`
	Target int `cbor:"target"`
}

// scratchBase returns the lowest descriptor number that collides with
// no source, target, or reserved descriptor. Temporaries are placed at
// or above it so that installing one target can never clobber a source
// still waiting to be installed.
func scratchBase(mappings []fdMapping, reserved ...int) int {
	highest := 2
	for _, fd := range reserved {
		highest = max(highest, fd)
	}
	for _, mapping := range mappings {
		highest = max(highest, mapping.Source, mapping.Target)
	}
	return highest + 1
}

// remapDescriptors installs mappings and marks every other descriptor
// close-on-exec. statusFD is moved to a close-on-exec scratch slot
// first; the returned number is its new location, valid even when an
// error is returned after that first step.
func remapDescriptors(mappings []fdMapping, statusFD int) (int, error) {
	base := scratchBase(mappings, statusFD, helperConfigFD)

	movedStatus, err := unix.FcntlInt(uintptr(statusFD), unix.F_DUPFD_CLOEXEC, base)
	if err != nil {
		return statusFD, fmt.Errorf("relocating status descriptor: %w", err)
	}
	_ = unix.Close(statusFD)

	type pending struct {
		temporary int
		target    int
	}
	var moves []pending
	for _, mapping := range mappings {
		if mapping.Source == mapping.Target {
			continue
		}
		temporary, err := unix.FcntlInt(uintptr(mapping.Source), unix.F_DUPFD_CLOEXEC, base)
		if err != nil {
			return movedStatus, fmt.Errorf("duplicating descriptor %d: %w", mapping.Source, err)
		}
		moves = append(moves, pending{temporary: temporary, target: mapping.Target})
	}
	for _, move := range moves {
		if err := unix.Dup3(move.temporary, move.target, 0); err != nil {
			return movedStatus, fmt.Errorf("installing descriptor %d: %w", move.target, err)
		}
	}

	keep := make([]int, 0, len(mappings))
	for _, mapping := range mappings {
		if mapping.Source == mapping.Target {
			if _, err := unix.FcntlInt(uintptr(mapping.Target), unix.F_SETFD, 0); err != nil {
				return movedStatus, fmt.Errorf("clearing close-on-exec on %d: %w", mapping.Target, err)
			}
		}
		keep = append(keep, mapping.Target)
	}
	if err := closeOthersOnExec(keep); err != nil {
		return movedStatus, err
	}
	return movedStatus, nil
}

// closeOthersOnExec marks every open descriptor not in keep
// close-on-exec.
func closeOthersOnExec(keep []int) error {
	ranges := complementRanges(keep)
	for _, r := range ranges {
		err := unix.CloseRange(uint(r.first), uint(r.last), unix.CLOSE_RANGE_CLOEXEC)
		if err == nil {
			continue
		}
		if errors.Is(err, unix.ENOSYS) || errors.Is(err, unix.EINVAL) {
			return closeOthersOnExecByScan(keep)
		}
		return fmt.Errorf("marking descriptors %d-%d close-on-exec: %w", r.first, r.last, err)
	}
	return nil
}

type fdRange struct {
	first, last int
}

// complementRanges returns the descriptor ranges not covered by keep.
// The final range is open ended.
func complementRanges(keep []int) []fdRange {
	sorted := append([]int(nil), keep...)
	sort.Ints(sorted)
	var ranges []fdRange
	next := 0
	for _, fd := range sorted {
		if fd > next {
			ranges = append(ranges, fdRange{first: next, last: fd - 1})
		}
		if fd >= next {
			next = fd + 1
		}
	}
	return append(ranges, fdRange{first: next, last: int(^uint32(0) >> 1)})
}

// closeOthersOnExecByScan is the fallback for kernels without
// close_range(CLOSE_RANGE_CLOEXEC), before Linux 5.11.
func closeOthersOnExecByScan(keep []int) error {
	entries, err := os.ReadDir("/proc/self/fd")
	if err != nil {
		return fmt.Errorf("listing open descriptors: %w", err)
	}
	kept := make(map[int]bool, len(keep))
	for _, fd := range keep {
		kept[fd] = true
	}
	for _, entry := range entries {
		fd, err := strconv.Atoi(entry.Name())
		if err != nil || kept[fd] {
			continue
		}
		unix.CloseOnExec(fd)
	}
	return nil
}
