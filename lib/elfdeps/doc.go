// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

// Package elfdeps computes the set of files an executable needs to be
// loaded: the executable itself, its program interpreter, every shared
// library reachable through DT_NEEDED entries, and the loader cache.
//
// The sandbox grants read and execute access to exactly this set, so a
// library that cannot be located is an error: launching without it
// would either fail inside the child or, worse, tempt a caller to widen
// the allow-list by hand.
//
// Resolution follows the dynamic loader's search order: DT_RPATH (when
// no DT_RUNPATH is present), DT_RUNPATH, the directories from
// /etc/ld.so.conf, then the architecture's default directories. Each
// candidate must match the requesting object's ELF class and machine.
// $ORIGIN, $LIB and $PLATFORM are expanded. Scripts starting with "#!"
// contribute their interpreter.
package elfdeps
