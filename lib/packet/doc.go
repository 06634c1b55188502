// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

// Package packet frames messages over byte streams such as the pipes
// connecting a sandboxed child to its parent.
//
// A sized packet is a 4-byte big-endian payload length followed by the
// payload:
//
//	+--------+--------+--------+--------+=================+
//	|        payload length (uint32)    |  payload bytes  |
//	+--------+--------+--------+--------+=================+
//
// A [Reader] enforces a maximum payload size before allocating, so a
// hostile peer cannot make the parent allocate more than that maximum.
// Framing failures are reported as *[FramingError] and are sticky: a
// stream is not usable after one. A [Writer] serializes concurrent
// callers so that packets from different goroutines never interleave.
//
// Event packets ([Event]) extend the header with two 8-byte packet
// identifiers and a 12-byte event identifier. Delimited records
// ([ReadDelimited], [WriteDelimited]) cover line-oriented peers.
package packet
