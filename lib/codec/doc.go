// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec is the CBOR configuration shared by grackle's internal
// protocols, chiefly the launch plan and status report exchanged with
// the sandbox helper process.
//
// Encoding uses Core Deterministic Encoding (RFC 8949 §4.2). Decoding
// is strict: unknown fields and duplicate map keys are errors, since
// both ends of every grackle protocol are the same binary and a
// mismatch means corruption rather than version skew.
//
//	encoder := codec.NewEncoder(pipe)
//	err := encoder.Encode(plan)
//
//	decoder := codec.NewDecoder(pipe)
//	err := decoder.Decode(&plan)
//
// Types carried over these protocols use `cbor` struct tags.
package codec
