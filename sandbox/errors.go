// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"errors"
	"fmt"
)

// Kind classifies a sandbox failure.
type Kind int

const (
	// KindConfiguration covers invalid launch configurations: duplicate
	// slots, empty commands, unsupported modes. Nothing was started.
	KindConfiguration Kind = iota + 1

	// KindResource covers failures acquiring OS resources: pipes,
	// processes, tokens, job objects.
	KindResource

	// KindRestriction means a restriction could not be installed or
	// confirmed. The target program never ran unrestricted.
	KindRestriction

	// KindCommunication covers failures while exchanging data with a
	// running child, including errors returned by the handler.
	KindCommunication
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindResource:
		return "resource"
	case KindRestriction:
		return "restriction"
	case KindCommunication:
		return "communication"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is the error type returned by this package.
type Error struct {
	Kind Kind

	// Op names the step that failed, such as "create pipes" or
	// "install seccomp filter".
	Op string

	Err error
}

func (e *Error) Error() string {
	message := "sandbox " + e.Kind.String() + " error"
	if e.Op != "" {
		message += ": " + e.Op
	}
	if e.Err != nil {
		message += ": " + e.Err.Error()
	}
	return message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the Kind sentinels below, so callers can write
// errors.Is(err, sandbox.ErrRestriction).
func (e *Error) Is(target error) bool {
	sentinel, ok := target.(*Error)
	if !ok || sentinel.Op != "" || sentinel.Err != nil {
		return false
	}
	return sentinel.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrConfiguration = &Error{Kind: KindConfiguration}
	ErrResource      = &Error{Kind: KindResource}
	ErrRestriction   = &Error{Kind: KindRestriction}
	ErrCommunication = &Error{Kind: KindCommunication}
)

// ErrNoSuchStream is returned when a stream was already taken or the
// slot was not configured in the requested direction.
var ErrNoSuchStream = errors.New("no such stream")

// ErrUnsupportedPlatform is wrapped by launches on platforms without
// a restriction backend.
var ErrUnsupportedPlatform = errors.New("sandboxing is not implemented on this platform")

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func configurationError(op string, format string, args ...any) *Error {
	return newError(KindConfiguration, op, fmt.Errorf(format, args...))
}

// KindOf returns the Kind of the first *Error in err's chain, or zero.
func KindOf(err error) Kind {
	var sandboxError *Error
	if errors.As(err, &sandboxError) {
		return sandboxError.Kind
	}
	return 0
}
