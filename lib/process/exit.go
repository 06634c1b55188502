// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// Fatal writes "error: err" to stderr and exits with code 1. Use it in
// main() for errors from run() where the structured logger may not be
// initialized.
func Fatal(err error) {
	os.Exit(Report(os.Stderr, err))
}

// exitCoder is implemented by errors that carry a process exit code,
// such as a sandboxed child's failure.
type exitCoder interface {
	ExitCode() int
}

// Report writes err to w unless it only carries an exit code, and
// returns the code the process should exit with. A nil err is 0.
func Report(w io.Writer, err error) int {
	if err == nil {
		return 0
	}
	var coder exitCoder
	if errors.As(err, &coder) {
		code := coder.ExitCode()
		if code == 0 {
			code = 1
		}
		return code
	}
	fmt.Fprintf(w, "error: %v\n", err)
	return 1
}
