// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// ExitError signals a non-zero exit code without printing an extra
// error message. The command is expected to have already written its
// own output, as the client CLI does when "await" times out.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

// ExitCode returns the exit code.
func (e *ExitError) ExitCode() int {
	return e.Code
}

// Fatal reports err and exits. Errors carrying an ExitCode method exit
// with that code silently; anything else is written to stderr as
// "error: err" and exits with code 1. Use it in main() for errors from
// run() where the structured logger may not be initialized.
func Fatal(err error) {
	os.Exit(report(os.Stderr, err))
}

// report writes the message Fatal would print and returns the exit
// code. A nil error is exit code 0.
func report(w io.Writer, err error) int {
	if err == nil {
		return 0
	}
	var coder interface{ ExitCode() int }
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	fmt.Fprintf(w, "error: %v\n", err)
	return 1
}
