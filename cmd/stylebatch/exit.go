package main

import (
	"errors"
	"fmt"
)

// Process exit codes.
const (
	exitOK          = 0
	exitItemsFailed = 1
	exitFatal       = 2
)

// errItemsFailed signals a completed batch with item-level failures.
var errItemsFailed = errors.New("one or more items failed")

// itemFailures returns errItemsFailed annotated with n when n > 0.
func itemFailures(n int) error {
	if n <= 0 {
		return nil
	}
	return fmt.Errorf("%w: %d", errItemsFailed, n)
}

// exitCode maps the error returned by a command onto the process exit
// contract.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errItemsFailed):
		return exitItemsFailed
	default:
		return exitFatal
	}
}
