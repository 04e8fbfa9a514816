package cmd

import "errors"

// Process exit codes.
const (
	ExitOK           = 0
	ExitFailure      = 1 // includes "every collector failed"
	ExitConfig       = 2
	ExitNoCollectors = 3
	ExitInterrupted  = 130
)

var errAllCollectorsFailed = errors.New("all collectors failed")

// exitError carries a specific exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }

func withExitCode(code int, err error) error {
	return &exitError{code: code, err: err}
}
