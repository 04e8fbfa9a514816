package domain

import (
	"errors"
	"fmt"
)

// ErrTimeout marks an operation that exceeded its deadline.
var ErrTimeout = errors.New("timed out")

// TransportError is a network or timeout failure on a direct fetch.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error fetching %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// AutomationError is a browser session that failed to start, navigate, or
// render in time.
type AutomationError struct {
	Stage string // start, navigate, render, timeout
	Err   error
}

func (e *AutomationError) Error() string {
	return fmt.Sprintf("automation error (%s): %v", e.Stage, e.Err)
}

func (e *AutomationError) Unwrap() error { return e.Err }

// ParseError means a response did not contain the expected structured data.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error for %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// DeliveryError is a notification endpoint that was unreachable or rejected
// the payload.
type DeliveryError struct {
	Destination string
	Attempts    int
	Err         error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery to %s failed after %d attempt(s): %v", e.Destination, e.Attempts, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// ConfigurationError is fatal at startup, before any collector runs.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %v", e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }
