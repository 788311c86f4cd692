package daq

import (
	"errors"
	"fmt"
)

// Transport errors. ErrConnect and ErrIncompleteRead both wrap ErrTransport.
var (
	ErrTransport      = errors.New("transport error")
	ErrConnect        = fmt.Errorf("%w: connect failed", ErrTransport)
	ErrIncompleteRead = fmt.Errorf("%w: incomplete read", ErrTransport)
)

// Precondition errors.
var (
	ErrNotConnected = errors.New("session not connected")
	ErrStreamActive = errors.New("a stream is already open on this session")
	ErrStreamClosed = errors.New("stream closed")
)

// ReadError reports a reply that ended before the expected byte count.
type ReadError struct {
	Command byte
	Got     int
	Want    int
	Err     error // underlying port error, nil for a timeout
}

func (e *ReadError) Error() string {
	msg := fmt.Sprintf("incomplete read for %q: got %d bytes, expected %d", e.Command, e.Got, e.Want)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes ErrIncompleteRead and the port error to errors.Is.
func (e *ReadError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrIncompleteRead}
	}
	return []error{ErrIncompleteRead, e.Err}
}
