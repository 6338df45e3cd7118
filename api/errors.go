// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error types and error classification for hioload-select.

package api

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
)

// Common errors used across the library.
var (
	ErrAlreadyClosed   = errors.New("handle already closed")
	ErrSocketClosed    = errors.New("socket is closed")
	ErrNotPaused       = errors.New("handle is not paused")
	ErrMissingHandle   = errors.New("missing required handle")
	ErrAbstractServer  = errors.New("server must be specialized with an acceptor")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotSupported    = errors.New("operation not supported")
)

// ErrorCode represents specific error conditions in the library.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeInvalidArgument
	ErrCodeConstruction
	ErrCodeNotFound
	ErrCodeNotSupported
	ErrCodeInternal
)

// CodedError represents a structured error with code, context and cause.
type CodedError struct {
	Code    ErrorCode
	Message string
	Context map[string]any
	Err     error
}

// Error implements the error interface.
func (e *CodedError) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if len(e.Context) == 0 {
		return msg
	}
	return fmt.Sprintf("%s (context: %+v)", msg, e.Context)
}

// Unwrap exposes the cause to errors.Is and errors.As.
func (e *CodedError) Unwrap() error { return e.Err }

// NewError creates a new structured error.
func NewError(code ErrorCode, message string, cause error) *CodedError {
	return &CodedError{
		Code:    code,
		Message: message,
		Context: make(map[string]any),
		Err:     cause,
	}
}

// WithContext adds context information to the error.
func (e *CodedError) WithContext(key string, value any) *CodedError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// ErrorClass groups transport errors by the way buffered sockets react to them.
type ErrorClass int

const (
	ClassNone ErrorClass = iota
	ClassEndOfStream
	ClassResetOrBrokenPipe
	ClassTransient
	ClassAlreadyClosed
	ClassOther
)

func (c ErrorClass) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ClassEndOfStream:
		return "eof"
	case ClassResetOrBrokenPipe:
		return "reset"
	case ClassTransient:
		return "transient"
	case ClassAlreadyClosed:
		return "closed"
	default:
		return "other"
	}
}

// Classify maps a transport error onto its ErrorClass.
func Classify(err error) ErrorClass {
	switch {
	case err == nil:
		return ClassNone
	case errors.Is(err, io.EOF):
		return ClassEndOfStream
	case errors.Is(err, ErrAlreadyClosed),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, os.ErrClosed),
		errors.Is(err, syscall.EBADF):
		return ClassAlreadyClosed
	case errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, syscall.ECONNABORTED):
		return ClassResetOrBrokenPipe
	case errors.Is(err, syscall.EAGAIN),
		errors.Is(err, syscall.EINTR),
		errors.Is(err, os.ErrDeadlineExceeded):
		return ClassTransient
	default:
		return ClassOther
	}
}
