// Copyright 2025 The go-cosim Authors
// This file is part of the go-cosim library.
//
// The go-cosim library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-cosim library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-cosim library. If not, see <http://www.gnu.org/licenses/>.

// Package status defines the error categories which asynchronous operations
// report to their completion callbacks. Callbacks receive plain errors;
// callers that need to branch on the category use KindOf.
package status

import (
	"errors"
	"fmt"
)

// Kind is the category of a reported error.
type Kind int

const (
	// OK means no error. KindOf returns it for nil errors only.
	OK Kind = iota
	// InputError means the caller violated a precondition.
	InputError
	// ProtocolViolation means a peer sent a malformed or unexpected message.
	ProtocolViolation
	// Timeout means a deadline elapsed before the expected responses arrived.
	Timeout
	// StepFailed means a slave reported that it could not perform a step.
	StepFailed
	// Lost means a slave has previously failed and is no longer usable.
	Lost
	// Aborted means the operation was cut short by termination.
	Aborted
	// Unknown is reported for errors which did not originate here.
	Unknown
)

func (k Kind) String() string {
	switch k {
	case OK:
		return "ok"
	case InputError:
		return "input error"
	case ProtocolViolation:
		return "protocol violation"
	case Timeout:
		return "timeout"
	case StepFailed:
		return "step failed"
	case Lost:
		return "slave lost"
	case Aborted:
		return "aborted"
	default:
		return "unknown error"
	}
}

// Error is an error with a Kind attached.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Msg
}

// New returns an error of the given kind.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf returns an error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of err: OK for nil, the attached kind for errors
// created by this package (also when wrapped), and Unknown otherwise.
func KindOf(err error) Kind {
	if err == nil {
		return OK
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return Unknown
}

// Is reports whether err has the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
