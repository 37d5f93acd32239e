// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

package model

import "fmt"

// ResultCode enumerates the error kinds surfaced by the transport facade
// and the supervisor's mode-gate, per spec §1.4.1 and §7.
type ResultCode int

const (
	Success ResultCode = iota
	ParamError
	BufferOverflow
	ApiLocked
	NotInitialized
	NotAvailable
	NotSupported
	AlreadySet
	Timeout
	ProtocolError
)

func (c ResultCode) String() string {
	switch c {
	case Success:
		return "Success"
	case ParamError:
		return "ParamError"
	case BufferOverflow:
		return "BufferOverflow"
	case ApiLocked:
		return "ApiLocked"
	case NotInitialized:
		return "NotInitialized"
	case NotAvailable:
		return "NotAvailable"
	case NotSupported:
		return "NotSupported"
	case AlreadySet:
		return "AlreadySet"
	case Timeout:
		return "Timeout"
	case ProtocolError:
		return "ProtocolError"
	default:
		return "Unknown"
	}
}

// Error wraps a ResultCode as an error, optionally annotated with
// context (the API name, a node address, ...). Components use
// errors.As to recover the ResultCode when they need to branch on it
// (e.g. distinguishing ApiLocked from a generic failure).
type Error struct {
	Code    ResultCode
	Context string
}

func (e *Error) Error() string {
	if e.Context == "" {
		return e.Code.String()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Context)
}

// NewError constructs an *Error, optionally formatting Context.
func NewError(code ResultCode, format string, args ...any) *Error {
	return &Error{Code: code, Context: fmt.Sprintf(format, args...)}
}

// Is enables errors.Is(err, model.Success) style sentinel comparisons by
// code identity.
func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == te.Code
}
