/*
Copyright (C) 2023-2026  Carl-Philip Hänsch

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

// Package errkind models the closed error taxonomy of spec.md §7 as a
// tagged sum (spec.md §9 "error kinds as tagged variants") instead of
// stringly-typed errors, so the connection layer can map variant to
// "-<KIND> message" without string sniffing.
package errkind

import (
	"errors"
	"fmt"
)

type Kind string

const (
	Generic     Kind = "ERR"
	WrongType   Kind = "WRONGTYPE"
	NoAuth      Kind = "NOAUTH"
	ReadOnly    Kind = "READONLY"
	Loading     Kind = "LOADING"
	Busy        Kind = "BUSY"
	MasterDown  Kind = "MASTERDOWN"
	OOM         Kind = "OOM"
	ExecAbort   Kind = "EXECABORT"
	NoReplicas  Kind = "NOREPLICAS"
)

// Error is a typed protocol error: Kind becomes the frame's leading
// tag word, Message is the human-readable remainder.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s", e.Kind, e.Message)
}

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Err(format string, args ...any) *Error           { return New(Generic, format, args...) }
func WrongTypeErr() *Error                            { return New(WrongType, "Operation against a key holding the wrong kind of value") }
func ReadOnlyErr() *Error                              { return New(ReadOnly, "You can't write against a read only replica.") }
func LoadingErr() *Error                               { return New(Loading, "Redis is loading the dataset in memory") }
func BusyErr(what string) *Error                       { return New(Busy, "%s already in progress", what) }
func MasterDownErr() *Error                            { return New(MasterDown, "Link with MASTER is down and replica-serve-stale-data is set to 'no'") }
func OOMErr() *Error                                   { return New(OOM, "command not allowed when used memory > 'maxmemory'") }
func ExecAbortErr() *Error                             { return New(ExecAbort, "Transaction discarded because of previous errors.") }
func NoReplicasErr(reached int) *Error                 { return New(NoReplicas, "timeout, reached %d replicas", reached) }

// As reports whether err is (or wraps) an *Error, mirroring errors.As
// without forcing callers to import "errors" for this one-off check.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
