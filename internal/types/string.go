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
package types

import (
	"fmt"
	"math"
	"strconv"
)

// String is a binary-safe byte sequence (spec.md §4.3).
type String struct {
	B []byte
}

func NewString(b []byte) *String { return &String{B: b} }

func (*String) TypeName() string { return TypeString }

func (s *String) Clone() Value {
	b := make([]byte, len(s.B))
	copy(b, s.B)
	return &String{B: b}
}

// ParseInt parses the string's content as a base-10 i64, the
// precondition for INCR/DECR/INCRBY/DECRBY.
func (s *String) ParseInt() (int64, error) {
	if len(s.B) == 0 {
		return 0, fmt.Errorf("empty")
	}
	return strconv.ParseInt(string(s.B), 10, 64)
}

// ParseFloat parses the string's content as a finite double, the
// precondition for INCRBYFLOAT (spec.md §4.3: "a finite IEEE-754
// double that does not denormalize" is accepted; NaN/Inf are not
// valid stored values).
func (s *String) ParseFloat() (float64, error) {
	if len(s.B) == 0 {
		return 0, fmt.Errorf("empty")
	}
	f, err := strconv.ParseFloat(string(s.B), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("not a finite number")
	}
	return f, nil
}

// FormatFloat renders a float the way INCRBYFLOAT/HINCRBYFLOAT reply:
// the shortest representation that round-trips, trimming trailing
// zeroes, never in exponential form.
func FormatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
