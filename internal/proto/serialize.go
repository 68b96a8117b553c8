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
package proto

import (
	"strconv"
)

// Encode serializes f directly into dst's tail, the same buffer the
// connection uses as its pending-output buffer, avoiding a
// per-reply allocation on the hot path.
func Encode(dst []byte, f Frame) []byte {
	switch f.Type {
	case SimpleString:
		dst = append(dst, '+')
		dst = append(dst, f.Str...)
		return append(dst, '\r', '\n')
	case Error:
		dst = append(dst, '-')
		dst = append(dst, f.Str...)
		return append(dst, '\r', '\n')
	case Integer:
		dst = append(dst, ':')
		dst = strconv.AppendInt(dst, f.Int, 10)
		return append(dst, '\r', '\n')
	case Bulk:
		if f.Null {
			return append(dst, '$', '-', '1', '\r', '\n')
		}
		dst = append(dst, '$')
		dst = strconv.AppendInt(dst, int64(len(f.Str)), 10)
		dst = append(dst, '\r', '\n')
		dst = append(dst, f.Str...)
		return append(dst, '\r', '\n')
	case Array:
		if f.Null {
			return append(dst, '*', '-', '1', '\r', '\n')
		}
		dst = append(dst, '*')
		dst = strconv.AppendInt(dst, int64(len(f.Arr)), 10)
		dst = append(dst, '\r', '\n')
		for _, item := range f.Arr {
			dst = Encode(dst, item)
		}
		return dst
	default:
		panic("proto: unknown frame type")
	}
}
