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

// Package aof implements the append-only log, C7 of spec.md §4.7: every
// effective write, already rendered as a canonical command frame by
// internal/command, is serialized in protocol frame form so the file
// doubles as a plain RESP transcript (a sibling implementation could
// replay it with nothing more than a RESP parser). The only thing
// layered on top of the raw frame bytes is a trailing CRC-32 per
// record, which is what lets a reader detect a torn write without
// having to understand the command grammar.
package aof

import "hash/crc32"

// Magic identifies a redigo append log file; FormatVersion lets a
// future incompatible layout refuse to load instead of silently
// misparsing (spec.md §6 "both formats ... must be self-describing,
// versioned").
const (
	Magic         = "REDIGOAOF"
	FormatVersion = 1
)

// markerNone/markerSnapshot say whether a PREAMBLE snapshot blob
// follows the header (spec.md §4.7 "if the log begins with an
// embedded snapshot prefix").
const (
	markerNone     = 0
	markerSnapshot = 1
)

var crcTable = crc32.MakeTable(crc32.IEEE)
