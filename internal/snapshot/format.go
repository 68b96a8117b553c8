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

// Package snapshot implements C6 of spec.md §4.6: a self-describing,
// checksum-terminated binary image of the keyspace. The on-disk
// format is implementation-defined (spec.md §1 explicitly does not
// require Redis RDB byte compatibility) but is versioned and
// self-checking like the teacher's own storage pages
// (storage/storage.go's page header + checksum trailer).
package snapshot

import "fmt"

// Magic identifies a redigo snapshot file; Version allows the format
// to evolve without breaking older files silently.
const (
	Magic         = "REDIGOSNP"
	FormatVersion = 1
)

// Type tags for each Value variant, written before every entry's
// payload so the reader knows which decoder to use.
const (
	tagString byte = 1
	tagList   byte = 2
	tagHash   byte = 3
	tagSet    byte = 4
	tagZSet   byte = 5
	tagStream byte = 6
)

func tagForTypeName(name string) (byte, error) {
	switch name {
	case "string":
		return tagString, nil
	case "list":
		return tagList, nil
	case "hash":
		return tagHash, nil
	case "set":
		return tagSet, nil
	case "zset":
		return tagZSet, nil
	case "stream":
		return tagStream, nil
	default:
		return 0, fmt.Errorf("snapshot: unknown value type %q", name)
	}
}
