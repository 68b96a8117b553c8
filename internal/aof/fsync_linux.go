//go:build linux

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

package aof

import (
	"os"

	"golang.org/x/sys/unix"
)

// fsyncFile flushes f's data (and, on Linux, skips the metadata sync
// fsync(2) also pays for) via fdatasync(2) — the flush policy
// (spec.md §4.7 "always"/"everysec") is on the hot write path, so the
// cheaper syscall matters here.
func fsyncFile(f *os.File) error {
	if err := unix.Fdatasync(int(f.Fd())); err != nil {
		return err
	}
	return nil
}
