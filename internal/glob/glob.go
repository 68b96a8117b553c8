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

// Package glob implements the Redis-style glob pattern matching used
// by KEYS, SCAN MATCH and friends (spec.md §4.2): '*' any run, '?'
// any single byte, '[...]' a character class (with '^' negation and
// 'a-z' ranges), and '\' escaping the next byte literally. There is
// no pack library for this specific grammar, so it is hand-rolled
// over the standard library.
package glob

// Match reports whether s matches pattern.
func Match(pattern, s string) bool {
	return match([]byte(pattern), []byte(s))
}

func match(p, s []byte) bool {
	for len(p) > 0 {
		switch p[0] {
		case '*':
			// collapse consecutive stars
			for len(p) > 1 && p[1] == '*' {
				p = p[1:]
			}
			if len(p) == 1 {
				return true
			}
			for i := 0; i <= len(s); i++ {
				if match(p[1:], s[i:]) {
					return true
				}
			}
			return false
		case '?':
			if len(s) == 0 {
				return false
			}
			p, s = p[1:], s[1:]
		case '[':
			if len(s) == 0 {
				return false
			}
			end := classEnd(p)
			if end < 0 {
				// unterminated class: treat '[' as literal
				if s[0] != '[' {
					return false
				}
				p, s = p[1:], s[1:]
				continue
			}
			if !classMatch(p[1:end], s[0]) {
				return false
			}
			p, s = p[end+1:], s[1:]
		case '\\':
			if len(p) > 1 {
				p = p[1:]
			}
			if len(s) == 0 || s[0] != p[0] {
				return false
			}
			p, s = p[1:], s[1:]
		default:
			if len(s) == 0 || s[0] != p[0] {
				return false
			}
			p, s = p[1:], s[1:]
		}
	}
	return len(s) == 0
}

func classEnd(p []byte) int {
	for i := 1; i < len(p); i++ {
		if p[i] == ']' && i > 1 {
			return i
		}
	}
	return -1
}

func classMatch(cls []byte, c byte) bool {
	neg := false
	if len(cls) > 0 && cls[0] == '^' {
		neg = true
		cls = cls[1:]
	}
	found := false
	for i := 0; i < len(cls); i++ {
		if i+2 < len(cls) && cls[i+1] == '-' {
			lo, hi := cls[i], cls[i+2]
			if lo <= c && c <= hi {
				found = true
			}
			i += 2
		} else if cls[i] == c {
			found = true
		}
	}
	return found != neg
}
