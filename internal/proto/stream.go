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

import "io"

// FrameReader accumulates bytes from an io.Reader until Parse can
// decode a whole frame. It is the one incremental-read loop every
// connection-oriented caller needs (the client connection loop, the
// replication handshake/stream, the append log's own one-shot replay
// works off an in-memory buffer instead) so it lives here rather than
// being rewritten per package.
type FrameReader struct {
	r          io.Reader
	buf        []byte
	maxBulkLen int64
}

func NewFrameReader(r io.Reader, maxBulkLen int64) *FrameReader {
	return &FrameReader{r: r, maxBulkLen: maxBulkLen}
}

// ReadFrame returns the next frame and the number of raw bytes it
// occupied on the wire, so a caller tracking a byte-offset stream
// (replication ACKs) doesn't need to re-encode the frame to measure it.
func (fr *FrameReader) ReadFrame() (Frame, int, error) {
	for {
		f, n, err := Parse(fr.buf, fr.maxBulkLen)
		if err != nil {
			return Frame{}, 0, err
		}
		if n > 0 {
			fr.buf = fr.buf[n:]
			return f, n, nil
		}
		chunk := make([]byte, 4096)
		rn, rerr := fr.r.Read(chunk)
		if rn > 0 {
			fr.buf = append(fr.buf, chunk[:rn]...)
		}
		if rerr != nil {
			return Frame{}, 0, rerr
		}
	}
}
