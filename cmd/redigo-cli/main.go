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

// redigo-cli is a minimal interactive client for redigo-server: a
// readline loop (scm.Repl's own shape, adapted from a scheme REPL to
// a RESP request/reply round trip) that splits a typed line into
// words, sends them as a RESP command array, and prints the reply.
package main

import (
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	flag "github.com/spf13/pflag"

	"github.com/launix-de/redigo/internal/proto"
)

const maxBulkLen = 512 * 1024 * 1024

func main() {
	host := flag.StringP("host", "h", "127.0.0.1", "server host")
	port := flag.IntP("port", "p", 6379, "server port")
	flag.Parse()

	addr := net.JoinHostPort(*host, strconv.Itoa(*port))
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		fmt.Printf("Could not connect to redigo at %s: %v\n", addr, err)
		return
	}
	defer conn.Close()
	fr := proto.NewFrameReader(conn, maxBulkLen)

	if len(flag.Args()) > 0 {
		runOne(conn, fr, flag.Args())
		return
	}

	l, err := readline.NewEx(&readline.Config{
		Prompt:          fmt.Sprintf("%s:%d> ", *host, *port),
		HistoryFile:     ".redigo-cli-history.tmp",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		panic(err)
	}
	defer l.Close()
	l.CaptureExitSignal()

	for {
		line, err := l.Readline()
		if err == readline.ErrInterrupt {
			continue
		} else if err == io.EOF {
			break
		} else if err != nil {
			break
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		words := splitWords(line)
		if len(words) == 0 {
			continue
		}
		if strings.EqualFold(words[0], "quit") || strings.EqualFold(words[0], "exit") {
			break
		}
		runOne(conn, fr, words)
	}
}

func runOne(conn net.Conn, fr *proto.FrameReader, words []string) {
	req := proto.BulkStrings(words)
	if _, err := conn.Write(proto.Encode(nil, req)); err != nil {
		fmt.Println("(error) write failed:", err)
		return
	}
	reply, _, err := fr.ReadFrame()
	if err != nil {
		fmt.Println("(error) read failed:", err)
		return
	}
	fmt.Println(render(reply, 0))
}

// render formats a reply the way redis-cli does: bulk/simple strings
// bare, integers prefixed "(integer)", errors prefixed "(error)",
// nil as "(nil)", and arrays as numbered, indented sub-lines.
func render(f proto.Frame, depth int) string {
	indent := strings.Repeat("   ", depth)
	switch f.Type {
	case proto.SimpleString:
		return indent + f.Str
	case proto.Error:
		return indent + "(error) " + f.Str
	case proto.Integer:
		return indent + "(integer) " + strconv.FormatInt(f.Int, 10)
	case proto.Bulk:
		if f.Null {
			return indent + "(nil)"
		}
		return indent + "\"" + f.Str + "\""
	case proto.Array:
		if f.Null {
			return indent + "(nil)"
		}
		if len(f.Arr) == 0 {
			return indent + "(empty array)"
		}
		lines := make([]string, len(f.Arr))
		for i, item := range f.Arr {
			prefix := fmt.Sprintf("%d) ", i+1)
			lines[i] = indent + prefix + strings.TrimLeft(render(item, depth+1), " \t")
		}
		return strings.Join(lines, "\n")
	default:
		return indent + "(unknown reply)"
	}
}

// splitWords does a minimal shell-style split: double-quoted spans
// are kept as one word, matching the forms redis-cli accepts for
// values containing spaces (e.g. SET k "hello world").
func splitWords(line string) []string {
	var words []string
	var cur strings.Builder
	inQuote := false
	for i := 0; i < len(line); i++ {
		ch := line[i]
		switch {
		case ch == '"':
			inQuote = !inQuote
		case ch == ' ' && !inQuote:
			if cur.Len() > 0 {
				words = append(words, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteByte(ch)
		}
	}
	if cur.Len() > 0 {
		words = append(words, cur.String())
	}
	return words
}
