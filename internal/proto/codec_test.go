package proto

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func roundTrip(t *testing.T, f Frame) {
	t.Helper()
	buf := Encode(nil, f)
	got, n, err := Parse(buf, 0)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if n != len(buf) {
		t.Fatalf("consumed %d, want %d", n, len(buf))
	}
	if diff := cmp.Diff(f, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestRoundTrip(t *testing.T) {
	cases := []Frame{
		SimpleStr("OK"),
		ErrFrame("ERR something bad"),
		Int(42),
		Int(-1),
		BulkStr("hello world"),
		BulkStr(""),
		NilBulk(),
		NilArray(),
		Array_(BulkStr("SET"), BulkStr("k"), BulkStr("v")),
		Array_(Array_(Int(1), Int(2)), BulkStr("nested")),
		BulkStr("binary\x00\x01\xffsafe"),
	}
	for _, c := range cases {
		roundTrip(t, c)
	}
}

func TestParseNeedsMoreBytes(t *testing.T) {
	full := Encode(nil, Array_(BulkStr("GET"), BulkStr("key")))
	for i := 0; i < len(full); i++ {
		_, n, err := Parse(full[:i], 0)
		if err != nil {
			t.Fatalf("prefix %d: unexpected protocol error: %v", i, err)
		}
		if n != 0 {
			t.Fatalf("prefix %d: expected need-more (n=0), got n=%d", i, n)
		}
	}
	frame, n, err := Parse(full, 0)
	if err != nil || n != len(full) {
		t.Fatalf("full frame should parse cleanly, got frame=%v n=%d err=%v", frame, n, err)
	}
}

func TestParseUnknownLeadingByteIsInline(t *testing.T) {
	// A bare line not starting with a RESP sigil is the inline-command
	// form (SPEC_FULL.md C1 expansion), not a protocol error.
	frame, n, err := Parse([]byte("PING\r\n"), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != len("PING\r\n") {
		t.Fatalf("consumed %d, want %d", n, len("PING\r\n"))
	}
	name, args, ok := frame.AsCommand()
	if !ok || name != "PING" || len(args) != 0 {
		t.Fatalf("unexpected inline command: %v %v %v", name, args, ok)
	}
}

func TestParseRejectsBadLengths(t *testing.T) {
	cases := []string{
		"$-2\r\n",
		"*-2\r\n",
		":notanumber\r\n",
	}
	for _, c := range cases {
		_, _, err := Parse([]byte(c), 0)
		if err == nil {
			t.Errorf("expected protocol error for %q", c)
		}
	}
}

func TestParseRejectsOversizeBulk(t *testing.T) {
	_, _, err := Parse([]byte("$100\r\n"), 10)
	if err == nil {
		t.Fatalf("expected protocol error for oversize bulk")
	}
}
