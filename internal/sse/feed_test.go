package sse

import (
	"strings"
	"testing"
)

func collect(chunks []string) []string {
	var lines []string
	buffer := ""
	for _, chunk := range chunks {
		var out []string
		out, buffer = Feed(buffer, chunk)
		lines = append(lines, out...)
	}
	return lines
}

func TestFeedSplitsCompleteLines(t *testing.T) {
	lines, remainder := Feed("", "data: one\ndata: two\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d (%v)", len(lines), lines)
	}
	if lines[0] != "data: one" || lines[1] != "data: two" {
		t.Fatalf("unexpected lines: %v", lines)
	}
	if remainder != "" {
		t.Fatalf("expected empty remainder, got %q", remainder)
	}
}

func TestFeedCarriesPartialLine(t *testing.T) {
	lines, remainder := Feed("", "data: hel")
	if lines != nil {
		t.Fatalf("expected no lines, got %v", lines)
	}
	if remainder != "data: hel" {
		t.Fatalf("unexpected remainder %q", remainder)
	}

	lines, remainder = Feed(remainder, "lo\n")
	if len(lines) != 1 || lines[0] != "data: hello" {
		t.Fatalf("expected reassembled line, got %v", lines)
	}
	if remainder != "" {
		t.Fatalf("expected empty remainder, got %q", remainder)
	}
}

func TestFeedChunkingIsTransparent(t *testing.T) {
	payload := "data: a\r\ndata: bb\n\ndata: ccc\ndata: [DONE]\n"

	whole := collect([]string{payload})

	// Re-deliver the same bytes one byte at a time; line output must be
	// identical no matter where chunk boundaries land.
	var bytewise []string
	for i := 0; i < len(payload); i++ {
		bytewise = append(bytewise, payload[i:i+1])
	}
	if got, want := strings.Join(collect(bytewise), "|"), strings.Join(whole, "|"); got != want {
		t.Fatalf("chunking changed output:\n got %q\nwant %q", got, want)
	}
}

func TestDataPayload(t *testing.T) {
	cases := []struct {
		line    string
		payload string
		ok      bool
	}{
		{"data: hello", "hello", true},
		{"data:{\"a\":1}", "{\"a\":1}", true},
		{"data: [DONE]", "[DONE]", true},
		{": comment", "", false},
		{"event: ping", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		payload, ok := DataPayload(tc.line)
		if ok != tc.ok || payload != tc.payload {
			t.Fatalf("DataPayload(%q) = (%q, %v), want (%q, %v)", tc.line, payload, ok, tc.payload, tc.ok)
		}
	}
}
