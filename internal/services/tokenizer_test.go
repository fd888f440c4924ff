package services

import "testing"

func TestCountTokens(t *testing.T) {
	tok := NewTokenizer(newTestLogger())

	if got := tok.CountTokens(""); got != 0 {
		t.Fatalf("empty string costs %d tokens", got)
	}
	short := tok.CountTokens("hello")
	long := tok.CountTokens("hello there, this is a longer sentence about overthinking")
	if short <= 0 || long <= 0 {
		t.Fatalf("counts must be positive: short=%d long=%d", short, long)
	}
	if long <= short {
		t.Fatalf("longer text should cost more tokens: short=%d long=%d", short, long)
	}
}
