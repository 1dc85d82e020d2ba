package tgtext

import (
	"strings"
	"testing"
)

func TestTruncRunes(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{name: "short untouched", in: "hello", n: 10, want: "hello"},
		{name: "exact untouched", in: "hello", n: 5, want: "hello"},
		{name: "truncated", in: "hello world", n: 5, want: "hell…"},
		{name: "zero", in: "hello", n: 0, want: ""},
		{name: "one", in: "hello", n: 1, want: "…"},
		{name: "multibyte", in: "привет мир", n: 6, want: "приве…"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := TruncRunes(tt.in, tt.n)
			if got != tt.want {
				t.Fatalf("TruncRunes(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
			}
			if n := len([]rune(got)); n > tt.n {
				t.Fatalf("result is %d runes, limit was %d", n, tt.n)
			}
		})
	}
}

func TestSplitShortMessage(t *testing.T) {
	t.Parallel()
	chunks := Split("short", 100)
	if len(chunks) != 1 || chunks[0] != "short" {
		t.Fatalf("Split = %v", chunks)
	}
}

func TestSplitPrefersNewlines(t *testing.T) {
	t.Parallel()
	in := strings.Repeat("a", 60) + "\n" + strings.Repeat("b", 60)
	chunks := Split(in, 80)
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	if !strings.HasSuffix(chunks[0], "\n") {
		t.Fatalf("first chunk should end at the newline boundary: %q", chunks[0])
	}
	if chunks[0]+chunks[1] != in {
		t.Fatal("split lost content")
	}
}

func TestSplitHardLimit(t *testing.T) {
	t.Parallel()
	in := strings.Repeat("x", 250)
	chunks := Split(in, 100)
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	var total int
	for _, c := range chunks {
		n := len([]rune(c))
		if n > 100 {
			t.Fatalf("chunk exceeds limit: %d runes", n)
		}
		total += n
	}
	if total != 250 {
		t.Fatalf("total runes = %d, want 250", total)
	}
}
