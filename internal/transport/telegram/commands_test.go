package telegram

import "testing"

func TestSplitCategories(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{name: "comma separated", args: []string{"politics,technology"}, want: []string{"politics", "technology"}},
		{name: "space separated", args: []string{"politics", "technology"}, want: []string{"politics", "technology"}},
		{name: "mixed with spaces", args: []string{"politics,", "technology", ",health"}, want: []string{"politics", "technology", "health"}},
		{name: "lowercased and deduped", args: []string{"Politics", "politics", "TECH"}, want: []string{"politics", "tech"}},
		{name: "empty parts dropped", args: []string{",,", " "}, want: nil},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := splitCategories(tt.args)
			if len(got) != len(tt.want) {
				t.Fatalf("splitCategories(%v) = %v, want %v", tt.args, got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Fatalf("splitCategories(%v) = %v, want %v", tt.args, got, tt.want)
				}
			}
		})
	}
}

func TestContains(t *testing.T) {
	t.Parallel()
	vocab := []string{"politics", "health"}
	if !contains(vocab, "health") {
		t.Fatal("contains missed an element")
	}
	if contains(vocab, "sports") {
		t.Fatal("contains reported a missing element")
	}
}
