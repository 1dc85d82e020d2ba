package llm

import (
	"testing"

	"google.golang.org/genai"
)

func candidateWithParts(parts ...*genai.Part) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: parts}},
		},
	}
}

func TestResponseTextJoinsAllParts(t *testing.T) {
	t.Parallel()
	res := candidateWithParts(
		&genai.Part{Text: "Good day, Ann!"},
		&genai.Part{Text: "\n\nHere are your stories."},
	)
	want := "Good day, Ann!\n\nHere are your stories."
	if got := responseText(res); got != want {
		t.Fatalf("responseText = %q, want %q", got, want)
	}
}

func TestResponseTextSkipsNilParts(t *testing.T) {
	t.Parallel()
	res := candidateWithParts(nil, &genai.Part{Text: "kept"})
	if got := responseText(res); got != "kept" {
		t.Fatalf("responseText = %q, want %q", got, "kept")
	}
}

func TestResponseTextEmptyShapes(t *testing.T) {
	t.Parallel()
	shapes := []*genai.GenerateContentResponse{
		nil,
		{},
		{Candidates: []*genai.Candidate{{}}},
		candidateWithParts(),
	}
	for i, res := range shapes {
		if got := responseText(res); got != "" {
			t.Fatalf("shape %d: responseText = %q, want empty", i, got)
		}
	}
}
