package gate

import (
	"strings"
	"testing"

	"github.com/dshills/ticketgate/internal/ticket"
)

func TestBuildSimilarityPrompt(t *testing.T) {
	pr := PRContext{Title: "Fix NPE", Body: "see https://tracker.example/browse/ABC-12", Diff: "diff --git a/x.go b/x.go\n+fix"}
	tc := ticket.Content{Key: "ABC-12", Summary: "Fix null pointer", Description: "Crash on nil\nwhen empty"}

	got := BuildSimilarityPrompt(pr, tc)
	for _, want := range []string{
		`{"score": <0-100 integer>, "comment": "<string>"}`,
		"Ticket ABC-12",
		"Summary:\nFix null pointer",
		"Description:\nCrash on nil\nwhen empty",
		"Title:\nFix NPE",
		"--- BEGIN DIFF ---\ndiff --git a/x.go b/x.go\n+fix\n--- END DIFF ---\n",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("prompt missing %q\n%s", want, got)
		}
	}
	if again := BuildSimilarityPrompt(pr, tc); again != got {
		t.Error("prompt is not deterministic")
	}
}

func TestBuildReviewPrompt(t *testing.T) {
	files := []string{"cmd/main.go", "deploy/app.yaml", "internal/x.go", "README"}
	got := BuildReviewPrompt("+code\n", files)
	if !strings.Contains(got, `{"comments": [{"file": "<path>", "line": <positive integer>, "comment": "<string>"}]}`) {
		t.Errorf("review prompt does not state the output shape:\n%s", got)
	}
	if !strings.Contains(got, "Languages: Go, YAML\n") {
		t.Errorf("languages line wrong:\n%s", got)
	}
	for i := 0; i < 20; i++ {
		if BuildReviewPrompt("+code\n", files) != got {
			t.Fatal("review prompt is not deterministic")
		}
	}
}

func TestDetectLanguagesNoMatch(t *testing.T) {
	if langs := detectLanguages([]string{"Makefile", "LICENSE"}); len(langs) != 0 {
		t.Errorf("detectLanguages = %v, want none", langs)
	}
}
