package gate

import (
	"fmt"
	"path"
	"strings"

	"github.com/dshills/ticketgate/internal/ticket"
)

const similarityInstructions = `Compare this pull request to its linked ticket and rate how well the change implements the ticket as a percentage match from 0 to 100.

Respond with ONLY a JSON object of exactly this shape. No markdown, no explanation, no preamble:
{"score": <0-100 integer>, "comment": "<string>"}

The comment is a short justification of the score.`

const reviewInstructions = `You are an expert code reviewer. Provide actionable comments on this diff.
Only comment on lines the diff adds or changes. Reference the line number in the new version of the file.

Respond with ONLY a JSON object of exactly this shape. No markdown, no explanation, no preamble:
{"comments": [{"file": "<path>", "line": <positive integer>, "comment": "<string>"}]}

If there is nothing worth saying, respond with {"comments": []}.`

// BuildSimilarityPrompt renders the similarity prompt. The same inputs
// always produce the same prompt.
func BuildSimilarityPrompt(pr PRContext, t ticket.Content) string {
	var b strings.Builder

	b.WriteString(similarityInstructions)
	b.WriteString("\n\n")

	if t.Key != "" {
		fmt.Fprintf(&b, "Ticket %s\n", t.Key)
	} else {
		b.WriteString("Ticket\n")
	}
	fmt.Fprintf(&b, "Summary:\n%s\n\n", t.Summary)
	fmt.Fprintf(&b, "Description:\n%s\n\n", t.Description)

	b.WriteString("Pull request\n")
	fmt.Fprintf(&b, "Title:\n%s\n\n", pr.Title)
	fmt.Fprintf(&b, "Body:\n%s\n\n", pr.Body)

	b.WriteString("--- BEGIN DIFF ---\n")
	b.WriteString(pr.Diff)
	if pr.Diff != "" && !strings.HasSuffix(pr.Diff, "\n") {
		b.WriteString("\n")
	}
	b.WriteString("--- END DIFF ---\n")

	return b.String()
}

// BuildReviewPrompt renders the review prompt from a diff and the files it
// touches.
func BuildReviewPrompt(diff string, files []string) string {
	var b strings.Builder

	b.WriteString(reviewInstructions)
	b.WriteString("\n\n")

	if langs := detectLanguages(files); len(langs) > 0 {
		fmt.Fprintf(&b, "Languages: %s\n\n", strings.Join(langs, ", "))
	}

	b.WriteString("--- BEGIN DIFF ---\n")
	b.WriteString(diff)
	if diff != "" && !strings.HasSuffix(diff, "\n") {
		b.WriteString("\n")
	}
	b.WriteString("--- END DIFF ---\n")

	return b.String()
}

var extLanguages = map[string]string{
	".go":    "Go",
	".py":    "Python",
	".js":    "JavaScript",
	".jsx":   "JavaScript",
	".mjs":   "JavaScript",
	".ts":    "TypeScript",
	".tsx":   "TypeScript",
	".java":  "Java",
	".kt":    "Kotlin",
	".rb":    "Ruby",
	".rs":    "Rust",
	".c":     "C",
	".h":     "C",
	".cpp":   "C++",
	".cc":    "C++",
	".cs":    "C#",
	".swift": "Swift",
	".php":   "PHP",
	".scala": "Scala",
	".sh":    "Shell",
	".sql":   "SQL",
	".yaml":  "YAML",
	".yml":   "YAML",
	".tf":    "Terraform",
}

// detectLanguages lists languages in the order their first file appears.
func detectLanguages(files []string) []string {
	seen := make(map[string]bool)
	var langs []string
	for _, f := range files {
		lang, ok := extLanguages[strings.ToLower(path.Ext(f))]
		if !ok || seen[lang] {
			continue
		}
		seen[lang] = true
		langs = append(langs, lang)
	}
	return langs
}
