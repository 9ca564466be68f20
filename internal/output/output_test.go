package output

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dshills/ticketgate/internal/gate"
	"github.com/dshills/ticketgate/internal/ticket"
)

func sampleOutcome() *gate.Outcome {
	return &gate.Outcome{
		RunID:           "run-1",
		Repo:            "acme/api",
		PR:              7,
		Ticket:          ticket.Reference{Key: "ABC-12", URL: "https://tracker.example/browse/ABC-12"},
		TicketSummary:   "Fix null pointer",
		Stage:           gate.StageReported,
		Verdict:         gate.VerdictFailed,
		Reason:          gate.ReasonBelowThreshold,
		Threshold:       80,
		Match:           gate.MatchResult{Score: 0, Comment: "Unable to parse AI response."},
		ParseFailed:     true,
		ReviewRequested: true,
		Review:          []gate.ReviewComment{{File: "x.go", Line: 2, Comment: "early return"}},
		Posted:          true,
		Diagnostics:     gate.Diagnostics{RawSimilarity: "not json"},
	}
}

func TestGetWriter(t *testing.T) {
	for _, f := range []string{"", "text", "json", "markdown", "md", "sarif"} {
		if _, err := GetWriter(f); err != nil {
			t.Errorf("GetWriter(%q) error: %v", f, err)
		}
	}
	if _, err := GetWriter("xml"); err == nil {
		t.Error("GetWriter(xml) should fail")
	}
}

func TestTextWriter(t *testing.T) {
	var buf bytes.Buffer
	if err := (&TextWriter{}).Write(&buf, sampleOutcome()); err != nil {
		t.Fatal(err)
	}
	got := buf.String()
	for _, want := range []string{
		"ticketgate FAIL  acme/api#7",
		"ABC-12",
		"score:     0% (threshold 80%)",
		"reason:    below_threshold",
		"raw reply: not json",
		"x.go:2  early return",
		"run run-1  posted",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("text output missing %q:\n%s", want, got)
		}
	}
}

func TestTextWriterEarlyFailure(t *testing.T) {
	o := &gate.Outcome{Repo: "acme/api", PR: 1, Stage: gate.StageStart, Verdict: gate.VerdictFailed,
		Reason: gate.ReasonMissingTicket, Error: "no ticket reference found", DryRun: true}
	var buf bytes.Buffer
	if err := (&TextWriter{}).Write(&buf, o); err != nil {
		t.Fatal(err)
	}
	got := buf.String()
	if strings.Contains(got, "score:") {
		t.Errorf("score shown before scoring:\n%s", got)
	}
	if !strings.Contains(got, "dry run, not posted") {
		t.Errorf("missing dry run marker:\n%s", got)
	}
}

func TestJSONWriterKeepsDiagnostics(t *testing.T) {
	var buf bytes.Buffer
	if err := (&JSONWriter{}).Write(&buf, sampleOutcome()); err != nil {
		t.Fatal(err)
	}
	var decoded gate.Outcome
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded.Diagnostics.RawSimilarity != "not json" {
		t.Errorf("RawSimilarity = %q", decoded.Diagnostics.RawSimilarity)
	}
	if decoded.Verdict != gate.VerdictFailed {
		t.Errorf("Verdict = %q", decoded.Verdict)
	}
}

func TestMarkdownWriter(t *testing.T) {
	o := sampleOutcome()
	var buf bytes.Buffer
	if err := (&MarkdownWriter{}).Write(&buf, o); err != nil {
		t.Fatal(err)
	}
	if buf.String() != gate.FormatReport(*o) {
		t.Errorf("markdown should render the report when none is stored:\n%s", buf.String())
	}

	o.Report = "posted body"
	buf.Reset()
	if err := (&MarkdownWriter{}).Write(&buf, o); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "posted body" {
		t.Errorf("markdown = %q, want stored report", buf.String())
	}
}

func TestSARIFWriter(t *testing.T) {
	var buf bytes.Buffer
	if err := (&SARIFWriter{}).Write(&buf, sampleOutcome()); err != nil {
		t.Fatal(err)
	}
	var log sarifLog
	if err := json.Unmarshal(buf.Bytes(), &log); err != nil {
		t.Fatalf("invalid SARIF: %v", err)
	}
	results := log.Runs[0].Results
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if results[0].RuleID != ruleSimilarity || results[0].Level != "error" {
		t.Errorf("first result = %+v", results[0])
	}
	loc := results[1].Locations[0].PhysicalLocation
	if loc.ArtifactLocation.URI != "x.go" || loc.Region.StartLine != 2 {
		t.Errorf("review location = %+v", loc)
	}
}

func TestSARIFWriterPassedHasNoError(t *testing.T) {
	o := sampleOutcome()
	o.Verdict = gate.VerdictPassed
	o.Review = nil
	log := buildSARIF(o)
	if n := len(log.Runs[0].Results); n != 0 {
		t.Errorf("results = %d, want 0", n)
	}
}

func TestWriteOutcomeToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	if err := WriteOutcome(sampleOutcome(), "json", path); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"runId": "run-1"`) {
		t.Errorf("file content:\n%s", data)
	}
	if err := WriteOutcome(sampleOutcome(), "xml", path); err == nil {
		t.Error("unsupported format should fail")
	}
}
