package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/dshills/ticketgate/internal/gate"
	"github.com/dshills/ticketgate/internal/version"
)

const (
	ruleSimilarity = "ticketgate/similarity"
	ruleReview     = "ticketgate/review"
)

// SARIFWriter outputs the verdict and review comments in SARIF v2.1.0
// format for code scanning upload.
type SARIFWriter struct{}

func (s *SARIFWriter) Write(w io.Writer, o *gate.Outcome) error {
	data, err := json.MarshalIndent(buildSARIF(o), "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling SARIF: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing SARIF: %w", err)
	}
	_, err = fmt.Fprintln(w)
	return err
}

type sarifLog struct {
	Version string     `json:"version"`
	Schema  string     `json:"$schema"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name           string      `json:"name"`
	Version        string      `json:"version"`
	InformationURI string      `json:"informationUri"`
	Rules          []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID               string             `json:"id"`
	ShortDescription sarifMessage       `json:"shortDescription"`
	DefaultConfig    sarifDefaultConfig `json:"defaultConfiguration"`
}

type sarifDefaultConfig struct {
	Level string `json:"level"`
}

type sarifResult struct {
	RuleID    string          `json:"ruleId"`
	Level     string          `json:"level"`
	Message   sarifMessage    `json:"message"`
	Locations []sarifLocation `json:"locations,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysicalLocation `json:"physicalLocation"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
	Region           sarifRegion           `json:"region"`
}

type sarifArtifactLocation struct {
	URI string `json:"uri"`
}

type sarifRegion struct {
	StartLine int `json:"startLine"`
}

func buildSARIF(o *gate.Outcome) sarifLog {
	results := make([]sarifResult, 0, len(o.Review)+1)

	if !o.Passed() {
		text := fmt.Sprintf("Ticket match %d%% is below threshold %d%%", o.Match.Score, o.Threshold)
		if o.Reason != gate.ReasonBelowThreshold && o.Reason != gate.ReasonNone {
			text = fmt.Sprintf("Ticket validation failed: %s", o.Reason)
		}
		results = append(results, sarifResult{
			RuleID:  ruleSimilarity,
			Level:   "error",
			Message: sarifMessage{Text: text},
		})
	}

	for _, c := range o.Review {
		results = append(results, sarifResult{
			RuleID:  ruleReview,
			Level:   "note",
			Message: sarifMessage{Text: c.Comment},
			Locations: []sarifLocation{{
				PhysicalLocation: sarifPhysicalLocation{
					ArtifactLocation: sarifArtifactLocation{URI: c.File},
					Region:           sarifRegion{StartLine: c.Line},
				},
			}},
		})
	}

	return sarifLog{
		Version: "2.1.0",
		Schema:  "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/main/sarif-2.1/schema/sarif-schema-2.1.0.json",
		Runs: []sarifRun{{
			Tool: sarifTool{Driver: sarifDriver{
				Name:           "ticketgate",
				Version:        version.Version,
				InformationURI: "https://github.com/dshills/ticketgate",
				Rules: []sarifRule{
					{ID: ruleSimilarity, ShortDescription: sarifMessage{Text: "PR does not match its ticket"}, DefaultConfig: sarifDefaultConfig{Level: "error"}},
					{ID: ruleReview, ShortDescription: sarifMessage{Text: "Advisory review comment"}, DefaultConfig: sarifDefaultConfig{Level: "note"}},
				},
			}},
			Results: results,
		}},
	}
}
