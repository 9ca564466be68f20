package gate

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/dshills/ticketgate/internal/ticket"
)

// Decide applies the threshold. The boundary is inclusive: a score equal
// to the threshold passes.
func Decide(score, threshold int) Verdict {
	if score >= threshold {
		return VerdictPassed
	}
	return VerdictFailed
}

// FormatReport renders the markdown comment posted on the PR.
func FormatReport(o Outcome) string {
	var b strings.Builder

	status := "✅ PASSED"
	if o.Verdict != VerdictPassed {
		status = "⚠️ BELOW THRESHOLD"
	}
	fmt.Fprintf(&b, "### 🤖 Ticket Validation: %s\n\n", status)

	switch {
	case o.Ticket.URL != "":
		fmt.Fprintf(&b, "**Ticket:** [%s](%s)\n", o.Ticket.Key, o.Ticket.URL)
	case o.Ticket.Key != "":
		fmt.Fprintf(&b, "**Ticket:** %s\n", o.Ticket.Key)
	}
	fmt.Fprintf(&b, "**Score:** %d%% (threshold %d%%)\n\n", o.Match.Score, o.Threshold)

	if c := strings.TrimSpace(o.Match.Comment); c != "" {
		b.WriteString(c)
		b.WriteString("\n")
	}
	if o.ParseFailed {
		b.WriteString("\n> The model reply could not be parsed, so the score defaulted to 0.\n")
	}

	if o.ReviewRequested {
		b.WriteString("\n---\n**Code Review Comments:**\n")
		if len(o.Review) == 0 {
			b.WriteString("_No review comments._\n")
		}
		for _, c := range o.Review {
			fmt.Fprintf(&b, "- `%s:%d` → %s\n", c.File, c.Line, oneLine(c.Comment))
		}
	}

	if o.RunID != "" {
		fmt.Fprintf(&b, "\n<sub>run %s</sub>\n", o.RunID)
	}
	return b.String()
}

// MissingTicketComment asks the author to link a ticket. trackerURL is the
// configured tracker root and may be empty.
func MissingTicketComment(trackerURL string, mode ticket.MatchMode) string {
	host := "yourcompany.atlassian.net"
	if u, err := url.Parse(trackerURL); err == nil && u.Host != "" {
		host = u.Host
	}
	example := fmt.Sprintf("https://%s/browse/PROJ-123", host)
	if mode == ticket.MatchLoose {
		return fmt.Sprintf("❌ Please include a ticket link (e.g. %s) or a ticket key such as PROJ-123 in your PR body.", example)
	}
	return fmt.Sprintf("❌ Please include a ticket link (e.g. %s) in your PR body.", example)
}

// ModelFailureComment explains a run that failed because the model could
// not be reached.
func ModelFailureComment(o Outcome, err error) string {
	var b strings.Builder
	b.WriteString("### 🤖 Ticket Validation: ❌ FAILED\n\n")
	if o.Ticket.Key != "" {
		fmt.Fprintf(&b, "**Ticket:** %s\n\n", o.Ticket.Key)
	}
	fmt.Fprintf(&b, "The similarity check could not be completed: %s.\n", modelFailureKind(err))
	b.WriteString("Re-run the check once the model service recovers.\n")
	if o.RunID != "" {
		fmt.Fprintf(&b, "\n<sub>run %s</sub>\n", o.RunID)
	}
	return b.String()
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
