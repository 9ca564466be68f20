package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/dshills/ticketgate/internal/gate"
)

// TextWriter outputs a human-readable terminal summary.
type TextWriter struct{}

func (t *TextWriter) Write(w io.Writer, o *gate.Outcome) error {
	var b strings.Builder

	mark := "PASS"
	if !o.Passed() {
		mark = "FAIL"
	}
	fmt.Fprintf(&b, "ticketgate %s  %s#%d\n", mark, o.Repo, o.PR)
	if o.Ticket.Key != "" {
		fmt.Fprintf(&b, "  ticket:    %s", o.Ticket.Key)
		if o.TicketSummary != "" {
			fmt.Fprintf(&b, "  %q", o.TicketSummary)
		}
		b.WriteString("\n")
	}
	if o.Stage != gate.StageStart && o.Stage != gate.StageTicketResolved && o.Stage != gate.StageContentFetched {
		fmt.Fprintf(&b, "  score:     %d%% (threshold %d%%)\n", o.Match.Score, o.Threshold)
		if o.Match.Comment != "" {
			fmt.Fprintf(&b, "  comment:   %s\n", o.Match.Comment)
		}
	}
	if o.Reason != gate.ReasonNone {
		fmt.Fprintf(&b, "  reason:    %s\n", o.Reason)
	}
	if o.Error != "" {
		fmt.Fprintf(&b, "  error:     %s\n", o.Error)
	}
	if o.ParseFailed {
		fmt.Fprintf(&b, "  raw reply: %s\n", o.Diagnostics.RawSimilarity)
	}

	if o.ReviewRequested {
		fmt.Fprintf(&b, "\n  review comments: %d\n", len(o.Review))
		for _, c := range o.Review {
			fmt.Fprintf(&b, "    %s:%d  %s\n", c.File, c.Line, c.Comment)
		}
	}

	posted := "posted"
	switch {
	case o.DryRun:
		posted = "dry run, not posted"
	case !o.Posted:
		posted = "not posted"
	}
	fmt.Fprintf(&b, "\n  run %s  %s  host %dms  tracker %dms  model %dms  total %dms\n",
		o.RunID, posted, o.Timing.HostMs, o.Timing.TrackerMs, o.Timing.ModelMs, o.Timing.TotalMs)

	_, err := io.WriteString(w, b.String())
	return err
}
