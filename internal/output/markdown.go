package output

import (
	"fmt"
	"io"

	"github.com/dshills/ticketgate/internal/gate"
)

// MarkdownWriter outputs the PR comment body. Runs that stopped before a
// report was rendered get the posted explanation, if any.
type MarkdownWriter struct{}

func (m *MarkdownWriter) Write(w io.Writer, o *gate.Outcome) error {
	body := o.Report
	if body == "" {
		body = gate.FormatReport(*o)
	}
	if _, err := io.WriteString(w, body); err != nil {
		return fmt.Errorf("writing markdown: %w", err)
	}
	return nil
}
